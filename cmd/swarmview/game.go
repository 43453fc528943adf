package main

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/simulation"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/ui"
	"github.com/tochemey/goakt/v3/actor"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	panelWidth  = 280.0
	viewMargin  = 10.0
	kickRadius  = 15.0
	agentLength = 7.0
)

var whiteImage = ebiten.NewImage(3, 3)

var (
	classicColor = color.RGBA{R: 80, G: 160, B: 255, A: 255}
	curveColor   = color.RGBA{R: 80, G: 220, B: 120, A: 255}
	pathColor    = color.RGBA{R: 60, G: 140, B: 80, A: 255}
	goalColors   = map[string]color.RGBA{
		behavior.StatusNormal.String():           {R: 255, G: 160, B: 60, A: 255},
		behavior.StatusPending.String():          {R: 255, G: 120, B: 120, A: 255},
		behavior.StatusGoalChase.String():        {R: 255, G: 50, B: 50, A: 255},
		behavior.StatusInBasePyramid.String():    {R: 255, G: 230, B: 0, A: 255},
		behavior.StatusAtWallLip.String():        {R: 230, G: 120, B: 255, A: 255},
		behavior.StatusOverWallLip.String():      {R: 170, G: 60, B: 220, A: 255},
		behavior.StatusReachedFinalGoal.String(): {R: 255, G: 255, B: 255, A: 255},
	}
)

type Game struct {
	ctx        context.Context
	System     actor.ActorSystem
	swarmPID   *actor.PID
	snapshotCh chan *structpb.Struct
	lastState  *structpb.Struct

	cfg   *simulation.Config
	path  []geometry.Vector3
	panel *ui.Panel

	// settings changed in the panel since the last frame
	pending map[string]any

	// world to screen transform of the top-down view
	scale            float64
	originX, originY float64

	// Timing instrumentation
	lastUpdateDuration time.Duration
	lastDrawDuration   time.Duration
	updateAvg          float64 // Rolling average in ms
	drawAvg            float64 // Rolling average in ms
}

// NewGame builds and populates the swarm, spawns its actor and lays out the
// control panel.
func NewGame(ctx context.Context, cfg *simulation.Config, system actor.ActorSystem) (*Game, error) {
	swarm, err := simulation.NewSwarm(cfg, system.Logger())
	if err != nil {
		return nil, err
	}
	if err := swarm.Populate(); err != nil {
		return nil, err
	}

	// Buffer to avoid blocking the actor
	snapshotCh := make(chan *structpb.Struct, 10)
	swarmPID, err := system.Spawn(ctx, "swarm", simulation.NewSwarmActor(swarm, snapshotCh))
	if err != nil {
		return nil, fmt.Errorf("failed to spawn swarm: %w", err)
	}

	g := &Game{
		ctx:        ctx,
		System:     system,
		swarmPID:   swarmPID,
		snapshotCh: snapshotCh,
		lastState:  &structpb.Struct{}, // Avoid nil pointer
		cfg:        cfg,
		path:       swarm.Path().Points(),
		pending:    make(map[string]any),
	}
	g.layoutView()
	g.buildPanel()
	return g, nil
}

func (g *Game) set(name string, value any) { g.pending[name] = value }

func (g *Game) buildPanel() {
	cfg := g.cfg
	p := ui.NewPanel(viewMargin, viewMargin, panelWidth, screenHeight-2*viewMargin, "Swarm behaviors")

	p.AddSection("Flocking")
	p.AddSlider("Separation", 0, 5, cfg.Flocking.SeparationWeight, func(v float64) { g.set("separationWeight", v) })
	p.AddSlider("Alignment", 0, 5, cfg.Flocking.AlignmentWeight, func(v float64) { g.set("alignmentWeight", v) })
	p.AddSlider("Cohesion", 0, 5, cfg.Flocking.CohesionWeight, func(v float64) { g.set("cohesionWeight", v) })
	p.AddButton("Kickstart all (K)", func() { g.set("kickstart", true) })
	p.EndSection()

	p.AddSection("Movement")
	mv := cfg.Movement
	p.AddSlider("Max velocity", mv.PreferredVelocity, 2*mv.MaxVelocity, mv.MaxVelocity, func(v float64) { g.set("maxVelocity", v) })
	p.AddSlider("Max acceleration", 0.1, 3*mv.MaxAcceleration, mv.MaxAcceleration, func(v float64) { g.set("maxAcceleration", v) })
	p.EndSection()

	p.AddSection("Goal")
	p.AddCheckbox("Infection spread", cfg.Goal.InfectionSpread, func(v bool) { g.set("infectionSpread", v) })
	p.AddCheckbox("Collapse pyramid", cfg.Goal.Collapse, func(v bool) { g.set("collapse", v) })
	p.EndSection()

	p.AddSection("Curve")
	p.AddSlider("Influence", 0, 1, cfg.Curve.Influence, func(v float64) { g.set("influence", v) })
	p.EndSection()

	p.AddSection("Perception")
	p.AddSlider("Rebuild frequency", 0, 10, float64(cfg.RebuildFrequency), func(v float64) {
		g.set("rebuildFrequency", math.Round(v))
	})
	p.EndSection()

	g.panel = p
}

// layoutView fits the horizontal bounds of the world to the area right of the panel.
func (g *Game) layoutView() {
	b := g.cfg.Classic.Bounds
	left := panelWidth + 2*viewMargin
	w := screenWidth - left - viewMargin
	h := screenHeight - 2*viewMargin
	dx, dz := math.Max(1, b.Max.X-b.Min.X), math.Max(1, b.Max.Z-b.Min.Z)
	g.scale = math.Min(w/dx, h/dz)
	g.originX = left + (w-dx*g.scale)/2 - b.Min.X*g.scale
	g.originY = viewMargin + (h-dz*g.scale)/2 - b.Min.Z*g.scale
}

func (g *Game) toScreen(x, z float64) (float32, float32) {
	return float32(g.originX + x*g.scale), float32(g.originY + z*g.scale)
}

func (g *Game) toWorld(sx, sy int) (float64, float64) {
	return (float64(sx) - g.originX) / g.scale, (float64(sy) - g.originY) / g.scale
}

func (g *Game) Update() error {
	start := time.Now()
	defer func() {
		g.lastUpdateDuration = time.Since(start)
		// Rolling average (exponential moving average)
		g.updateAvg = g.updateAvg*0.95 + float64(g.lastUpdateDuration.Microseconds())/1000.0*0.05
	}()

	// 1. Update UI Panel
	g.panel.Update()

	// 2. Keyboard and clicks on the world
	if inpututil.IsKeyJustPressed(ebiten.KeyK) {
		g.set("kickstart", true)
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		if mx, my := ebiten.CursorPosition(); !g.panel.Contains(mx, my) {
			x, z := g.toWorld(mx, my)
			g.set("kickstartAt", map[string]any{"x": x, "z": z, "radius": kickRadius})
		}
	}

	// 3. Retrieve Latest State (Non-blocking)
	select {
	case snap := <-g.snapshotCh:
		g.lastState = snap
	default:
		// Use previous state if new one isn't ready
	}

	// 4. Send changed settings, then trigger the next frame
	if len(g.pending) > 0 {
		settings, err := structpb.NewStruct(g.pending)
		if err != nil {
			return fmt.Errorf("encoding settings: %w", err)
		}
		if err := actor.Tell(g.ctx, g.swarmPID, settings); err != nil {
			return err
		}
		clear(g.pending)
	}
	return actor.Tell(g.ctx, g.swarmPID, wrapperspb.UInt32(1))
}

func (g *Game) Draw(screen *ebiten.Image) {
	start := time.Now()
	defer func() {
		g.lastDrawDuration = time.Since(start)
		g.drawAvg = g.drawAvg*0.95 + float64(g.lastDrawDuration.Microseconds())/1000.0*0.05
	}()

	g.drawWorld(screen)

	agents := g.lastState.GetFields()["agents"].GetListValue().GetValues()
	counts := make(map[string]int)
	for _, v := range agents {
		f := v.GetStructValue().GetFields()
		id := f["behavior"].GetStringValue()
		counts[id]++
		drawAgent(screen, g, f, agentColor(id, f["status"].GetStringValue()))
	}

	g.panel.Draw(screen)

	msg := fmt.Sprintf("FPS: %.2f\nTPS: %.2f\nFrame: %d\n\nclassic: %d\ngoal:    %d\ncurve:   %d\n\nUpdate: %.2fms\nDraw:   %.2fms\nTotal:  %.2fms",
		ebiten.ActualFPS(),
		ebiten.ActualTPS(),
		int64(g.lastState.GetFields()["frame"].GetNumberValue()),
		counts[string(behavior.ClassicID)],
		counts[string(behavior.GoalID)],
		counts[string(behavior.CurveID)],
		g.updateAvg,
		g.drawAvg,
		g.updateAvg+g.drawAvg)
	ebitenutil.DebugPrintAt(screen, msg, screenWidth-150, 10)
}

// drawWorld draws the bounds, the curve and the goal markers.
func (g *Game) drawWorld(screen *ebiten.Image) {
	b := g.cfg.Classic.Bounds
	x0, y0 := g.toScreen(b.Min.X, b.Min.Z)
	x1, y1 := g.toScreen(b.Max.X, b.Max.Z)
	vector.StrokeRect(screen, x0, y0, x1-x0, y1-y0, 1, color.RGBA{R: 90, G: 90, B: 100, A: 255}, true)

	for i := 1; i < len(g.path); i++ {
		ax, ay := g.toScreen(g.path[i-1].X, g.path[i-1].Z)
		bx, by := g.toScreen(g.path[i].X, g.path[i].Z)
		vector.StrokeLine(screen, ax, ay, bx, by, 2, pathColor, true)
	}

	goal := g.cfg.Goal
	bx, by := g.toScreen(goal.Base.X, goal.Base.Z)
	vector.StrokeCircle(screen, bx, by, float32(goal.JoinDistance*g.scale), 1, goalColors[behavior.StatusInBasePyramid.String()], true)
	fx, fy := g.toScreen(goal.Final.X, goal.Final.Z)
	vector.FillCircle(screen, fx, fy, 4, goalColors[behavior.StatusReachedFinalGoal.String()], true)
}

func agentColor(id, status string) color.RGBA {
	switch behavior.ID(id) {
	case behavior.ClassicID:
		return classicColor
	case behavior.CurveID:
		return curveColor
	}
	if c, ok := goalColors[status]; ok {
		return c
	}
	return classicColor
}

// drawAgent draws a triangle pointing along the horizontal velocity. Agents
// higher above the ground are drawn larger.
func drawAgent(screen *ebiten.Image, g *Game, f map[string]*structpb.Value, clr color.RGBA) {
	pos := f["position"].GetStructValue().GetFields()
	vel := f["velocity"].GetStructValue().GetFields()
	x, y := g.toScreen(pos["x"].GetNumberValue(), pos["z"].GetNumberValue())
	angle := math.Atan2(vel["z"].GetNumberValue(), vel["x"].GetNumberValue())
	size := agentLength * (1 + math.Min(1, pos["y"].GetNumberValue()/20))

	r, gr, bl := float32(clr.R)/255, float32(clr.G)/255, float32(clr.B)/255
	vertex := func(a, l float64) ebiten.Vertex {
		return ebiten.Vertex{
			DstX: x + float32(math.Cos(a)*l),
			DstY: y + float32(math.Sin(a)*l),
			SrcX: 1, SrcY: 1,
			ColorR: r, ColorG: gr, ColorB: bl, ColorA: 1,
		}
	}
	vertices := []ebiten.Vertex{
		vertex(angle, size),
		vertex(angle+2.5, size*0.7),
		vertex(angle-2.5, size*0.7),
	}
	screen.DrawTriangles(vertices, []uint16{0, 1, 2}, whiteImage, &ebiten.DrawTrianglesOptions{})
}

func (g *Game) Layout(w, h int) (int, int) { return screenWidth, screenHeight }

func init() {
	whiteImage.Fill(color.White)
}
