package simulation

import (
	"fmt"
	"math/rand"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/perception"
	"github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/types/known/structpb"
)

type pendingSwitch struct {
	agentID    int
	from, next behavior.ID
}

// Swarm owns the agents of a simulation and runs its frames. It is not safe
// for concurrent use, SwarmActor serialises access to it.
type Swarm struct {
	cfg    *Config
	logger log.Logger
	rng    *rand.Rand

	engine  *perception.Engine
	classic *behavior.Classic
	goal    *behavior.Goal
	curve   *behavior.CurveFollow
	path    *geometry.Polyline
	coord   *behavior.Coordinator
	grid    *Grid

	agents  []*Agent
	byID    map[int]*Agent
	nextID  int
	pending []pendingSwitch

	// per frame scratch space
	desired []geometry.Vector3
	cellBuf []*Agent
	pBuf    []perception.Agent
	bBuf    []behavior.Agent
}

var _ behavior.Delegate = (*Swarm)(nil)

// NewSwarm validates cfg and wires the perception engine and the three
// behaviors. The swarm starts empty, see Populate.
func NewSwarm(cfg *Config, logger log.Logger) (*Swarm, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.DiscardLogger
	}
	s := &Swarm{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		byID:   make(map[int]*Agent),
		grid:   NewGrid(cfg.Perception.NeighborhoodRadius),
	}

	var err error
	if s.engine, err = perception.NewEngine(cfg.Settings, logger); err != nil {
		return nil, err
	}
	if s.classic, err = behavior.NewClassic(cfg.Classic, logger); err != nil {
		return nil, err
	}
	if s.goal, err = behavior.NewGoal(cfg.Goal, s.classic, s, logger); err != nil {
		return nil, err
	}
	if s.path, err = geometry.NewPolyline(cfg.Curve.Points...); err != nil {
		return nil, fmt.Errorf("curve: %w", err)
	}
	if s.curve, err = behavior.NewCurveFollow(cfg.Curve.CurveConfig, s.path, s.classic, s, logger); err != nil {
		return nil, err
	}
	if s.coord, err = behavior.NewCoordinator(logger, s.classic, s.goal, s.curve); err != nil {
		return nil, err
	}
	return s, nil
}

// Populate spawns the configured groups. Positions and headings are drawn from
// the configuration seed, so two swarms built from the same configuration
// start identical.
func (s *Swarm) Populate() error {
	for _, g := range s.cfg.Groups {
		for i := 0; i < g.Count; i++ {
			pos := g.Center.Add(geometry.Vector3{
				X: (s.rng.Float64()*2 - 1) * g.Spread,
				Z: (s.rng.Float64()*2 - 1) * g.Spread,
			})
			heading := geometry.Vector3{X: 1}.RotateHorizontal(s.rng.Float64() * 360)
			a, err := s.AddAgent(g.Behavior, pos, heading.Mul(s.cfg.Movement.PreferredVelocity))
			if err != nil {
				return err
			}
			if d, ok := a.data.(*behavior.GoalData); ok && i < g.Leaders {
				d.Leader = true
			}
		}
		s.logger.Infof("spawned %d %q agents around %s", g.Count, g.Behavior, g.Center)
	}
	return nil
}

// AddAgent creates an agent running the given behavior.
func (s *Swarm) AddAgent(id behavior.ID, pos, vel geometry.Vector3) (*Agent, error) {
	st, err := s.engine.NewState(s.nextID, s.cfg.Perception)
	if err != nil {
		return nil, err
	}
	a := &Agent{id: s.nextID, Pos: pos, Vel: vel, movement: s.cfg.Movement, perception: st}
	if err := s.assign(a, id); err != nil {
		return nil, err
	}
	s.nextID++
	s.agents = append(s.agents, a)
	s.byID[a.id] = a
	return a, nil
}

// assign switches a to behavior id, handing flocking agents the configured weights.
func (s *Swarm) assign(a *Agent, id behavior.ID) error {
	if err := s.coord.Assign(a, id); err != nil {
		return err
	}
	s.applyFlocking(a)
	return nil
}

func (s *Swarm) applyFlocking(a *Agent) {
	switch d := a.data.(type) {
	case *behavior.ClassicData:
		*d = s.cfg.Flocking
	case *behavior.CurveData:
		if inner, ok := d.Inner.(*behavior.ClassicData); ok {
			*inner = s.cfg.Flocking
		}
	case *behavior.GoalData:
		if inner, ok := d.Inner.(*behavior.ClassicData); ok {
			*inner = s.cfg.Flocking
		}
	}
}

// SetPerception replaces the perception parameters of one agent. The grid
// grows when the new neighborhood is wider than a cell.
func (s *Swarm) SetPerception(agentID int, cfg perception.Config) error {
	a, ok := s.byID[agentID]
	if !ok {
		return fmt.Errorf("no agent %d", agentID)
	}
	if err := a.perception.SetConfig(cfg); err != nil {
		return fmt.Errorf("agent %d: %w", agentID, err)
	}
	if cfg.NeighborhoodRadius > s.grid.CellSize() {
		s.logger.Debugf("agent %d sees %v far, growing grid cells", agentID, cfg.NeighborhoodRadius)
		s.grid.SetCellSize(cfg.NeighborhoodRadius)
	}
	return nil
}

// SetMovement replaces the movement limits of every agent.
func (s *Swarm) SetMovement(mv behavior.MovementConfig) error {
	if err := mv.Validate(); err != nil {
		return err
	}
	s.cfg.Movement = mv
	for _, a := range s.agents {
		a.SetMovement(mv)
	}
	return nil
}

// BehaviorEnded queues the switch of an agent to its follow-on behavior. The
// switch happens once the frame is over.
func (s *Swarm) BehaviorEnded(agentID int, from, next behavior.ID) {
	s.pending = append(s.pending, pendingSwitch{agentID: agentID, from: from, next: next})
}

// Step runs one frame.
func (s *Swarm) Step() error {
	s.engine.BeginFrame()
	frame := s.engine.Frame()
	s.coord.FrameStart()
	s.grid.Rebuild(s.agents)

	if cap(s.desired) < len(s.agents) {
		s.desired = make([]geometry.Vector3, len(s.agents))
	}
	s.desired = s.desired[:len(s.agents)]

	for i, a := range s.agents {
		s.candidates(a)
		s.engine.Update(a, s.pBuf, false)
		acc, err := s.coord.ComputeDesiredAcceleration(a, s.bBuf)
		if err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		s.desired[i] = acc
	}

	for i, a := range s.agents {
		a.UpdatePhysics(s.desired[i], s.cfg.Gravity)
		s.coord.AgentUpdated(a)
	}
	s.coord.FrameEnd()

	if err := s.applySwitches(); err != nil {
		return fmt.Errorf("frame %d: %w", frame, err)
	}
	s.logger.Debugf("frame %d done, %d agents", frame, len(s.agents))
	return nil
}

// candidates fills the scratch buffers with the agents around a.
func (s *Swarm) candidates(a *Agent) {
	s.cellBuf = s.grid.Nearby(a.Pos, s.cellBuf[:0])
	s.pBuf, s.bBuf = s.pBuf[:0], s.bBuf[:0]
	for _, c := range s.cellBuf {
		s.pBuf = append(s.pBuf, c)
		s.bBuf = append(s.bBuf, c)
	}
}

func (s *Swarm) applySwitches() error {
	for _, p := range s.pending {
		a, ok := s.byID[p.agentID]
		if !ok || a.behaviorID != p.from {
			continue
		}
		if err := s.assign(a, p.next); err != nil {
			return err
		}
		s.logger.Infof("agent %d finished %q, now %q", a.id, p.from, p.next)
	}
	s.pending = s.pending[:0]
	return nil
}

// SetBehavior switches an agent to another behavior right away.
func (s *Swarm) SetBehavior(agentID int, id behavior.ID) error {
	a, ok := s.byID[agentID]
	if !ok {
		return fmt.Errorf("no agent %d", agentID)
	}
	return s.assign(a, id)
}

// Kickstart asks the flocking agents within radius of p for a random push
// during the next frame. A zero radius kicks every flocking agent.
func (s *Swarm) Kickstart(p geometry.Vector3, radius float64) {
	if radius <= 0 {
		s.classic.Kickstart()
		return
	}
	var ids []int
	for _, a := range s.grid.Within(p, radius, nil) {
		ids = append(ids, a.id)
	}
	if len(ids) > 0 {
		s.classic.Kickstart(ids...)
	}
}

// ApplySettings changes the live settings named in fields. Unknown names are
// ignored.
func (s *Swarm) ApplySettings(fields map[string]any) error {
	if v, ok := fields["infectionSpread"].(bool); ok {
		s.goal.SetInfectionSpread(v)
	}
	if v, ok := fields["collapse"].(bool); ok {
		s.goal.SetCollapse(v)
	}
	if v, ok := fields["kickstart"].(bool); ok && v {
		s.classic.Kickstart()
	}
	if v, ok := fields["kickstartAt"].(map[string]any); ok {
		x, _ := v["x"].(float64)
		z, _ := v["z"].(float64)
		radius, _ := v["radius"].(float64)
		s.Kickstart(geometry.Vector3{X: x, Z: z}, radius)
	}
	if v, ok := fields["rebuildFrequency"].(float64); ok {
		if err := s.engine.SetRebuildFrequency(int(v)); err != nil {
			return err
		}
	}
	if v, ok := fields["influence"].(float64); ok {
		cc := s.curve.Config()
		cc.Influence = v
		if err := s.curve.SetConfig(cc); err != nil {
			return err
		}
		s.cfg.Curve.CurveConfig = cc
	}

	mv := s.cfg.Movement
	if v, ok := fields["maxVelocity"].(float64); ok {
		mv.MaxVelocity = v
	}
	if v, ok := fields["maxAcceleration"].(float64); ok {
		mv.MaxAcceleration = v
	}
	if mv != s.cfg.Movement {
		if err := s.SetMovement(mv); err != nil {
			return err
		}
	}

	weights := s.cfg.Flocking
	changed := false
	for name, w := range map[string]*float64{
		"separationWeight": &weights.SeparationWeight,
		"alignmentWeight":  &weights.AlignmentWeight,
		"cohesionWeight":   &weights.CohesionWeight,
	} {
		if v, ok := fields[name].(float64); ok && v != *w {
			if v < 0 {
				return fmt.Errorf("%w: %s %v is negative", behavior.ErrInvalidConfig, name, v)
			}
			*w, changed = v, true
		}
	}
	if changed {
		s.cfg.Flocking = weights
		for _, a := range s.agents {
			s.applyFlocking(a)
		}
	}
	return nil
}

// Snapshot describes the swarm in a generic form suited to logging, streaming
// and rendering.
func (s *Swarm) Snapshot() (*structpb.Struct, error) {
	agents := make([]any, len(s.agents))
	for i, a := range s.agents {
		agents[i] = a.toMap()
	}
	return structpb.NewStruct(map[string]any{
		"frame":  s.engine.Frame(),
		"agents": agents,
	})
}

func (s *Swarm) Agents() []*Agent { return s.agents }

// Agent returns the agent with the given id, or nil.
func (s *Swarm) Agent(id int) *Agent { return s.byID[id] }

func (s *Swarm) Frame() uint64                      { return s.engine.Frame() }
func (s *Swarm) Config() *Config                    { return s.cfg }
func (s *Swarm) Engine() *perception.Engine         { return s.engine }
func (s *Swarm) Coordinator() *behavior.Coordinator { return s.coord }
func (s *Swarm) Classic() *behavior.Classic         { return s.classic }
func (s *Swarm) Goal() *behavior.Goal               { return s.goal }
func (s *Swarm) Curve() *behavior.CurveFollow       { return s.curve }
func (s *Swarm) Path() *geometry.Polyline           { return s.path }
