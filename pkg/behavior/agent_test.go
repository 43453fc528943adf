package behavior

import (
	"math"
	"testing"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/perception"
)

const epsilon = 1e-6

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

type testAgent struct {
	id            int
	pos, vel, acc geometry.Vector3
	mv            MovementConfig
	state         *perception.State
	behavior      ID
	data          Data
}

func (a *testAgent) ID() int                        { return a.id }
func (a *testAgent) Position() geometry.Vector3     { return a.pos }
func (a *testAgent) Velocity() geometry.Vector3     { return a.vel }
func (a *testAgent) Acceleration() geometry.Vector3 { return a.acc }
func (a *testAgent) Perception() *perception.State  { return a.state }
func (a *testAgent) Movement() MovementConfig       { return a.mv }
func (a *testAgent) Behavior() ID                   { return a.behavior }
func (a *testAgent) Data() Data                     { return a.data }

func (a *testAgent) SetBehavior(id ID, data Data) {
	a.behavior, a.data = id, data
}

// world runs perception and behaviors over a handful of agents without
// moving them, so tests control positions frame by frame.
type world struct {
	t      testing.TB
	engine *perception.Engine
	coord  *Coordinator
	agents []*testAgent
	accs   map[int]geometry.Vector3
}

func newWorld(t testing.TB, behaviors ...Behavior) *world {
	t.Helper()
	engine, err := perception.NewEngine(perception.DefaultSettings(), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	coord, err := NewCoordinator(nil, behaviors...)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return &world{t: t, engine: engine, coord: coord, accs: make(map[int]geometry.Vector3)}
}

func (w *world) add(id ID, pos, vel geometry.Vector3) *testAgent {
	w.t.Helper()
	a := &testAgent{id: len(w.agents) + 1, pos: pos, vel: vel, mv: DefaultMovement()}
	var err error
	if a.state, err = w.engine.NewState(a.id, perception.DefaultConfig()); err != nil {
		w.t.Fatalf("NewState: %v", err)
	}
	if err := w.coord.Assign(a, id); err != nil {
		w.t.Fatalf("Assign: %v", err)
	}
	w.agents = append(w.agents, a)
	return a
}

// frame runs one frame and records the desired accelerations.
func (w *world) frame() {
	w.t.Helper()
	w.engine.BeginFrame()
	w.coord.FrameStart()

	candidates := make([]perception.Agent, len(w.agents))
	behaving := make([]Agent, len(w.agents))
	for i, a := range w.agents {
		candidates[i], behaving[i] = a, a
	}
	for _, a := range w.agents {
		w.engine.Update(a, candidates, false)
	}
	for _, a := range w.agents {
		acc, err := w.coord.ComputeDesiredAcceleration(a, behaving)
		if err != nil {
			w.t.Fatalf("agent %d: %v", a.id, err)
		}
		w.accs[a.id] = acc
		w.coord.AgentUpdated(a)
	}
	w.coord.FrameEnd()
}

func (w *world) acceleration(a *testAgent) geometry.Vector3 {
	return w.accs[a.id]
}
