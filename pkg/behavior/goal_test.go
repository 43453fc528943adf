package behavior

import (
	"errors"
	"testing"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
)

type ending struct {
	agent      int
	from, next ID
}

func newGoalWorld(t *testing.T, cfg GoalConfig) (*world, *Goal, *[]ending) {
	t.Helper()
	var ended []ending
	classic, _ := NewClassic(DefaultClassicConfig(), nil)
	goal, err := NewGoal(cfg, classic, DelegateFunc(func(agentID int, from, next ID) {
		ended = append(ended, ending{agentID, from, next})
	}), nil)
	if err != nil {
		t.Fatalf("NewGoal: %v", err)
	}
	return newWorld(t, goal, classic), goal, &ended
}

func mustStatus(t *testing.T, g *Goal, a *testAgent, want Status) {
	t.Helper()
	got, err := g.Status(a)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got != want {
		t.Fatalf("agent %d status = %v; want %v", a.id, got, want)
	}
}

func TestGoal_WithoutInfectionChasesImmediately(t *testing.T) {
	w, goal, _ := newGoalWorld(t, DefaultGoalConfig())
	a := w.add(GoalID, geometry.Vector3{X: 50, Z: 50}, geometry.Vector3{})
	mustStatus(t, goal, a, StatusUninitialized)

	w.frame()
	mustStatus(t, goal, a, StatusGoalChase)

	want := geometry.Vector3{X: -1, Z: -1}.Normalize(a.mv.MaxAcceleration)
	if acc := w.acceleration(a); !acc.Eq(want) {
		t.Errorf("chase acceleration = %v; want %v", acc, want)
	}
}

func TestGoal_InfectionWithoutInfectedNeighborStaysNormal(t *testing.T) {
	cfg := DefaultGoalConfig()
	cfg.InfectionSpread = true
	w, goal, _ := newGoalWorld(t, cfg)
	a := w.add(GoalID, geometry.Vector3{X: 50, Z: 50}, geometry.Vector3{})
	w.add(GoalID, geometry.Vector3{X: 52, Z: 50}, geometry.Vector3{})

	for i := 0; i < 50; i++ {
		w.frame()
		mustStatus(t, goal, a, StatusNormal)
	}
}

func TestGoal_WaitingAgentsFlock(t *testing.T) {
	cfg := DefaultGoalConfig()
	cfg.InfectionSpread = true
	w, goal, _ := newGoalWorld(t, cfg)
	a := w.add(GoalID, geometry.Vector3{X: 50, Z: 50}, geometry.Vector3{X: 1})
	w.add(GoalID, geometry.Vector3{X: 55, Z: 50}, geometry.Vector3{Z: 1})

	w.frame()
	mustStatus(t, goal, a, StatusNormal)
	acc := w.acceleration(a)
	if acc.Flatten().IsZero() {
		t.Fatal("a normal agent with a neighbor gets no flocking acceleration")
	}
	if acc.Len() > a.mv.MaxAcceleration+epsilon {
		t.Errorf("flocking acceleration %v exceeds %v", acc.Len(), a.mv.MaxAcceleration)
	}
	if _, ok := a.data.(*GoalData).Inner.(*ClassicData); !ok {
		t.Errorf("inner blob = %T; want *ClassicData", a.data.(*GoalData).Inner)
	}
}

func TestGoal_WaitingAgentsWithoutFallbackHover(t *testing.T) {
	cfg := DefaultGoalConfig()
	cfg.InfectionSpread = true
	goal, err := NewGoal(cfg, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewGoal: %v", err)
	}
	w := newWorld(t, goal)
	a := w.add(GoalID, geometry.Vector3{X: 50, Z: 50}, geometry.Vector3{X: 1})
	w.add(GoalID, geometry.Vector3{X: 55, Z: 50}, geometry.Vector3{Z: 1})

	w.frame()
	mustStatus(t, goal, a, StatusNormal)
	if acc := w.acceleration(a); !acc.IsZero() {
		t.Errorf("acceleration = %v; want zero without a fallback", acc)
	}
}

func TestGoal_InfectionSpreadsAfterIncubation(t *testing.T) {
	cfg := DefaultGoalConfig()
	cfg.InfectionSpread = true
	cfg.IncubationFrames = 3
	w, goal, _ := newGoalWorld(t, cfg)
	a := w.add(GoalID, geometry.Vector3{X: 50, Z: 50}, geometry.Vector3{})
	infected := w.add(GoalID, geometry.Vector3{X: 52, Z: 50}, geometry.Vector3{})
	if err := goal.SetStatus(infected, StatusGoalChase); err != nil {
		t.Fatal(err)
	}

	w.frame()
	mustStatus(t, goal, a, StatusNormal)
	w.frame()
	mustStatus(t, goal, a, StatusPending)
	w.frame()
	w.frame()
	mustStatus(t, goal, a, StatusPending)
	w.frame()
	mustStatus(t, goal, a, StatusGoalChase)
}

func TestGoal_Journey(t *testing.T) {
	w, goal, ended := newGoalWorld(t, DefaultGoalConfig())
	a := w.add(GoalID, geometry.Vector3{X: 50, Z: 50}, geometry.Vector3{})

	steps := []struct {
		pos  geometry.Vector3
		want Status
	}{
		{geometry.Vector3{X: 50, Z: 50}, StatusGoalChase},
		{geometry.Vector3{X: 1}, StatusInBasePyramid},
		{geometry.Vector3{X: -1, Y: 4}, StatusInBasePyramid},
		{geometry.Vector3{X: -1, Y: 5}, StatusAtWallLip},
		{geometry.Vector3{X: 1, Y: 5}, StatusOverWallLip},
		{geometry.Vector3{X: 9, Y: 2}, StatusOverWallLip},
		{geometry.Vector3{X: 11}, StatusReachedFinalGoal},
		{geometry.Vector3{X: 12}, StatusReachedFinalGoal},
		{geometry.Vector3{X: 12}, StatusReachedFinalGoal},
	}
	for i, s := range steps {
		a.pos = s.pos
		w.frame()
		got, _ := goal.Status(a)
		if got != s.want {
			t.Fatalf("step %d at %v: status = %v; want %v", i, s.pos, got, s.want)
		}
	}

	if len(*ended) != 1 {
		t.Fatalf("delegate notified %d times; want exactly once", len(*ended))
	}
	if e := (*ended)[0]; e != (ending{a.id, GoalID, ClassicID}) {
		t.Errorf("notification = %+v", e)
	}
}

func TestGoal_StickinessLagsOneFrame(t *testing.T) {
	w, goal, _ := newGoalWorld(t, DefaultGoalConfig())
	near := w.add(GoalID, geometry.Vector3{X: 1}, geometry.Vector3{})
	far := w.add(GoalID, geometry.Vector3{X: 3}, geometry.Vector3{})

	w.frame()
	mustStatus(t, goal, near, StatusInBasePyramid)
	if s, _ := goal.Stickiness(near); s != 0 {
		t.Errorf("stickiness on joining = %v; want 0 until the pyramid averages exist", s)
	}

	w.frame()
	if s, _ := goal.Stickiness(near); !floatEquals(s, 0.5) {
		t.Errorf("near stickiness = %v; want 0.5", s)
	}
	if s, _ := goal.Stickiness(far); s != 0 {
		t.Errorf("far stickiness = %v; want 0", s)
	}
}

func TestGoal_CollapseInvertsPyramidPush(t *testing.T) {
	for _, collapse := range []bool{false, true} {
		cfg := DefaultGoalConfig()
		cfg.Collapse = collapse
		w, _, _ := newGoalWorld(t, cfg)
		a := w.add(GoalID, geometry.Vector3{X: 2}, geometry.Vector3{})
		w.frame()

		acc := w.acceleration(a)
		if climbing := acc.Y > 0 && acc.X < 0; climbing == collapse {
			t.Errorf("collapse=%v: pyramid acceleration %v", collapse, acc)
		}
	}
}

func TestGoal_LeadersAreChased(t *testing.T) {
	w, _, _ := newGoalWorld(t, DefaultGoalConfig())
	leader := w.add(GoalID, geometry.Vector3{X: 20}, geometry.Vector3{})
	leader.data.(*GoalData).Leader = true
	follower := w.add(GoalID, geometry.Vector3{X: 50, Z: 50}, geometry.Vector3{})

	w.frame()
	toBase := geometry.Vector3{X: -50, Z: -50}.Unit()
	if acc := w.acceleration(follower); !acc.Eq(toBase) {
		t.Errorf("first frame chases %v; want the base %v", acc, toBase)
	}

	w.frame()
	toLeader := geometry.Vector3{X: -30, Z: -50}.Unit()
	if acc := w.acceleration(follower); !acc.Eq(toLeader) {
		t.Errorf("second frame chases %v; want the leader %v", acc, toLeader)
	}
}

func TestGoal_InfectionToggleResetsWaitingAgents(t *testing.T) {
	w, goal, _ := newGoalWorld(t, DefaultGoalConfig())
	chaser := w.add(GoalID, geometry.Vector3{X: 50, Z: 50}, geometry.Vector3{})
	waiting := w.add(GoalID, geometry.Vector3{X: -50, Z: 50}, geometry.Vector3{})
	w.frame()
	if err := goal.SetStatus(waiting, StatusPending); err != nil {
		t.Fatal(err)
	}

	goal.SetInfectionSpread(true)
	w.frame()
	mustStatus(t, goal, chaser, StatusGoalChase)
	mustStatus(t, goal, waiting, StatusNormal)
}

func TestGoal_Errors(t *testing.T) {
	w, goal, _ := newGoalWorld(t, DefaultGoalConfig())
	a := w.add(GoalID, geometry.Vector3{}, geometry.Vector3{})
	flocker := w.add(ClassicID, geometry.Vector3{}, geometry.Vector3{})

	if err := goal.SetStatus(a, StatusUninitialized); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("SetStatus(uninitialized) = %v; want ErrInvalidStatus", err)
	}
	if err := goal.SetStatus(a, Status(42)); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("SetStatus(42) = %v; want ErrInvalidStatus", err)
	}
	if _, err := goal.Status(flocker); !errors.Is(err, ErrBehaviorMismatch) {
		t.Errorf("Status(classic agent) = %v; want ErrBehaviorMismatch", err)
	}
	if _, err := goal.Stickiness(flocker); !errors.Is(err, ErrBehaviorMismatch) {
		t.Errorf("Stickiness(classic agent) = %v; want ErrBehaviorMismatch", err)
	}

	cfg := DefaultGoalConfig()
	cfg.Final = cfg.Base.Add(geometry.Vector3{Y: 3})
	if _, err := NewGoal(cfg, nil, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewGoal(final above base) = %v; want ErrInvalidConfig", err)
	}
}

func TestStatus_String(t *testing.T) {
	if got := StatusOverWallLip.String(); got != "over-wall-lip" {
		t.Errorf("String() = %q", got)
	}
	if got := Status(99).String(); got != "Status(99)" {
		t.Errorf("String() = %q", got)
	}
}
