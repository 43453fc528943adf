package behavior

import (
	"errors"
	"testing"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
)

func newCurveWorld(t *testing.T, cfg CurveConfig, fallback Behavior) (*world, *CurveFollow, *geometry.Polyline, *[]ending) {
	t.Helper()
	line, err := geometry.NewPolyline(geometry.Vector3{}, geometry.Vector3{X: 10})
	if err != nil {
		t.Fatalf("NewPolyline: %v", err)
	}
	var ended []ending
	curve, err := NewCurveFollow(cfg, line, fallback, DelegateFunc(func(agentID int, from, next ID) {
		ended = append(ended, ending{agentID, from, next})
	}), nil)
	if err != nil {
		t.Fatalf("NewCurveFollow: %v", err)
	}
	return newWorld(t, curve), curve, line, &ended
}

func TestCurve_SteersToTheCurveThenAlongIt(t *testing.T) {
	w, _, _, _ := newCurveWorld(t, DefaultCurveConfig(), nil)
	a := w.add(CurveID, geometry.Vector3{Y: 5}, geometry.Vector3{})

	w.frame()
	acc := w.acceleration(a)
	if !acc.Unit().Eq(geometry.Vector3{Y: -1}) {
		t.Errorf("away from the curve: acceleration %v; want towards (0, -1, 0)", acc)
	}
	if d := acc.Dot(geometry.Vector3{X: 1}); !floatEquals(d, 0) {
		t.Errorf("steering should be perpendicular to the tangent, dot = %v", d)
	}

	a.pos = geometry.Vector3{X: 3, Y: 1}
	w.frame()
	if acc := w.acceleration(a); !acc.Unit().Eq(geometry.Vector3{X: 1}) {
		t.Errorf("within the threshold: acceleration %v; want along (1, 0, 0)", acc)
	}
}

func TestCurve_TaperNarrowsTheThreshold(t *testing.T) {
	cfg := DefaultCurveConfig()
	cfg.EndTaper = 1
	w, curve, _, _ := newCurveWorld(t, cfg, nil)

	for fraction, want := range map[float64]float64{0: 2, 0.5: 1, 1: 0} {
		if got := curve.Threshold(fraction); !floatEquals(got, want) {
			t.Errorf("Threshold(%v) = %v; want %v", fraction, got, want)
		}
	}

	// 1.5 off the curve is inside the untapered threshold but not at 80%
	a := w.add(CurveID, geometry.Vector3{X: 8, Y: 1.5}, geometry.Vector3{})
	w.frame()
	if acc := w.acceleration(a); !acc.Unit().Eq(geometry.Vector3{Y: -1}) {
		t.Errorf("tapered: acceleration %v; want back to the curve", acc)
	}
}

func TestCurve_EndNotifiesOnce(t *testing.T) {
	w, _, _, ended := newCurveWorld(t, DefaultCurveConfig(), nil)
	a := w.add(CurveID, geometry.Vector3{X: 9.5}, geometry.Vector3{X: 1})

	for i := 0; i < 3; i++ {
		w.frame()
		if acc := w.acceleration(a); !acc.IsZero() {
			t.Errorf("frame %d: acceleration at the end %v; want zero", i, acc)
		}
	}
	if len(*ended) != 1 || (*ended)[0] != (ending{a.id, CurveID, ClassicID}) {
		t.Errorf("notifications = %+v; want one hand-over to classic", *ended)
	}
	if !a.data.(*CurveData).Done() {
		t.Error("curve data should be done")
	}
}

func TestCurve_FollowsAMovingCurve(t *testing.T) {
	w, _, line, ended := newCurveWorld(t, DefaultCurveConfig(), nil)
	w.add(CurveID, geometry.Vector3{Z: 19.5}, geometry.Vector3{})

	w.frame()
	if len(*ended) != 0 {
		t.Fatal("agent is nowhere near the end yet")
	}
	if err := line.SetPoints(geometry.Vector3{}, geometry.Vector3{Z: 20}); err != nil {
		t.Fatal(err)
	}
	w.frame()
	if len(*ended) != 1 {
		t.Errorf("end of the moved curve not detected, %d notifications", len(*ended))
	}
}

func TestCurve_BlendsWithFallback(t *testing.T) {
	classic, _ := NewClassic(DefaultClassicConfig(), nil)
	cfg := DefaultCurveConfig()
	cfg.Influence = 0.5
	w, curve, _, _ := newCurveWorld(t, cfg, classic)
	a := w.add(CurveID, geometry.Vector3{Y: 5}, geometry.Vector3{X: 1})

	d := a.data.(*CurveData)
	if _, ok := d.Inner.(*ClassicData); !ok {
		t.Fatalf("inner blob = %T; want *ClassicData", d.Inner)
	}
	classic.Kickstart(a.id)
	w.frame()
	if acc := w.acceleration(a); acc.IsZero() {
		t.Error("blended acceleration should not be zero")
	}
	if classic.kickstarted(a.id) {
		t.Error("frame end should reach the fallback behavior")
	}
	if _, err := curve.ComputeDesiredAcceleration(&testAgent{id: 99, data: &GoalData{}}, nil); !errors.Is(err, ErrBehaviorMismatch) {
		t.Errorf("mismatch error = %v", err)
	}
}

func TestCurveConfig_Validate(t *testing.T) {
	cfg := DefaultCurveConfig()
	cfg.Influence = 1.5
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Validate() = %v; want ErrInvalidConfig", err)
	}
	if _, err := NewCurveFollow(DefaultCurveConfig(), nil, nil, nil, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewCurveFollow(nil curve) = %v; want ErrInvalidConfig", err)
	}
}
