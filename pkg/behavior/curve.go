package behavior

import (
	"fmt"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
	"github.com/tochemey/goakt/v3/log"
	"gonum.org/v1/gonum/interp"
)

// Curve is the geometry a Curve behavior follows. Parameters are curve
// specific, arc lengths are world distances from the start.
type Curve interface {
	ClosestPoint(q geometry.Vector3) (geometry.Vector3, float64)
	Tangent(param float64) geometry.Vector3
	ArcLength(param float64) float64
	ParamAtArcLength(length float64) float64
	PointAt(param float64) geometry.Vector3
	Length() float64
}

// CurveConfig tunes how closely agents follow the curve.
type CurveConfig struct {
	// DevianceThreshold is the distance from the curve within which agents
	// follow the tangent instead of steering back to the curve.
	DevianceThreshold float64 `json:"devianceThreshold"`
	// StartTaper and EndTaper, in [0, 1], narrow the threshold at each end.
	StartTaper float64 `json:"startTaper"`
	EndTaper   float64 `json:"endTaper"`
	// Influence blends the path force with the default behavior: 0 ignores
	// the path, 1 follows it rigidly.
	Influence    float64 `json:"influence"`
	GoalDistance float64 `json:"goalDistance"`
	FollowOn     ID      `json:"followOn"`
}

// DefaultCurveConfig returns a rigid, untapered path follower.
func DefaultCurveConfig() CurveConfig {
	return CurveConfig{
		DevianceThreshold: 2,
		Influence:         1,
		GoalDistance:      1,
		FollowOn:          ClassicID,
	}
}

func (c CurveConfig) Validate() error {
	switch {
	case c.DevianceThreshold < 0:
		return fmt.Errorf("%w: deviance threshold %v is negative", ErrInvalidConfig, c.DevianceThreshold)
	case c.StartTaper < 0 || c.StartTaper > 1 || c.EndTaper < 0 || c.EndTaper > 1:
		return fmt.Errorf("%w: tapers %v and %v must be within [0, 1]", ErrInvalidConfig, c.StartTaper, c.EndTaper)
	case c.Influence < 0 || c.Influence > 1:
		return fmt.Errorf("%w: influence %v must be within [0, 1]", ErrInvalidConfig, c.Influence)
	case c.GoalDistance < 0:
		return fmt.Errorf("%w: goal distance %v is negative", ErrInvalidConfig, c.GoalDistance)
	}
	return nil
}

// CurveData is the curve state of one agent. It carries the blob of the
// default behavior the path force is blended with.
type CurveData struct {
	Inner Data

	param float64
	done  bool
}

func (*CurveData) BehaviorID() ID { return CurveID }

// Param is the curve parameter closest to the agent at its last evaluation.
func (d *CurveData) Param() float64 { return d.param }

// Done reports whether the agent reached the end of the curve.
func (d *CurveData) Done() bool { return d.done }

// CurveFollow steers agents along a Curve.
type CurveFollow struct {
	cfg      CurveConfig
	curve    Curve
	fallback Behavior
	delegate Delegate
	logger   log.Logger

	taper      interp.PiecewiseLinear
	start, end geometry.Vector3
	length     float64
}

// NewCurveFollow creates the behavior. fallback, the behavior blended with the
// path, and delegate may be nil.
func NewCurveFollow(cfg CurveConfig, curve Curve, fallback Behavior, delegate Delegate, logger log.Logger) (*CurveFollow, error) {
	if curve == nil {
		return nil, fmt.Errorf("%w: no curve", ErrInvalidConfig)
	}
	if logger == nil {
		logger = log.DiscardLogger
	}
	c := &CurveFollow{curve: curve, fallback: fallback, delegate: delegate, logger: logger}
	if err := c.SetConfig(cfg); err != nil {
		return nil, err
	}
	c.sample()
	return c, nil
}

// SetConfig replaces the settings.
func (c *CurveFollow) SetConfig(cfg CurveConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := c.taper.Fit([]float64{0, 1}, []float64{1 - cfg.StartTaper, 1 - cfg.EndTaper}); err != nil {
		return fmt.Errorf("%w: taper: %v", ErrInvalidConfig, err)
	}
	c.cfg = cfg
	return nil
}

// Config returns the settings.
func (c *CurveFollow) Config() CurveConfig { return c.cfg }

func (c *CurveFollow) ID() ID { return CurveID }

func (c *CurveFollow) NewData() Data {
	d := &CurveData{}
	if c.fallback != nil {
		d.Inner = c.fallback.NewData()
	}
	return d
}

// Threshold returns the deviance threshold at a fraction of the curve length.
func (c *CurveFollow) Threshold(fraction float64) float64 {
	fraction = max(0, min(1, fraction))
	return c.cfg.DevianceThreshold * c.taper.Predict(fraction)
}

// sample reads the end points again, the curve may have moved.
func (c *CurveFollow) sample() {
	c.length = c.curve.Length()
	c.start = c.curve.PointAt(c.curve.ParamAtArcLength(0))
	c.end = c.curve.PointAt(c.curve.ParamAtArcLength(c.length))
}

func (c *CurveFollow) OnFrameStart() { c.sample() }

// Fallback returns the behavior blended with the curve.
func (c *CurveFollow) Fallback() Behavior { return c.fallback }

func (c *CurveFollow) OnAgentUpdated(a Agent) {
	if c.fallback == nil {
		return
	}
	if d, err := dataOf[*CurveData](a, CurveID); err == nil {
		c.fallback.OnAgentUpdated(&innerAgent{Agent: a, id: c.fallback.ID(), data: d.Inner})
	}
}

func (c *CurveFollow) OnFrameEnd() {}

// ComputeDesiredAcceleration steers towards the curve when the agent strayed
// beyond the threshold and along it otherwise. Close to the end of the curve
// the agent is handed over to the follow-on behavior.
func (c *CurveFollow) ComputeDesiredAcceleration(a Agent, candidates []Agent) (geometry.Vector3, error) {
	d, err := dataOf[*CurveData](a, CurveID)
	if err != nil {
		return geometry.Vector3{}, err
	}
	if d.done {
		return geometry.Vector3{}, nil
	}

	st := a.Perception()
	mv := a.Movement()
	position, velocity := st.Position(), st.Velocity()

	if position.DistanceTo(c.end) <= c.cfg.GoalDistance {
		d.done = true
		c.logger.Debugf("agent %d reached the end of the curve", a.ID())
		if c.delegate != nil {
			c.delegate.BehaviorEnded(a.ID(), CurveID, c.cfg.FollowOn)
		}
		return geometry.Vector3{}, nil
	}

	closest, param := c.curve.ClosestPoint(position)
	d.param = param
	var fraction float64
	if c.length > 0 {
		fraction = c.curve.ArcLength(param) / c.length
	}

	var path geometry.Vector3
	if offset := closest.Sub(position); offset.Len() > c.Threshold(fraction) {
		path = steerAlong(velocity, offset, mv.PreferredVelocity)
	} else {
		path = steerAlong(velocity, c.curve.Tangent(param), mv.PreferredVelocity)
	}

	acc := path
	if c.cfg.Influence < 1 {
		var fallback geometry.Vector3
		if c.fallback != nil {
			inner := &innerAgent{Agent: a, id: c.fallback.ID(), data: d.Inner}
			if fallback, err = c.fallback.ComputeDesiredAcceleration(inner, candidates); err != nil {
				return geometry.Vector3{}, err
			}
		}
		acc = fallback.Mul(1 - c.cfg.Influence).Add(path.Mul(c.cfg.Influence))
	}
	return mv.Clamp(velocity, acc), nil
}
