package behavior

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
	"github.com/tochemey/goakt/v3/log"
)

// Bounds is an axis-aligned box in the horizontal plane. The zero value disables
// edge avoidance.
type Bounds struct {
	Min geometry.Vector3 `json:"min"`
	Max geometry.Vector3 `json:"max"`
}

func (b Bounds) enabled() bool {
	return b.Max.X > b.Min.X && b.Max.Z > b.Min.Z
}

// ClassicConfig holds the settings shared by every flocking agent.
type ClassicConfig struct {
	Bounds     Bounds  `json:"bounds"`
	EdgeMargin float64 `json:"edgeMargin"`
	// KickstartMin and KickstartMax bound the magnitude of a kickstart.
	KickstartMin float64 `json:"kickstartMin"`
	KickstartMax float64 `json:"kickstartMax"`
	// StuckAcceleration is injected into agents that stall inside a swarm.
	StuckAcceleration float64 `json:"stuckAcceleration"`
	// SearchTurn is the largest heading change, in degrees, of a random search.
	SearchTurn float64 `json:"searchTurn"`
	Seed       int64   `json:"seed"`
}

// DefaultClassicConfig returns flocking settings without map bounds.
func DefaultClassicConfig() ClassicConfig {
	return ClassicConfig{
		EdgeMargin:        5,
		KickstartMin:      1,
		KickstartMax:      3,
		StuckAcceleration: 2,
		SearchTurn:        45,
		Seed:              1,
	}
}

func (c ClassicConfig) Validate() error {
	if c.EdgeMargin < 0 {
		return fmt.Errorf("%w: edge margin %v is negative", ErrInvalidConfig, c.EdgeMargin)
	}
	if c.KickstartMin < 0 || c.KickstartMax < c.KickstartMin {
		return fmt.Errorf("%w: kickstart range [%v, %v]", ErrInvalidConfig, c.KickstartMin, c.KickstartMax)
	}
	if c.StuckAcceleration < 0 || c.SearchTurn < 0 || c.SearchTurn > 180 {
		return fmt.Errorf("%w: stuck acceleration %v, search turn %v", ErrInvalidConfig, c.StuckAcceleration, c.SearchTurn)
	}
	return nil
}

// ClassicData holds the per-agent flocking weights.
type ClassicData struct {
	SeparationWeight float64 `json:"separationWeight"`
	AlignmentWeight  float64 `json:"alignmentWeight"`
	CohesionWeight   float64 `json:"cohesionWeight"`
	// AlignmentThreshold is the heading difference, in degrees, below which
	// the agent does not bother aligning.
	AlignmentThreshold float64 `json:"alignmentThreshold"`
	// CohesionThreshold is the distance to the neighborhood center below
	// which the agent does not steer towards it.
	CohesionThreshold float64 `json:"cohesionThreshold"`
	// CrowdedThreshold is the number of crowding agents from which separation
	// takes over exclusively. Below it, separation is blended.
	CrowdedThreshold int `json:"crowdedThreshold"`
}

// DefaultClassicData returns the flocking weights given to new agents.
func DefaultClassicData() ClassicData {
	return ClassicData{
		SeparationWeight:   1.5,
		AlignmentWeight:    1,
		CohesionWeight:     1,
		AlignmentThreshold: 5,
		CohesionThreshold:  2,
		CrowdedThreshold:   1,
	}
}

func (*ClassicData) BehaviorID() ID { return ClassicID }

// Classic is the separation, alignment and cohesion flocking behavior.
type Classic struct {
	cfg    ClassicConfig
	rng    *rand.Rand
	logger log.Logger

	kickAll bool
	kicked  map[int]struct{}
}

// NewClassic validates cfg and creates the behavior.
func NewClassic(cfg ClassicConfig, logger log.Logger) (*Classic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Classic{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger,
		kicked: make(map[int]struct{}),
	}, nil
}

func (c *Classic) ID() ID { return ClassicID }

func (c *Classic) NewData() Data {
	d := DefaultClassicData()
	return &d
}

// Config returns the shared flocking settings.
func (c *Classic) Config() ClassicConfig { return c.cfg }

// Kickstart gives the listed agents, or every agent when none is listed, a
// random acceleration during the current frame.
func (c *Classic) Kickstart(ids ...int) {
	if len(ids) == 0 {
		c.kickAll = true
		return
	}
	for _, id := range ids {
		c.kicked[id] = struct{}{}
	}
}

func (c *Classic) kickstarted(id int) bool {
	if c.kickAll {
		return true
	}
	_, ok := c.kicked[id]
	return ok
}

func (c *Classic) OnFrameStart()          {}
func (c *Classic) OnAgentUpdated(_ Agent) {}

// OnFrameEnd clears the kickstart requests.
func (c *Classic) OnFrameEnd() {
	c.kickAll = false
	clear(c.kicked)
}

// ComputeDesiredAcceleration applies, in order of precedence, kickstart, edge
// avoidance, exclusive separation and the weighted blend of separation,
// alignment and cohesion.
func (c *Classic) ComputeDesiredAcceleration(a Agent, _ []Agent) (geometry.Vector3, error) {
	d, err := dataOf[*ClassicData](a, ClassicID)
	if err != nil {
		return geometry.Vector3{}, err
	}
	if c.kickstarted(a.ID()) {
		return c.randomHeading(geometry.Vector3{}, 180).Mul(c.randomBetween(c.cfg.KickstartMin, c.cfg.KickstartMax)), nil
	}

	st := a.Perception()
	mv := a.Movement()
	velocity := st.Velocity()

	// edges do not pull back a falling agent
	if !st.InFreefall() {
		if acc, ok := c.edgeAvoidance(st.Position(), mv); ok {
			return mv.Clamp(velocity, acc), nil
		}
	}
	if st.IsCollided() {
		// full urgency, not clamped
		away := st.AverageCollisionDirection().Flatten().Neg()
		if away.IsZero() {
			away = c.randomHeading(velocity, 180)
		}
		return away.Normalize(mv.MaxAcceleration), nil
	}
	if len(st.Crowded()) >= max(d.CrowdedThreshold, 1) {
		return mv.Clamp(velocity, c.separation(a, mv)), nil
	}

	acc, applied := c.blend(a, d, mv)
	if !applied && !st.HasNeighbors() {
		acc = steerAlong(velocity, c.randomHeading(velocity, c.cfg.SearchTurn), mv.PreferredVelocity)
	}

	if acc.Len() < mv.MinVelocity && velocity.Len() < mv.MinVelocity &&
		st.HasNeighbors() && !st.IsCrowded() && !st.IsCollided() {
		c.logger.Debugf("agent %d is stuck, injecting a random acceleration", a.ID())
		acc = c.randomHeading(geometry.Vector3{}, 180).Mul(c.cfg.StuckAcceleration)
	}
	return mv.Clamp(velocity, acc), nil
}

func (c *Classic) edgeAvoidance(position geometry.Vector3, mv MovementConfig) (geometry.Vector3, bool) {
	b := c.cfg.Bounds
	if !b.enabled() {
		return geometry.Vector3{}, false
	}
	var push geometry.Vector3
	switch {
	case position.X < b.Min.X+c.cfg.EdgeMargin:
		push.X = 1
	case position.X > b.Max.X-c.cfg.EdgeMargin:
		push.X = -1
	}
	switch {
	case position.Z < b.Min.Z+c.cfg.EdgeMargin:
		push.Z = 1
	case position.Z > b.Max.Z-c.cfg.EdgeMargin:
		push.Z = -1
	}
	if push.IsZero() {
		return push, false
	}
	return push.Normalize(mv.MaxAcceleration), true
}

// separation pushes away from the crowd center.
func (c *Classic) separation(a Agent, mv MovementConfig) geometry.Vector3 {
	st := a.Perception()
	away := st.Position().Sub(st.AverageCrowdedPosition()).Flatten()
	if away.IsZero() {
		away = st.Velocity().Flatten().Neg()
	}
	return away.Normalize(mv.MaxAcceleration)
}

// alignment rotates the velocity towards the average heading, at most by the
// preferred turn rate.
func (c *Classic) alignment(a Agent, d *ClassicData, mv MovementConfig) (geometry.Vector3, bool) {
	st := a.Perception()
	velocity, average := st.Velocity(), st.AverageVelocity()
	if velocity.Flatten().IsZero() {
		if average.Flatten().IsZero() {
			return geometry.Vector3{}, false
		}
		return steerAlong(velocity, average.Flatten(), mv.PreferredVelocity), true
	}
	angle := velocity.AngleTo(average, true)
	if math.Abs(angle) <= d.AlignmentThreshold {
		return geometry.Vector3{}, false
	}
	turn := math.Max(-mv.PreferredTurnRate, math.Min(angle, mv.PreferredTurnRate))
	return velocity.RotateHorizontal(turn).Sub(velocity), true
}

func (c *Classic) cohesion(a Agent, d *ClassicData, mv MovementConfig) (geometry.Vector3, bool) {
	st := a.Perception()
	center := st.AveragePosition()
	if st.Position().DistanceTo(center) <= d.CohesionThreshold {
		return geometry.Vector3{}, false
	}
	return steerTowards(st.Position(), st.Velocity(), center, mv.PreferredVelocity), true
}

// blend averages the applicable forces by their weights. It reports whether
// any force applied.
func (c *Classic) blend(a Agent, d *ClassicData, mv MovementConfig) (geometry.Vector3, bool) {
	st := a.Perception()
	var sum geometry.Vector3
	var total float64
	add := func(w float64, f geometry.Vector3, ok bool) {
		if w <= 0 || !ok {
			return
		}
		sum = sum.Add(f.Mul(w))
		total += w
	}

	if st.IsCrowded() {
		add(d.SeparationWeight, c.separation(a, mv), true)
	}
	if st.HasNeighbors() {
		f, ok := c.alignment(a, d, mv)
		add(d.AlignmentWeight, f, ok)
		f, ok = c.cohesion(a, d, mv)
		add(d.CohesionWeight, f, ok)
	}
	if total == 0 {
		return geometry.Vector3{}, false
	}
	return sum.Mul(1 / total), true
}

// randomHeading returns a horizontal unit vector. When velocity is not zero the
// heading stays within spread degrees of it.
func (c *Classic) randomHeading(velocity geometry.Vector3, spread float64) geometry.Vector3 {
	base := velocity.Flatten().Unit()
	if base.IsZero() {
		base = geometry.Vector3{X: 1}
		spread = 180
	}
	return base.RotateHorizontal(c.randomBetween(-spread, spread))
}

func (c *Classic) randomBetween(lo, hi float64) float64 {
	return lo + c.rng.Float64()*(hi-lo)
}
