// Package perception classifies the agents around one agent as nearby,
// crowded or collided and keeps weighted averages over each class.
// The expensive pairwise scan is amortised over frames: lists are rebuilt on
// a countdown, averages are refreshed from cached weights in between, and a
// scan of the pair (A, B) fills both A's and B's state when both rebuild in
// the same frame.
package perception

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrUnknownWeighting is returned for a weighting policy that is not one of
	// WeightingDisabled, WeightingInverseSquare or WeightingLinear.
	ErrUnknownWeighting = errors.New("unknown weighting policy")
	// ErrInvalidConfig is returned by Validate for radii or angles that
	// cannot produce meaningful weights.
	ErrInvalidConfig = errors.New("invalid perception config")
)

// ZeroDistanceWeight replaces 1/d² when two agents share a position.
const ZeroDistanceWeight = 1e6

// WeightingPolicy selects the proximity term of the neighbor weight.
type WeightingPolicy int

const (
	WeightingDisabled WeightingPolicy = iota
	WeightingInverseSquare
	WeightingLinear
)

var weightingNames = map[WeightingPolicy]string{
	WeightingDisabled:      "disabled",
	WeightingInverseSquare: "inverse-square",
	WeightingLinear:        "linear",
}

func (w WeightingPolicy) String() string {
	if name, ok := weightingNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WeightingPolicy(%d)", int(w))
}

// ParseWeighting maps a configuration string to a WeightingPolicy.
// Unknown names fail, they never default silently.
func ParseWeighting(name string) (WeightingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "disabled", "none", "off":
		return WeightingDisabled, nil
	case "inverse-square", "inverse_square", "inversesquare":
		return WeightingInverseSquare, nil
	case "linear":
		return WeightingLinear, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownWeighting, name)
}

// MarshalText lets configuration files name the policy.
func (w WeightingPolicy) MarshalText() ([]byte, error) {
	name, ok := weightingNames[w]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownWeighting, int(w))
	}
	return []byte(name), nil
}

func (w *WeightingPolicy) UnmarshalText(text []byte) error {
	p, err := ParseWeighting(string(text))
	if err != nil {
		return err
	}
	*w = p
	return nil
}

// Config holds the per-agent perception parameters. Angles are in degrees.
type Config struct {
	NeighborhoodRadius float64         `json:"neighborhoodRadius"`
	CrowdedRadius      float64         `json:"crowdedRadius"`
	CollisionRadius    float64         `json:"collisionRadius"`
	BlindAngle         float64         `json:"blindAngle"`  // full width of the region behind the agent
	VisionAngle        float64         `json:"visionAngle"` // full width of the forward cone
	Weighting          WeightingPolicy `json:"weighting"`
}

// DefaultConfig returns the perception defaults used by new agents.
func DefaultConfig() Config {
	return Config{
		NeighborhoodRadius: 10,
		CrowdedRadius:      3,
		CollisionRadius:    1,
		BlindAngle:         60,
		VisionAngle:        180,
		Weighting:          WeightingInverseSquare,
	}
}

// Validate fails fast on configurations that would yield NaN or negative weights.
func (c Config) Validate() error {
	if _, ok := weightingNames[c.Weighting]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownWeighting, int(c.Weighting))
	}
	if c.NeighborhoodRadius <= 0 {
		return fmt.Errorf("%w: neighborhood radius %v must be positive", ErrInvalidConfig, c.NeighborhoodRadius)
	}
	if c.CrowdedRadius < 0 || c.CrowdedRadius > c.NeighborhoodRadius {
		return fmt.Errorf("%w: crowded radius %v must be within [0, %v]", ErrInvalidConfig, c.CrowdedRadius, c.NeighborhoodRadius)
	}
	if c.CollisionRadius < 0 || c.CollisionRadius > c.CrowdedRadius {
		return fmt.Errorf("%w: collision radius %v must be within [0, %v]", ErrInvalidConfig, c.CollisionRadius, c.CrowdedRadius)
	}
	if c.BlindAngle < 0 || c.BlindAngle >= 360 {
		return fmt.Errorf("%w: blind angle %v must be within [0, 360)", ErrInvalidConfig, c.BlindAngle)
	}
	if c.VisionAngle <= 0 || c.VisionAngle > 360 {
		return fmt.Errorf("%w: vision angle %v must be within (0, 360]", ErrInvalidConfig, c.VisionAngle)
	}
	// full vision with no blind region needs no falloff band
	if c.coneEdge() >= c.blindEdge() && !(c.VisionAngle == 360 && c.BlindAngle == 0) {
		return fmt.Errorf("%w: vision cone (%v) and blind region (%v) leave no falloff band",
			ErrInvalidConfig, c.VisionAngle, c.BlindAngle)
	}
	return nil
}

// blindEdge is the absolute angle beyond which other agents are not seen.
func (c Config) blindEdge() float64 {
	return 180 - c.BlindAngle/2
}

// coneEdge is the absolute angle up to which the angular weight is full.
func (c Config) coneEdge() float64 {
	return c.VisionAngle / 2
}

// InBlindRegion reports whether a signed angle falls behind the agent.
func (c Config) InBlindRegion(angle float64) bool {
	return math.Abs(angle) > c.blindEdge()
}

// ProximityWeight is the distance term of the weight. Two agents at the same
// position get ZeroDistanceWeight under inverse-square weighting.
func (c Config) ProximityWeight(distance float64) float64 {
	switch c.Weighting {
	case WeightingInverseSquare:
		if distance == 0 {
			return ZeroDistanceWeight
		}
		return 1 / (distance * distance)
	case WeightingLinear:
		return (c.NeighborhoodRadius - distance) / c.NeighborhoodRadius
	default:
		return 0
	}
}

// AngularWeight is 1 inside the forward cone and falls linearly to 0 at the
// edge of the blind region.
func (c Config) AngularWeight(angle float64) float64 {
	a := math.Abs(angle)
	cone, blind := c.coneEdge(), c.blindEdge()
	switch {
	case a <= cone:
		return 1
	case a >= blind:
		return 0
	}
	return (blind - a) / (blind - cone)
}

// Weight combines proximity and angular weighting for one neighbor.
func (c Config) Weight(distance, angle float64) float64 {
	return c.ProximityWeight(distance) + c.AngularWeight(angle)
}

// Settings are shared by every agent of a swarm.
type Settings struct {
	// GravityThreshold is the vertical acceleration below which an agent is
	// considered in freefall.
	GravityThreshold float64 `json:"gravityThreshold"`
	// RebuildFrequency is the number of frames between full list rebuilds.
	RebuildFrequency int `json:"rebuildFrequency"`
}

// DefaultSettings returns the swarm-wide perception defaults.
func DefaultSettings() Settings {
	return Settings{
		GravityThreshold: -5,
		RebuildFrequency: 5,
	}
}

// Validate checks the swarm-wide settings.
func (s Settings) Validate() error {
	if s.RebuildFrequency < 0 {
		return fmt.Errorf("%w: rebuild frequency %d must not be negative", ErrInvalidConfig, s.RebuildFrequency)
	}
	return nil
}
