package behavior

import (
	"fmt"
	"math"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
)

// MovementConfig bounds how an agent can move. Turn rates are degrees per frame.
type MovementConfig struct {
	MaxVelocity       float64 `json:"maxVelocity"`
	MaxAcceleration   float64 `json:"maxAcceleration"`
	MaxTurnRate       float64 `json:"maxTurnRate"`
	PreferredVelocity float64 `json:"preferredVelocity"`
	PreferredTurnRate float64 `json:"preferredTurnRate"`
	MinVelocity       float64 `json:"minVelocity"`
}

// DefaultMovement returns the movement limits given to new agents.
func DefaultMovement() MovementConfig {
	return MovementConfig{
		MaxVelocity:       4,
		MaxAcceleration:   1,
		MaxTurnRate:       30,
		PreferredVelocity: 2,
		PreferredTurnRate: 10,
		MinVelocity:       0.1,
	}
}

func (m MovementConfig) Validate() error {
	switch {
	case m.MaxVelocity <= 0, m.MaxAcceleration <= 0:
		return fmt.Errorf("%w: max velocity and acceleration must be positive", ErrInvalidConfig)
	case m.PreferredVelocity < 0 || m.PreferredVelocity > m.MaxVelocity:
		return fmt.Errorf("%w: preferred velocity %v must be within [0, %v]", ErrInvalidConfig, m.PreferredVelocity, m.MaxVelocity)
	case m.MaxTurnRate <= 0 || m.MaxTurnRate > 180:
		return fmt.Errorf("%w: max turn rate %v must be within (0, 180]", ErrInvalidConfig, m.MaxTurnRate)
	case m.PreferredTurnRate < 0 || m.PreferredTurnRate > m.MaxTurnRate:
		return fmt.Errorf("%w: preferred turn rate %v must be within [0, %v]", ErrInvalidConfig, m.PreferredTurnRate, m.MaxTurnRate)
	case m.MinVelocity < 0:
		return fmt.Errorf("%w: min velocity %v is negative", ErrInvalidConfig, m.MinVelocity)
	}
	return nil
}

// Clamp limits a desired acceleration so that its magnitude, the resulting
// speed and the horizontal heading change stay within the maxima.
func (m MovementConfig) Clamp(velocity, desired geometry.Vector3) geometry.Vector3 {
	next := velocity.Add(desired.Truncate(m.MaxAcceleration))

	flatVel, flatNext := velocity.Flatten(), next.Flatten()
	if !flatVel.IsZero() && !flatNext.IsZero() {
		turn := velocity.AngleTo(next, true)
		if math.Abs(turn) > m.MaxTurnRate {
			h := flatVel.Normalize(flatNext.Len()).RotateHorizontal(math.Copysign(m.MaxTurnRate, turn))
			next = geometry.Vector3{X: h.X, Y: next.Y, Z: h.Z}
		}
	}
	return next.Truncate(m.MaxVelocity).Sub(velocity)
}

// steerTowards returns the acceleration that turns velocity into a velocity
// of the given speed pointing from position to target.
func steerTowards(position, velocity, target geometry.Vector3, speed float64) geometry.Vector3 {
	dir := target.Sub(position)
	if dir.IsZero() {
		return velocity.Neg()
	}
	return dir.Normalize(speed).Sub(velocity)
}

// steerAlong returns the acceleration that turns velocity into dir at speed.
func steerAlong(velocity, dir geometry.Vector3, speed float64) geometry.Vector3 {
	return dir.Normalize(speed).Sub(velocity)
}
