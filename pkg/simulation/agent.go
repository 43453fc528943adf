package simulation

import (
	"math"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/perception"
)

// Agent is one member of the swarm. Position, velocity and acceleration are
// only changed by the swarm between frames.
type Agent struct {
	id  int
	Pos geometry.Vector3
	Vel geometry.Vector3
	// Acc is the total acceleration applied during the last frame.
	Acc geometry.Vector3

	movement   behavior.MovementConfig
	perception *perception.State
	behaviorID behavior.ID
	data       behavior.Data
}

var _ behavior.Agent = (*Agent)(nil)

func (a *Agent) ID() int                           { return a.id }
func (a *Agent) Position() geometry.Vector3        { return a.Pos }
func (a *Agent) Velocity() geometry.Vector3        { return a.Vel }
func (a *Agent) Acceleration() geometry.Vector3    { return a.Acc }
func (a *Agent) Perception() *perception.State     { return a.perception }
func (a *Agent) Movement() behavior.MovementConfig { return a.movement }
func (a *Agent) Behavior() behavior.ID             { return a.behaviorID }
func (a *Agent) Data() behavior.Data               { return a.data }

// SetMovement replaces the movement limits.
func (a *Agent) SetMovement(mv behavior.MovementConfig) { a.movement = mv }

// SetBehavior replaces the behavior and its blob.
func (a *Agent) SetBehavior(id behavior.ID, data behavior.Data) {
	a.behaviorID, a.data = id, data
}

// Stickiness is the share of external forces the agent ignores.
func (a *Agent) Stickiness() float64 {
	if d, ok := a.data.(*behavior.GoalData); ok {
		return math.Min(1, d.Stickiness())
	}
	return 0
}

// Status returns the goal status of the agent, or an empty string when it
// runs another behavior.
func (a *Agent) Status() string {
	if d, ok := a.data.(*behavior.GoalData); ok {
		return d.Status().String()
	}
	return ""
}

// UpdatePhysics integrates one frame. The external acceleration is damped by
// the stickiness of the agent. The ground at Y = 0 cancels any downward
// acceleration of an agent standing on it.
func (a *Agent) UpdatePhysics(desired, external geometry.Vector3) {
	a.Acc = desired.Add(external.Mul(1 - a.Stickiness()))
	a.Vel = a.Vel.Add(a.Acc)
	a.Pos = a.Pos.Add(a.Vel)
	if a.Pos.Y < 0 {
		a.Pos.Y = 0
		a.Vel.Y = math.Max(0, a.Vel.Y)
		a.Acc.Y = math.Max(0, a.Acc.Y)
	}
}

// toMap converts the agent into the generic form used by snapshots.
func (a *Agent) toMap() map[string]any {
	st := a.perception
	return map[string]any{
		"id":         a.id,
		"behavior":   string(a.behaviorID),
		"status":     a.Status(),
		"position":   vectorMap(a.Pos),
		"velocity":   vectorMap(a.Vel),
		"nearby":     len(st.Nearby()),
		"crowded":    len(st.Crowded()),
		"collided":   len(st.Collided()),
		"stickiness": a.Stickiness(),
	}
}

func vectorMap(v geometry.Vector3) map[string]any {
	return map[string]any{"x": v.X, "y": v.Y, "z": v.Z}
}
