// Package behavior turns the perception of an agent into a desired
// acceleration. Three behaviors share one contract: classic flocking, goal
// seeking with a pile-up state machine, and curve following.
package behavior

import (
	"errors"
	"fmt"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/perception"
)

var (
	// ErrInvalidStatus is returned when a goal status cannot be the target of a transition.
	ErrInvalidStatus = errors.New("invalid goal status")
	// ErrBehaviorMismatch is returned when an agent does not run the behavior being queried.
	ErrBehaviorMismatch = errors.New("agent does not run this behavior")
	// ErrUnknownBehavior is returned for a behavior id nobody registered.
	ErrUnknownBehavior = errors.New("unknown behavior")
	// ErrInvalidConfig is returned by the Validate methods.
	ErrInvalidConfig = errors.New("invalid behavior config")
)

// ID names a behavior type.
type ID string

const (
	ClassicID ID = "classic"
	GoalID    ID = "goal"
	CurveID   ID = "curve"
)

// Data is the per-agent state a behavior keeps on the agent.
type Data interface {
	BehaviorID() ID
}

// Agent is what behaviors need from an agent on top of its perception.
type Agent interface {
	perception.Agent
	Movement() MovementConfig
	Behavior() ID
	Data() Data
	SetBehavior(id ID, data Data)
}

// Behavior is implemented by every behavior type. The driver calls
// OnFrameStart once, then for every agent running the behavior
// ComputeDesiredAcceleration followed by OnAgentUpdated once the agent moved,
// and finally OnFrameEnd.
type Behavior interface {
	ID() ID
	NewData() Data
	OnFrameStart()
	OnAgentUpdated(a Agent)
	ComputeDesiredAcceleration(a Agent, candidates []Agent) (geometry.Vector3, error)
	OnFrameEnd()
}

// nested is implemented by behaviors that run another behavior for some of
// their agents.
type nested interface {
	Fallback() Behavior
}

// Delegate is told when an agent finished a behavior and should switch to next.
type Delegate interface {
	BehaviorEnded(agentID int, from, next ID)
}

// DelegateFunc adapts a function to the Delegate interface.
type DelegateFunc func(agentID int, from, next ID)

func (f DelegateFunc) BehaviorEnded(agentID int, from, next ID) {
	f(agentID, from, next)
}

// dataOf returns the blob of agent a, checking it belongs to behavior id.
func dataOf[T Data](a Agent, id ID) (T, error) {
	var zero T
	d := a.Data()
	if d == nil || d.BehaviorID() != id {
		return zero, fmt.Errorf("%w: agent %d runs %q, not %q", ErrBehaviorMismatch, a.ID(), a.Behavior(), id)
	}
	t, ok := d.(T)
	if !ok {
		return zero, fmt.Errorf("%w: agent %d carries %T for %q", ErrBehaviorMismatch, a.ID(), d, id)
	}
	return t, nil
}

// innerAgent presents an agent to a nested behavior with the nested blob.
type innerAgent struct {
	Agent
	id   ID
	data Data
}

func (w *innerAgent) Behavior() ID { return w.id }
func (w *innerAgent) Data() Data   { return w.data }

func (w *innerAgent) SetBehavior(id ID, data Data) {
	w.id, w.data = id, data
}
