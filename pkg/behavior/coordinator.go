package behavior

import (
	"fmt"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
	"github.com/tochemey/goakt/v3/log"
)

// Coordinator owns the behaviors of a swarm and dispatches each agent to the
// behavior it currently runs.
type Coordinator struct {
	behaviors map[ID]Behavior
	order     []ID

	// hooks receives the frame hooks: registered behaviors and the fallbacks
	// they run, each once.
	hooks  []Behavior
	logger log.Logger
}

// NewCoordinator registers the given behaviors.
func NewCoordinator(logger log.Logger, behaviors ...Behavior) (*Coordinator, error) {
	if logger == nil {
		logger = log.DiscardLogger
	}
	c := &Coordinator{behaviors: make(map[ID]Behavior), logger: logger}
	for _, b := range behaviors {
		if err := c.Register(b); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a behavior. Ids must be unique.
func (c *Coordinator) Register(b Behavior) error {
	if _, exists := c.behaviors[b.ID()]; exists {
		return fmt.Errorf("%w: behavior %q registered twice", ErrInvalidConfig, b.ID())
	}
	c.behaviors[b.ID()] = b
	c.order = append(c.order, b.ID())
	c.addHooks(b)
	c.logger.Debugf("registered behavior %q", b.ID())
	return nil
}

func (c *Coordinator) addHooks(b Behavior) {
	for _, h := range c.hooks {
		if h == b {
			return
		}
	}
	c.hooks = append(c.hooks, b)
	if n, ok := b.(nested); ok && n.Fallback() != nil {
		c.addHooks(n.Fallback())
	}
}

// Behavior returns the behavior registered under id.
func (c *Coordinator) Behavior(id ID) (Behavior, error) {
	b, ok := c.behaviors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBehavior, id)
	}
	return b, nil
}

// IDs lists the registered behaviors in registration order.
func (c *Coordinator) IDs() []ID {
	return append([]ID(nil), c.order...)
}

// Assign switches agent a to behavior id with a fresh blob. The previous blob
// is dropped.
func (c *Coordinator) Assign(a Agent, id ID) error {
	b, err := c.Behavior(id)
	if err != nil {
		return fmt.Errorf("agent %d: %w", a.ID(), err)
	}
	if prev := a.Behavior(); prev != "" && prev != id {
		c.logger.Debugf("agent %d switches from %q to %q", a.ID(), prev, id)
	}
	a.SetBehavior(id, b.NewData())
	return nil
}

// FrameStart resets the per-frame bookkeeping of every behavior, fallbacks
// included. A behavior is called once even when it is also a fallback.
func (c *Coordinator) FrameStart() {
	for _, b := range c.hooks {
		b.OnFrameStart()
	}
}

// FrameEnd runs the end of frame hooks of every behavior.
func (c *Coordinator) FrameEnd() {
	for _, b := range c.hooks {
		b.OnFrameEnd()
	}
}

// ComputeDesiredAcceleration dispatches to the behavior agent a runs.
func (c *Coordinator) ComputeDesiredAcceleration(a Agent, candidates []Agent) (geometry.Vector3, error) {
	b, err := c.Behavior(a.Behavior())
	if err != nil {
		return geometry.Vector3{}, fmt.Errorf("agent %d: %w", a.ID(), err)
	}
	return b.ComputeDesiredAcceleration(a, candidates)
}

// AgentUpdated forwards the post-integration hook to the behavior of a.
func (c *Coordinator) AgentUpdated(a Agent) {
	if b, ok := c.behaviors[a.Behavior()]; ok {
		b.OnAgentUpdated(a)
	}
}
