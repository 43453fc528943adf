package perception

import (
	"fmt"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
	"github.com/tochemey/goakt/v3/log"
)

// Agent is the view of an externally owned agent the perception engine needs.
type Agent interface {
	ID() int
	Position() geometry.Vector3
	Velocity() geometry.Vector3
	Acceleration() geometry.Vector3
	Perception() *State
}

// Engine carries the swarm-wide settings and the frame counter shared by all
// perception states. It is not safe for concurrent use: a frame is processed
// by one goroutine, agent after agent.
type Engine struct {
	settings Settings
	logger   log.Logger
	frame    uint64
}

// NewEngine validates the settings and returns an engine at frame 0.
func NewEngine(settings Settings, logger log.Logger) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Engine{settings: settings, logger: logger}, nil
}

// BeginFrame advances the frame counter. Call it once per simulation frame
// before the first agent is updated.
func (e *Engine) BeginFrame() {
	e.frame++
}

// Frame returns the current frame number.
func (e *Engine) Frame() uint64 {
	return e.frame
}

// Settings returns the swarm-wide settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// SetRebuildFrequency changes the rebuild countdown used after the next rebuilds.
func (e *Engine) SetRebuildFrequency(frames int) error {
	s := e.settings
	s.RebuildFrequency = frames
	if err := s.Validate(); err != nil {
		return err
	}
	e.settings = s
	return nil
}

// NewState creates the perception state of one agent.
func (e *Engine) NewState(id int, cfg Config) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("agent %d: %w", id, err)
	}
	return &State{
		id:                id,
		cfg:               cfg,
		engine:            e,
		weights:           make(map[int]float64),
		reciprocalChecked: make(map[int]struct{}),
		needsFullRebuild:  true,
	}, nil
}

// Update refreshes the perception of a, see State.UpdateIfNecessary.
func (e *Engine) Update(a Agent, candidates []Agent, forceRebuild bool) {
	a.Perception().UpdateIfNecessary(a, candidates, forceRebuild)
}

func (e *Engine) inFreefall(acceleration geometry.Vector3) bool {
	return acceleration.Y < e.settings.GravityThreshold
}
