package behavior

import (
	"fmt"
	"math"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
	"github.com/tochemey/goakt/v3/log"
	"gonum.org/v1/gonum/floats"
)

// Status is the progress of an agent towards the goal, in order.
type Status int

const (
	StatusUninitialized Status = iota
	StatusNormal
	StatusPending
	StatusGoalChase
	StatusInBasePyramid
	StatusAtWallLip
	StatusOverWallLip
	StatusReachedFinalGoal
)

var statusNames = [...]string{
	"uninitialized", "normal", "pending", "goal-chase",
	"in-base-pyramid", "at-wall-lip", "over-wall-lip", "reached-final-goal",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// cornerAngle is the drift, in degrees, between heading and goal beyond which
// a chasing agent gets an extra nudge towards the goal.
const cornerAngle = 82.0

// GoalConfig describes the goal shared by all agents of a Goal behavior.
type GoalConfig struct {
	// Base is the point agents pile up on, Final the point behind the wall.
	Base  geometry.Vector3 `json:"base"`
	Final geometry.Vector3 `json:"final"`
	// JoinDistance is the horizontal distance to Base at which an agent joins the pyramid.
	JoinDistance float64 `json:"joinDistance"`
	// LipHeight is the height above Base of the top of the wall.
	LipHeight        float64 `json:"lipHeight"`
	IncubationFrames int     `json:"incubationFrames"`
	ChaseSpeed       float64 `json:"chaseSpeed"`
	// CrowdAvoidance is the share, in [0, 1], of crowd avoidance in a chase.
	CrowdAvoidance  float64 `json:"crowdAvoidance"`
	PushStrength    float64 `json:"pushStrength"`
	ClimbStrength   float64 `json:"climbStrength"`
	StickinessScale float64 `json:"stickinessScale"`
	InfectionSpread bool    `json:"infectionSpread"`
	Collapse        bool    `json:"collapse"`
	// FollowOn is the behavior agents switch to once they reach the final goal.
	FollowOn ID `json:"followOn"`
}

// DefaultGoalConfig returns a goal at the origin with the final point 10 units
// away along X.
func DefaultGoalConfig() GoalConfig {
	return GoalConfig{
		Final:            geometry.Vector3{X: 10},
		JoinDistance:     3,
		LipHeight:        5,
		IncubationFrames: 10,
		ChaseSpeed:       2,
		CrowdAvoidance:   0.3,
		PushStrength:     0.5,
		ClimbStrength:    0.5,
		StickinessScale:  1,
		FollowOn:         ClassicID,
	}
}

func (c GoalConfig) Validate() error {
	switch {
	case c.Final.Sub(c.Base).Flatten().IsZero():
		return fmt.Errorf("%w: final goal must not be above the base", ErrInvalidConfig)
	case c.JoinDistance <= 0:
		return fmt.Errorf("%w: join distance %v must be positive", ErrInvalidConfig, c.JoinDistance)
	case c.LipHeight < 0:
		return fmt.Errorf("%w: lip height %v is negative", ErrInvalidConfig, c.LipHeight)
	case c.IncubationFrames < 0:
		return fmt.Errorf("%w: incubation %d is negative", ErrInvalidConfig, c.IncubationFrames)
	case c.ChaseSpeed <= 0:
		return fmt.Errorf("%w: chase speed %v must be positive", ErrInvalidConfig, c.ChaseSpeed)
	case c.CrowdAvoidance < 0 || c.CrowdAvoidance > 1:
		return fmt.Errorf("%w: crowd avoidance %v must be within [0, 1]", ErrInvalidConfig, c.CrowdAvoidance)
	case c.PushStrength < 0 || c.ClimbStrength < 0 || c.StickinessScale < 0:
		return fmt.Errorf("%w: pyramid strengths must not be negative", ErrInvalidConfig)
	}
	return nil
}

// GoalData is the goal state of one agent.
type GoalData struct {
	// Leader agents are chased by the others instead of the base.
	Leader bool `json:"leader"`
	// Inner is the blob of the fallback behavior, used before the chase and
	// after the final goal.
	Inner  Data `json:"-"`

	status     Status
	countdown  int
	stickiness float64
	notified   bool
}

func (*GoalData) BehaviorID() ID { return GoalID }

// Status returns the current status.
func (d *GoalData) Status() Status { return d.status }

// Stickiness is how much less the agent responds to external forces, zero
// outside the pyramid.
func (d *GoalData) Stickiness() float64 { return d.stickiness }

// pyramid accumulates the agents in the base pyramid during one frame.
type pyramid struct {
	distances []float64
	position  geometry.Vector3
}

func (p *pyramid) reset() {
	p.distances = p.distances[:0]
	p.position = geometry.Vector3{}
}

func (p *pyramid) add(distance float64, position geometry.Vector3) {
	p.distances = append(p.distances, distance)
	p.position = p.position.Add(position)
}

// Goal drives agents to a base point where they pile up until they can climb
// over a wall towards the final point.
type Goal struct {
	cfg      GoalConfig
	fallback Behavior
	delegate Delegate
	logger   log.Logger

	current pyramid
	// averages of the previous frame, read by agents in the pyramid
	avgDistance float64
	avgPosition geometry.Vector3
	members     int

	leaders     []geometry.Vector3
	prevLeaders []geometry.Vector3

	resetInfection bool
}

// NewGoal validates cfg and creates the behavior. Agents that are not heading
// for the goal run fallback. fallback and delegate may be nil.
func NewGoal(cfg GoalConfig, fallback Behavior, delegate Delegate, logger log.Logger) (*Goal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &Goal{cfg: cfg, fallback: fallback, delegate: delegate, logger: logger}, nil
}

func (g *Goal) ID() ID { return GoalID }

func (g *Goal) NewData() Data {
	d := &GoalData{}
	if g.fallback != nil {
		d.Inner = g.fallback.NewData()
	}
	return d
}

// Fallback returns the behavior of agents that are not heading for the goal.
func (g *Goal) Fallback() Behavior { return g.fallback }

// Config returns the goal settings.
func (g *Goal) Config() GoalConfig { return g.cfg }

// SetInfectionSpread toggles infection spread. Turning it on sends every agent
// that is not chasing yet back to uninitialized during the next frame.
func (g *Goal) SetInfectionSpread(on bool) {
	if on && !g.cfg.InfectionSpread {
		g.resetInfection = true
	}
	g.cfg.InfectionSpread = on
}

// SetCollapse inverts the pyramid pushes.
func (g *Goal) SetCollapse(on bool) { g.cfg.Collapse = on }

// SetStatus forces the status of agent a. Uninitialized is not a valid target.
func (g *Goal) SetStatus(a Agent, s Status) error {
	if s <= StatusUninitialized || s > StatusReachedFinalGoal {
		return fmt.Errorf("%w: cannot set agent %d to %v", ErrInvalidStatus, a.ID(), s)
	}
	d, err := dataOf[*GoalData](a, GoalID)
	if err != nil {
		return err
	}
	g.setStatus(a, d, s)
	return nil
}

// Status returns the status of agent a.
func (g *Goal) Status(a Agent) (Status, error) {
	d, err := dataOf[*GoalData](a, GoalID)
	if err != nil {
		return 0, err
	}
	return d.status, nil
}

// Stickiness returns the stickiness of agent a.
func (g *Goal) Stickiness(a Agent) (float64, error) {
	d, err := dataOf[*GoalData](a, GoalID)
	if err != nil {
		return 0, err
	}
	return d.stickiness, nil
}

// OnFrameStart turns last frame's pyramid sums and leader positions into the
// values read during this frame.
func (g *Goal) OnFrameStart() {
	g.members = len(g.current.distances)
	g.avgDistance, g.avgPosition = 0, g.cfg.Base
	if g.members > 0 {
		g.avgDistance = floats.Sum(g.current.distances) / float64(g.members)
		g.avgPosition = g.current.position.Mul(1 / float64(g.members))
	}
	g.current.reset()

	g.prevLeaders, g.leaders = g.leaders, g.prevLeaders[:0]
}

// OnAgentUpdated records the positions of leaders for the next frame.
func (g *Goal) OnAgentUpdated(a Agent) {
	d, err := dataOf[*GoalData](a, GoalID)
	if err != nil {
		return
	}
	if d.Leader {
		g.leaders = append(g.leaders, a.Position())
	}
	if g.fallsBack(d) {
		g.fallback.OnAgentUpdated(&innerAgent{Agent: a, id: g.fallback.ID(), data: d.Inner})
	}
}

func (g *Goal) OnFrameEnd() {
	g.resetInfection = false
}

// ComputeDesiredAcceleration advances the state machine of agent a and
// returns the acceleration of its new status. Agents waiting for the chase or
// done with the goal move with the fallback behavior.
func (g *Goal) ComputeDesiredAcceleration(a Agent, candidates []Agent) (geometry.Vector3, error) {
	d, err := dataOf[*GoalData](a, GoalID)
	if err != nil {
		return geometry.Vector3{}, err
	}
	g.transition(a, d)

	st := a.Perception()
	mv := a.Movement()
	position, velocity := st.Position(), st.Velocity()
	d.stickiness = 0

	switch d.status {
	case StatusGoalChase:
		return mv.Clamp(velocity, g.chase(a, d, mv)), nil
	case StatusInBasePyramid:
		return mv.Clamp(velocity, g.climb(a, d)), nil
	case StatusAtWallLip, StatusOverWallLip:
		return mv.Clamp(velocity, steerTowards(position, velocity, g.cfg.Final, g.cfg.ChaseSpeed)), nil
	}
	if !g.fallsBack(d) {
		return geometry.Vector3{}, nil
	}
	acc, err := g.fallback.ComputeDesiredAcceleration(&innerAgent{Agent: a, id: g.fallback.ID(), data: d.Inner}, candidates)
	if err != nil {
		return geometry.Vector3{}, fmt.Errorf("goal fallback: %w", err)
	}
	return acc, nil
}

// fallsBack reports whether the fallback behavior moves an agent in d's status.
func (g *Goal) fallsBack(d *GoalData) bool {
	if g.fallback == nil || d.Inner == nil {
		return false
	}
	return d.status < StatusGoalChase || d.status == StatusReachedFinalGoal
}

func (g *Goal) setStatus(a Agent, d *GoalData, s Status) {
	if d.status == s {
		return
	}
	g.logger.Debugf("agent %d: %v -> %v", a.ID(), d.status, s)
	d.status = s
	if s == StatusPending {
		d.countdown = g.cfg.IncubationFrames
	}
}

func (g *Goal) transition(a Agent, d *GoalData) {
	if g.resetInfection && d.status < StatusGoalChase {
		d.status, d.countdown = StatusUninitialized, 0
	}

	switch d.status {
	case StatusUninitialized:
		if g.cfg.InfectionSpread {
			g.setStatus(a, d, StatusNormal)
		} else {
			g.setStatus(a, d, StatusGoalChase)
		}
	case StatusNormal:
		if !g.cfg.InfectionSpread {
			g.setStatus(a, d, StatusGoalChase)
		} else if g.infectedNeighbor(a) {
			g.setStatus(a, d, StatusPending)
		}
	case StatusPending:
		d.countdown--
		if d.countdown <= 0 {
			g.setStatus(a, d, StatusGoalChase)
		}
	}

	position := a.Position()
	rel := position.Sub(g.cfg.Base)
	if d.status < StatusInBasePyramid && rel.Flatten().Len() <= g.cfg.JoinDistance {
		g.setStatus(a, d, StatusInBasePyramid)
	}
	if d.status == StatusInBasePyramid && rel.Y >= g.cfg.LipHeight {
		g.setStatus(a, d, StatusAtWallLip)
	}

	axis := g.cfg.Final.Sub(g.cfg.Base).Flatten()
	if d.status == StatusAtWallLip && math.Abs(axis.AngleTo(rel, true)) < 90 {
		g.setStatus(a, d, StatusOverWallLip)
	}
	if d.status == StatusOverWallLip && rel.Flatten().Dot(axis.Unit()) >= axis.Len() {
		g.setStatus(a, d, StatusReachedFinalGoal)
	}
	if d.status == StatusReachedFinalGoal && !d.notified {
		d.notified = true
		g.logger.Infof("agent %d reached the final goal", a.ID())
		if g.delegate != nil {
			g.delegate.BehaviorEnded(a.ID(), GoalID, g.cfg.FollowOn)
		}
	}

	if d.status == StatusInBasePyramid {
		g.current.add(rel.Len(), position)
	}
}

// infectedNeighbor reports whether a nearby goal agent is already chasing.
func (g *Goal) infectedNeighbor(a Agent) bool {
	for _, n := range a.Perception().Nearby() {
		if goalStatus(n) >= StatusGoalChase {
			return true
		}
	}
	return false
}

// goalStatus returns the status of a perceived agent, or uninitialized when it
// does not run the goal behavior.
func goalStatus(n any) Status {
	other, ok := n.(Agent)
	if !ok {
		return StatusUninitialized
	}
	d, ok := other.Data().(*GoalData)
	if !ok {
		return StatusUninitialized
	}
	return d.status
}

// arrived reports whether a crowding neighbor already climbs the pyramid.
func (g *Goal) arrived(a Agent) bool {
	for _, n := range a.Perception().Crowded() {
		if goalStatus(n) >= StatusInBasePyramid {
			return true
		}
	}
	return false
}

func (g *Goal) chase(a Agent, d *GoalData, mv MovementConfig) geometry.Vector3 {
	st := a.Perception()
	position, velocity := st.Position(), st.Velocity()

	target := g.cfg.Base
	if !d.Leader {
		if leader, ok := g.nearestLeader(position); ok {
			target = leader
		}
	}
	acc := steerTowards(position, velocity, target, g.cfg.ChaseSpeed)

	if st.IsCrowded() && !g.arrived(a) {
		away := position.Sub(st.AverageCrowdedPosition()).Flatten().Normalize(mv.MaxAcceleration)
		acc = acc.Mul(1 - g.cfg.CrowdAvoidance).Add(away.Mul(g.cfg.CrowdAvoidance))
	}

	toTarget := target.Sub(position).Flatten()
	if !velocity.Flatten().IsZero() && math.Abs(velocity.AngleTo(toTarget, true)) > cornerAngle {
		acc = acc.Add(toTarget.Normalize(mv.MaxAcceleration))
	}
	return acc
}

func (g *Goal) nearestLeader(position geometry.Vector3) (geometry.Vector3, bool) {
	best, bestDist := geometry.Vector3{}, math.MaxFloat64
	for _, l := range g.prevLeaders {
		if dist := l.DistanceSquaredTo(position); dist < bestDist {
			best, bestDist = l, dist
		}
	}
	return best, len(g.prevLeaders) > 0
}

// climb pushes a pyramid agent towards the pyramid center and up towards the
// lip, using the averages of the previous frame.
func (g *Goal) climb(a Agent, d *GoalData) geometry.Vector3 {
	position := a.Position()
	distance := position.Sub(g.cfg.Base).Len()
	if g.avgDistance > 0 {
		d.stickiness = math.Max(0, (g.avgDistance-distance)/g.avgDistance) * g.cfg.StickinessScale
	}

	center := g.avgPosition
	if g.members == 0 {
		center = g.cfg.Base
	}
	push := center.Sub(position).Flatten().Normalize(g.cfg.PushStrength)
	climb := geometry.Up.Mul(g.cfg.ClimbStrength)
	if g.cfg.Collapse {
		push, climb = push.Neg(), climb.Neg()
	}
	return push.Add(climb)
}
