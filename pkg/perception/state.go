package perception

import (
	"math"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
)

// sums accumulates the weighted totals of one rebuild or recalculation.
type sums struct {
	weight        float64
	crowdWeight   float64
	velocity      geometry.Vector3
	position      geometry.Vector3
	crowdPosition geometry.Vector3
	collision     geometry.Vector3 // raw positions of collided agents
}

// State is the regional perception of one agent. Lists returned by its
// accessors are owned by the state and stay valid until its next update.
type State struct {
	id     int
	cfg    Config
	engine *Engine

	position     geometry.Vector3
	velocity     geometry.Vector3
	acceleration geometry.Vector3
	inFreefall   bool
	moved        bool

	nearby   []Agent
	crowded  []Agent
	collided []Agent
	weights  map[int]float64
	sums     sums

	avVelocity           geometry.Vector3
	avPosition           geometry.Vector3
	avCrowdedPosition    geometry.Vector3
	avCollisionDirection geometry.Vector3

	reciprocalChecked map[int]struct{}
	collecting        bool // lists were cleared and are being filled this frame
	collectFrame      uint64
	lastFrame         uint64
	lastRebuildFrame  uint64
	rebuilds          int

	framesUntilRebuild int
	needsFullRebuild   bool
	needsAverageRecalc bool
}

// ID returns the id of the agent owning this state.
func (s *State) ID() int { return s.id }

// Config returns the perception parameters.
func (s *State) Config() Config { return s.cfg }

// SetConfig replaces the perception parameters and schedules a full rebuild.
func (s *State) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg
	s.needsFullRebuild = true
	return nil
}

func (s *State) Position() geometry.Vector3     { return s.position }
func (s *State) Velocity() geometry.Vector3     { return s.velocity }
func (s *State) Acceleration() geometry.Vector3 { return s.acceleration }
func (s *State) InFreefall() bool               { return s.inFreefall }

func (s *State) Nearby() []Agent   { return s.nearby }
func (s *State) Crowded() []Agent  { return s.crowded }
func (s *State) Collided() []Agent { return s.collided }

func (s *State) HasNeighbors() bool { return len(s.nearby) > 0 }
func (s *State) IsCrowded() bool    { return len(s.crowded) > 0 }
func (s *State) IsCollided() bool   { return len(s.collided) > 0 }

// Weight returns the weight recorded for a nearby agent.
func (s *State) Weight(id int) (float64, bool) {
	w, ok := s.weights[id]
	return w, ok
}

// AverageVelocity is the weighted mean velocity of nearby agents, or the
// agent's own velocity when nothing is nearby.
func (s *State) AverageVelocity() geometry.Vector3 { return s.avVelocity }

// AveragePosition is the weighted mean position of nearby agents, or the
// agent's own position when nothing is nearby.
func (s *State) AveragePosition() geometry.Vector3 { return s.avPosition }

// AverageCrowdedPosition is the weighted mean position of crowding agents, or
// the agent's own position when not crowded.
func (s *State) AverageCrowdedPosition() geometry.Vector3 { return s.avCrowdedPosition }

// AverageCollisionDirection points from the agent to the mean position of the
// agents it is colliding with. Zero when not collided.
func (s *State) AverageCollisionDirection() geometry.Vector3 { return s.avCollisionDirection }

// FramesUntilRebuild returns the rebuild countdown.
func (s *State) FramesUntilRebuild() int { return s.framesUntilRebuild }

// LastRebuildFrame returns the frame of the last full rebuild.
func (s *State) LastRebuildFrame() uint64 { return s.lastRebuildFrame }

// Rebuilds returns how many full rebuilds this state went through.
func (s *State) Rebuilds() int { return s.rebuilds }

// MarkForRebuild forces a full rebuild on the next update.
func (s *State) MarkForRebuild() { s.needsFullRebuild = true }

// UpdateIfNecessary refreshes the perception of agent a. It must run once per
// frame, after Engine.BeginFrame and before any behavior reads the state.
//
// A full rebuild happens when forced, when the countdown expires or when
// nothing is nearby. Otherwise stale averages are recomputed from the cached
// lists and weights.
func (s *State) UpdateIfNecessary(a Agent, candidates []Agent, forceRebuild bool) {
	frame := s.engine.frame
	s.updateCurrentVectors(a)
	s.framesUntilRebuild--

	switch {
	case forceRebuild || s.rebuildDue(frame):
		s.rebuild(a, candidates, frame)
	case s.averagesStale():
		s.recalculateAverages()
	}
	s.lastFrame = frame
}

func (s *State) updateCurrentVectors(a Agent) {
	pos, vel, acc := a.Position(), a.Velocity(), a.Acceleration()
	s.moved = !pos.Eq(s.position) || !vel.Eq(s.velocity)
	if s.moved {
		s.needsAverageRecalc = true
	}
	s.position, s.velocity, s.acceleration = pos, vel, acc
	s.inFreefall = s.engine.inFreefall(acc)
}

func (s *State) rebuildDue(frame uint64) bool {
	return s.needsFullRebuild ||
		s.framesUntilRebuild <= 0 ||
		len(s.nearby) == 0 ||
		(s.collecting && s.collectFrame == frame)
}

func (s *State) averagesStale() bool {
	if s.needsAverageRecalc {
		return true
	}
	for _, n := range s.nearby {
		if ns := n.Perception(); ns != nil && ns.moved {
			return true
		}
	}
	return false
}

// acceptsReciprocal reports whether another agent's scan may fill this state:
// only if this agent has not been updated yet this frame and will rebuild.
func (s *State) acceptsReciprocal(frame uint64) bool {
	if s.lastFrame == frame {
		return false
	}
	if s.collecting && s.collectFrame == frame {
		return true
	}
	// the countdown is decremented on update, hence the -1
	return s.needsFullRebuild || s.framesUntilRebuild-1 <= 0 || len(s.nearby) == 0
}

func (s *State) beginCollecting(frame uint64) {
	if s.collecting && s.collectFrame == frame {
		return
	}
	s.nearby = s.nearby[:0]
	s.crowded = s.crowded[:0]
	s.collided = s.collided[:0]
	clear(s.weights)
	clear(s.reciprocalChecked)
	s.sums = sums{}
	s.collecting = true
	s.collectFrame = frame
}

func (s *State) rebuild(a Agent, candidates []Agent, frame uint64) {
	s.beginCollecting(frame)

	for _, other := range candidates {
		id := other.ID()
		if id == s.id {
			continue
		}
		if _, done := s.reciprocalChecked[id]; done {
			continue
		}
		if s.engine.inFreefall(other.Acceleration()) {
			continue
		}

		os := other.Perception()
		reciprocal := os != nil && !s.inFreefall && os.acceptsReciprocal(frame)
		reach := s.cfg.NeighborhoodRadius
		if reciprocal {
			reach = math.Max(reach, os.cfg.NeighborhoodRadius)
		}

		delta := other.Position().Sub(s.position)
		if outsideBox(delta, reach) {
			if reciprocal {
				os.beginCollecting(frame)
				os.reciprocalChecked[s.id] = struct{}{}
			}
			continue
		}

		distSq := delta.LenSqr()
		s.consider(s.velocity, other, delta, distSq)
		if reciprocal {
			os.beginCollecting(frame)
			os.consider(other.Velocity(), a, delta.Neg(), distSq)
			os.reciprocalChecked[s.id] = struct{}{}
		}
	}

	s.finalize()
	s.collecting = false
	s.needsFullRebuild = false
	s.needsAverageRecalc = false
	s.lastRebuildFrame = frame
	s.rebuilds++

	// crowded agents change neighbors too fast to trust stale lists
	s.framesUntilRebuild = s.engine.settings.RebuildFrequency
	if len(s.crowded) > 0 {
		s.framesUntilRebuild = 0
	}
}

// outsideBox is the axis-aligned rejection done before any distance math.
func outsideBox(delta geometry.Vector3, r float64) bool {
	return math.Abs(delta.X) >= r || math.Abs(delta.Y) >= r || math.Abs(delta.Z) >= r
}

// consider classifies other, seen along delta (from this agent to other)
// while this agent moves with ownVelocity.
func (s *State) consider(ownVelocity geometry.Vector3, other Agent, delta geometry.Vector3, distSq float64) {
	cfg := s.cfg
	if distSq >= cfg.NeighborhoodRadius*cfg.NeighborhoodRadius {
		return
	}
	angle := ownVelocity.AngleTo(delta, true)
	if cfg.InBlindRegion(angle) {
		return
	}

	distance := math.Sqrt(distSq)
	if distance == 0 && cfg.Weighting == WeightingInverseSquare {
		s.engine.logger.Warnf("agents %d and %d share a position, using weight %v", s.id, other.ID(), ZeroDistanceWeight)
	}
	w := cfg.Weight(distance, angle)
	pos, vel := other.Position(), other.Velocity()

	s.nearby = append(s.nearby, other)
	s.weights[other.ID()] = w
	s.sums.weight += w
	s.sums.velocity = s.sums.velocity.Add(vel.Mul(w))
	s.sums.position = s.sums.position.Add(pos.Mul(w))

	if distSq >= cfg.CrowdedRadius*cfg.CrowdedRadius {
		return
	}
	s.crowded = append(s.crowded, other)
	s.sums.crowdWeight += w
	s.sums.crowdPosition = s.sums.crowdPosition.Add(pos.Mul(w))

	if distSq < cfg.CollisionRadius*cfg.CollisionRadius && math.Abs(angle) < 90 {
		s.collided = append(s.collided, other)
		s.sums.collision = s.sums.collision.Add(pos)
	}
}

// recalculateAverages rebuilds the sums from the current lists and cached
// weights, using the neighbors' current positions and velocities.
func (s *State) recalculateAverages() {
	s.sums = sums{}
	for _, n := range s.nearby {
		w := s.weights[n.ID()]
		s.sums.weight += w
		s.sums.velocity = s.sums.velocity.Add(n.Velocity().Mul(w))
		s.sums.position = s.sums.position.Add(n.Position().Mul(w))
	}
	for _, n := range s.crowded {
		w := s.weights[n.ID()]
		s.sums.crowdWeight += w
		s.sums.crowdPosition = s.sums.crowdPosition.Add(n.Position().Mul(w))
	}
	for _, n := range s.collided {
		s.sums.collision = s.sums.collision.Add(n.Position())
	}
	s.finalize()
	s.needsAverageRecalc = false
}

func (s *State) finalize() {
	s.avVelocity, s.avPosition = s.velocity, s.position
	s.avCrowdedPosition = s.position
	s.avCollisionDirection = geometry.Vector3{}

	if len(s.nearby) > 0 {
		if s.sums.weight > 0 {
			s.avVelocity = s.sums.velocity.Mul(1 / s.sums.weight)
			s.avPosition = s.sums.position.Mul(1 / s.sums.weight)
		} else {
			s.engine.logger.Debugf("agent %d: zero total weight over %d neighbors, using plain means", s.id, len(s.nearby))
			s.avVelocity, s.avPosition = plainMeans(s.nearby)
		}
	}
	if len(s.crowded) > 0 {
		if s.sums.crowdWeight > 0 {
			s.avCrowdedPosition = s.sums.crowdPosition.Mul(1 / s.sums.crowdWeight)
		} else {
			_, s.avCrowdedPosition = plainMeans(s.crowded)
		}
	}
	if n := len(s.collided); n > 0 {
		s.avCollisionDirection = s.sums.collision.Mul(1 / float64(n)).Sub(s.position)
	}
}

func plainMeans(agents []Agent) (velocity, position geometry.Vector3) {
	for _, a := range agents {
		velocity = velocity.Add(a.Velocity())
		position = position.Add(a.Position())
	}
	inv := 1 / float64(len(agents))
	return velocity.Mul(inv), position.Mul(inv)
}
