package simulation

import (
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SwarmActor runs a Swarm inside the actor system. Its mailbox serialises
// frames, settings changes and snapshot requests.
//
// Messages:
//   - *wrapperspb.UInt32Value advances that many frames, then pushes a snapshot
//   - *structpb.Struct applies live settings, see Swarm.ApplySettings
//   - *emptypb.Empty responds with a snapshot
type SwarmActor struct {
	swarm      *Swarm
	snapshotCh chan<- *structpb.Struct

	// --- Benchmark Stats ---
	frames      int
	lastLogTime time.Time
}

var _ actor.Actor = (*SwarmActor)(nil)

// NewSwarmActor wraps swarm. Snapshots are pushed to snapshotCh when it is not
// nil and has room.
func NewSwarmActor(swarm *Swarm, snapshotCh chan<- *structpb.Struct) *SwarmActor {
	return &SwarmActor{
		swarm:       swarm,
		snapshotCh:  snapshotCh,
		lastLogTime: time.Now(),
	}
}

func (s *SwarmActor) PreStart(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("Swarm of %d agents is starting...", len(s.swarm.Agents()))
	return nil
}

func (s *SwarmActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {

	case *goaktpb.PostStart:
		ctx.Logger().Infof("Swarm started with behaviors %v", s.swarm.Coordinator().IDs())

	case *wrapperspb.UInt32Value:
		for i := uint32(0); i < msg.GetValue(); i++ {
			if err := s.swarm.Step(); err != nil {
				ctx.Logger().Errorf("simulation step failed: %v", err)
				return
			}
			s.frames++
		}
		s.logBenchmarks(ctx)
		s.pushSnapshot(ctx)

	case *structpb.Struct:
		if err := s.swarm.ApplySettings(msg.AsMap()); err != nil {
			ctx.Logger().Warnf("settings rejected: %v", err)
		}

	case *emptypb.Empty:
		snap, err := s.swarm.Snapshot()
		if err != nil {
			ctx.Logger().Errorf("snapshot failed: %v", err)
			return
		}
		ctx.Response(snap)

	default:
		ctx.Unhandled()
	}
}

func (s *SwarmActor) logBenchmarks(ctx *actor.ReceiveContext) {
	if time.Since(s.lastLogTime) >= time.Second {
		ctx.Logger().Infof("📊 FRAME RATE: %d/sec | Frame: %d | Agents: %d",
			s.frames, s.swarm.Frame(), len(s.swarm.Agents()))
		s.frames = 0
		s.lastLogTime = time.Now()
	}
}

func (s *SwarmActor) pushSnapshot(ctx *actor.ReceiveContext) {
	if s.snapshotCh == nil {
		return
	}
	snap, err := s.swarm.Snapshot()
	if err != nil {
		ctx.Logger().Errorf("snapshot failed: %v", err)
		return
	}
	select {
	case s.snapshotCh <- snap:
	default:
		// consumer busy, skip frame
	}
}

func (s *SwarmActor) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Info("Swarm is shutdown...")
	return nil
}
