package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/internal/stream"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/simulation"
	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const askTimeout = 5 * time.Second

func main() {
	configFile := flag.String("config", "", "JSON or YAML configuration file, defaults are used when empty")
	schemaFile := flag.String("schema", "", "JSON schema for the configuration, the built-in one when empty")
	frames := flag.Int("frames", 600, "number of frames to run, 0 runs until interrupted")
	csvFile := flag.String("csv", "", "CSV file receiving one row per agent per recorded frame")
	every := flag.Int("every", 10, "record and stream a snapshot every this many frames")
	listen := flag.String("listen", "", "address serving the snapshot websocket on /ws, disabled when empty")
	logLevel := flag.String("log", "info", "log level: debug, info, warn or error")
	flag.Parse()

	if *every < 1 {
		stdlog.Fatalf("-every must be at least 1, got %d", *every)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := simulation.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = simulation.LoadConfig(*configFile, *schemaFile); err != nil {
			stdlog.Fatal(err)
		}
	}

	logger := log.New(simulation.ParseLogLevel(*logLevel), os.Stdout)
	if err := run(ctx, cfg, logger, *frames, *every, *csvFile, *listen); err != nil {
		stdlog.Fatal(err)
	}
}

func run(ctx context.Context, cfg *simulation.Config, logger log.Logger, frames, every int, csvFile, listen string) error {
	system, err := actor.NewActorSystem("Swarm", actor.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := system.Start(ctx); err != nil {
		return err
	}
	defer system.Stop(context.Background())

	swarm, err := simulation.NewSwarm(cfg, logger)
	if err != nil {
		return err
	}
	if err := swarm.Populate(); err != nil {
		return err
	}
	agents := len(swarm.Agents())
	pid, err := system.Spawn(ctx, "swarm", simulation.NewSwarmActor(swarm, nil))
	if err != nil {
		return fmt.Errorf("failed to spawn swarm: %w", err)
	}

	recorder, err := telemetry.Create(csvFile)
	if err != nil {
		return err
	}
	defer recorder.Close()
	if recorder != nil {
		logger.Infof("recording run %s to %s", recorder.RunID(), csvFile)
	}

	hub := stream.NewHub(logger)
	if listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/ws", hub.Handler())
		srv := &http.Server{Addr: listen, Handler: mux}
		go func() {
			logger.Infof("streaming snapshots on ws://%s/ws", listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("stream server failed: %v", err)
			}
		}()
		defer srv.Close()
	}

	start := time.Now()
	done := 0
	for frames == 0 || done < frames {
		if ctx.Err() != nil {
			logger.Info("interrupted")
			break
		}
		n := every
		if frames > 0 {
			n = min(n, frames-done)
		}
		if err := actor.Tell(ctx, pid, wrapperspb.UInt32(uint32(n))); err != nil {
			return err
		}
		done += n

		// the mailbox is FIFO so the snapshot follows the frames above
		reply, err := actor.Ask(ctx, pid, &emptypb.Empty{}, askTimeout)
		if err != nil {
			return fmt.Errorf("snapshot at frame %d: %w", done, err)
		}
		snap, ok := reply.(*structpb.Struct)
		if !ok {
			return fmt.Errorf("unexpected snapshot reply %T", reply)
		}
		if err := recorder.Record(snap); err != nil {
			return err
		}
		if err := hub.Broadcast(snap); err != nil {
			return err
		}
	}

	elapsed := time.Since(start)
	logger.Infof("ran %d frames of %d agents in %v (%.1f frames/sec)",
		done, agents, elapsed, float64(done)/elapsed.Seconds())
	return nil
}
