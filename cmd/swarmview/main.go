package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/simulation"
	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/log"
)

const (
	screenWidth  = 1100
	screenHeight = 800
)

func main() {
	configFile := flag.String("config", "", "JSON or YAML configuration file, defaults are used when empty")
	schemaFile := flag.String("schema", "", "JSON schema for the configuration, the built-in one when empty")
	logLevel := flag.String("log", "info", "log level: debug, info, warn or error")
	flag.Parse()

	ctx := context.Background()

	cfg := simulation.DefaultConfig()
	if *configFile != "" {
		var err error
		if cfg, err = simulation.LoadConfig(*configFile, *schemaFile); err != nil {
			stdlog.Fatal(err)
		}
	}

	logger := log.New(simulation.ParseLogLevel(*logLevel), os.Stdout)
	system, err := actor.NewActorSystem("SwarmView", actor.WithLogger(logger))
	if err != nil {
		stdlog.Fatal(err)
	}
	if err := system.Start(ctx); err != nil {
		stdlog.Fatal(err)
	}
	defer system.Stop(ctx)

	game, err := NewGame(ctx, cfg, system)
	if err != nil {
		stdlog.Fatal(err)
	}

	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("Swarm behaviors")
	if err := ebiten.RunGame(game); err != nil {
		stdlog.Fatal(err)
	}
}
