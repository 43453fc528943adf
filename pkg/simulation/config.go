package simulation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/perception"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tochemey/goakt/v3/log"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var configSchema string

// Group is a population of agents spawned together.
type Group struct {
	Behavior behavior.ID      `json:"behavior"`
	Count    int              `json:"count"`
	Center   geometry.Vector3 `json:"center"`
	Spread   float64          `json:"spread"` // half width of the square agents are scattered in
	Leaders  int              `json:"leaders"`
}

// CurveSettings is the curve behavior configuration plus the path itself.
type CurveSettings struct {
	behavior.CurveConfig
	Points []geometry.Vector3 `json:"points"`
}

type Config struct {
	Seed int64 `json:"seed"`
	perception.Settings
	// Gravity is the external acceleration applied every frame.
	Gravity geometry.Vector3 `json:"gravity"`

	Perception perception.Config       `json:"perception"`
	Movement   behavior.MovementConfig `json:"movement"`
	Classic    behavior.ClassicConfig  `json:"classic"`
	// Flocking holds the weights given to every new flocking agent.
	Flocking behavior.ClassicData `json:"flocking"`
	Goal     behavior.GoalConfig  `json:"goal"`
	Curve    CurveSettings        `json:"curve"`

	Groups []Group `json:"groups"`
}

func DefaultConfig() *Config {
	classic := behavior.DefaultClassicConfig()
	classic.Bounds = behavior.Bounds{
		Min: geometry.Vector3{X: -60, Z: -60},
		Max: geometry.Vector3{X: 60, Z: 60},
	}
	return &Config{
		Seed:       1,
		Settings:   perception.DefaultSettings(),
		Gravity:    geometry.Vector3{Y: -0.2},
		Perception: perception.DefaultConfig(),
		Movement:   behavior.DefaultMovement(),
		Classic:    classic,
		Flocking:   behavior.DefaultClassicData(),
		Goal:       behavior.DefaultGoalConfig(),
		Curve: CurveSettings{
			CurveConfig: behavior.DefaultCurveConfig(),
			Points: []geometry.Vector3{
				{X: -30, Z: -30},
				{Z: -45},
				{X: 30, Z: -30},
				{X: 45},
			},
		},
		Groups: []Group{
			{Behavior: behavior.ClassicID, Count: 40, Center: geometry.Vector3{X: -20, Z: 20}, Spread: 10},
			{Behavior: behavior.GoalID, Count: 30, Center: geometry.Vector3{X: 30, Z: 30}, Spread: 10, Leaders: 2},
			{Behavior: behavior.CurveID, Count: 20, Center: geometry.Vector3{X: -30, Z: -30}, Spread: 5},
		},
	}
}

func knownBehavior(id behavior.ID) bool {
	switch id {
	case behavior.ClassicID, behavior.GoalID, behavior.CurveID:
		return true
	}
	return false
}

// Validate checks every part of the configuration. It is called by LoadConfig
// and NewSwarm.
func (c *Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return err
	}
	if err := c.Perception.Validate(); err != nil {
		return err
	}
	if err := c.Movement.Validate(); err != nil {
		return err
	}
	if err := c.Classic.Validate(); err != nil {
		return err
	}
	if err := c.Goal.Validate(); err != nil {
		return err
	}
	if err := c.Curve.CurveConfig.Validate(); err != nil {
		return err
	}
	if _, err := geometry.NewPolyline(c.Curve.Points...); err != nil {
		return fmt.Errorf("curve: %w", err)
	}
	f := c.Flocking
	if f.SeparationWeight < 0 || f.AlignmentWeight < 0 || f.CohesionWeight < 0 {
		return fmt.Errorf("%w: flocking weights must not be negative", behavior.ErrInvalidConfig)
	}
	for _, next := range []behavior.ID{c.Goal.FollowOn, c.Curve.FollowOn} {
		if !knownBehavior(next) {
			return fmt.Errorf("%w: follow-on %q", behavior.ErrUnknownBehavior, next)
		}
	}
	for i, g := range c.Groups {
		switch {
		case !knownBehavior(g.Behavior):
			return fmt.Errorf("group %d: %w: %q", i, behavior.ErrUnknownBehavior, g.Behavior)
		case g.Count < 0 || g.Spread < 0:
			return fmt.Errorf("group %d: %w: negative count or spread", i, behavior.ErrInvalidConfig)
		case g.Leaders < 0 || g.Leaders > g.Count:
			return fmt.Errorf("group %d: %w: %d leaders for %d agents", i, behavior.ErrInvalidConfig, g.Leaders, g.Count)
		}
	}
	return nil
}

// compileSchema compiles schemaFile, or the built-in schema when it is empty.
func compileSchema(schemaFile string) (*jsonschema.Schema, error) {
	if schemaFile == "" {
		return jsonschema.CompileString("config.schema.json", configSchema)
	}
	return jsonschema.Compile(schemaFile)
}

// readDocument reads a JSON or YAML file and returns it as JSON.
func readDocument(configFile string) ([]byte, error) {
	b, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode config yaml: %w", err)
		}
		if b, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("failed to convert config yaml: %w", err)
		}
	}
	return b, nil
}

// LoadConfig loads configuration from a JSON or YAML file and validates it
// against the schema. Fields missing from the file keep their default value.
func LoadConfig(configFile string, schemaFile string) (*Config, error) {
	// 1. Compile Schema
	sch, err := compileSchema(schemaFile)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	// 2. Read Config File
	b, err := readDocument(configFile)
	if err != nil {
		return nil, err
	}

	// 3. Validate
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// 4. Unmarshal over the defaults. Lists given in the file replace the
	// default ones instead of being merged element by element.
	cfg := DefaultConfig()
	if doc, ok := v.(map[string]any); ok {
		if _, ok := doc["groups"]; ok {
			cfg.Groups = nil
		}
		if curve, ok := doc["curve"].(map[string]any); ok {
			if _, ok := curve["points"]; ok {
				cfg.Curve.Points = nil
			}
		}
	}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ParseLogLevel maps a -log flag value to a logger level. Unknown names give
// the info level.
func ParseLogLevel(name string) log.Level {
	switch strings.ToLower(name) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarningLevel
	case "error":
		return log.ErrorLevel
	}
	return log.InfoLevel
}
