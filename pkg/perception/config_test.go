package perception

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

const epsilon = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestParseWeighting(t *testing.T) {
	tests := []struct {
		in      string
		want    WeightingPolicy
		wantErr bool
	}{
		{"disabled", WeightingDisabled, false},
		{"inverse-square", WeightingInverseSquare, false},
		{" Linear ", WeightingLinear, false},
		{"cubic", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWeighting(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownWeighting) {
					t.Errorf("ParseWeighting(%q) error = %v; want ErrUnknownWeighting", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseWeighting(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"unknown weighting", func(c *Config) { c.Weighting = WeightingPolicy(42) }, ErrUnknownWeighting},
		{"zero neighborhood", func(c *Config) { c.NeighborhoodRadius = 0 }, ErrInvalidConfig},
		{"crowded beyond neighborhood", func(c *Config) { c.CrowdedRadius = 11 }, ErrInvalidConfig},
		{"collision beyond crowded", func(c *Config) { c.CollisionRadius = 4 }, ErrInvalidConfig},
		{"blind angle too wide", func(c *Config) { c.BlindAngle = 360 }, ErrInvalidConfig},
		{"no falloff band", func(c *Config) { c.VisionAngle = 300 }, ErrInvalidConfig},
		{"full vision", func(c *Config) { c.VisionAngle, c.BlindAngle = 360, 0 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v; want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v; want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Weight(t *testing.T) {
	inverse := DefaultConfig()
	linear := DefaultConfig()
	linear.Weighting = WeightingLinear
	disabled := DefaultConfig()
	disabled.Weighting = WeightingDisabled

	tests := []struct {
		name     string
		cfg      Config
		distance float64
		angle    float64
		want     float64
	}{
		{"inverse square ahead", inverse, 2, 0, 0.25 + 1},
		{"inverse square on the cone edge", inverse, 2, 90, 0.25 + 1},
		{"inverse square in the falloff band", inverse, 2, -120, 0.25 + 0.5},
		{"inverse square at the blind edge", inverse, 2, 150, 0.25},
		{"zero distance sentinel", inverse, 0, 0, ZeroDistanceWeight + 1},
		{"linear halfway", linear, 5, 0, 0.5 + 1},
		{"linear at max distance", linear, 10, 120, 0 + 0.5},
		{"disabled proximity", disabled, 1, 30, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Weight(tt.distance, tt.angle); !floatEquals(got, tt.want) {
				t.Errorf("Weight(%v, %v) = %v; want %v", tt.distance, tt.angle, got, tt.want)
			}
		})
	}
}

func TestConfig_InBlindRegion(t *testing.T) {
	c := DefaultConfig() // blind edge at 150 degrees
	for angle, want := range map[float64]bool{0: false, 150: false, 151: true, -179: true, -90: false} {
		if got := c.InBlindRegion(angle); got != want {
			t.Errorf("InBlindRegion(%v) = %v; want %v", angle, got, want)
		}
	}
}

func TestSettings_Validate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("DefaultSettings().Validate() = %v", err)
	}
	s := DefaultSettings()
	s.RebuildFrequency = -1
	if err := s.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("negative frequency: %v; want ErrInvalidConfig", err)
	}
}

func TestConfig_JSONWeighting(t *testing.T) {
	var c Config
	if err := json.Unmarshal([]byte(`{"neighborhoodRadius": 8, "weighting": "linear"}`), &c); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if c.Weighting != WeightingLinear || c.NeighborhoodRadius != 8 {
		t.Errorf("decoded %+v", c)
	}
	if err := json.Unmarshal([]byte(`{"weighting": "cubic"}`), &c); !errors.Is(err, ErrUnknownWeighting) {
		t.Errorf("unknown policy error = %v; want ErrUnknownWeighting", err)
	}
	b, err := json.Marshal(DefaultConfig())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(b), `"weighting":"inverse-square"`) {
		t.Errorf("encoded %s", b)
	}
}
