package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/impactgen/internal/scenario"
	"github.com/san-kum/impactgen/internal/sequencer"
	"github.com/san-kum/impactgen/internal/session"
	"github.com/san-kum/impactgen/internal/space"
)

const (
	DefaultHost             = session.DefaultHost
	DefaultPort             = session.DefaultPort
	DefaultTimeout          = 30.0
	DefaultLevel            = "gridmap_v2"
	DefaultModel            = "etk800"
	DefaultStepsPerSecond   = 60
	DefaultSpawnSettleTicks = 60
	DefaultSeed             = 1
	DefaultRetries          = 1
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Host    string  `yaml:"host" toml:"host"`
	Port    int     `yaml:"port" toml:"port"`
	Timeout float64 `yaml:"timeout" toml:"timeout"` // seconds per request

	Level    string               `yaml:"level" toml:"level"`
	Geometry *scenario.Geometry   `yaml:"geometry,omitempty" toml:"geometry,omitempty"`
	Vehicles []VehicleConfig      `yaml:"vehicles" toml:"vehicles"`
	Parts    scenario.PartCatalog `yaml:"parts" toml:"parts"`

	Seed         uint64   `yaml:"seed" toml:"seed"`
	Strategy     string   `yaml:"strategy" toml:"strategy"`
	FullCoverage bool     `yaml:"full_coverage" toml:"full_coverage"`
	Categories   []string `yaml:"categories" toml:"categories"`
	MaxTrials    int      `yaml:"max_trials" toml:"max_trials"` // 0 runs until every space is exhausted
	Retries      int      `yaml:"retries" toml:"retries"`

	StepsPerSecond   int  `yaml:"steps_per_second" toml:"steps_per_second"`
	SpawnSettleTicks int  `yaml:"spawn_settle_ticks" toml:"spawn_settle_ticks"`
	Particles        bool `yaml:"particles" toml:"particles"`

	Sequencer SequencerConfig          `yaml:"sequencer" toml:"sequencer"`
	Spaces    map[string]scenario.Spec `yaml:"spaces" toml:"spaces"`
}

type VehicleConfig struct {
	ID    string `yaml:"id" toml:"id"`
	Model string `yaml:"model" toml:"model"`
}

type SequencerConfig struct {
	DamageThreshold float64 `yaml:"damage_threshold" toml:"damage_threshold"`
	StopSpeed       float64 `yaml:"stop_speed" toml:"stop_speed"`
	SettleDelay     float64 `yaml:"settle_delay" toml:"settle_delay"`
	SampleRateHz    int     `yaml:"sample_rate_hz" toml:"sample_rate_hz"`
	DamageTolerance float64 `yaml:"damage_tolerance" toml:"damage_tolerance"`
	MaxDriveTime    float64 `yaml:"max_drive_time" toml:"max_drive_time"`
	MaxTicks        int     `yaml:"max_ticks" toml:"max_ticks"`
}

func (s SequencerConfig) ToSequencer() sequencer.Config {
	return sequencer.Config{
		DamageThreshold: s.DamageThreshold,
		StopSpeed:       s.StopSpeed,
		SettleDelay:     s.SettleDelay,
		SampleRateHz:    s.SampleRateHz,
		DamageTolerance: s.DamageTolerance,
		MaxDriveTime:    s.MaxDriveTime,
		MaxTicks:        s.MaxTicks,
	}
}

func DefaultConfig() *Config {
	seq := sequencer.DefaultConfig()
	return &Config{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
		Level:   DefaultLevel,
		Vehicles: []VehicleConfig{
			{ID: "vehicle_a", Model: DefaultModel},
			{ID: "vehicle_b", Model: DefaultModel},
		},
		Parts:            ETK800Parts(),
		Seed:             DefaultSeed,
		Strategy:         space.StrategyPermutation.String(),
		Categories:       append([]string(nil), scenario.Names...),
		Retries:          DefaultRetries,
		StepsPerSecond:   DefaultStepsPerSecond,
		SpawnSettleTicks: DefaultSpawnSettleTicks,
		Sequencer: SequencerConfig{
			DamageThreshold: seq.DamageThreshold,
			StopSpeed:       seq.StopSpeed,
			SettleDelay:     seq.SettleDelay,
			SampleRateHz:    seq.SampleRateHz,
			DamageTolerance: seq.DamageTolerance,
			MaxDriveTime:    30,
			MaxTicks:        seq.MaxTicks,
		},
		Spaces: DefaultSpaces(),
	}
}

// Load reads a YAML file, or TOML when the extension is .toml, over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolveGeometry returns the inline geometry if set, else the level preset.
func (c *Config) ResolveGeometry() (scenario.Geometry, error) {
	if c.Geometry != nil {
		return *c.Geometry, nil
	}
	g, ok := GetLevel(c.Level)
	if !ok {
		return scenario.Geometry{}, fmt.Errorf("%w: unknown level %q (have %s)",
			ErrInvalidConfig, c.Level, strings.Join(ListLevels(), ", "))
	}
	return g, nil
}

func (c *Config) SpaceStrategy() (space.Strategy, error) {
	switch c.Strategy {
	case "", space.StrategyPermutation.String():
		return space.StrategyPermutation, nil
	case space.StrategyRejection.String():
		return space.StrategyRejection, nil
	}
	return 0, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
}

// Validate reports the first problem found, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Port <= 0 || c.Port > 65535 {
		return invalid("port %d out of range", c.Port)
	}
	if c.Timeout < 0 {
		return invalid("negative timeout")
	}
	if len(c.Vehicles) == 0 {
		return invalid("no vehicles")
	}
	ids := lo.Map(c.Vehicles, func(v VehicleConfig, _ int) string { return v.ID })
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return invalid("duplicate vehicle ids %v", dup)
	}
	if lo.Contains(ids, "") {
		return invalid("vehicle without id")
	}
	if c.MaxTrials < 0 || c.Retries < 0 {
		return invalid("max_trials and retries must not be negative")
	}
	if c.StepsPerSecond < 0 || c.SpawnSettleTicks < 0 {
		return invalid("steps_per_second and spawn_settle_ticks must not be negative")
	}
	if _, err := c.SpaceStrategy(); err != nil {
		return err
	}

	s := c.Sequencer
	if s.SampleRateHz <= 0 {
		return invalid("sample_rate_hz must be positive")
	}
	if s.DamageTolerance < 1 {
		return invalid("damage_tolerance %g below 1", s.DamageTolerance)
	}
	if s.SettleDelay < 0 || s.StopSpeed < 0 || s.MaxDriveTime < 0 || s.MaxTicks < 0 {
		return invalid("sequencer limits must not be negative")
	}

	if len(c.Categories) == 0 {
		return invalid("no categories enabled")
	}
	geom, err := c.ResolveGeometry()
	if err != nil {
		return err
	}
	for _, name := range c.Categories {
		spec, ok := c.Spaces[name]
		if !ok {
			return invalid("category %q has no space", name)
		}
		if spec.MaxSpeed <= 0 {
			return invalid("category %q: max_speed must be positive", name)
		}
		if spec.Driven < 0 {
			return invalid("category %q: driven must not be negative", name)
		}
		if spec.Driven < 1 && !spec.Autopilot {
			return invalid("category %q: nothing drives the lead vehicle", name)
		}
		layout, ok := geom.Layout(name)
		if !ok {
			return invalid("level %q has no layout for %q", geom.Level, name)
		}
		if len(layout.Poses) > len(c.Vehicles) {
			return invalid("category %q needs %d vehicles, have %d", name, len(layout.Poses), len(c.Vehicles))
		}
		if spec.Autopilot && len(layout.Poses) < 2 {
			return invalid("category %q: autopilot needs a target vehicle", name)
		}
	}
	return nil
}
