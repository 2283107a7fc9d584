package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

// ErrInvalidConfig is wrapped by every Config validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// ContactMode selects how infections produced during one contact pass become
// visible to the rest of that pass.
type ContactMode string

const (
	// ContactSequential mutates the live population in iteration order, so an
	// agent infected early in the pass already infects agents checked later.
	ContactSequential ContactMode = "sequential"
	// ContactSimultaneous evaluates every susceptible agent against the
	// infected set frozen at pass start and applies all outcomes afterwards.
	ContactSimultaneous ContactMode = "simultaneous"
)

// ZoneConfig describes one quarantine zone.
type ZoneConfig struct {
	Name     string `yaml:"name"`
	Bounds   Rect   `yaml:"bounds"`
	Capacity int    `yaml:"capacity"`
}

// MovementConfig tunes agent motion.
type MovementConfig struct {
	Speed                 float64 `yaml:"speed"`
	SpawnMargin           float64 `yaml:"spawn_margin"`
	FlockRadius           float64 `yaml:"flock_radius"`
	FlockProb             float64 `yaml:"flock_prob"`
	WanderProb            float64 `yaml:"wander_prob"`
	QuarantineSpeedFactor float64 `yaml:"quarantine_speed_factor"`
	QuarantineJitter      float64 `yaml:"quarantine_jitter"`
	QuarantineWanderProb  float64 `yaml:"quarantine_wander_prob"`
	ArrivalDistance       float64 `yaml:"arrival_distance"`
}

// Config holds every constant of the epidemic model. DefaultConfig returns
// the reference values; LoadConfig overlays a YAML file on top of them.
type Config struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`

	Population      int `yaml:"population"`
	InitialInfected int `yaml:"initial_infected"`

	InfectionRadius   float64 `yaml:"infection_radius"`
	BaseInfectionProb float64 `yaml:"base_infection_prob"`
	// ContactGrowth is the per-tick increase of infection odds during
	// uninterrupted contact.
	ContactGrowth float64 `yaml:"contact_growth"`

	RecoveryTime    int     `yaml:"recovery_time"`
	RecoveryProb    float64 `yaml:"recovery_prob"`
	MaxRecoveryProb float64 `yaml:"max_recovery_prob"`

	VaccinationRate    float64 `yaml:"vaccination_rate"`
	VaccinationSuccess float64 `yaml:"vaccination_success"`

	Movement MovementConfig `yaml:"movement"`

	Zones         []ZoneConfig `yaml:"zones"`
	ZoneMargin    float64      `yaml:"zone_margin"`
	ReleaseOnExit bool         `yaml:"release_on_exit"`

	StatsStride   int `yaml:"stats_stride"`
	HistoryLength int `yaml:"history_length"`

	ContactMode    ContactMode `yaml:"contact_mode"`
	ContactWorkers int         `yaml:"contact_workers"`

	// Seed fixes the random source; 0 picks a time-based seed.
	Seed uint64 `yaml:"seed"`

	Multipliers model.Multipliers `yaml:"multipliers"`
	Scenarios   []model.Scenario  `yaml:"scenarios"`
}

// DefaultConfig returns the reference configuration: 200 agents on a
// 1200x450 canvas with one 50-bed quarantine zone.
func DefaultConfig() Config {
	return Config{
		Width:  1200,
		Height: 450,

		Population:      200,
		InitialInfected: 5,

		InfectionRadius:   15,
		BaseInfectionProb: 0.02,
		ContactGrowth:     0.01,

		RecoveryTime:    300,
		RecoveryProb:    0.7,
		MaxRecoveryProb: 0.99,

		VaccinationRate:    0.3,
		VaccinationSuccess: 0.9,

		Movement: MovementConfig{
			Speed:                 2,
			SpawnMargin:           50,
			FlockRadius:           50,
			FlockProb:             0.01,
			WanderProb:            0.02,
			QuarantineSpeedFactor: 0.5,
			QuarantineJitter:      0.3,
			QuarantineWanderProb:  0.05,
			ArrivalDistance:       2,
		},
		Zones: []ZoneConfig{
			{Name: "quarantine", Bounds: Rect{X: 950, Y: 50, Width: 200, Height: 200}, Capacity: 50},
		},
		ZoneMargin:     10,
		StatsStride:    5,
		HistoryLength:  500,
		ContactMode:    ContactSequential,
		ContactWorkers: 1,
		Multipliers:    model.DefaultMultipliers(),
	}
}

// LoadConfig reads a YAML file over DefaultConfig. An empty path returns the
// defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	// Re-read scenarios so omitted multipliers get their defaults.
	scenarios, err := LoadScenarios(bytes.NewReader(data))
	if err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.Scenarios = scenarios
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: canvas %vx%v must be positive", ErrInvalidConfig, c.Width, c.Height)
	case c.Population < 0:
		return fmt.Errorf("%w: population %d is negative", ErrInvalidConfig, c.Population)
	case c.InitialInfected < 0 || c.InitialInfected > c.Population:
		return fmt.Errorf("%w: initial_infected %d outside [0,%d]", ErrInvalidConfig, c.InitialInfected, c.Population)
	case c.InfectionRadius < 0:
		return fmt.Errorf("%w: infection_radius %v is negative", ErrInvalidConfig, c.InfectionRadius)
	case c.RecoveryTime < 1:
		return fmt.Errorf("%w: recovery_time %d must be at least 1", ErrInvalidConfig, c.RecoveryTime)
	case c.StatsStride < 1:
		return fmt.Errorf("%w: stats_stride %d must be at least 1", ErrInvalidConfig, c.StatsStride)
	case c.HistoryLength < 1:
		return fmt.Errorf("%w: history_length %d must be at least 1", ErrInvalidConfig, c.HistoryLength)
	case c.ContactWorkers < 0:
		return fmt.Errorf("%w: contact_workers %d is negative", ErrInvalidConfig, c.ContactWorkers)
	}

	for name, p := range map[string]float64{
		"base_infection_prob": c.BaseInfectionProb,
		"recovery_prob":       c.RecoveryProb,
		"max_recovery_prob":   c.MaxRecoveryProb,
		"vaccination_rate":    c.VaccinationRate,
		"vaccination_success": c.VaccinationSuccess,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalidConfig, name, p)
		}
	}

	switch c.ContactMode {
	case ContactSequential, ContactSimultaneous:
	default:
		return fmt.Errorf("%w: unknown contact_mode %q", ErrInvalidConfig, c.ContactMode)
	}

	for i, z := range c.Zones {
		if z.Capacity < 0 {
			return fmt.Errorf("%w: zone %d (%s) capacity %d is negative", ErrInvalidConfig, i, z.Name, z.Capacity)
		}
		if z.Bounds.Width < 0 || z.Bounds.Height < 0 {
			return fmt.Errorf("%w: zone %d (%s) has negative size", ErrInvalidConfig, i, z.Name)
		}
	}
	for _, s := range c.Scenarios {
		if s.Name == "" {
			return fmt.Errorf("%w: scenario without name", ErrInvalidConfig)
		}
	}
	return nil
}

// canvas returns the simulation bounds as a Rect.
func (c Config) canvas() Rect {
	return Rect{Width: c.Width, Height: c.Height}
}

// spawnArea is the region fresh agents are scattered over.
func (c Config) spawnArea() Rect {
	return c.canvas().Inset(c.Movement.SpawnMargin)
}
