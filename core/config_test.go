package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 200, cfg.Population)
	require.Equal(t, 5, cfg.InitialInfected)
	require.Equal(t, Rect{X: 50, Y: 50, Width: 1100, Height: 350}, cfg.spawnArea())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero canvas":          func(c *Config) { c.Width = 0 },
		"negative population":  func(c *Config) { c.Population = -1 },
		"too many infected":    func(c *Config) { c.InitialInfected = c.Population + 1 },
		"zero recovery time":   func(c *Config) { c.RecoveryTime = 0 },
		"zero stride":          func(c *Config) { c.StatsStride = 0 },
		"zero history":         func(c *Config) { c.HistoryLength = 0 },
		"probability above 1":  func(c *Config) { c.VaccinationSuccess = 1.5 },
		"negative probability": func(c *Config) { c.BaseInfectionProb = -0.1 },
		"unknown contact mode": func(c *Config) { c.ContactMode = "quantum" },
		"negative capacity":    func(c *Config) { c.Zones[0].Capacity = -1 },
		"negative workers":     func(c *Config) { c.ContactWorkers = -2 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadConfigEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epidemic.yaml")
	doc := `
population: 80
initial_infected: 2
seed: 9
contact_mode: simultaneous
contact_workers: 4
movement:
  speed: 3
zones:
  - name: west
    bounds: {x: 10, y: 10, width: 100, height: 100}
    capacity: 5
multipliers:
  infection: 1.5
  recovery: 1
  vaccination: 0
  quarantine: false
scenarios:
  - name: mild
    multipliers:
      infection: 0.3
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 80, cfg.Population)
	require.Equal(t, 2, cfg.InitialInfected)
	require.Equal(t, uint64(9), cfg.Seed)
	require.Equal(t, ContactSimultaneous, cfg.ContactMode)
	require.InDelta(t, 3.0, cfg.Movement.Speed, 1e-9)
	// Untouched keys keep their defaults.
	require.InDelta(t, 50.0, cfg.Movement.FlockRadius, 1e-9)
	require.Equal(t, 300, cfg.RecoveryTime)

	require.Len(t, cfg.Zones, 1)
	require.Equal(t, "west", cfg.Zones[0].Name)
	require.Equal(t, 5, cfg.Zones[0].Capacity)

	require.InDelta(t, 1.5, cfg.Multipliers.Infection, 1e-9)
	require.False(t, cfg.Multipliers.Quarantine)

	require.Len(t, cfg.Scenarios, 1)
	require.InDelta(t, 0.3, cfg.Scenarios[0].Multipliers.Infection, 1e-9)
	require.InDelta(t, 1.0, cfg.Scenarios[0].Multipliers.Recovery, 1e-9)
	require.True(t, cfg.Scenarios[0].Multipliers.Quarantine)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("population: 3\ninitial_infected: 4\n"), 0o600))
	_, err = LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "configs", "epidemic.yaml"))
	require.NoError(t, err)
	require.Len(t, cfg.Scenarios, 1)
	require.Equal(t, "lockdown", cfg.Scenarios[0].Name)
	require.Equal(t, 1.0, cfg.Scenarios[0].Multipliers.Recovery)
	require.True(t, cfg.Scenarios[0].Multipliers.Quarantine)

	cfg.Scenarios = nil
	require.Equal(t, DefaultConfig(), cfg)
}
