package core

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

// ErrUnknownScenario indicates a scenario name or alias that is not in the catalog.
var ErrUnknownScenario = errors.New("unknown scenario")

// BuiltinScenarios returns the presets every engine knows about.
func BuiltinScenarios() []model.Scenario {
	return []model.Scenario{
		{
			Name:        "baseline",
			Alias:       "0",
			Description: "Reference parameters with quarantine enabled",
			Multipliers: model.DefaultMultipliers(),
		},
		{
			Name:        "extinction",
			Alias:       "1",
			Description: "High infection, low recovery (extinction risk)",
			Multipliers: model.Multipliers{Infection: 2.0, Recovery: 0.5, Vaccination: 0.0, Quarantine: false},
		},
		{
			Name:        "survival",
			Alias:       "2",
			Description: "Managed outbreak (survival)",
			Multipliers: model.Multipliers{Infection: 0.8, Recovery: 1.5, Vaccination: 1.5, Quarantine: true},
		},
	}
}

// ScenarioCatalog resolves scenario names and aliases.
type ScenarioCatalog struct {
	scenarios []model.Scenario
}

// NewScenarioCatalog returns the built-in scenarios followed by extra. An
// extra scenario with the name of an existing one replaces it in place.
func NewScenarioCatalog(extra ...model.Scenario) *ScenarioCatalog {
	c := &ScenarioCatalog{scenarios: BuiltinScenarios()}
	for _, s := range extra {
		c.put(s)
	}
	return c
}

func (c *ScenarioCatalog) put(s model.Scenario) {
	for i, existing := range c.scenarios {
		if strings.EqualFold(existing.Name, s.Name) {
			c.scenarios[i] = s
			return
		}
	}
	c.scenarios = append(c.scenarios, s)
}

// Lookup finds a scenario by case-insensitive name or by alias.
func (c *ScenarioCatalog) Lookup(key string) (model.Scenario, error) {
	key = strings.TrimSpace(key)
	for _, s := range c.scenarios {
		if strings.EqualFold(s.Name, key) || (s.Alias != "" && s.Alias == key) {
			return s, nil
		}
	}
	return model.Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, key)
}

// List returns a copy of all scenarios in catalog order.
func (c *ScenarioCatalog) List() []model.Scenario {
	return append([]model.Scenario(nil), c.scenarios...)
}

// LoadScenarios reads a YAML document with a top-level `scenarios` list.
// Multipliers omitted from an entry default to 1.0, and quarantine to on.
func LoadScenarios(r io.Reader) ([]model.Scenario, error) {
	var raw struct {
		Scenarios []yaml.Node `yaml:"scenarios"`
	}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("LoadScenarios: decode failed: %w", err)
	}

	out := make([]model.Scenario, 0, len(raw.Scenarios))
	for i := range raw.Scenarios {
		s := model.Scenario{Multipliers: model.DefaultMultipliers()}
		if err := raw.Scenarios[i].Decode(&s); err != nil {
			return nil, fmt.Errorf("LoadScenarios: entry %d: %w", i, err)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("LoadScenarios: entry %d has no name", i)
		}
		out = append(out, s)
	}
	return out, nil
}
