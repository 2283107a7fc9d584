package model

// Parameter names a tunable probability multiplier.
type Parameter string

const (
	ParamInfection   Parameter = "infection"
	ParamRecovery    Parameter = "recovery"
	ParamVaccination Parameter = "vaccination"
)

// Multipliers scale the base probabilities of the model. They are the only
// knobs external controls may turn between ticks.
type Multipliers struct {
	Infection   float64 `json:"infection" yaml:"infection"`
	Recovery    float64 `json:"recovery" yaml:"recovery"`
	Vaccination float64 `json:"vaccination" yaml:"vaccination"`
	Quarantine  bool    `json:"quarantine" yaml:"quarantine"`
}

// DefaultMultipliers leaves every base probability untouched and enables
// quarantine.
func DefaultMultipliers() Multipliers {
	return Multipliers{Infection: 1.0, Recovery: 1.0, Vaccination: 1.0, Quarantine: true}
}

// Get returns the multiplier for p and whether p is known.
func (m Multipliers) Get(p Parameter) (float64, bool) {
	switch p {
	case ParamInfection:
		return m.Infection, true
	case ParamRecovery:
		return m.Recovery, true
	case ParamVaccination:
		return m.Vaccination, true
	default:
		return 0, false
	}
}

// Set assigns the multiplier for p. It reports false, changing nothing, when
// p is unknown.
func (m *Multipliers) Set(p Parameter, v float64) bool {
	switch p {
	case ParamInfection:
		m.Infection = v
	case ParamRecovery:
		m.Recovery = v
	case ParamVaccination:
		m.Vaccination = v
	default:
		return false
	}
	return true
}

// Scenario is a named preset of multipliers applied through a reset.
type Scenario struct {
	Name        string      `json:"name" yaml:"name"`
	Alias       string      `json:"alias,omitempty" yaml:"alias,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Multipliers Multipliers `json:"multipliers" yaml:"multipliers"`
}
