package model

import "fmt"

// AgentID is a stable per-agent handle. Engines allocate IDs monotonically
// and never reuse one, so a contact entry can never alias a different agent.
type AgentID uint64

// HealthState is the compartment an agent currently occupies.
type HealthState int

const (
	Susceptible HealthState = iota
	Infected
	Recovered
	Immune // vaccinated
)

// AllHealthStates lists every state in display order.
var AllHealthStates = []HealthState{Susceptible, Infected, Recovered, Immune}

func (s HealthState) String() string {
	switch s {
	case Susceptible:
		return "susceptible"
	case Infected:
		return "infected"
	case Recovered:
		return "recovered"
	case Immune:
		return "immune"
	default:
		return fmt.Sprintf("HealthState(%d)", int(s))
	}
}

// Valid reports whether s is one of the four known states.
func (s HealthState) Valid() bool {
	return s >= Susceptible && s <= Immune
}

// Terminal reports whether s is absorbing.
func (s HealthState) Terminal() bool {
	return s == Recovered || s == Immune
}

// MarshalText encodes the state as its lower-case name.
func (s HealthState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid health state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *HealthState) UnmarshalText(text []byte) error {
	parsed, err := ParseHealthState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseHealthState converts a state name into a HealthState.
func ParseHealthState(name string) (HealthState, error) {
	for _, s := range AllHealthStates {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown health state %q", name)
}

// CanTransition reports whether an agent may move from one state to another.
// Susceptible agents may become Infected or Immune, Infected agents may
// become Recovered; everything else is illegal.
func CanTransition(from, to HealthState) bool {
	switch from {
	case Susceptible:
		return to == Infected || to == Immune
	case Infected:
		return to == Recovered
	case Recovered, Immune:
		return false
	default:
		return false
	}
}

// CanDie reports whether an agent in state s may be removed from the
// population. Only infection kills.
func CanDie(s HealthState) bool {
	return s == Infected
}

// StateCounts is a per-compartment head count.
type StateCounts struct {
	Susceptible int `json:"susceptible" yaml:"susceptible"`
	Infected    int `json:"infected" yaml:"infected"`
	Recovered   int `json:"recovered" yaml:"recovered"`
	Immune      int `json:"immune" yaml:"immune"`
}

// Add increments the counter for s.
func (c *StateCounts) Add(s HealthState) {
	switch s {
	case Susceptible:
		c.Susceptible++
	case Infected:
		c.Infected++
	case Recovered:
		c.Recovered++
	case Immune:
		c.Immune++
	}
}

// Get returns the counter for s.
func (c StateCounts) Get(s HealthState) int {
	switch s {
	case Susceptible:
		return c.Susceptible
	case Infected:
		return c.Infected
	case Recovered:
		return c.Recovered
	case Immune:
		return c.Immune
	default:
		return 0
	}
}

// Total is the live population size.
func (c StateCounts) Total() int {
	return c.Susceptible + c.Infected + c.Recovered + c.Immune
}
