package model

// EventType classifies agent lifecycle events.
type EventType int

const (
	EventAgentCreated EventType = iota
	EventAgentInfected
	EventAgentRecovered
	EventAgentVaccinated
	EventAgentDied
)

func (t EventType) String() string {
	switch t {
	case EventAgentCreated:
		return "created"
	case EventAgentInfected:
		return "infected"
	case EventAgentRecovered:
		return "recovered"
	case EventAgentVaccinated:
		return "vaccinated"
	case EventAgentDied:
		return "died"
	default:
		return "unknown"
	}
}

// AgentRecord is the lifetime summary of one agent within a run.
type AgentRecord struct {
	ID         AgentID
	State      HealthState
	CreatedAt  int
	InfectedAt int // -1 when never infected
	Removed    bool
	RemovedAt  int
}

// Alive reports whether the agent is still part of the population.
func (r AgentRecord) Alive() bool { return !r.Removed }
