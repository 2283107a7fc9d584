package core

import (
	"math/rand/v2"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

// Outcome is the result of advancing one agent by one tick.
type Outcome int

const (
	OutcomeSurvived Outcome = iota
	OutcomeRecovered
	OutcomeDied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSurvived:
		return "survived"
	case OutcomeRecovered:
		return "recovered"
	case OutcomeDied:
		return "died"
	default:
		return "unknown"
	}
}

// Agent is one mobile member of the population.
type Agent struct {
	ID       model.AgentID
	Position Vec2
	Velocity Vec2
	Speed    float64
	State    model.HealthState
	// InfectionAge counts ticks spent Infected; meaningless in other states.
	InfectionAge int

	Quarantined      bool
	QuarantineTarget Vec2

	// zone is the index of the zone holding this agent's slot, or -1.
	zone int

	// contacts maps an infected neighbour to the number of consecutive
	// ticks it has been within the infection radius. Entries are removed as
	// soon as the pair separates.
	contacts map[model.AgentID]contact
}

// NewAgent places an agent at pos with a random heading.
func NewAgent(id model.AgentID, state model.HealthState, pos Vec2, speed float64, rng *rand.Rand) *Agent {
	return &Agent{
		ID:       id,
		Position: pos,
		Velocity: randomHeading(rng),
		Speed:    speed,
		State:    state,
		zone:     -1,
		contacts: make(map[model.AgentID]contact),
	}
}

// ContactDuration returns the current uninterrupted contact count with other.
func (a *Agent) ContactDuration(other model.AgentID) (int, bool) {
	c, ok := a.contacts[other]
	return c.duration, ok
}

// ContactCount returns the number of neighbours currently tracked.
func (a *Agent) ContactCount() int {
	return len(a.contacts)
}

// StepEnv carries everything an agent needs for one tick. The effective
// recovery probability is computed once per tick by the engine and passed
// here rather than being stored anywhere shared.
type StepEnv struct {
	// Population is the agent list as it was at the start of the tick. It is
	// only read, for flocking.
	Population []*Agent
	Zones      []*QuarantineZone
	Quarantine bool

	RecoveryTime  int
	RecoveryProb  float64
	ReleaseOnExit bool

	Canvas   Rect
	Movement MovementConfig
	Rand     *rand.Rand
}

// Step advances the agent by one tick: disease progression, quarantine
// admission, movement and boundary handling, in that order. A died outcome
// means the agent must be dropped from the population; nothing else about
// the agent is updated in that case.
func (a *Agent) Step(env *StepEnv) Outcome {
	outcome := OutcomeSurvived

	switch a.State {
	case model.Infected:
		a.InfectionAge++
		if a.InfectionAge >= env.RecoveryTime {
			if env.Rand.Float64() < env.RecoveryProb {
				a.recover(env)
				outcome = OutcomeRecovered
			} else {
				a.leaveZone(env)
				return OutcomeDied
			}
		}
	case model.Susceptible, model.Recovered, model.Immune:
		// no progression
	}

	if env.Quarantine && a.State == model.Infected && !a.Quarantined {
		a.enterQuarantine(env)
	}

	motionFor(a).Move(a, env)
	return outcome
}

func (a *Agent) infect() {
	a.State = model.Infected
	a.InfectionAge = 0
	clear(a.contacts)
}

func (a *Agent) recover(env *StepEnv) {
	a.State = model.Recovered
	a.Quarantined = false
	a.leaveZone(env)
}

// enterQuarantine joins the first zone, in configuration order, with a free slot.
func (a *Agent) enterQuarantine(env *StepEnv) {
	for i, z := range env.Zones {
		target, ok := z.Admit(env.Rand)
		if !ok {
			continue
		}
		a.Quarantined = true
		a.QuarantineTarget = target
		a.zone = i
		return
	}
}

// leaveZone forgets the agent's zone, returning the slot only when the
// engine runs with ReleaseOnExit.
func (a *Agent) leaveZone(env *StepEnv) {
	if a.zone < 0 {
		return
	}
	if env.ReleaseOnExit && a.zone < len(env.Zones) {
		env.Zones[a.zone].Release()
	}
	a.zone = -1
}
