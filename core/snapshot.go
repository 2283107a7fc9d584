package core

import "github.com/signalsfoundry/epidemic-simulator/model"

// AgentSnapshot is the renderable view of one agent.
type AgentSnapshot struct {
	ID          model.AgentID     `json:"id"`
	X           float64           `json:"x"`
	Y           float64           `json:"y"`
	State       model.HealthState `json:"state"`
	Quarantined bool              `json:"quarantined,omitempty"`
}

// ZoneSnapshot reports a quarantine zone and its occupancy.
type ZoneSnapshot struct {
	Name     string `json:"name"`
	Bounds   Rect   `json:"bounds"`
	Occupied int    `json:"occupied"`
	Capacity int    `json:"capacity"`
}

// StatisticsSnapshot copies the statistics series, oldest sample first.
type StatisticsSnapshot struct {
	Susceptible   []int     `json:"susceptible"`
	Infected      []int     `json:"infected"`
	Recovered     []int     `json:"recovered"`
	Immune        []int     `json:"immune"`
	InfectionRate []float64 `json:"infection_rate"`
	RecoveryRate  []float64 `json:"recovery_rate"`

	TotalInfections int `json:"total_infections"`
	TotalRecoveries int `json:"total_recoveries"`
	Deaths          int `json:"deaths"`
}

// Snapshot is a consistent, detached copy of the engine state.
type Snapshot struct {
	RunID       string             `json:"run_id"`
	Tick        int                `json:"tick"`
	Paused      bool               `json:"paused"`
	Multipliers model.Multipliers  `json:"multipliers"`
	Counts      model.StateCounts  `json:"counts"`
	Agents      []AgentSnapshot    `json:"agents"`
	Zones       []ZoneSnapshot     `json:"zones"`
	Statistics  StatisticsSnapshot `json:"statistics"`
}

// Snapshot copies the current state for rendering or serialisation.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	agents := make([]AgentSnapshot, len(e.agents))
	for i, a := range e.agents {
		agents[i] = AgentSnapshot{
			ID:          a.ID,
			X:           a.Position.X,
			Y:           a.Position.Y,
			State:       a.State,
			Quarantined: a.Quarantined,
		}
	}
	return Snapshot{
		RunID:       e.runID,
		Tick:        e.tick,
		Paused:      e.paused,
		Multipliers: e.mult,
		Counts:      CountStates(e.agents),
		Agents:      agents,
		Zones:       e.zoneSnapshotsLocked(),
		Statistics:  e.statisticsLocked(),
	}
}

// Statistics copies the statistics series without the agent list.
func (e *Engine) Statistics() StatisticsSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.statisticsLocked()
}

// Counts tallies the live population by health state.
func (e *Engine) Counts() model.StateCounts {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return CountStates(e.agents)
}

// Multipliers returns the current tunable parameters.
func (e *Engine) Multipliers() model.Multipliers {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mult
}

// Paused reports whether Tick is currently a no-op.
func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}

func (e *Engine) statisticsLocked() StatisticsSnapshot {
	s := e.stats
	return StatisticsSnapshot{
		Susceptible:     s.Susceptible.Values(),
		Infected:        s.Infected.Values(),
		Recovered:       s.Recovered.Values(),
		Immune:          s.Immune.Values(),
		InfectionRate:   s.InfectionRate.Values(),
		RecoveryRate:    s.RecoveryRate.Values(),
		TotalInfections: s.TotalInfections(),
		TotalRecoveries: s.TotalRecoveries(),
		Deaths:          s.Deaths(),
	}
}

func (e *Engine) zoneSnapshotsLocked() []ZoneSnapshot {
	out := make([]ZoneSnapshot, len(e.zones))
	for i, z := range e.zones {
		out[i] = ZoneSnapshot{
			Name:     z.Name,
			Bounds:   z.Bounds,
			Occupied: z.Occupied(),
			Capacity: z.Capacity,
		}
	}
	return out
}
