package core

import "github.com/signalsfoundry/epidemic-simulator/model"

// Sample is the result of one statistics sampling instant.
type Sample struct {
	Counts        model.StateCounts
	NewInfections int
	NewRecoveries int
	InfectionRate float64 // % of the population newly infected since the last sample
	RecoveryRate  float64 // % of the infected newly recovered since the last sample
}

// Statistics aggregates bounded time series from population counts. It is a
// read-only view of the simulation and never feeds back into it.
type Statistics struct {
	Susceptible   *Series[int]
	Infected      *Series[int]
	Recovered     *Series[int]
	Immune        *Series[int]
	InfectionRate *Series[float64]
	RecoveryRate  *Series[float64]

	totalInfections int
	totalRecoveries int
	deaths          int

	prevInfected  int
	prevRecovered int
}

// NewStatistics returns empty statistics keeping maxHistory samples per series.
func NewStatistics(maxHistory int) *Statistics {
	return &Statistics{
		Susceptible:   NewSeries[int](maxHistory),
		Infected:      NewSeries[int](maxHistory),
		Recovered:     NewSeries[int](maxHistory),
		Immune:        NewSeries[int](maxHistory),
		InfectionRate: NewSeries[float64](maxHistory),
		RecoveryRate:  NewSeries[float64](maxHistory),
	}
}

// Sample records the population counts of one sampling instant.
//
// New infections are derived as the growth of the infected compartment plus
// the shrinkage of the recovered one, new recoveries as the growth of the
// recovered compartment; both are clamped at zero. Rates divide by the
// population and by the infected count respectively, never by zero.
func (s *Statistics) Sample(counts model.StateCounts) Sample {
	s.Susceptible.Push(counts.Susceptible)
	s.Infected.Push(counts.Infected)
	s.Recovered.Push(counts.Recovered)
	s.Immune.Push(counts.Immune)

	newInfections := max(0, counts.Infected-s.prevInfected+(s.prevRecovered-counts.Recovered))
	newRecoveries := max(0, counts.Recovered-s.prevRecovered)

	infectionRate := float64(newInfections) / float64(max(1, counts.Total())) * 100
	recoveryRate := 0.0
	if counts.Infected > 0 {
		recoveryRate = float64(newRecoveries) / float64(counts.Infected) * 100
	}

	s.InfectionRate.Push(infectionRate)
	s.RecoveryRate.Push(recoveryRate)

	s.prevInfected = counts.Infected
	s.prevRecovered = counts.Recovered

	if newInfections > 0 {
		s.totalInfections += newInfections
	}
	if newRecoveries > 0 {
		s.totalRecoveries += newRecoveries
	}

	return Sample{
		Counts:        counts,
		NewInfections: newInfections,
		NewRecoveries: newRecoveries,
		InfectionRate: infectionRate,
		RecoveryRate:  recoveryRate,
	}
}

// RecordDeaths adds n deaths to the death counter. Negative n is ignored.
func (s *Statistics) RecordDeaths(n int) {
	if n > 0 {
		s.deaths += n
	}
}

// TotalInfections is the cumulative number of infections observed at samples.
func (s *Statistics) TotalInfections() int { return s.totalInfections }

// TotalRecoveries is the cumulative number of recoveries observed at samples.
func (s *Statistics) TotalRecoveries() int { return s.totalRecoveries }

// Deaths is the cumulative number of agents removed by the disease.
func (s *Statistics) Deaths() int { return s.deaths }

// CountStates tallies the health states of pop.
func CountStates(pop []*Agent) model.StateCounts {
	var c model.StateCounts
	for _, a := range pop {
		c.Add(a.State)
	}
	return c
}
