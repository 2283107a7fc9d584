package core

import (
	"math/rand/v2"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

// vaccinate attempts to immunise a. Only susceptible agents are eligible;
// the attempt succeeds with probability success.
func vaccinate(a *Agent, success float64, rng *rand.Rand) bool {
	if a.State != model.Susceptible {
		return false
	}
	if rng.Float64() < success {
		a.State = model.Immune
		clear(a.contacts)
		return true
	}
	return false
}

// InitialVaccination runs the campaign applied when a population is created.
// A single draw against the vaccination multiplier decides whether any
// campaign happens at all (a multiplier of 0 disables it, 1 or more always
// runs it). When it runs, int(population*rate*multiplier) distinct
// susceptible agents are sampled without replacement and each gets one
// vaccination attempt. It returns the agents that became Immune.
func InitialVaccination(pop []*Agent, population int, rate, multiplier, success float64, rng *rand.Rand) []*Agent {
	if rng.Float64() >= multiplier {
		return nil
	}

	want := int(float64(population) * rate * multiplier)
	susceptible := susceptibleOf(pop)
	n := min(want, len(susceptible))
	if n <= 0 {
		return nil
	}

	rng.Shuffle(len(susceptible), func(i, j int) {
		susceptible[i], susceptible[j] = susceptible[j], susceptible[i]
	})

	var immunised []*Agent
	for _, a := range susceptible[:n] {
		if vaccinate(a, success, rng) {
			immunised = append(immunised, a)
		}
	}
	return immunised
}

// SweepVaccination offers vaccination to every currently susceptible agent:
// each is selected with probability coverage and then attempts vaccination.
// It returns the agents that became Immune.
func SweepVaccination(pop []*Agent, coverage, success float64, rng *rand.Rand) []*Agent {
	var immunised []*Agent
	for _, a := range susceptibleOf(pop) {
		if rng.Float64() >= coverage {
			continue
		}
		if vaccinate(a, success, rng) {
			immunised = append(immunised, a)
		}
	}
	return immunised
}

func susceptibleOf(pop []*Agent) []*Agent {
	var out []*Agent
	for _, a := range pop {
		if a.State == model.Susceptible {
			out = append(out, a)
		}
	}
	return out
}
