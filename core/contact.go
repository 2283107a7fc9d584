package core

import (
	"context"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

// contact is one entry of an agent's contact map.
type contact struct {
	duration int
	// pass is the tracker pass that last saw the pair in range.
	pass uint64
}

// ContactTracker runs the all-pairs proximity check that turns contact with
// infected agents into new infections.
type ContactTracker struct {
	Radius   float64
	BaseProb float64
	// Growth is added to the infection odds for every tick of uninterrupted
	// contact: p = BaseProb * multiplier * (1 + duration*Growth).
	Growth  float64
	Mode    ContactMode
	Workers int

	pass uint64
}

// NewContactTracker builds a tracker from the engine configuration.
func NewContactTracker(cfg Config) *ContactTracker {
	return &ContactTracker{
		Radius:   cfg.InfectionRadius,
		BaseProb: cfg.BaseInfectionProb,
		Growth:   cfg.ContactGrowth,
		Mode:     cfg.ContactMode,
		Workers:  cfg.ContactWorkers,
	}
}

// Run checks every susceptible agent in pop against every infected agent and
// returns the agents infected by this pass, in population order. It must run
// after all agents have moved for the tick. multiplier scales BaseProb.
//
// In ContactSequential mode the population is mutated in place while it is
// iterated: an agent infected early in the pass is already a source for the
// agents checked after it. ContactSimultaneous freezes the set of sources at
// pass start, so agents infected during the pass only spread from the next
// tick on; that mode may shard the work over Workers goroutines.
func (t *ContactTracker) Run(ctx context.Context, pop []*Agent, multiplier float64, rng *rand.Rand) ([]*Agent, error) {
	t.pass++
	if t.Mode == ContactSimultaneous {
		return t.runSimultaneous(ctx, pop, multiplier, rng)
	}
	return t.runSequential(pop, multiplier, rng), nil
}

func (t *ContactTracker) runSequential(pop []*Agent, multiplier float64, rng *rand.Rand) []*Agent {
	var infected []*Agent
	for _, a := range pop {
		if a.State != model.Susceptible {
			continue
		}
		if t.expose(a, pop, multiplier, rng) {
			a.infect()
			infected = append(infected, a)
		}
	}
	return infected
}

func (t *ContactTracker) runSimultaneous(ctx context.Context, pop []*Agent, multiplier float64, rng *rand.Rand) ([]*Agent, error) {
	var sources, targets []*Agent
	for _, a := range pop {
		switch a.State {
		case model.Infected:
			sources = append(sources, a)
		case model.Susceptible:
			targets = append(targets, a)
		case model.Recovered, model.Immune:
		}
	}

	hit := make([]bool, len(targets))
	workers := min(max(t.Workers, 1), len(targets))

	if workers <= 1 {
		for i, a := range targets {
			hit[i] = t.expose(a, sources, multiplier, rng)
		}
	} else {
		// Each shard owns a disjoint slice of targets, so it is the only
		// writer of those agents' contact maps. Sources are read-only until
		// the apply phase below.
		g, gctx := errgroup.WithContext(ctx)
		chunk := (len(targets) + workers - 1) / workers
		for lo := 0; lo < len(targets); lo += chunk {
			hi := min(lo+chunk, len(targets))
			shardRng := rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
			g.Go(func() error {
				for i := lo; i < hi; i++ {
					if err := gctx.Err(); err != nil {
						return err
					}
					hit[i] = t.expose(targets[i], sources, multiplier, shardRng)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var infected []*Agent
	for i, a := range targets {
		if hit[i] {
			a.infect()
			infected = append(infected, a)
		}
	}
	return infected, nil
}

// expose evaluates one susceptible agent against sources and reports whether
// it caught the infection. Evaluation stops at the first successful draw.
func (t *ContactTracker) expose(a *Agent, sources []*Agent, multiplier float64, rng *rand.Rand) bool {
	inRange := 0
	for _, other := range sources {
		if other.ID == a.ID || other.State != model.Infected {
			continue
		}
		if a.Position.DistanceTo(other.Position) >= t.Radius {
			// Contact must be contiguous to accumulate.
			delete(a.contacts, other.ID)
			continue
		}

		c := a.contacts[other.ID]
		c.duration++
		c.pass = t.pass
		a.contacts[other.ID] = c
		inRange++

		p := t.BaseProb * multiplier * (1 + float64(c.duration)*t.Growth)
		if rng.Float64() < p {
			return true
		}
	}

	// Partners that recovered or died were never visited above.
	if len(a.contacts) > inRange {
		for id, c := range a.contacts {
			if c.pass != t.pass {
				delete(a.contacts, id)
			}
		}
	}
	return false
}
