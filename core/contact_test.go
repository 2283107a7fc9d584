package core

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

func newTestRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func agentAt(id model.AgentID, state model.HealthState, x, y float64) *Agent {
	return NewAgent(id, state, Vec2{X: x, Y: y}, 0, newTestRand())
}

func tracker(mode ContactMode, prob float64) *ContactTracker {
	return &ContactTracker{Radius: 15, BaseProb: prob, Growth: 0.01, Mode: mode, Workers: 1}
}

func TestContactDurationGrowsWhileInRange(t *testing.T) {
	rng := newTestRand()
	src := agentAt(1, model.Infected, 100, 100)
	dst := agentAt(2, model.Susceptible, 110, 100)
	pop := []*Agent{src, dst}
	tr := tracker(ContactSequential, 0)

	for want := 1; want <= 3; want++ {
		if _, err := tr.Run(context.Background(), pop, 1, rng); err != nil {
			t.Fatalf("Run: %v", err)
		}
		got, ok := dst.ContactDuration(src.ID)
		if !ok || got != want {
			t.Fatalf("pass %d: duration = %d, %v; want %d", want, got, ok, want)
		}
	}

	// Separation resets the streak.
	dst.Position = Vec2{X: 200, Y: 100}
	if _, err := tr.Run(context.Background(), pop, 1, rng); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := dst.ContactDuration(src.ID); ok {
		t.Fatal("contact should be forgotten once out of range")
	}
}

func TestContactOnlyForInRangeInfectedPairs(t *testing.T) {
	rng := newTestRand()
	near := agentAt(1, model.Infected, 100, 100)
	far := agentAt(2, model.Infected, 100, 116)
	immune := agentAt(3, model.Immune, 101, 100)
	dst := agentAt(4, model.Susceptible, 100, 101)
	pop := []*Agent{near, far, immune, dst}

	if _, err := tracker(ContactSequential, 0).Run(context.Background(), pop, 1, rng); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if dst.ContactCount() != 1 {
		t.Fatalf("ContactCount = %d, want 1", dst.ContactCount())
	}
	if _, ok := dst.ContactDuration(near.ID); !ok {
		t.Fatal("expected contact with the near infected agent")
	}
	if immune.ContactCount() != 0 || near.ContactCount() != 0 {
		t.Fatal("only susceptible agents track contacts")
	}
}

func TestRadiusIsExclusive(t *testing.T) {
	src := agentAt(1, model.Infected, 0, 0)
	dst := agentAt(2, model.Susceptible, 15, 0)
	if _, err := tracker(ContactSequential, 1).Run(context.Background(), []*Agent{src, dst}, 1, newTestRand()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if dst.State != model.Susceptible {
		t.Fatal("an agent exactly at the radius is out of range")
	}
}

func TestStaleContactsArePruned(t *testing.T) {
	rng := newTestRand()
	src := agentAt(1, model.Infected, 100, 100)
	dst := agentAt(2, model.Susceptible, 105, 100)
	pop := []*Agent{src, dst}
	tr := tracker(ContactSequential, 0)

	if _, err := tr.Run(context.Background(), pop, 1, rng); err != nil {
		t.Fatalf("Run: %v", err)
	}
	src.State = model.Recovered
	if _, err := tr.Run(context.Background(), pop, 1, rng); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if dst.ContactCount() != 0 {
		t.Fatalf("contact with a recovered partner should be pruned, have %d", dst.ContactCount())
	}
}

func TestInfectionClearsContacts(t *testing.T) {
	src := agentAt(1, model.Infected, 100, 100)
	dst := agentAt(2, model.Susceptible, 105, 100)
	infected, err := tracker(ContactSequential, 1).Run(context.Background(), []*Agent{src, dst}, 1, newTestRand())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(infected) != 1 || infected[0] != dst {
		t.Fatalf("infected = %v, want [dst]", infected)
	}
	if dst.State != model.Infected || dst.InfectionAge != 0 || dst.ContactCount() != 0 {
		t.Fatalf("dst = %+v, want freshly infected", dst)
	}
}

func TestZeroMultiplierNeverInfects(t *testing.T) {
	src := agentAt(1, model.Infected, 100, 100)
	dst := agentAt(2, model.Susceptible, 105, 100)
	tr := tracker(ContactSequential, 1)
	for i := 0; i < 50; i++ {
		if _, err := tr.Run(context.Background(), []*Agent{src, dst}, 0, newTestRand()); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if dst.State != model.Susceptible {
		t.Fatal("multiplier 0 must block transmission")
	}
}

// chain places infected A, then B and C 10 apart on a line, in order C, B, A
// so that B is checked before C.
func chain() (a, b, c *Agent, pop []*Agent) {
	a = agentAt(1, model.Infected, 100, 100)
	b = agentAt(2, model.Susceptible, 110, 100)
	c = agentAt(3, model.Susceptible, 120, 100)
	return a, b, c, []*Agent{b, c, a}
}

func TestSequentialInfectionsSpreadWithinPass(t *testing.T) {
	_, b, c, pop := chain()
	infected, err := tracker(ContactSequential, 1).Run(context.Background(), pop, 1, newTestRand())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(infected) != 2 || b.State != model.Infected || c.State != model.Infected {
		t.Fatalf("sequential pass should infect B and then C, got %d infections", len(infected))
	}
}

func TestSimultaneousInfectionsWaitForNextPass(t *testing.T) {
	for _, workers := range []int{1, 4} {
		_, b, c, pop := chain()
		tr := tracker(ContactSimultaneous, 1)
		tr.Workers = workers

		infected, err := tr.Run(context.Background(), pop, 1, newTestRand())
		if err != nil {
			t.Fatalf("workers=%d: Run: %v", workers, err)
		}
		if len(infected) != 1 || b.State != model.Infected || c.State != model.Susceptible {
			t.Fatalf("workers=%d: simultaneous pass should only infect B", workers)
		}

		if _, err := tr.Run(context.Background(), pop, 1, newTestRand()); err != nil {
			t.Fatalf("workers=%d: Run: %v", workers, err)
		}
		if c.State != model.Infected {
			t.Fatalf("workers=%d: C should be infected on the next pass", workers)
		}
	}
}

func TestSimultaneousShardingHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var pop []*Agent
	pop = append(pop, agentAt(1, model.Infected, 0, 0))
	for i := 2; i < 40; i++ {
		pop = append(pop, agentAt(model.AgentID(i), model.Susceptible, float64(i), 0))
	}
	tr := tracker(ContactSimultaneous, 1)
	tr.Workers = 4

	if _, err := tr.Run(ctx, pop, 1, newTestRand()); err == nil {
		t.Fatal("expected cancellation error")
	}
	for _, a := range pop[1:] {
		if a.State != model.Susceptible {
			t.Fatal("a canceled pass must not apply infections")
		}
	}
}

func TestVaccinationForgetsContacts(t *testing.T) {
	rng := newTestRand()
	src := agentAt(1, model.Infected, 100, 100)
	dst := agentAt(2, model.Susceptible, 110, 100)
	pop := []*Agent{src, dst}
	tr := tracker(ContactSequential, 0)

	if _, err := tr.Run(context.Background(), pop, 1, rng); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := dst.ContactDuration(src.ID); !ok {
		t.Fatal("expected a contact entry before vaccination")
	}

	if got := SweepVaccination(pop, 1.0, 1.0, rng); len(got) != 1 || got[0] != dst {
		t.Fatalf("SweepVaccination = %v, want only agent 2", got)
	}
	if n := dst.ContactCount(); n != 0 {
		t.Fatalf("immune agent still tracks %d contacts", n)
	}

	src.Position = Vec2{X: 950, Y: 100}
	for i := 0; i < 5; i++ {
		if _, err := tr.Run(context.Background(), pop, 1, rng); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if d, ok := dst.ContactDuration(src.ID); ok {
		t.Fatalf("immune agent reports contact of %d ticks", d)
	}
}
