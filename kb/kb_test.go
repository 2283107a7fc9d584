package kb

import (
	"errors"
	"sync"
	"testing"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

func TestRegisterAndGet(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.Register(1, model.Susceptible, 0); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := store.Register(2, model.Infected, 0); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	got, ok := store.Get(2)
	if !ok {
		t.Fatalf("Get(2) not found")
	}
	if got.State != model.Infected || got.InfectedAt != 0 {
		t.Fatalf("Get(2) = %+v, want infected at tick 0", got)
	}
	if rec, _ := store.Get(1); rec.InfectedAt != -1 {
		t.Fatalf("susceptible agent InfectedAt = %d, want -1", rec.InfectedAt)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.Register(1, model.Susceptible, 0); err != nil {
		t.Fatalf("first Register error: %v", err)
	}
	if err := store.Register(1, model.Susceptible, 0); !errors.Is(err, ErrAgentExists) {
		t.Fatalf("duplicate Register err = %v, want ErrAgentExists", err)
	}
}

func TestTransitionGraph(t *testing.T) {
	cases := []struct {
		name    string
		start   model.HealthState
		to      model.HealthState
		wantErr bool
	}{
		{"susceptible to infected", model.Susceptible, model.Infected, false},
		{"susceptible to immune", model.Susceptible, model.Immune, false},
		{"susceptible to recovered", model.Susceptible, model.Recovered, true},
		{"infected to recovered", model.Infected, model.Recovered, false},
		{"infected to immune", model.Infected, model.Immune, true},
		{"recovered to infected", model.Recovered, model.Infected, true},
		{"immune to infected", model.Immune, model.Infected, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := NewKnowledgeBase()
			if err := store.Register(7, tc.start, 0); err != nil {
				t.Fatalf("Register error: %v", err)
			}
			err := store.Transition(7, tc.to, 3)
			if tc.wantErr {
				if !errors.Is(err, ErrIllegalTransition) {
					t.Fatalf("Transition err = %v, want ErrIllegalTransition", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition error: %v", err)
			}
			if rec, _ := store.Get(7); rec.State != tc.to {
				t.Fatalf("state = %v, want %v", rec.State, tc.to)
			}
		})
	}
}

func TestRemoveOnlyInfected(t *testing.T) {
	store := NewKnowledgeBase()
	_ = store.Register(1, model.Infected, 0)
	_ = store.Register(2, model.Recovered, 0)

	if err := store.Remove(2, 5); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("Remove recovered err = %v, want ErrIllegalTransition", err)
	}
	if err := store.Remove(1, 5); err != nil {
		t.Fatalf("Remove infected error: %v", err)
	}
	if err := store.Transition(1, model.Recovered, 6); !errors.Is(err, ErrAgentRemoved) {
		t.Fatalf("Transition after removal err = %v, want ErrAgentRemoved", err)
	}
	if got := store.Removed(); got != 1 {
		t.Fatalf("Removed() = %d, want 1", got)
	}
	counts := store.Counts()
	if counts.Total() != 1 || counts.Recovered != 1 {
		t.Fatalf("Counts() = %+v, want one recovered survivor", counts)
	}
}

func TestTransitionUnknownAgent(t *testing.T) {
	store := NewKnowledgeBase()
	if err := store.Transition(99, model.Infected, 0); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("err = %v, want ErrAgentNotFound", err)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	store := NewKnowledgeBase()
	_ = store.Register(1, model.Susceptible, 0)

	var got []Event
	unsubscribe := store.Subscribe(func(e Event) {
		got = append(got, e)
	})

	if err := store.Transition(1, model.Infected, 4); err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if err := store.Remove(1, 9); err != nil {
		t.Fatalf("Remove error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Type != model.EventAgentInfected || got[0].From != model.Susceptible || got[0].Tick != 4 {
		t.Fatalf("first event = %+v, want infected from susceptible at tick 4", got[0])
	}
	if got[1].Type != model.EventAgentDied || !got[1].Record.Removed {
		t.Fatalf("second event = %+v, want died", got[1])
	}

	unsubscribe()
	_ = store.Register(2, model.Susceptible, 10)
	if len(got) != 2 {
		t.Fatalf("received event after unsubscribe")
	}
}

func TestResetKeepsSubscribers(t *testing.T) {
	store := NewKnowledgeBase()
	calls := 0
	store.Subscribe(func(Event) { calls++ })

	_ = store.Register(1, model.Susceptible, 0)
	store.Reset()
	if store.Len() != 0 {
		t.Fatalf("Len after Reset = %d, want 0", store.Len())
	}
	_ = store.Register(1, model.Susceptible, 0)
	if calls != 2 {
		t.Fatalf("subscriber calls = %d, want 2", calls)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := NewKnowledgeBase()
	for i := 0; i < 10; i++ {
		_ = store.Register(model.AgentID(i), model.Susceptible, 0)
	}

	var wg sync.WaitGroup
	// Concurrent readers/writers
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.Get(model.AgentID(i))
			_ = store.Counts()
		}()
		go func() {
			defer wg.Done()
			_ = store.Transition(model.AgentID(i), model.Infected, 1)
		}()
	}
	wg.Wait()

	if got := store.Counts().Infected; got != 10 {
		t.Fatalf("infected = %d, want 10", got)
	}
}

func TestAbsorbingStatesRejectChanges(t *testing.T) {
	store := NewKnowledgeBase()
	for id, state := range map[model.AgentID]model.HealthState{1: model.Recovered, 2: model.Immune} {
		if err := store.Register(id, state, 0); err != nil {
			t.Fatalf("Register(%d) error: %v", id, err)
		}
		for _, to := range model.AllHealthStates {
			if err := store.Transition(id, to, 1); !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("%v -> %v err = %v, want ErrIllegalTransition", state, to, err)
			}
		}
		if rec, _ := store.Get(id); !rec.Alive() || rec.State != state {
			t.Fatalf("record changed: %+v", rec)
		}
	}
}
