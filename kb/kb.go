package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

var (
	// ErrAgentExists indicates an agent ID was registered twice.
	ErrAgentExists = errors.New("agent already registered")
	// ErrAgentNotFound indicates an unknown agent ID.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentRemoved indicates a change was requested for a dead agent.
	ErrAgentRemoved = errors.New("agent already removed")
	// ErrIllegalTransition indicates a health state change outside the model.
	ErrIllegalTransition = errors.New("illegal health state transition")
)

// Event is emitted to subscribers after every accepted lifecycle change.
type Event struct {
	Type   model.EventType
	Tick   int
	From   model.HealthState
	Record model.AgentRecord
}

// KnowledgeBase is an in-memory, thread-safe ledger of every agent created
// during a run. It rejects health state changes that the SIR(+Immune) model
// does not allow, which makes it the single place where the transition graph
// is enforced.
type KnowledgeBase struct {
	mu sync.RWMutex

	records map[model.AgentID]*model.AgentRecord

	subs    map[int]func(Event)
	nextSub int
}

// NewKnowledgeBase constructs an empty ledger.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		records: make(map[model.AgentID]*model.AgentRecord),
		subs:    make(map[int]func(Event)),
	}
}

// Register records a newly created agent.
func (kb *KnowledgeBase) Register(id model.AgentID, state model.HealthState, tick int) error {
	if !state.Valid() {
		return fmt.Errorf("register agent %d: %w: %v", id, ErrIllegalTransition, state)
	}
	kb.mu.Lock()
	if _, exists := kb.records[id]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("register agent %d: %w", id, ErrAgentExists)
	}
	rec := &model.AgentRecord{ID: id, State: state, CreatedAt: tick, InfectedAt: -1}
	if state == model.Infected {
		rec.InfectedAt = tick
	}
	kb.records[id] = rec
	ev := Event{Type: model.EventAgentCreated, Tick: tick, From: state, Record: *rec}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, ev)
	return nil
}

// Transition moves an agent to a new health state.
func (kb *KnowledgeBase) Transition(id model.AgentID, to model.HealthState, tick int) error {
	kb.mu.Lock()
	rec, err := kb.liveRecordLocked(id)
	if err != nil {
		kb.mu.Unlock()
		return err
	}
	from := rec.State
	if from.Terminal() {
		kb.mu.Unlock()
		return fmt.Errorf("agent %d is %v, an absorbing state: %w", id, from, ErrIllegalTransition)
	}
	if !model.CanTransition(from, to) {
		kb.mu.Unlock()
		return fmt.Errorf("agent %d %v -> %v: %w", id, from, to, ErrIllegalTransition)
	}
	rec.State = to
	if to == model.Infected {
		rec.InfectedAt = tick
	}
	ev := Event{Type: eventFor(to), Tick: tick, From: from, Record: *rec}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, ev)
	return nil
}

// Remove marks an agent dead. Only infected agents may die.
func (kb *KnowledgeBase) Remove(id model.AgentID, tick int) error {
	kb.mu.Lock()
	rec, err := kb.liveRecordLocked(id)
	if err != nil {
		kb.mu.Unlock()
		return err
	}
	if !model.CanDie(rec.State) {
		kb.mu.Unlock()
		return fmt.Errorf("agent %d died while %v: %w", id, rec.State, ErrIllegalTransition)
	}
	rec.Removed = true
	rec.RemovedAt = tick
	ev := Event{Type: model.EventAgentDied, Tick: tick, From: rec.State, Record: *rec}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, ev)
	return nil
}

// Get returns a copy of the record for id.
func (kb *KnowledgeBase) Get(id model.AgentID) (model.AgentRecord, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	rec, ok := kb.records[id]
	if !ok {
		return model.AgentRecord{}, false
	}
	return *rec, true
}

// Counts tallies the health states of agents that are still alive.
func (kb *KnowledgeBase) Counts() model.StateCounts {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	var c model.StateCounts
	for _, rec := range kb.records {
		if !rec.Alive() {
			continue
		}
		c.Add(rec.State)
	}
	return c
}

// Removed returns the number of agents that have died.
func (kb *KnowledgeBase) Removed() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	n := 0
	for _, rec := range kb.records {
		if !rec.Alive() {
			n++
		}
	}
	return n
}

// Len returns the number of agents ever registered since the last Reset.
func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.records)
}

// Reset drops every record. Subscribers are kept.
func (kb *KnowledgeBase) Reset() {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.records = make(map[model.AgentID]*model.AgentRecord)
}

// Subscribe registers a callback for ledger events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

func (kb *KnowledgeBase) liveRecordLocked(id model.AgentID) (*model.AgentRecord, error) {
	rec, ok := kb.records[id]
	if !ok {
		return nil, fmt.Errorf("agent %d: %w", id, ErrAgentNotFound)
	}
	if !rec.Alive() {
		return nil, fmt.Errorf("agent %d: %w", id, ErrAgentRemoved)
	}
	return rec, nil
}

func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	if len(kb.subs) == 0 {
		return nil
	}
	subs := make([]func(Event), 0, len(kb.subs))
	for _, fn := range kb.subs {
		subs = append(subs, fn)
	}
	return subs
}

// Notify subscribers outside the lock to avoid deadlocks.
func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}

func eventFor(to model.HealthState) model.EventType {
	switch to {
	case model.Infected:
		return model.EventAgentInfected
	case model.Recovered:
		return model.EventAgentRecovered
	case model.Immune:
		return model.EventAgentVaccinated
	default:
		return model.EventAgentCreated
	}
}
