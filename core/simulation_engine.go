package core

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
	"github.com/signalsfoundry/epidemic-simulator/kb"
	"github.com/signalsfoundry/epidemic-simulator/model"
)

const tracerName = "github.com/signalsfoundry/epidemic-simulator/core"

// TickReport summarises one call to Engine.Tick.
type TickReport struct {
	Tick    int
	Skipped bool // engine was paused; nothing changed

	Deaths     int
	Recoveries int
	Infections int
	Admissions int // agents newly placed in quarantine

	Counts  model.StateCounts
	Sampled bool
	Sample  Sample
	Zones   []ZoneSnapshot

	Duration time.Duration
	// Violations lists health state changes the ledger rejected. It is
	// always empty unless the engine has a bug.
	Violations []error
}

// MetricsRecorder receives engine aggregates. It is satisfied by
// observability.EpidemicCollector.
type MetricsRecorder interface {
	ObserveTick(r TickReport)
	ObserveVaccinations(n int)
	ObserveReset(counts model.StateCounts)
}

// EngineOption customises Engine construction.
type EngineOption func(*Engine)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithKnowledgeBase replaces the engine's private agent ledger, e.g. to share
// it with subscribers created before the engine.
func WithKnowledgeBase(store *kb.KnowledgeBase) EngineOption {
	return func(e *Engine) {
		if store != nil {
			e.ledger = store
		}
	}
}

// WithRand fixes the random source, overriding Config.Seed.
func WithRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithTickListener registers a callback invoked after every tick, outside
// the engine lock.
func WithTickListener(fn func(TickReport)) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.tickListeners = append(e.tickListeners, fn)
		}
	}
}

// Engine owns the population and advances it one tick at a time.
//
// All mutation happens under mu: Tick, commands and Reset take the write
// lock, so commands issued from other goroutines land strictly between
// ticks. Snapshot takes the read lock.
type Engine struct {
	mu sync.RWMutex

	cfg     Config
	rng     *rand.Rand
	tracker *ContactTracker
	catalog *ScenarioCatalog
	ledger  *kb.KnowledgeBase
	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer

	tickListeners []func(TickReport)

	agents []*Agent
	zones  []*QuarantineZone
	stats  *Statistics
	mult   model.Multipliers
	paused bool
	tick   int
	nextID model.AgentID
	runID  string
	// extinct is set once a run has no infected agents left.
	extinct bool
}

// NewEngine validates cfg and builds an engine with a freshly initialised
// population.
func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg,
		tracker: NewContactTracker(cfg),
		catalog: NewScenarioCatalog(cfg.Scenarios...),
		ledger:  kb.NewKnowledgeBase(),
		log:     logging.Noop(),
		tracer:  otel.Tracer(tracerName),
		zones:   newZones(cfg),
		mult:    cfg.Multipliers,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.rng == nil {
		e.rng = newRand(cfg.Seed)
	}

	e.mu.Lock()
	e.resetLocked(context.Background())
	e.mu.Unlock()
	return e, nil
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Tick advances the simulation by one step: every agent progresses and
// moves, the dead are dropped, the contact pass runs over the survivors and
// statistics are sampled on the configured stride. A paused engine returns a
// skipped report and changes nothing. The only error is ctx cancellation:
// before the tick starts it leaves the engine untouched, while a
// cancellation inside a sharded contact pass completes the tick without new
// infections, notifies tick listeners and returns the error alongside its
// report.
func (e *Engine) Tick(ctx context.Context) (TickReport, error) {
	if err := ctx.Err(); err != nil {
		return TickReport{}, err
	}

	e.mu.Lock()
	report, err := e.tickLocked(ctx)
	listeners := append([]func(TickReport){}, e.tickListeners...)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(report)
	}
	return report, err
}

func (e *Engine) tickLocked(ctx context.Context) (TickReport, error) {
	if e.paused {
		return TickReport{Tick: e.tick, Skipped: true}, nil
	}

	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "epidemic.Tick")
	defer span.End()

	e.tick++
	report := TickReport{Tick: e.tick}

	env := &StepEnv{
		Population:    e.agents,
		Zones:         e.zones,
		Quarantine:    e.mult.Quarantine,
		RecoveryTime:  e.cfg.RecoveryTime,
		RecoveryProb:  e.effectiveRecoveryProb(),
		ReleaseOnExit: e.cfg.ReleaseOnExit,
		Canvas:        e.cfg.canvas(),
		Movement:      e.cfg.Movement,
		Rand:          e.rng,
	}

	// Survivors go into a fresh slice so env.Population stays intact for
	// flocking lookups until every agent has moved.
	survivors := make([]*Agent, 0, len(e.agents))
	for _, a := range e.agents {
		wasQuarantined := a.Quarantined
		switch a.Step(env) {
		case OutcomeDied:
			report.Deaths++
			e.check(ctx, &report, e.ledger.Remove(a.ID, e.tick))
			e.log.Debug(ctx, "agent died",
				logging.Any("agent_id", a.ID),
				logging.Int("tick", e.tick),
			)
			continue
		case OutcomeRecovered:
			report.Recoveries++
			e.check(ctx, &report, e.ledger.Transition(a.ID, model.Recovered, e.tick))
		case OutcomeSurvived:
		}
		if !wasQuarantined && a.Quarantined {
			report.Admissions++
			e.log.Debug(ctx, "agent quarantined",
				logging.Any("agent_id", a.ID),
				logging.String("zone", e.zones[a.zone].Name),
			)
		}
		survivors = append(survivors, a)
	}
	e.agents = survivors
	e.stats.RecordDeaths(report.Deaths)

	// A canceled contact pass applies no infections, but the tick itself
	// has happened: bookkeeping below still runs and the error is returned
	// with a complete report.
	infected, err := e.tracker.Run(ctx, e.agents, e.mult.Infection, e.rng)
	if err != nil {
		span.RecordError(err)
		e.log.Warn(ctx, "contact pass canceled", logging.Int("tick", e.tick), logging.Error(err))
	}
	for _, a := range infected {
		e.check(ctx, &report, e.ledger.Transition(a.ID, model.Infected, e.tick))
	}
	report.Infections = len(infected)

	report.Counts = CountStates(e.agents)
	if e.tick%e.cfg.StatsStride == 0 {
		report.Sample = e.stats.Sample(report.Counts)
		report.Sampled = true
	}
	report.Zones = e.zoneSnapshotsLocked()
	report.Duration = time.Since(start)

	if report.Counts.Infected == 0 && !e.extinct {
		e.extinct = true
		e.log.Info(ctx, "no infected agents remain",
			logging.String("run_id", e.runID),
			logging.Int("tick", e.tick),
			logging.Int("population", report.Counts.Total()),
			logging.Int("deaths", e.stats.Deaths()),
		)
	}

	span.SetAttributes(
		attribute.Int("epidemic.tick", e.tick),
		attribute.Int("epidemic.population", report.Counts.Total()),
		attribute.Int("epidemic.infected", report.Counts.Infected),
		attribute.Int("epidemic.deaths", report.Deaths),
		attribute.Int("epidemic.infections", report.Infections),
	)

	if e.metrics != nil {
		e.metrics.ObserveTick(report)
	}
	return report, err
}

// check records a ledger rejection. Rejections mean the engine broke the
// transition graph, so they are logged loudly but never stop the tick.
func (e *Engine) check(ctx context.Context, report *TickReport, err error) {
	if err == nil {
		return
	}
	report.Violations = append(report.Violations, err)
	e.log.Error(ctx, "ledger rejected health state change", logging.Error(err))
}

func (e *Engine) effectiveRecoveryProb() float64 {
	return min(e.cfg.MaxRecoveryProb, e.cfg.RecoveryProb*e.mult.Recovery)
}

// Reset rebuilds the population, empties the zones and statistics and
// restarts the tick counter, using the current multipliers.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked(ctx)
}

func (e *Engine) resetLocked(ctx context.Context) {
	e.tick = 0
	e.extinct = false
	e.runID = uuid.NewString()
	e.stats = NewStatistics(e.cfg.HistoryLength)
	e.ledger.Reset()
	for _, z := range e.zones {
		z.Clear()
	}

	area := e.cfg.spawnArea()
	e.agents = make([]*Agent, 0, e.cfg.Population)
	for i := 0; i < e.cfg.Population; i++ {
		state := model.Susceptible
		if i >= e.cfg.Population-e.cfg.InitialInfected {
			state = model.Infected
		}
		e.nextID++
		a := NewAgent(e.nextID, state, area.RandomPoint(e.rng), e.cfg.Movement.Speed, e.rng)
		e.agents = append(e.agents, a)
		if err := e.ledger.Register(a.ID, a.State, 0); err != nil {
			e.log.Error(ctx, "ledger rejected agent", logging.Error(err))
		}
	}

	vaccinated := InitialVaccination(e.agents, e.cfg.Population, e.cfg.VaccinationRate, e.mult.Vaccination, e.cfg.VaccinationSuccess, e.rng)
	e.recordVaccinations(ctx, vaccinated)

	counts := CountStates(e.agents)
	if e.metrics != nil {
		e.metrics.ObserveReset(counts)
	}
	e.log.Info(ctx, "population initialised",
		logging.String("run_id", e.runID),
		logging.Int("susceptible", counts.Susceptible),
		logging.Int("infected", counts.Infected),
		logging.Int("immune", counts.Immune),
		logging.Float64("infection_multiplier", e.mult.Infection),
		logging.Float64("recovery_multiplier", e.mult.Recovery),
		logging.Float64("vaccination_multiplier", e.mult.Vaccination),
		logging.Bool("quarantine", e.mult.Quarantine),
	)
}

func (e *Engine) recordVaccinations(ctx context.Context, vaccinated []*Agent) {
	for _, a := range vaccinated {
		if err := e.ledger.Transition(a.ID, model.Immune, e.tick); err != nil {
			e.log.Error(ctx, "ledger rejected vaccination", logging.Error(err))
		}
	}
	if e.metrics != nil && len(vaccinated) > 0 {
		e.metrics.ObserveVaccinations(len(vaccinated))
	}
}

// KnowledgeBase exposes the agent ledger.
func (e *Engine) KnowledgeBase() *kb.KnowledgeBase {
	return e.ledger
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Scenarios lists the scenarios LoadScenario accepts.
func (e *Engine) Scenarios() []model.Scenario {
	return e.catalog.List()
}
