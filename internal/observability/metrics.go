package observability

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/epidemic-simulator/core"
	"github.com/signalsfoundry/epidemic-simulator/model"
)

// Event labels used by epidemic_transitions_total.
const (
	EventInfected    = "infected"
	EventRecovered   = "recovered"
	EventDied        = "died"
	EventVaccinated  = "vaccinated"
	EventQuarantined = "quarantined"
)

// EpidemicCollector bundles Prometheus metrics for the engine and the HTTP
// control surface. It implements core.MetricsRecorder.
type EpidemicCollector struct {
	gatherer prometheus.Gatherer

	Agents        *prometheus.GaugeVec
	ZoneOccupancy *prometheus.GaugeVec
	InfectionRate prometheus.Gauge
	RecoveryRate  prometheus.Gauge
	Ticks         prometheus.Counter
	Resets        prometheus.Counter
	Transitions   *prometheus.CounterVec
	TickDurations prometheus.Histogram

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

var _ core.MetricsRecorder = (*EpidemicCollector)(nil)

// NewEpidemicCollector registers the metrics against reg, defaulting to the
// global Prometheus registry when nil. Registering twice against the same
// registry reuses the existing collectors.
func NewEpidemicCollector(reg prometheus.Registerer) (*EpidemicCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &EpidemicCollector{gatherer: gatherer}
	var err error

	if c.Agents, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "epidemic_agents",
		Help: "Live agents by health state.",
	}, []string{"state"}), "epidemic_agents"); err != nil {
		return nil, err
	}
	if c.ZoneOccupancy, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "epidemic_zone_occupancy",
		Help: "Occupied slots per quarantine zone.",
	}, []string{"zone"}), "epidemic_zone_occupancy"); err != nil {
		return nil, err
	}
	if c.InfectionRate, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "epidemic_infection_rate_percent",
		Help: "Infection rate at the latest statistics sample.",
	}), "epidemic_infection_rate_percent"); err != nil {
		return nil, err
	}
	if c.RecoveryRate, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "epidemic_recovery_rate_percent",
		Help: "Recovery rate at the latest statistics sample.",
	}), "epidemic_recovery_rate_percent"); err != nil {
		return nil, err
	}
	if c.Ticks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "epidemic_ticks_total",
		Help: "Ticks executed while running.",
	}), "epidemic_ticks_total"); err != nil {
		return nil, err
	}
	if c.Resets, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "epidemic_resets_total",
		Help: "Population resets, including scenario loads.",
	}), "epidemic_resets_total"); err != nil {
		return nil, err
	}
	if c.Transitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "epidemic_transitions_total",
		Help: "Health and quarantine events, labeled by event.",
	}, []string{"event"}), "epidemic_transitions_total"); err != nil {
		return nil, err
	}
	if c.TickDurations, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "epidemic_tick_duration_seconds",
		Help:    "Wall-clock time spent in one tick.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	}), "epidemic_tick_duration_seconds"); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Handled control API requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"}), "http_requests_total"); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Control API latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"route", "method"}), "http_request_duration_seconds"); err != nil {
		return nil, err
	}

	return c, nil
}

// ObserveTick updates gauges and counters from one tick report.
func (c *EpidemicCollector) ObserveTick(r core.TickReport) {
	if c == nil || r.Skipped {
		return
	}
	c.Ticks.Inc()
	c.TickDurations.Observe(r.Duration.Seconds())
	c.setCounts(r.Counts)

	c.Transitions.WithLabelValues(EventInfected).Add(float64(r.Infections))
	c.Transitions.WithLabelValues(EventRecovered).Add(float64(r.Recoveries))
	c.Transitions.WithLabelValues(EventDied).Add(float64(r.Deaths))
	c.Transitions.WithLabelValues(EventQuarantined).Add(float64(r.Admissions))

	for _, z := range r.Zones {
		c.ZoneOccupancy.WithLabelValues(z.Name).Set(float64(z.Occupied))
	}
	if r.Sampled {
		c.InfectionRate.Set(r.Sample.InfectionRate)
		c.RecoveryRate.Set(r.Sample.RecoveryRate)
	}
}

// ObserveVaccinations counts successful vaccinations.
func (c *EpidemicCollector) ObserveVaccinations(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.Transitions.WithLabelValues(EventVaccinated).Add(float64(n))
}

// ObserveReset records a reset and the fresh population.
func (c *EpidemicCollector) ObserveReset(counts model.StateCounts) {
	if c == nil {
		return
	}
	c.Resets.Inc()
	c.setCounts(counts)
	c.ZoneOccupancy.Reset()
	c.InfectionRate.Set(0)
	c.RecoveryRate.Set(0)
}

func (c *EpidemicCollector) setCounts(counts model.StateCounts) {
	for _, s := range model.AllHealthStates {
		c.Agents.WithLabelValues(s.String()).Set(float64(counts.Get(s)))
	}
}

// Middleware records request counts and durations for chi routes. Requests
// that match no route are labeled "unmatched".
func (c *EpidemicCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if c == nil {
			return
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(code)).Inc()
		c.HTTPDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EpidemicCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// register adds col to reg, returning the already registered collector of
// the same type when there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
