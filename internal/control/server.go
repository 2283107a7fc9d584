// Package control exposes the engine over HTTP: JSON snapshots and
// commands, Prometheus metrics and a WebSocket stream of snapshots.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/epidemic-simulator/core"
	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
	"github.com/signalsfoundry/epidemic-simulator/internal/observability"
	"github.com/signalsfoundry/epidemic-simulator/model"
)

// Engine is the part of core.Engine the control surface needs.
type Engine interface {
	Snapshot() core.Snapshot
	Statistics() core.StatisticsSnapshot
	Scenarios() []model.Scenario
	Apply(ctx context.Context, cmd core.Command) error
}

// Stream message types.
const (
	MessageSnapshot = "snapshot"
	MessageAck      = "ack"
)

// Message is the envelope written to stream clients.
type Message struct {
	Type     string         `json:"type"`
	Snapshot *core.Snapshot `json:"snapshot,omitempty"`
	Command  *core.Command  `json:"command,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Status is the engine state without the agent list.
type Status struct {
	RunID       string              `json:"run_id"`
	Tick        int                 `json:"tick"`
	Paused      bool                `json:"paused"`
	Multipliers model.Multipliers   `json:"multipliers"`
	Counts      model.StateCounts   `json:"counts"`
	Zones       []core.ZoneSnapshot `json:"zones"`
}

func statusOf(s core.Snapshot) Status {
	return Status{
		RunID:       s.RunID,
		Tick:        s.Tick,
		Paused:      s.Paused,
		Multipliers: s.Multipliers,
		Counts:      s.Counts,
		Zones:       s.Zones,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// Option customises a Server.
type Option func(*Server)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics serves /metrics from c and records request metrics.
func WithMetrics(c *observability.EpidemicCollector) Option {
	return func(s *Server) {
		s.metrics = c
	}
}

// Server routes HTTP and WebSocket requests to an Engine.
type Server struct {
	engine   Engine
	log      logging.Logger
	metrics  *observability.EpidemicCollector
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewServer builds a server for engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		log:    logging.Noop(),
		hub:    NewHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the chi router serving all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/v1", func(r chi.Router) {
		r.Get("/snapshot", s.getSnapshot)
		r.Get("/status", s.getStatus)
		r.Get("/statistics", s.getStatistics)
		r.Get("/scenarios", s.getScenarios)
		r.Post("/commands", s.postCommand)
		r.Get("/stream", s.stream)
	})
	return r
}

// Hub returns the stream hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Publish sends the current snapshot to every stream client. It does nothing
// when nobody is connected.
func (s *Server) Publish(ctx context.Context) {
	if s.hub.Len() == 0 {
		return
	}
	snap := s.engine.Snapshot()
	msg, err := json.Marshal(Message{Type: MessageSnapshot, Snapshot: &snap})
	if err != nil {
		s.log.Error(ctx, "encode snapshot failed", logging.Error(err))
		return
	}
	s.hub.Broadcast(msg)
}

// Close disconnects stream clients. http.Server.Shutdown does not track
// hijacked connections, so call Close alongside it.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, reqLog := logging.WithRequestLogger(r.Context(), s.log)
		ctx = logging.ContextWithLogger(ctx, reqLog)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, statusOf(s.engine.Snapshot()))
}

func (s *Server) getStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.engine.Statistics())
}

func (s *Server) getScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.engine.Scenarios())
}

func (s *Server) postCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, s.log)

	var cmd core.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		log.Warn(ctx, "invalid command body", logging.Error(err))
		writeJSON(ctx, w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if err := s.engine.Apply(ctx, cmd); err != nil {
		log.Warn(ctx, "command rejected", logging.String("command", string(cmd.Kind)), logging.Error(err))
		writeJSON(ctx, w, statusForError(err), errorBody{Error: err.Error()})
		return
	}
	log.Debug(ctx, "command applied", logging.String("command", string(cmd.Kind)))
	s.Publish(ctx)
	writeJSON(ctx, w, http.StatusOK, statusOf(s.engine.Snapshot()))
}

// stream upgrades to a WebSocket. The server pushes snapshots; the client
// may send commands, each answered with an ack message.
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx, s.log)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(ctx, "websocket upgrade failed", logging.Error(err))
		return
	}
	c, ok := s.hub.register(conn)
	if !ok {
		conn.Close()
		return
	}
	defer s.hub.unregister(c)
	log.Debug(ctx, "stream client connected")

	snap := s.engine.Snapshot()
	if msg, err := json.Marshal(Message{Type: MessageSnapshot, Snapshot: &snap}); err == nil {
		s.hub.send(c, msg)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug(ctx, "stream client disconnected", logging.Error(err))
			}
			return
		}
		var cmd core.Command
		ack := Message{Type: MessageAck, Command: &cmd}
		if err := json.Unmarshal(data, &cmd); err != nil {
			ack.Command = nil
			ack.Error = "invalid command: " + err.Error()
		} else if err := s.engine.Apply(ctx, cmd); err != nil {
			ack.Error = err.Error()
		}
		if msg, err := json.Marshal(ack); err == nil {
			s.hub.send(c, msg)
		}
		if ack.Error == "" {
			s.Publish(ctx)
		}
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownScenario):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnknownCommand), errors.Is(err, core.ErrUnknownParameter), errors.Is(err, core.ErrZeroSteps):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx, nil).Warn(ctx, "encode response failed", logging.Error(err))
	}
}
