// Package server exposes the bot over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

// Conversations is the bot surface served over HTTP.
type Conversations interface {
	Start(ctx context.Context, chatID string) (string, error)
	Message(ctx context.Context, chatID, text string) (string, error)
	Stop(ctx context.Context, chatID string) (string, error)
	Conversation(ctx context.Context, chatID string) (conversation.State, int, error)
}

// Check reports whether a dependency is healthy.
type Check func(ctx context.Context) error

// Server routes chat events to the bot.
type Server struct {
	conv        Conversations
	router      chi.Router
	metrics     *Metrics
	gatherer    prometheus.Gatherer
	checks      map[string]Check
	turnTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRegistry registers metrics with reg and serves them on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = NewMetrics(reg, "anadeabot")
		s.gatherer = reg
	}
}

// WithCheck adds a named health check to /healthz.
func WithCheck(name string, c Check) Option {
	return func(s *Server) { s.checks[name] = c }
}

// WithTurnTimeout bounds each conversation request.
func WithTurnTimeout(d time.Duration) Option {
	return func(s *Server) { s.turnTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the router.
func New(conv Conversations, opts ...Option) *Server {
	s := &Server{
		conv:   conv,
		checks: make(map[string]Check),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		reg := prometheus.NewRegistry()
		s.metrics = NewMetrics(reg, "anadeabot")
		s.gatherer = reg
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/conversations/{id}", func(r chi.Router) {
		r.Get("/", s.get)
		r.Delete("/", s.stop)
		r.Post("/start", s.start)
		r.Post("/messages", s.message)
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

type replyResponse struct {
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type conversationResponse struct {
	ID        string              `json:"id"`
	Turn      int                 `json:"turn"`
	Design    conversation.Design `json:"design"`
	Missing   []string            `json:"missing"`
	Confirmed bool                `json:"confirmed"`
	Intent    conversation.Intent `json:"intent,omitempty"`
	Messages  []llm.Message       `json:"messages"`
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.turnContext(r)
	defer cancel()
	reply, err := s.conv.Start(ctx, chi.URLParam(r, "id"))
	s.reply(w, "start", reply, err)
}

func (s *Server) message(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, replyResponse{Error: "invalid request body"})
		s.logger.Warn("invalid message body", "error", err.Error())
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeJSON(w, http.StatusBadRequest, replyResponse{Error: "text is required"})
		return
	}

	ctx, cancel := s.turnContext(r)
	defer cancel()
	reply, err := s.conv.Message(ctx, chi.URLParam(r, "id"), body.Text)
	s.reply(w, "message", reply, err)
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.turnContext(r)
	defer cancel()
	reply, err := s.conv.Stop(ctx, chi.URLParam(r, "id"))
	s.reply(w, "stop", reply, err)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, turn, err := s.conv.Conversation(r.Context(), id)
	if err != nil {
		s.logger.Error("load conversation failed", "conversation_id", id, "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, replyResponse{Error: "conversation unavailable"})
		return
	}
	if turn == 0 {
		writeJSON(w, http.StatusNotFound, replyResponse{Error: "conversation not found"})
		return
	}
	writeJSON(w, http.StatusOK, conversationResponse{
		ID:        id,
		Turn:      turn,
		Design:    state.Design,
		Missing:   state.Design.Missing(),
		Confirmed: state.Confirmed,
		Intent:    state.Intent,
		Messages:  state.Messages,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	failures := make(map[string]string)
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy", "failures": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// reply writes the bot's answer. A failed turn still carries the apology
// the bot produced.
func (s *Server) reply(w http.ResponseWriter, event, reply string, err error) {
	s.metrics.Turn(event, err)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, replyResponse{Reply: reply, Error: "turn failed"})
		return
	}
	writeJSON(w, http.StatusOK, replyResponse{Reply: reply})
}

func (s *Server) turnContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.turnTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.turnTimeout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}
