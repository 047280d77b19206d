// Package server exposes the chat interface, an on-demand sweep trigger,
// Prometheus metrics and a health check over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mesh-intelligence/cakeday/internal/chat"
	"github.com/mesh-intelligence/cakeday/internal/metrics"
	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// ChatHandler answers one chat message.
type ChatHandler interface {
	Handle(ctx context.Context, ownerID, text string) (chat.Reply, error)
}

// Trigger starts a sweep unless one is running.
type Trigger interface {
	Trigger(ctx context.Context) bool
}

// Server is the HTTP front end of the service.
type Server struct {
	listen  string
	keyHash []byte
	chat    ChatHandler
	sweeps  Trigger
	metrics *metrics.Metrics
	logger  *slog.Logger

	http *http.Server
	ln   net.Listener
	errc chan error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and lifecycle logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics serves m on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

type chatRequest struct {
	OwnerID string `json:"owner_id"`
	Text    string `json:"text"`
}

type errorBody struct {
	Error string `json:"error"`
}

// New builds a Server for cfg. Nothing listens until Start.
func New(cfg types.ServerConfig, ch ChatHandler, sweeps Trigger, opts ...Option) *Server {
	s := &Server{
		listen:  cfg.Listen,
		keyHash: []byte(cfg.APIKeyHash),
		chat:    ch,
		sweeps:  sweeps,
		logger:  slog.Default(),
		errc:    make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat", s.requireKey(s.handleChat))
	mux.HandleFunc("POST /v1/sweep", s.requireKey(s.handleSweep))
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// Start binds the listen address and serves in the background. Serve
// errors are reported on Err.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errc <- err
		}
		close(s.errc)
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Err delivers a fatal serve error, and is closed when serving stops.
func (s *Server) Err() <-chan error {
	return s.errc
}

// Shutdown stops accepting requests and waits for active ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	reply, err := s.chat.Handle(r.Context(), req.OwnerID, req.Text)
	if errors.Is(err, types.ErrInvalidOwner) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("chat handler failed", "owner", req.OwnerID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	if !s.sweeps.Trigger(r.Context()) {
		writeError(w, http.StatusConflict, "sweep already running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
