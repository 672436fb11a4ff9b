package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fernandofuc/tistis-platform-sub010/common/trace"
	"github.com/fernandofuc/tistis-platform-sub010/common/version"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

const (
	maxTurnBody       = 64 << 10
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// TraceHeader carries the trace id in and out of the HTTP API.
const TraceHeader = "X-Trace-Id"

// Turns is what the HTTP layer needs from the turn service.
type Turns interface {
	HandleTurn(ctx context.Context, req TurnRequest) (TurnResponse, error)
	AuditLog(ctx context.Context, tenantID string, limit int) ([]store.AuditEntry, error)
}

// Pinger reports backend health for /status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// Info is reported verbatim by /status (driver names, provider).
	Info map[string]string
}

// Server exposes the turn API plus /healthz and /status.
type Server struct {
	cfg       ServerConfig
	turns     Turns
	db        Pinger
	startedAt time.Time
	router    chi.Router
	server    *http.Server
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

type statusResponse struct {
	Status     string            `json:"status"`
	Build      map[string]string `json:"build"`
	StartedAt  time.Time         `json:"started_at"`
	UptimeSecs float64           `json:"uptime_seconds"`
	Database   string            `json:"database"`
	Info       map[string]string `json:"info,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewServer creates and configures the HTTP server (does not start it).
func NewServer(cfg ServerConfig, turns Turns, db Pinger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{cfg: cfg, turns: turns, db: db, startedAt: time.Now()}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/turns", s.handleTurn)
		r.Get("/audit", s.handleAudit)
	})
	return r
}

// ServeHTTP implements http.Handler so the server can be tested without a
// live network listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins listening in the background. It returns once the listener is
// established; the server shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("http server: listen %s: %w", s.cfg.Addr, err)
	}

	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop shuts down the HTTP server.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, dbStatus := "ok", "ok"
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			status, dbStatus = "degraded", err.Error()
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:     status,
		Build:      version.Fields(),
		StartedAt:  s.startedAt,
		UptimeSecs: time.Since(s.startedAt).Seconds(),
		Database:   dbStatus,
		Info:       s.cfg.Info,
	})
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if id := r.Header.Get(TraceHeader); id != "" {
		ctx = trace.WithTraceID(ctx, id)
	}
	ctx, traceID := trace.Ensure(ctx)
	w.Header().Set(TraceHeader, traceID)

	var req TurnRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTurnBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error(), TraceID: traceID})
		return
	}

	resp, err := s.turns.HandleTurn(ctx, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), TraceID: traceID})
	case errors.Is(err, ErrTenantMismatch), errors.Is(err, ErrUserMismatch):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error(), TraceID: traceID})
	default:
		// The payload is still deliverable; the status tells the caller the
		// conversation state may not have been saved.
		writeJSON(w, http.StatusServiceUnavailable, resp)
	}
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tenant is required"})
		return
	}
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxAuditLimit)
	}

	entries, err := s.turns.AuditLog(r.Context(), tenant, limit)
	if err != nil {
		slog.Error("audit query failed", "tenant", tenant, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "audit log unavailable"})
		return
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http: failed to encode JSON response", "err", err)
	}
}
