package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hireloop/hireloop/internal/meeting"
	"github.com/hireloop/hireloop/internal/ratelimit"
)

// Server is the HTTP server for the scheduling engine.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Limiter, Broker.
type ServerConfig struct {
	// Required dependencies.
	Router   TurnRouter
	Statuses StatusService
	Changes  ChangeLister
	Links    *meeting.LinkSigner
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	Limiter ratelimit.Limiter
	Broker  *Broker

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	ServiceToken        string
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Router:              cfg.Router,
		Statuses:            cfg.Statuses,
		Changes:             cfg.Changes,
		Links:               cfg.Links,
		Limiter:             cfg.Limiter,
		Broker:              cfg.Broker,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	mux := http.NewServeMux()

	// Conversational surface.
	mux.HandleFunc("POST /v1/messages", h.HandleMessage)

	// Status surface.
	mux.HandleFunc("GET /v1/candidates/{id}/status", h.HandleCandidateStatus)
	mux.HandleFunc("POST /v1/candidates/{id}/transitions", h.HandleTransition)

	// Admin escalation feed (long-lived connection, no rate limit).
	mux.HandleFunc("GET /v1/escalations/subscribe", h.HandleSubscribe)

	// Meeting link verification (token-authenticated, no bearer auth).
	mux.HandleFunc("GET /interview/{token}", h.HandleVerifyMeetingLink)

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	if cfg.ServiceToken == "" {
		cfg.Logger.Warn("HIRELOOP_SERVICE_TOKEN not set, API auth disabled")
	}

	// Per-IP guard on the public meeting-link endpoint only. Platform calls
	// share egress IPs, so the API surface is limited per candidate inside
	// the message handler instead.
	ipKey := func(r *http.Request) string {
		if !strings.HasPrefix(r.URL.Path, "/interview/") {
			return ""
		}
		return "ip:" + ratelimit.IPKeyFunc(r)
	}

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → rate limit → auth →
	// recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.ServiceToken, handler)
	handler = ratelimit.Middleware(cfg.Limiter, ipKey, requestIDFromRequest)(handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
