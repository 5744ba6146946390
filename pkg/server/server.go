// Package server is the HTTP transport for the pushd engine. It maps routes
// to engine operations and engine error kinds to status codes; all protocol
// logic lives in pkg/webpush.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getpushd/pushd/pkg/config"
	"github.com/getpushd/pushd/pkg/logging"
	"github.com/getpushd/pushd/pkg/webpush"
)

// Server serves the mock push service API.
type Server struct {
	cfg     *config.ServerConfig
	engine  *webpush.Engine
	log     *slog.Logger
	id      string
	version string

	httpServer *http.Server
	listener   net.Listener

	mu        sync.RWMutex
	running   bool
	startTime time.Time
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithVersion sets the version string reported by /status.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// New creates a Server for the given configuration and engine. The engine
// is injected at construction time; the server never reaches for a shared
// global instance.
func New(cfg *config.ServerConfig, engine *webpush.Engine, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		cfg:    cfg,
		engine: engine,
		log:    logging.Nop(),
		id:     uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.withMiddleware(mux),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /subscribe", s.handleSubscribe)
	mux.HandleFunc("POST /expire-subscription", s.handleExpire)
	mux.HandleFunc("POST /get-notifications", s.handleGetNotifications)
	mux.HandleFunc("POST /notify/{clientHash}", s.handleNotify)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the full HTTP handler, middleware included. Tests serve
// it through httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the listen address and begins serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	s.listener = listener
	s.running = true
	s.startTime = time.Now()

	s.log.Info("push service listening", "addr", listener.Addr().String(), "endpointUrl", s.cfg.BaseURL())
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Port returns the bound port, which differs from the configured port when
// the configuration asked for port 0.
func (s *Server) Port() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return s.cfg.Port
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.cfg.Port
}

// Uptime returns seconds since Start.
func (s *Server) Uptime() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(time.Since(s.startTime).Seconds())
}
