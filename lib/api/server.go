// Package api serves the wgadmin engine over HTTP.
//
// Routes live under /api/v1 and speak JSON, except the rendered configs,
// which are returned as text. /healthz and /metrics are unauthenticated.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/go-i2p/wgadmin/lib/core"
	"github.com/go-i2p/wgadmin/lib/metrics"
	"github.com/go-i2p/wgadmin/lib/model"
	"github.com/go-i2p/wgadmin/lib/store"
	"github.com/go-i2p/wgadmin/lib/validation"
)

// Engine is the part of core.Engine the HTTP layer drives.
type Engine interface {
	ListServers(ctx context.Context) ([]model.ServerSummary, error)
	CreateServer(ctx context.Context, req store.CreateServer) (model.Server, error)
	GetServer(ctx context.Context, ref string) (core.ServerDetail, error)
	UpdateServer(ctx context.Context, ref string, req store.UpdateServer) (model.Server, error)
	DeleteServer(ctx context.Context, ref string) error
	StartServer(ctx context.Context, ref string) error
	StopServer(ctx context.Context, ref string) error
	ReloadServer(ctx context.Context, ref string) error
	InterfaceConfig(ctx context.Context, ref string) ([]byte, error)

	ListPeers(ctx context.Context, serverRef string) ([]model.Peer, error)
	GetPeer(ctx context.Context, serverRef, peerRef string) (model.Peer, error)
	CreatePeer(ctx context.Context, serverRef, name string) (model.Peer, error)
	UpdatePeer(ctx context.Context, serverRef, peerRef string, req store.UpdatePeer) (model.Peer, error)
	DeletePeer(ctx context.Context, serverRef, peerRef string) error
	PeerConfig(ctx context.Context, serverRef, peerRef string) (core.PeerConfig, error)
}

// Config holds API server configuration.
type Config struct {
	// Listen is the address to listen on (e.g., "127.0.0.1:8000")
	Listen string
	// Token is the bearer token required on /api/v1; empty disables auth
	Token string
	// RateLimit is requests per second per client; 0 disables limiting
	RateLimit float64
	RateBurst int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ConfigFrom maps the api section of the daemon config.
func ConfigFrom(c core.APIConfig) Config {
	return Config{
		Listen:       c.Listen,
		Token:        c.Token,
		RateLimit:    c.RateLimit,
		RateBurst:    c.RateBurst,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// Server is the API HTTP server.
type Server struct {
	engine     Engine
	validate   *validator.Validate
	limiter    *RateLimiter
	router     chi.Router
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// New creates a Server. Call Close (or Stop) to release the rate limiter.
func New(cfg Config, engine Engine) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}

	s := &Server{
		engine:   engine,
		validate: validation.NewValidator(),
		router:   chi.NewRouter(),
	}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit,
			BurstSize:         cfg.RateBurst,
		})
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.Token)

	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
	s.router.Use(requestMetrics)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "no such route")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (s *Server) setupRoutes(token string) {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Use(bearerAuth(token))

		r.Get("/servers", s.listServers)
		r.Post("/servers", s.createServer)
		r.Route("/servers/{server}", func(r chi.Router) {
			r.Get("/", s.getServer)
			r.Patch("/", s.updateServer)
			r.Delete("/", s.deleteServer)
			r.Post("/start", s.startServer)
			r.Post("/stop", s.stopServer)
			r.Post("/reload", s.reloadServer)
			r.Get("/config", s.interfaceConfig)

			r.Get("/peers", s.listPeers)
			r.Post("/peers", s.createPeer)
			r.Get("/peers/{peer}", s.getPeer)
			r.Patch("/peers/{peer}", s.updatePeer)
			r.Delete("/peers/{peer}", s.deletePeer)
			r.Get("/peers/{peer}/config", s.peerConfig)
		})
	})
}

// ServeHTTP lets the Server be mounted or tested without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	go func() {
		if err := s.Serve(ln); err != nil {
			log.WithError(err).Error("api server stopped unexpectedly")
		}
	}()
	return nil
}

// Listen binds the listen address.
func (s *Server) Listen() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil, fmt.Errorf("server already running")
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	log.WithField("addr", ln.Addr().String()).Info("api server listening")
	return ln, nil
}

// Serve serves on ln until Stop is called. It returns nil after a clean stop.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully and releases the rate limiter.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	running := s.listener != nil
	s.listener = nil
	s.mu.Unlock()

	s.Close()
	if !running {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("api server stopped")
	return nil
}

// Close releases resources held outside the HTTP server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
