package api

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/FairForge/sitefence/internal/auth"
	"github.com/FairForge/sitefence/internal/config"
	"github.com/FairForge/sitefence/internal/metrics"
	"github.com/FairForge/sitefence/internal/replication"
)

// Version is stamped at build time
var Version = "dev"

type Server struct {
	config     *config.Config
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
	sessions   Sessions
	gate       *auth.Gate
	metrics    *metrics.Metrics
	limiter    *RateLimiter
	clock      clock.Clock

	replicationOpts []replication.Option

	ready     atomic.Bool
	startTime time.Time
}

// Option customises a Server
type Option func(*Server)

// WithClock replaces the wall clock used for timings
func WithClock(clk clock.Clock) Option {
	return func(s *Server) { s.clock = clk }
}

// WithReplicationOptions is appended to every replication client the server
// builds
func WithReplicationOptions(opts ...replication.Option) Option {
	return func(s *Server) { s.replicationOpts = append(s.replicationOpts, opts...) }
}

func NewServer(cfg *config.Config, logger *zap.Logger, sessions Sessions, m *metrics.Metrics, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		config:   cfg,
		logger:   logger,
		router:   chi.NewRouter(),
		sessions: sessions,
		gate:     auth.NewGate(cfg.Auth.AdminUser),
		metrics:  m,
		limiter:  NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
		clock:    clock.NewClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startTime = s.clock.Now()
	s.replicationOpts = append([]replication.Option{replication.WithTimeout(cfg.Replication.Timeout)}, s.replicationOpts...)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	s.ready.Store(true)

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting server",
		zap.Int("port", s.config.Server.Port),
		zap.String("webhook_path", s.config.Server.WebhookPath))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting work; /ready reports false from here on
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	return s.httpServer.Shutdown(ctx)
}
