package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tronix365/sensegrid/internal/auth"
	"github.com/tronix365/sensegrid/internal/infrastructure/config"
	"github.com/tronix365/sensegrid/internal/infrastructure/logging"
	"github.com/tronix365/sensegrid/internal/infrastructure/redis"
	"github.com/tronix365/sensegrid/internal/ownership"
	"github.com/tronix365/sensegrid/internal/telemetry"
)

const shutdownGrace = 10 * time.Second

// HealthChecker is satisfied by *database.DB and the broker clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RateLimiter decides whether a client may make another request.
// *redis.RateLimiter implements it.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (redis.Decision, error)
}

// Deps are the collaborators handed to New. Only MQTT and RateLimiter
// may be nil.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Auth     *auth.Service
	Owner    *ownership.Service
	Pipeline *telemetry.Pipeline
	Parser   *telemetry.PayloadParser

	// Database is checked by /health. Required.
	Database HealthChecker

	// MQTT is reported by /metrics when set.
	MQTT interface{ IsConnected() bool }

	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter RateLimiter

	Version string
}

// Server serves the REST surface: accounts, devices, outputs, readings,
// ingest and the audit trail.
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	auth        *auth.Service
	owner       *ownership.Service
	pipeline    *telemetry.Pipeline
	parser      *telemetry.PayloadParser
	database    HealthChecker
	mqtt        interface{ IsConnected() bool }
	rateLimiter RateLimiter
	version     string
	startTime   time.Time
	ingest      ingestCounters
	server      *http.Server
	handler     http.Handler
}

// New builds the router; nothing listens until Start.
func New(deps Deps) (*Server, error) {
	for _, dep := range []struct {
		name    string
		missing bool
	}{
		{"logger", deps.Logger == nil},
		{"auth service", deps.Auth == nil},
		{"ownership service", deps.Owner == nil},
		{"pipeline", deps.Pipeline == nil},
		{"payload parser", deps.Parser == nil},
		{"database", deps.Database == nil},
	} {
		if dep.missing {
			return nil, fmt.Errorf("api: %s is required", dep.name)
		}
	}

	s := &Server{
		cfg:         deps.Config,
		logger:      deps.Logger.With("component", "api"),
		auth:        deps.Auth,
		owner:       deps.Owner,
		pipeline:    deps.Pipeline,
		parser:      deps.Parser,
		database:    deps.Database,
		mqtt:        deps.MQTT,
		rateLimiter: deps.RateLimiter,
		version:     deps.Version,
		startTime:   time.Now(),
	}
	s.handler = s.buildRouter()
	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler { return s.handler }

// Start binds the listen address and serves in the background. Bind
// errors are returned; later serve errors are only logged.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	read := time.Duration(s.cfg.Timeouts.Read) * time.Second
	s.server = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	tls := s.cfg.TLS
	s.logger.Info("API server listening", "address", ln.Addr().String(), "tls", tls.Enabled)
	go func() {
		var serveErr error
		if tls.Enabled {
			serveErr = s.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			serveErr = s.server.Serve(ln)
		}
		if !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("API server stopped", "error", serveErr)
		}
	}()
	return nil
}

// Close drains in-flight requests for up to shutdownGrace, then drops
// whatever is left.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck fails until Start has bound the listener.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
