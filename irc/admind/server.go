// Package admind serves a read-only HTTP view of a running IRC server:
// health, statistics, channel state, the moderation audit trail and
// Prometheus metrics.
package admind

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/presbrey/ircd/irc/audit"
	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/server"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

// StateSource publishes server snapshots.
type StateSource interface {
	Snapshot() *server.Snapshot
}

// AuditLog answers audit queries.
type AuditLog interface {
	Recent(ctx context.Context, channel string, limit int) ([]audit.Event, error)
}

// Server is the admin HTTP server.
type Server struct {
	state    StateSource
	audit    AuditLog
	cfg      *config.Config
	registry *prometheus.Registry
	log      *slog.Logger
	echo     *echo.Echo
	metrics  *httpMetrics
}

// Option configures the admin server.
type Option func(*Server)

// WithAuditLog enables /api/audit.
func WithAuditLog(log AuditLog) Option {
	return func(s *Server) { s.audit = log }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.log = logger }
}

// New builds the admin server. registry is exposed on /metrics and also
// receives the HTTP request collectors.
func New(state StateSource, cfg *config.Config, registry *prometheus.Registry, opts ...Option) *Server {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	s := &Server{
		state:    state,
		cfg:      cfg,
		registry: registry,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newHTTPMetrics(registry)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.Use(middleware.Recover())
	e.Use(s.metrics.middleware())
	e.Use(s.requestLogger())
	if cfg.Admin.TokenHash != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			Skipper:   func(c echo.Context) bool { return c.Path() == "/healthz" },
			Validator: s.validateToken,
		}))
	}
	s.echo = e
	s.route(e)
	return s
}

func (s *Server) validateToken(key string, c echo.Context) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(s.cfg.Admin.TokenHash), []byte(key))
	return err == nil, nil
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug("admin request", "method", v.Method, "uri", v.URI, "status", v.Status, "error", v.Error)
			return nil
		},
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on the configured admin address until Shutdown.
func (s *Server) Start() error {
	addr := s.cfg.GetAdminListenAddress()
	s.log.Info("admin API listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
