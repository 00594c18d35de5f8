package admind

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/presbrey/ircd/irc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) route(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})))

	api := e.Group("/api")
	api.GET("/stats", s.handleStats)
	api.GET("/channels", s.handleChannels)
	api.GET("/channels/:name", s.handleChannel)
	api.GET("/audit", s.handleAudit)
}

type statsResponse struct {
	Name       string    `json:"name"`
	Network    string    `json:"network"`
	Started    time.Time `json:"started"`
	Uptime     float64   `json:"uptime_seconds"`
	Sessions   int       `json:"sessions"`
	Registered int       `json:"registered"`
	Channels   int       `json:"channels"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(c echo.Context) error {
	snap := s.state.Snapshot()
	return c.JSON(http.StatusOK, statsResponse{
		Name:       s.cfg.Server.Name,
		Network:    s.cfg.Server.Network,
		Started:    snap.Started,
		Uptime:     time.Since(snap.Started).Seconds(),
		Sessions:   snap.Sessions,
		Registered: snap.Registered,
		Channels:   len(snap.Channels),
	})
}

func (s *Server) handleChannels(c echo.Context) error {
	return c.JSON(http.StatusOK, s.state.Snapshot().Channels)
}

// handleChannel accepts the name with or without its leading '#'.
func (s *Server) handleChannel(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed channel name")
	}
	if !strings.HasPrefix(name, string(irc.ChannelSigil)) {
		name = string(irc.ChannelSigil) + name
	}
	info, ok := s.state.Snapshot().Channel(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no such channel")
	}
	return c.JSON(http.StatusOK, info)
}

type auditQuery struct {
	Channel string `query:"channel" json:"channel" validate:"omitempty,startswith=#"`
	Limit   int    `query:"limit" json:"limit" validate:"gte=0,lte=1000"`
}

func (s *Server) handleAudit(c echo.Context) error {
	if s.audit == nil {
		return echo.NewHTTPError(http.StatusNotFound, "audit log disabled")
	}
	var q auditQuery
	if err := c.Bind(&q); err != nil {
		return err
	}
	if err := c.Validate(&q); err != nil {
		return err
	}
	events, err := s.audit.Recent(c.Request().Context(), q.Channel, q.Limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}
