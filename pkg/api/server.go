// Package api serves the analytics engine as a JSON HTTP API.
//
// Endpoints:
//
//	GET /api/costs?timeRange=24h|7d|30d|lastMonth  -> engine.CostSummary
//	GET /api/instances                             -> {"instances": [...]}
//	GET /api/metrics?id=i-123&metric=cpu           -> [UtilizationSample]
//	GET /api/fleet                                 -> engine.FleetReport
//	GET /healthz                                   -> {"status": "ok"}
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DrSkyle/spendscope/pkg/analytics"
	"github.com/DrSkyle/spendscope/pkg/engine"
	"github.com/DrSkyle/spendscope/pkg/version"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/lo"
)

// DefaultTimeRange is used when a costs request names none.
const DefaultTimeRange = engine.Range7d

// Service is the engine surface the API exposes.
type Service interface {
	ComputeCostSummary(ctx context.Context, tr engine.TimeRange) (*engine.CostSummary, error)
	ListInstances(ctx context.Context) ([]engine.Instance, error)
	InstanceMetrics(ctx context.Context, id string, metric analytics.Metric) ([]analytics.UtilizationSample, error)
	FleetStatus(ctx context.Context) (*engine.FleetReport, error)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// InstancesResponse wraps the inventory listing.
type InstancesResponse struct {
	Instances []engine.Instance `json:"instances"`
}

// Server wires the routes onto an echo instance.
type Server struct {
	echo    *echo.Echo
	service Service
	logger  *slog.Logger
}

func NewServer(svc Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, service: svc, logger: logger}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				logger.Warn("Request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Debug("Request served", attrs...)
			return nil
		},
	}))

	e.GET("/healthz", s.health)
	g := e.Group("/api")
	g.GET("/costs", s.costs)
	g.GET("/instances", s.instances)
	g.GET("/metrics", s.metrics)
	g.GET("/fleet", s.fleet)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("API listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Current,
	})
}

func (s *Server) costs(c echo.Context) error {
	raw := c.QueryParam("timeRange")
	if raw == "" {
		raw = string(DefaultTimeRange)
	}
	tr, err := engine.ParseTimeRange(raw)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid time range", Details: err.Error()})
	}

	summary, err := s.service.ComputeCostSummary(c.Request().Context(), tr)
	if err != nil {
		return s.fail(c, "Failed to fetch costs", err)
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) instances(c echo.Context) error {
	instances, err := s.service.ListInstances(c.Request().Context())
	if err != nil {
		return s.fail(c, "Failed to fetch instances", err)
	}
	if instances == nil {
		instances = []engine.Instance{}
	}
	return c.JSON(http.StatusOK, InstancesResponse{Instances: instances})
}

func (s *Server) metrics(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing instanceId"})
	}

	raw := c.QueryParam("metric")
	if raw == "" {
		raw = string(analytics.MetricCPU)
	}
	metric, err := engine.ParseMetric(raw)
	if err != nil {
		names := lo.Map(analytics.AllMetrics, func(m analytics.Metric, _ int) string { return string(m) })
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid metric",
			Details: err.Error() + " (expected one of " + strings.Join(names, ", ") + ")",
		})
	}

	samples, err := s.service.InstanceMetrics(c.Request().Context(), id, metric)
	if err != nil {
		return s.fail(c, "Failed to fetch metrics", err)
	}
	if samples == nil {
		samples = []analytics.UtilizationSample{}
	}
	return c.JSON(http.StatusOK, samples)
}

func (s *Server) fleet(c echo.Context) error {
	report, err := s.service.FleetStatus(c.Request().Context())
	if err != nil {
		return s.fail(c, "Failed to fetch fleet status", err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) fail(c echo.Context, msg string, err error) error {
	s.logger.Error(msg,
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
		"error", err,
	)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msg, Details: err.Error()})
}
