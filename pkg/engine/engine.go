package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/DrSkyle/spendscope/pkg/config"
	"github.com/DrSkyle/spendscope/pkg/telemetry"
	"github.com/DrSkyle/spendscope/pkg/version"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNoCostSource is returned when a summary is requested without a cost source.
	ErrNoCostSource = errors.New("no cost source configured")
	// ErrNoInstanceSource is returned when fleet data is requested without an inventory.
	ErrNoInstanceSource = errors.New("no instance source configured")
	// ErrNoMetricSource is returned when utilisation is requested without a metric source.
	ErrNoMetricSource = errors.New("no metric source configured")
)

// Engine is the analytics facade. It fetches from its sources and hands the
// results to the pure functions in package analytics.
type Engine struct {
	Logger *slog.Logger
	Tracer trace.Tracer

	// Sources.
	Costs     CostSource
	Metrics   MetricSource
	Instances InstanceSource
	Prices    PriceSource

	// Immutable config.
	config config.Config
	now    func() time.Time

	shutdown telemetry.Shutdown
}

// Option defines a functional configuration override.
type Option func(*Engine)

// New initializes the Engine.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		Logger: NewLogger(os.Stdout, false, false),
		Tracer: otel.Tracer("spendscope/engine"),
		config: config.DefaultConfig(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if !e.config.SkipTelemetry {
		shutdown, err := telemetry.Init(ctx, telemetry.Options{
			ServiceName:    version.AppName,
			ServiceVersion: version.Current,
			Endpoint:       e.config.OtelEndpoint,
		})
		if err != nil {
			e.Logger.Warn("Telemetry failed", "error", err)
		} else {
			e.shutdown = shutdown
		}
	}

	return e, nil
}

// Close flushes telemetry.
func (e *Engine) Close(ctx context.Context) error {
	if e.shutdown == nil {
		return nil
	}
	return e.shutdown(ctx)
}

// Config returns the engine configuration.
func (e *Engine) Config() config.Config {
	return e.config
}

// WithConfig sets raw config.
func WithConfig(cfg config.Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.Logger = l
		}
	}
}

// WithCostSource sets the billing source.
func WithCostSource(s CostSource) Option {
	return func(e *Engine) {
		e.Costs = s
	}
}

// WithMetricSource sets the utilisation source.
func WithMetricSource(s MetricSource) Option {
	return func(e *Engine) {
		e.Metrics = s
	}
}

// WithInstanceSource sets the inventory source.
func WithInstanceSource(s InstanceSource) Option {
	return func(e *Engine) {
		e.Instances = s
	}
}

// WithPriceSource sets the pricing provider.
func WithPriceSource(p PriceSource) Option {
	return func(e *Engine) {
		e.Prices = p
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewLogger builds the process logger: JSON or text on w, debug level when verbose.
// Sensitive attribute keys are redacted in both formats.
func NewLogger(w io.Writer, jsonLogs, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: redactSensitiveData,
	}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if jsonLogs {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// DiscardLogger drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// redactSensitiveData scrubs sensitive keys from logs.
func redactSensitiveData(groups []string, a slog.Attr) slog.Attr {
	sensitiveKeys := map[string]bool{
		"account": true, "password": true, "access_key": true, "token": true,
		"secret": true, "api_key": true, "private_key": true, "auth_token": true,
		"session_token": true, "credential": true, "signature": true,
	}

	if sensitiveKeys[a.Key] {
		return slog.Attr{
			Key:   a.Key,
			Value: slog.StringValue("[REDACTED]"),
		}
	}
	return a
}
