package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/hupe1980/agentrail/logging"
	"github.com/hupe1980/agentrail/model"
	"github.com/hupe1980/agentrail/observability"
	"github.com/hupe1980/agentrail/runner"
)

// NewLogger builds the logger described by the logging section.
func (c *Config) NewLogger() logging.Logger {
	lc := logging.DefaultLoggerConfig()
	lc.Level = logging.ParseLevel(c.Logging.Level)
	lc.Format = c.Logging.Format
	return logging.NewLogger(lc)
}

// Runtime bundles a runner with the observability components built for it.
type Runtime struct {
	Runner  *runner.Runner
	Model   model.Model
	Logger  logging.Logger
	Tracer  *observability.Tracer
	Metrics *observability.Metrics

	registry      *prometheus.Registry
	meterProvider *sdkmetric.MeterProvider
}

// Build creates the model, logger, tracer and metrics described by c and a
// runner using them. Call Shutdown when done.
func (c *Config) Build(ctx context.Context) (*Runtime, error) {
	m, err := NewModel(ctx, c.Model)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Model: m, Logger: c.NewLogger()}

	if c.Tracing.Enabled {
		rt.Tracer, err = observability.NewTracer(ctx, &c.Tracing)
		if err != nil {
			return nil, fmt.Errorf("tracing: %w", err)
		}
	}

	if c.Metrics.Enabled {
		rt.registry = prometheus.NewRegistry()
		rt.Metrics, rt.meterProvider, err = observability.NewPrometheusMetrics(rt.registry)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("metrics: %w", err), rt.Tracer.Shutdown(ctx))
		}
	}

	rt.Runner = runner.New(c.RunnerOptions(rt))

	return rt, nil
}

// RunnerOptions maps the runner section and rt's components onto runner.Options.
func (c *Config) RunnerOptions(rt *Runtime) func(o *runner.Options) {
	return func(o *runner.Options) {
		o.MaxTurns = c.Runner.MaxTurns
		o.MaxGuardrailFanOut = c.Runner.MaxGuardrailFanOut
		o.MaxParallelTools = c.Runner.MaxParallelTools
		o.MaxConcurrentRuns = c.Runner.MaxConcurrentRuns
		o.EventBufferSize = c.Runner.EventBufferSize
		if rt == nil {
			return
		}
		o.Model = rt.Model
		o.Logger = rt.Logger
		o.Tracer = rt.Tracer
		o.Metrics = rt.Metrics
	}
}

// MetricsHandler returns the /metrics handler, or nil when metrics are disabled.
func (rt *Runtime) MetricsHandler() http.Handler {
	if rt.registry == nil {
		return nil
	}
	return observability.Handler(rt.registry)
}

// Shutdown flushes spans and metric readers.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	var errs []error
	if err := rt.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if rt.meterProvider != nil {
		if err := rt.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
