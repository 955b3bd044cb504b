// Package telemetry wires OpenTelemetry tracing and metrics for gridcalc.
//
// Init installs global tracer and meter providers, so the spans and
// instruments the engine creates through otel.Tracer and otel.Meter start
// exporting. with both exporters set to "none" nothing is installed and the
// engine's instrumentation stays a no-op.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/vogtb/gridcalc/packages/config"
)

var (
	// ErrUnknownExporter is returned for an exporter name Init does not know
	ErrUnknownExporter = errors.New("unknown exporter")

	// ErrNilContext is returned when Init is called with a nil context
	ErrNilContext = errors.New("context must not be nil")
)

// Providers holds what Init installed, for flushing and metric dumps
type Providers struct {
	registry      *prometheus.Registry
	shutdownFuncs []func(context.Context) error
}

// Init builds the providers selected by cfg and installs them globally.
// stdout exporters write to w. call Shutdown before exit to flush batched
// spans and pending metric readings.
func Init(ctx context.Context, cfg config.Telemetry, version string, w io.Writer) (*Providers, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	p := &Providers{}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", version),
	)

	// globals are only installed once every provider is built; a failure
	// shuts down what was already created
	var tp *trace.TracerProvider
	if cfg.TraceExporter != "none" {
		var err error
		if tp, err = initTracer(cfg, res, w); err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown)
	}

	var mp *metric.MeterProvider
	if cfg.MetricExporter != "none" {
		var err error
		if mp, err = p.initMeter(cfg, res, w); err != nil {
			return nil, errors.Join(fmt.Errorf("init meter: %w", err), p.Shutdown(ctx))
		}
		p.shutdownFuncs = append(p.shutdownFuncs, mp.Shutdown)
	}

	if tp != nil {
		otel.SetTracerProvider(tp)
	}
	if mp != nil {
		otel.SetMeterProvider(mp)
	}
	return p, nil
}

func initTracer(cfg config.Telemetry, res *resource.Resource, w io.Writer) (*trace.TracerProvider, error) {
	switch cfg.TraceExporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create exporter: %w", err)
		}
		return trace.NewTracerProvider(
			trace.WithBatcher(exporter),
			trace.WithResource(res),
			trace.WithSampler(trace.AlwaysSample()),
		), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
}

func (p *Providers) initMeter(cfg config.Telemetry, res *resource.Resource, w io.Writer) (*metric.MeterProvider, error) {
	switch cfg.MetricExporter {
	case "prometheus":
		// a private registry keeps the dump to gridcalc's own series
		p.registry = prometheus.NewRegistry()
		exporter, err := promexporter.New(promexporter.WithRegisterer(p.registry))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		), nil

	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}

// Shutdown flushes and stops every installed provider
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdownFuncs = nil
	return errors.Join(errs...)
}

// HasRegistry reports whether the prometheus exporter is active
func (p *Providers) HasRegistry() bool {
	return p.registry != nil
}

// WriteMetrics writes the current metric values in the Prometheus text
// exposition format. it writes nothing unless the prometheus exporter is
// active.
func (p *Providers) WriteMetrics(w io.Writer) error {
	if p.registry == nil {
		return nil
	}
	families, err := p.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
