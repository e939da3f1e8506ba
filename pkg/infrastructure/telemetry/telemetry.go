package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Config configures the tracer and meter providers
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string // host:port or full URL of an OTLP/HTTP collector
	SamplingRatio  float64
}

// Providers holds the installed providers. Metrics are always collected in process through a manual
// reader; spans are exported only when tracing is enabled.
type Providers struct {
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
	reader *sdkmetric.ManualReader
	logger *zap.Logger
}

// Setup installs global tracer and meter providers
func Setup(ctx context.Context, cfg Config, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "csatrack"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", name),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewManualReader()
	p := &Providers{
		meter:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res)),
		reader: reader,
		logger: logger,
	}
	otel.SetMeterProvider(p.meter)

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return p, nil
	}

	exporter, err := newExporter(ctx, strings.TrimSpace(cfg.Endpoint))
	if err != nil {
		return nil, err
	}

	ratio := clampRatio(cfg.SamplingRatio)
	p.tracer = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(p.tracer)

	logger.Info("tracing initialized",
		zap.String("endpoint", cfg.Endpoint),
		zap.Float64("sampling_ratio", ratio),
	)
	return p, nil
}

// Collect reads the current value of every instrument
func (p *Providers) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// Shutdown flushes pending spans and stops both providers
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracer != nil {
		p.logger.Info("shutting down tracer provider")
		errs = append(errs, p.tracer.Shutdown(ctx))
	}
	errs = append(errs, p.meter.Shutdown(ctx))
	return errors.Join(errs...)
}

func newExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var opts []otlptracehttp.Option
	switch {
	case strings.Contains(endpoint, "://"):
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	case endpoint != "":
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func clampRatio(value float64) float64 {
	if value <= 0 {
		return 0.1
	}
	if value > 1 {
		return 1
	}
	return value
}
