package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/yungbote/buddybot-backend/internal/pkg/logger"
)

const defaultSampleRatio = 0.1

type OtelConfig struct {
	Enabled     bool
	ServiceName string
	Environment string
	Version     string
	// Exporter is "otlp" or "stdout". otlp without an endpoint falls back to stdout.
	Exporter    string
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

func (c OtelConfig) service() string {
	if s := strings.TrimSpace(c.ServiceName); s != "" {
		return s
	}
	return "buddybot"
}

func (c OtelConfig) ratio() float64 {
	switch {
	case c.SampleRatio <= 0:
		return defaultSampleRatio
	case c.SampleRatio > 1:
		return 1
	}
	return c.SampleRatio
}

func (c OtelConfig) useOTLP() bool {
	return strings.EqualFold(strings.TrimSpace(c.Exporter), "otlp") && strings.TrimSpace(c.Endpoint) != ""
}

// NewTracerProvider builds a provider for cfg without installing it globally.
func NewTracerProvider(ctx context.Context, cfg OtelConfig) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(cfg.service()),
		semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	))
	if err != nil {
		// Schema URL clashes still yield a usable merged resource.
		res = resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.service()))
	}

	var exp sdktrace.SpanExporter
	if cfg.useOTLP() {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(strings.TrimSpace(cfg.Endpoint))}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err = otlptracehttp.New(ctx, opts...)
	} else {
		exp, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.ratio()))),
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)),
	), nil
}

// InitOTel installs the global tracer provider and W3C propagators.
// It returns nil when tracing is disabled or the exporter could not be built.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	if !cfg.Enabled {
		return nil
	}
	tp, err := NewTracerProvider(ctx, cfg)
	if err != nil {
		if log != nil {
			log.Warn("tracing disabled", "error", err)
		}
		return nil
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	if log != nil {
		log.Info("tracing enabled", "service", cfg.service(), "otlp", cfg.useOTLP(), "sample_ratio", cfg.ratio())
	}
	return tp.Shutdown
}
