package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	config "github.com/forlulz/spring-batch/pkg/batch/core/config"
	metrics "github.com/forlulz/spring-batch/pkg/batch/core/metrics"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/exception"
	"github.com/forlulz/spring-batch/pkg/batch/support/util/logger"
)

const moduleName = "metrics"

func newResource(cfg *config.ObservabilityConfig) *resource.Resource {
	return resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
}

func newSpanExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case config.ExporterOTLPGRPC:
		opts := []otlptracegrpc.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case config.ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	case config.ExporterNone, "":
		return nil, nil
	default:
		return nil, exception.NewConfigurationError(moduleName, fmt.Sprintf("unknown tracing exporter '%s'", cfg.Exporter))
	}
}

func newMetricExporter(ctx context.Context, cfg config.MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.Exporter {
	case config.ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case config.ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	case config.ExporterNone, "":
		return nil, nil
	default:
		return nil, exception.NewConfigurationError(moduleName, fmt.Sprintf("unknown metrics exporter '%s'", cfg.Exporter))
	}
}

// NewTracerProvider builds the SDK tracer provider. Spans are batched to the
// configured OTLP exporter; with no exporter they are sampled but dropped.
// The provider is flushed and shut down on application stop.
func NewTracerProvider(lc fx.Lifecycle, cfg *config.ObservabilityConfig) (*sdktrace.TracerProvider, error) {
	exporter, err := newSpanExporter(context.Background(), cfg.Tracing)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create span exporter", err, false, false)
	}
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(newResource(cfg))}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Infof("Tracing: exporting spans via %s to '%s'.", cfg.Tracing.Exporter, cfg.Tracing.Endpoint)
	}
	tp := sdktrace.NewTracerProvider(opts...)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp, nil
}

// NewTracer adapts the SDK provider to the core Tracer port.
func NewTracer(tp *sdktrace.TracerProvider) metrics.Tracer {
	return NewOpenTelemetryTracer(tp)
}

// NewMetricRecorder selects the recorder for cfg.Metrics.Backend.
func NewMetricRecorder(lc fx.Lifecycle, cfg *config.ObservabilityConfig) (metrics.MetricRecorder, error) {
	switch cfg.Metrics.Backend {
	case config.MetricsBackendPrometheus, "":
		return NewPrometheusRecorder(), nil
	case config.MetricsBackendOTel:
		return newOTelMetricRecorder(lc, cfg)
	case config.MetricsBackendNone:
		return metrics.NewNoOpMetricRecorder(), nil
	default:
		return nil, exception.NewConfigurationError(moduleName, fmt.Sprintf("unknown metrics backend '%s'", cfg.Metrics.Backend))
	}
}

func newOTelMetricRecorder(lc fx.Lifecycle, cfg *config.ObservabilityConfig) (metrics.MetricRecorder, error) {
	exporter, err := newMetricExporter(context.Background(), cfg.Metrics)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create metric exporter", err, false, false)
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(newResource(cfg))}
	if exporter != nil {
		interval := time.Duration(cfg.Metrics.IntervalSeconds) * time.Second
		if interval <= 0 {
			interval = time.Minute
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))))
		logger.Infof("Metrics: exporting via %s to '%s' every %s.", cfg.Metrics.Exporter, cfg.Metrics.Endpoint, interval)
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return mp.Shutdown(ctx)
		},
	})
	return NewOpenTelemetryRecorder(mp)
}
