package telemetry

import (
	"context"
	"time"

	"jobtrends/common/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	tracer "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func String(key string, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func Int(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}

func Float64(key string, value float64) attribute.KeyValue {
	return attribute.Float64(key, value)
}

func Bool(key string, value bool) attribute.KeyValue {
	return attribute.Bool(key, value)
}

const defaultVersion = "1.0.0"

type Options struct {
	ServiceName  string
	Version      string
	CollectorURL string
	BatchTimeout time.Duration
}

// InitTracer installs a batching OTLP exporter as the global tracer
// provider. With no collector URL only the propagator is installed and
// spans stay in-process. The returned func flushes and closes the exporter.
func InitTracer(ctx context.Context, opts Options, logger *zap.Logger) (func(context.Context), error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	if opts.CollectorURL == "" {
		logger.Debug("no trace collector configured", zap.String("service", opts.ServiceName))
		return func(context.Context) {}, nil
	}
	if opts.Version == "" {
		opts.Version = defaultVersion
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = 5 * time.Second
	}

	conn, err := grpc.DialContext(ctx, opts.CollectorURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Unavailable("dial trace collector "+opts.CollectorURL, err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		_ = conn.Close()
		return nil, errors.Unavailable("create trace exporter", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.Version),
		),
	)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Internal("create trace resource", err)
	}

	tracerProvider := trace.NewTracerProvider(
		trace.WithSampler(trace.AlwaysSample()),
		trace.WithResource(res),
		trace.WithSpanProcessor(trace.NewBatchSpanProcessor(exporter, trace.WithBatchTimeout(opts.BatchTimeout))),
	)
	otel.SetTracerProvider(tracerProvider)

	logger.Info("tracing enabled",
		zap.String("service", opts.ServiceName),
		zap.String("collector", opts.CollectorURL))

	return func(ctx context.Context) {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.Warn("failed to flush tracer provider", zap.Error(err))
		}
		if err := conn.Close(); err != nil {
			logger.Warn("failed to close trace collector connection", zap.Error(err))
		}
	}, nil
}

// GetTracer returns an OpenTelemetry tracer for the specified service name.
func GetTracer(serviceName string) tracer.Tracer {
	return otel.GetTracerProvider().Tracer(serviceName)
}
