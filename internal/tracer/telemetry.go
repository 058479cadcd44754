package tracer

import (
	"context"
	"sync"

	"robotics-catalog/internal/config"
	"robotics-catalog/internal/logger"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/grafana/pyroscope-go"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

var (
	once         sync.Once
	shutdownFunc = func() {}
	initErr      error
)

var pyroLogrus = func() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}()

// newExporter picks OTLP when a collector is configured and pretty stdout
// output in development. Nil means spans are kept for log correlation only.
func newExporter(ctx context.Context, cfg *config.Config) (sdktrace.SpanExporter, error) {
	switch {
	case cfg.RemoteTraceRpcURI != "":
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(cfg.RemoteTraceRpcURI),
			otlptracegrpc.WithCompressor("gzip"),
		)
	case cfg.IsDevelopment():
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, nil
	}
}

// Instance installs the global tracer provider and the Pyroscope agent once.
// The returned func flushes pending spans.
func Instance(ctx context.Context, cfg *config.Config) (func(), error) {
	once.Do(func() {
		exp, err := newExporter(ctx, cfg)
		if err != nil {
			logger.Error(ctx, "Failed to create trace exporter", logger.Err(err))
			initErr = err
			return
		}

		res, err := resource.New(ctx,
			resource.WithAttributes(
				semconv.ServiceNameKey.String(cfg.AppName),
				attribute.String("env", cfg.AppEnv),
			),
		)
		if err != nil {
			logger.Error(ctx, "Failed to create resource", logger.Err(err))
			initErr = err
			return
		}

		opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
		if exp != nil {
			opts = append(opts, sdktrace.WithBatcher(exp))
		}
		tp := sdktrace.NewTracerProvider(opts...)

		if cfg.RemoteProfilingHttpURI != "" {
			otel.SetTracerProvider(otelpyroscope.NewTracerProvider(tp))

			if _, err := pyroscope.Start(pyroscope.Config{
				ApplicationName: cfg.AppName,
				ServerAddress:   cfg.RemoteProfilingHttpURI,
				Logger:          pyroLogrus,
			}); err != nil {
				logger.Error(ctx, "Pyroscope failed to start", logger.Err(err))
			} else {
				logger.Info(ctx, "Pyroscope started successfully")
			}
		} else {
			otel.SetTracerProvider(tp)
		}

		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

		logger.Info(ctx, "OpenTelemetry Tracer initialized")

		shutdownFunc = func() {
			if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Error(ctx, "Error shutting down tracer provider", logger.Err(err))
			}
		}
	})

	return shutdownFunc, initErr
}
