package main

import (
	"context"
	"net/url"
	"time"

	"github.com/agentuity/go-cache/logger"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

type telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	loggerProvider *sdklog.LoggerProvider
}

// newTelemetry exports spans and logs over OTLP/HTTP to serverURL.
func newTelemetry(ctx context.Context, serverURL string, authToken string) (*telemetry, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse otlp url")
	}
	insecure := u.Scheme == "http"
	headers := make(map[string]string)
	if authToken != "" {
		headers["Authorization"] = "Bearer " + authToken
	}

	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName("cachectl")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create resource")
	}

	u.Path = "/v1/traces"
	traceOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(u.String()),
		otlptracehttp.WithHeaders(headers),
		otlptracehttp.WithTimeout(10 * time.Second),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
	}
	traceExporter, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "create trace exporter")
	}

	u.Path = "/v1/logs"
	logOpts := []otlploghttp.Option{
		otlploghttp.WithEndpointURL(u.String()),
		otlploghttp.WithHeaders(headers),
		otlploghttp.WithTimeout(10 * time.Second),
		otlploghttp.WithCompression(otlploghttp.GzipCompression),
	}
	if insecure {
		logOpts = append(logOpts, otlploghttp.WithInsecure())
	}
	logExporter, err := otlploghttp.New(ctx, logOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "create log exporter")
	}

	return &telemetry{
		tracerProvider: sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter), sdktrace.WithResource(res)),
		loggerProvider: sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		),
	}, nil
}

// Logger returns a logger emitting to the OTLP server.
func (t *telemetry) Logger(level logger.LogLevel) logger.Logger {
	return logger.NewOtelLogger(t.loggerProvider.Logger("cachectl"), level)
}

// Shutdown flushes pending spans and logs.
func (t *telemetry) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return errors.CombineErrors(t.tracerProvider.Shutdown(ctx), t.loggerProvider.Shutdown(ctx))
}
