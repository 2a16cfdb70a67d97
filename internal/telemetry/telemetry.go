// Package telemetry wires the global OpenTelemetry trace and metric
// providers for orchestd.
package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpcinsecure "google.golang.org/grpc/credentials/insecure"

	"github.com/fyrsmithlabs/orchestd/internal/config"
)

// Provider owns the SDK trace and metric providers plus the shared gRPC
// connection both OTLP exporters multiplex over. A disabled config yields
// a Provider whose Shutdown is a no-op, leaving the default no-op globals
// in place.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	conn           *grpc.ClientConn
	logger         *zap.Logger
	shutdownGrace  config.Duration
}

// New builds OTLP gRPC exporters per the config and installs them as the
// global otel providers.
func New(ctx context.Context, cfg *config.TelemetryConfig, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("telemetry")

	if !cfg.Enabled {
		logger.Debug("telemetry disabled")
		return &Provider{logger: logger}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if cfg.Insecure {
		creds = grpcinsecure.NewCredentials()
	}
	conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to dial collector %s: %w", cfg.Endpoint, err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
		sdktrace.WithBatcher(traceExporter),
	)
	otel.SetTracerProvider(tracerProvider)

	metricExporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(cfg.MetricInterval.Duration()))),
	)
	otel.SetMeterProvider(meterProvider)

	logger.Info("telemetry enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.Float64("sample_rate", cfg.SampleRate),
	)

	return &Provider{
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		conn:           conn,
		logger:         logger,
		shutdownGrace:  cfg.ShutdownGrace,
	}, nil
}

// Shutdown flushes and stops the providers and closes the collector
// connection, bounded by the configured grace period.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider == nil && p.meterProvider == nil {
		return nil
	}

	if p.shutdownGrace.Duration() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.shutdownGrace.Duration())
		defer cancel()
	}

	var firstErr error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.Warn("tracer provider shutdown failed", zap.Error(err))
			firstErr = err
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.Warn("meter provider shutdown failed", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
