// Package obstracing wraps OpenTelemetry span creation around pipeline
// stages. It is adapted from the teacher's pkg/tracing.TracingManager: same
// exporter/resource/provider construction, trimmed to the single OTLP-HTTP
// exporter this repo carries forward (the teacher's jaeger exporter is
// dropped, see DESIGN.md) and repurposed from per-log-line tracing to
// per-orchestrator-stage spans.
package obstracing

import (
	"context"
	"fmt"
	"time"

	"logforensics/internal/config"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Manager owns the tracer provider lifecycle for the process.
type Manager struct {
	cfg      config.TracingConfig
	logger   *logrus.Logger
	provider *trace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewManager builds a Manager. When cfg.Enabled is false, it returns a
// no-op tracer so callers never need to branch on whether tracing is on.
func NewManager(cfg config.TracingConfig, logger *logrus.Logger) (*Manager, error) {
	if !cfg.Enabled {
		return &Manager{cfg: cfg, logger: logger, tracer: otel.Tracer("noop")}, nil
	}

	m := &Manager{cfg: cfg, logger: logger}
	if err := m.initialize(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initialize() error {
	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(
		otlptracehttp.WithEndpoint(m.cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	))
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"https://opentelemetry.io/schemas/1.21.0",
			attribute.String("service.name", m.cfg.ServiceName),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to build trace resource: %w", err)
	}

	m.provider = trace.NewTracerProvider(
		trace.WithBatcher(exporter,
			trace.WithBatchTimeout(5*time.Second),
			trace.WithMaxExportBatchSize(512),
		),
		trace.WithResource(res),
	)

	otel.SetTracerProvider(m.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	m.tracer = otel.Tracer(m.cfg.ServiceName)

	m.logger.WithFields(logrus.Fields{
		"service_name": m.cfg.ServiceName,
		"endpoint":     m.cfg.OTLPEndpoint,
	}).Info("distributed tracing initialized")
	return nil
}

// Shutdown flushes and stops the tracer provider, if any.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// Stage starts a span named for a single orchestrator stage and returns the
// derived context plus a finish function that records the error (if any)
// and ends the span. Callers wrap each of the six orchestrator stages:
//
//	ctx, end := mgr.Stage(ctx, "extract_parameters")
//	defer end(&err)
func (m *Manager) Stage(ctx context.Context, stageName string) (context.Context, func(errp *error)) {
	ctx, span := m.tracer.Start(ctx, stageName, oteltrace.WithAttributes(
		attribute.String("pipeline.stage", stageName),
	))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}

// Tracer exposes the underlying OTel tracer for components that need finer
// grained spans than one per orchestrator stage (e.g. one span per trace in
// C9/C10's bounded worker pool).
func (m *Manager) Tracer() oteltrace.Tracer {
	return m.tracer
}
