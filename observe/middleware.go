package observe

import (
	"context"
	"time"
)

// OpFunc is the signature Middleware wraps.
type OpFunc func(ctx context.Context) error

// Middleware wraps an operation with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components become no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  LoggerOr(logger),
	}
}

// NopMiddleware returns a Middleware that records nothing.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger {
	if m == nil {
		return NopLogger()
	}
	return m.logger
}

// Run executes fn inside a span, records its metrics and logs the outcome.
// A nil Middleware runs fn directly.
func (m *Middleware) Run(ctx context.Context, meta OpMeta, fn OpFunc) error {
	if m == nil {
		return fn(ctx)
	}

	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	err := fn(ctx)

	duration := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordOp(ctx, meta, duration, err)

	opLogger := m.logger.With(meta)
	fields := []Field{F("duration_ms", float64(duration.Milliseconds()))}
	if err != nil {
		fields = append(fields, F("error", err))
		opLogger.Warn(ctx, "operation failed", fields...)
	} else {
		opLogger.Debug(ctx, "operation completed", fields...)
	}

	return err
}
