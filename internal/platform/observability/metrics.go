package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/aurumcraft/api/internal/platform/observability")

// Metrics aggregates the pricing service instruments. A nil *Metrics is a
// valid no-op recorder so components can treat instrumentation as optional.
type Metrics struct {
	fetchTotal   metric.Int64Counter
	cacheReads   metric.Int64Counter
	calcTotal    metric.Int64Counter
	calcDuration metric.Float64Histogram
}

// NewMetrics registers the pricing instruments on the global meter.
func NewMetrics() (*Metrics, error) {
	fetchTotal, err := meter.Int64Counter("marketdata.fetch.total",
		metric.WithDescription("Market data fetch attempts by provider and outcome."))
	if err != nil {
		return nil, err
	}
	cacheReads, err := meter.Int64Counter("marketdata.cache.reads",
		metric.WithDescription("Market data cache reads by provider and freshness."))
	if err != nil {
		return nil, err
	}
	calcTotal, err := meter.Int64Counter("pricing.calculations.total",
		metric.WithDescription("Price calculations by outcome."))
	if err != nil {
		return nil, err
	}
	calcDuration, err := meter.Float64Histogram("pricing.calculation.duration",
		metric.WithDescription("Price calculation latency."),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		fetchTotal:   fetchTotal,
		cacheReads:   cacheReads,
		calcTotal:    calcTotal,
		calcDuration: calcDuration,
	}, nil
}

// RecordFetch counts one market-data fetch attempt.
func (m *Metrics) RecordFetch(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.fetchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

// RecordCacheRead counts one cache read with its observed freshness.
func (m *Metrics) RecordCacheRead(ctx context.Context, provider, freshness string) {
	if m == nil {
		return
	}
	m.cacheReads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("freshness", freshness),
	))
}

// ObserveCalculation records one price calculation and its latency.
func (m *Metrics) ObserveCalculation(ctx context.Context, elapsed time.Duration, outcome string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.calcTotal.Add(ctx, 1, attrs)
	m.calcDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}
