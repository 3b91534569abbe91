package proref

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	prerrors "github.com/randalmurphal/proref/errors"
)

const meterScope = "github.com/randalmurphal/proref"

// metrics are the engine's OTel instruments. With no meter provider
// installed they are no-ops.
type metrics struct {
	tickets  metric.Int64Counter
	batches  metric.Float64Histogram
	attempts metric.Int64Histogram
}

func newMetrics(m metric.Meter) *metrics {
	if m == nil {
		m = otel.Meter(meterScope)
	}
	tickets, _ := m.Int64Counter("proref.stage.tickets",
		metric.WithDescription("Tickets processed per stage and outcome"),
		metric.WithUnit("{ticket}"),
	)
	batches, _ := m.Float64Histogram("proref.stage.duration",
		metric.WithDescription("Batch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	attempts, _ := m.Int64Histogram("proref.retry.attempts",
		metric.WithDescription("Attempts per external call"),
		metric.WithUnit("{attempt}"),
	)
	return &metrics{tickets: tickets, batches: batches, attempts: attempts}
}

func (m *metrics) ticket(ctx context.Context, stage string, outcome Outcome) {
	m.tickets.Add(ctx, 1, metric.WithAttributes(
		attribute.String("proref.stage", stage),
		attribute.String("proref.outcome", string(outcome)),
	))
}

func (m *metrics) batch(ctx context.Context, stage string, status BatchStatus, d time.Duration) {
	m.batches.Record(ctx, float64(d.Microseconds())/1000, metric.WithAttributes(
		attribute.String("proref.stage", stage),
		attribute.String("proref.status", string(status)),
	))
}

func (m *metrics) call(ctx context.Context, op string, attempts int, err error) {
	kind := "ok"
	if err != nil {
		kind = string(prerrors.Classify(err))
	}
	m.attempts.Record(ctx, int64(attempts), metric.WithAttributes(
		attribute.String("proref.op", op),
		attribute.String("proref.result", kind),
	))
}
