package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the claim check instruments
type Metrics struct {
	Checks           metric.Int64Counter
	CheckDuration    metric.Float64Histogram
	FeasibilityScore metric.Int64Histogram
	ChunksUsed       metric.Int64Histogram
}

// NewMetrics creates the instruments on the global meter provider
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(serviceName)

	checks, err := meter.Int64Counter(
		"claimcheck.checks",
		metric.WithDescription("Claim checks by outcome"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"claimcheck.check.duration",
		metric.WithDescription("Claim check duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	score, err := meter.Int64Histogram(
		"claimcheck.feasibility_score",
		metric.WithDescription("Feasibility scores of successful checks"),
	)
	if err != nil {
		return nil, err
	}

	chunks, err := meter.Int64Histogram(
		"claimcheck.chunks_used",
		metric.WithDescription("Evidence chunks sent to analysis"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Checks:           checks,
		CheckDuration:    duration,
		FeasibilityScore: score,
		ChunksUsed:       chunks,
	}, nil
}

// RecordCheck records one finished check; outcome is "ok" or an error kind
func (m *Metrics) RecordCheck(ctx context.Context, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Checks.Add(ctx, 1, attrs)
	m.CheckDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordScore records the score and evidence size of a successful check
func (m *Metrics) RecordScore(ctx context.Context, status string, score, chunks int) {
	attrs := metric.WithAttributes(attribute.String("coverage_status", status))
	m.FeasibilityScore.Record(ctx, int64(score), attrs)
	m.ChunksUsed.Record(ctx, int64(chunks))
}
