package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "taskdesk"

// Metrics holds all TaskDesk metric instruments.
type Metrics struct {
	CacheHits         metric.Int64Counter
	CacheMisses       metric.Int64Counter
	CacheFetches      metric.Int64Counter
	CacheDedups       metric.Int64Counter
	MutationsSucceeded metric.Int64Counter
	MutationsFailed   metric.Int64Counter
	JobsSubmitted     metric.Int64Counter
	JobDuration       metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.CacheHits, err = meter.Int64Counter("taskdesk.cache.hits",
		metric.WithDescription("Query cache reads served from memory"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("taskdesk.cache.misses",
		metric.WithDescription("Query cache reads with no entry"))
	if err != nil {
		return nil, err
	}

	m.CacheFetches, err = meter.Int64Counter("taskdesk.cache.fetches",
		metric.WithDescription("Loader calls issued by the query cache"))
	if err != nil {
		return nil, err
	}

	m.CacheDedups, err = meter.Int64Counter("taskdesk.cache.dedups",
		metric.WithDescription("Fetches joined to an in-flight request"))
	if err != nil {
		return nil, err
	}

	m.MutationsSucceeded, err = meter.Int64Counter("taskdesk.mutations.succeeded",
		metric.WithDescription("Mutations that settled successfully"))
	if err != nil {
		return nil, err
	}

	m.MutationsFailed, err = meter.Int64Counter("taskdesk.mutations.failed",
		metric.WithDescription("Mutations that settled with an error"))
	if err != nil {
		return nil, err
	}

	m.JobsSubmitted, err = meter.Int64Counter("taskdesk.jobs.submitted",
		metric.WithDescription("Spreadsheet jobs submitted"))
	if err != nil {
		return nil, err
	}

	m.JobDuration, err = meter.Float64Histogram("taskdesk.job.duration_seconds",
		metric.WithDescription("Spreadsheet job round-trip in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
