// Package observability owns the Prometheus collectors for ingestion and validation runs.
package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "reps"

// Ingest results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

var (
	subjectsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "subjects_total",
		Help:      "Subjects processed by the ingestor, partitioned by result.",
	}, []string{"result"})
	imuRowsAppended = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "imu_rows_total",
		Help:      "Aligned IMU rows appended to the warehouse.",
	}, []string{"session"})
	segmentsAppended = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "label_segments_total",
		Help:      "Label segments appended to the warehouse.",
	}, []string{"session"})
	offGridSamples = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "off_grid_samples_total",
		Help:      "Raw sensor rows whose timestamp did not fall on the 10ms grid.",
	})
	ingestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "subject_duration_seconds",
		Help:      "Time spent ingesting one subject.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	lastIngestGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "last_subject_ingested_timestamp_seconds",
		Help:      "Unix timestamp of the most recent subject committed to the warehouse.",
	})
	violationsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "validation",
		Name:      "violations",
		Help:      "Violations reported by the most recent validation run, per rule.",
	}, []string{"rule"})
	lastValidationGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "validation",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the most recent validation run.",
	})
)

func init() {
	prometheus.MustRegister(
		subjectsIngested,
		imuRowsAppended,
		segmentsAppended,
		offGridSamples,
		ingestDuration,
		lastIngestGauge,
		violationsGauge,
		lastValidationGauge,
	)
}

// RecordSubject counts a processed subject and observes its duration.
func RecordSubject(result string, elapsed time.Duration) {
	subjectsIngested.WithLabelValues(result).Inc()
	ingestDuration.Observe(elapsed.Seconds())
	if result == ResultSuccess {
		lastIngestGauge.Set(float64(time.Now().Unix()))
	}
}

// RecordAppended counts rows committed for one session.
func RecordAppended(session string, samples, segments int) {
	imuRowsAppended.WithLabelValues(session).Add(float64(samples))
	segmentsAppended.WithLabelValues(session).Add(float64(segments))
}

// RecordOffGrid counts raw rows dropped by alignment.
func RecordOffGrid(n int) {
	if n > 0 {
		offGridSamples.Add(float64(n))
	}
}

// RecordValidation sets the per-rule violation gauge for a finished run.
func RecordValidation(ts time.Time, violations map[string]int) {
	for rule, n := range violations {
		violationsGauge.WithLabelValues(rule).Set(float64(n))
	}
	if !ts.IsZero() {
		lastValidationGauge.Set(float64(ts.Unix()))
	}
}

// Push sends the default registry to a Pushgateway under job. An empty url is a no-op.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	return push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("instance", "reps").
		PushContext(ctx)
}
