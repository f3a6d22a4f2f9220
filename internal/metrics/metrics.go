// Package metrics records what an export run did and can write the result
// in the Prometheus text format for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the counters for a single export run
type Recorder struct {
	registry *prometheus.Registry
	labels   prometheus.Labels

	objectsListed  *prometheus.CounterVec
	bytesFetched   *prometheus.CounterVec
	recordsWritten *prometheus.CounterVec
	recordsSkipped *prometheus.CounterVec
	lastSuccess    *prometheus.GaugeVec
	duration       *prometheus.GaugeVec
}

// NewRecorder creates a Recorder whose series are labelled with bucket and prefix
func NewRecorder(bucket, prefix string) *Recorder {
	labelNames := []string{"bucket", "prefix"}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		labels: prometheus.Labels{
			"bucket": bucket,
			"prefix": prefix,
		},
		objectsListed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handle_exporter_objects_listed_total",
				Help: "Number of report objects returned by the listing",
			},
			labelNames,
		),
		bytesFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handle_exporter_bytes_fetched_total",
				Help: "Total size of report bodies downloaded",
			},
			labelNames,
		),
		recordsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handle_exporter_records_written_total",
				Help: "Number of handle lines written to the output file",
			},
			labelNames,
		),
		recordsSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handle_exporter_records_skipped_total",
				Help: "Number of malformed reports skipped",
			},
			append(labelNames, "reason"),
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "handle_exporter_last_run_success",
				Help: "1 if the last export run completed, 0 otherwise",
			},
			labelNames,
		),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "handle_exporter_last_run_duration_seconds",
				Help: "Wall time of the last export run",
			},
			labelNames,
		),
	}

	r.registry.MustRegister(
		r.objectsListed,
		r.bytesFetched,
		r.recordsWritten,
		r.recordsSkipped,
		r.lastSuccess,
		r.duration,
	)

	return r
}

// ObjectListed counts one listed object
func (r *Recorder) ObjectListed() {
	r.objectsListed.With(r.labels).Inc()
}

// BytesFetched adds a downloaded body size
func (r *Recorder) BytesFetched(n int) {
	r.bytesFetched.With(r.labels).Add(float64(n))
}

// RecordWritten counts one written line
func (r *Recorder) RecordWritten() {
	r.recordsWritten.With(r.labels).Inc()
}

// RecordSkipped counts one skipped report
func (r *Recorder) RecordSkipped(reason string) {
	r.recordsSkipped.With(r.withReason(reason)).Inc()
}

// Finish records the outcome and duration of the run
func (r *Recorder) Finish(success bool, elapsed time.Duration) {
	value := 0.0
	if success {
		value = 1
	}
	r.lastSuccess.With(r.labels).Set(value)
	r.duration.With(r.labels).Set(elapsed.Seconds())
}

// Gatherer exposes the underlying registry
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes all series to path atomically
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

func (r *Recorder) withReason(reason string) prometheus.Labels {
	labels := prometheus.Labels{"reason": reason}
	for k, v := range r.labels {
		labels[k] = v
	}
	return labels
}
