// Package metrics records pipeline counters for the node-exporter textfile
// collector. Runs are batch jobs, so nothing is served over HTTP.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"security-reviews/models"
)

const namespace = "security_reviews"

// Recorder holds one run's metrics in a private registry.
type Recorder struct {
	registry *prometheus.Registry

	stageRemoved  *prometheus.CounterVec
	records       *prometheus.GaugeVec
	retention     prometheus.Gauge
	collected     *prometheus.GaugeVec
	stageDuration *prometheus.HistogramVec
	lastSuccess   prometheus.Gauge
}

// New creates a Recorder with all metrics registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_removed_total",
				Help:      "Records removed by each cleaning stage",
			},
			[]string{"stage"},
		),
		records: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records",
				Help:      "Record counts before and after cleaning",
			},
			[]string{"phase"},
		),
		retention: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "retention_percent",
			Help:      "Share of input records that survived cleaning",
		}),
		collected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "collected_reviews",
				Help:      "Raw reviews collected per source",
			},
			[]string{"source"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of collect and clean runs",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"command"},
		),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
	}
	r.registry.MustRegister(r.stageRemoved, r.records, r.retention, r.collected, r.stageDuration, r.lastSuccess)
	return r
}

// ObserveCleaning records a cleaning report.
func (r *Recorder) ObserveCleaning(report *models.CleaningReport) {
	if report == nil {
		return
	}
	r.stageRemoved.WithLabelValues("empty_records").Add(float64(report.Steps.EmptyRecordsRemoved))
	r.stageRemoved.WithLabelValues("text_length").Add(float64(report.Steps.TextLengthFiltered))
	r.stageRemoved.WithLabelValues("duplicates").Add(float64(report.Steps.DuplicatesRemoved))
	r.stageRemoved.WithLabelValues("quality").Add(float64(report.Steps.QualityFiltered))

	r.records.WithLabelValues("original").Set(float64(report.OriginalCount))
	r.records.WithLabelValues("final").Set(float64(report.FinalCount))
	r.retention.Set(report.RetentionRate)
}

// ObserveCollection records how many reviews each source returned.
func (r *Recorder) ObserveCollection(perSource map[string]int) {
	for source, n := range perSource {
		r.collected.WithLabelValues(source).Set(float64(n))
	}
}

// ObserveRun records a finished command.
func (r *Recorder) ObserveRun(command string, took time.Duration, at time.Time) {
	r.stageDuration.WithLabelValues(command).Observe(took.Seconds())
	r.lastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("metrics: create dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write %q: %w", path, err)
	}
	return nil
}
