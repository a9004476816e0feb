// Package metrics is volscan's Prometheus instrumentation (SPEC_FULL.md §2
// item 10): scan throughput, record counts, and query latency, grounded on
// the teacher's accounting.Stats shape (a single struct holding every
// counter a long-running operation accumulates) but exposed as Prometheus
// collectors instead of a hand-rolled String() report.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector volscan registers. A single instance is
// created per process and threaded into the internal/index, internal/api
// and `serve` command call sites that observe it.
type Metrics struct {
	RecordsParsed    prometheus.Counter
	RecordsCorrupt   prometheus.Counter
	BytesRead        prometheus.Counter
	ScansStarted     prometheus.Counter
	ScansFailed      prometheus.Counter
	ScanDuration     prometheus.Histogram
	ActiveScans      prometheus.Gauge
	IndexedVolumes   prometheus.Gauge
	SearchesTotal    prometheus.Counter
	SearchDuration   prometheus.Histogram
	SortDuration     prometheus.Histogram
	SearchResultSize prometheus.Histogram
}

// New registers every collector against reg (typically
// prometheus.DefaultRegisterer, or a fresh registry in tests).
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsParsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "volscan_records_parsed_total",
			Help: "MFT records successfully decoded across all scans.",
		}),
		RecordsCorrupt: factory.NewCounter(prometheus.CounterOpts{
			Name: "volscan_records_corrupt_total",
			Help: "MFT record slots skipped due to a bad magic number or fixup mismatch.",
		}),
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "volscan_bytes_read_total",
			Help: "Raw bytes read from volume devices during scans.",
		}),
		ScansStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "volscan_scans_started_total",
			Help: "Scan operations started.",
		}),
		ScansFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "volscan_scans_failed_total",
			Help: "Scan operations that ended in an unsupported-volume or io-error (not cancellation).",
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "volscan_scan_duration_seconds",
			Help:    "Wall-clock duration of completed scans.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ActiveScans: factory.NewGauge(prometheus.GaugeOpts{
			Name: "volscan_active_scans",
			Help: "Scans currently in progress.",
		}),
		IndexedVolumes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "volscan_indexed_volumes",
			Help: "Volumes with a finished index currently held in memory.",
		}),
		SearchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "volscan_searches_total",
			Help: "Search queries executed.",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "volscan_search_duration_seconds",
			Help:    "Wall-clock duration of Search calls.",
			Buckets: prometheus.DefBuckets,
		}),
		SortDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "volscan_sort_duration_seconds",
			Help:    "Wall-clock duration of result-set Sort calls.",
			Buckets: prometheus.DefBuckets,
		}),
		SearchResultSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "volscan_search_result_size",
			Help:    "Number of results a Search call returned.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
}

// ObserveScan records one completed (or failed) scan's duration and outcome.
func (m *Metrics) ObserveScan(d time.Duration, failed bool) {
	m.ScanDuration.Observe(d.Seconds())
	if failed {
		m.ScansFailed.Inc()
	}
}

// ObserveSearch records one Search call's duration and result-set size.
func (m *Metrics) ObserveSearch(d time.Duration, resultCount int) {
	m.SearchesTotal.Inc()
	m.SearchDuration.Observe(d.Seconds())
	m.SearchResultSize.Observe(float64(resultCount))
}
