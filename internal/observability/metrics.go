package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "climate_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	RowsExtracted *prometheus.CounterVec // labels: source
	RowsCleaned   *prometheus.CounterVec // labels: source
	RowsDiscarded *prometheus.CounterVec // labels: source
	FactsBuilt    *prometheus.CounterVec // labels: source
	FactsDropped  *prometheus.CounterVec // labels: source, reason={missing_date,missing_location,sampled_out}

	// Warehouse load metrics.
	RowsLoaded        *prometheus.CounterVec   // labels: table
	LoadBatchFailures *prometheus.CounterVec   // labels: table
	LoadBatchDuration *prometheus.HistogramVec // labels: table
	FactsPublished    prometheus.Counter

	StageDuration   *prometheus.HistogramVec // labels: stage={extract,transform,load}
	DimensionRows   *prometheus.GaugeVec     // labels: dimension={date,location}
	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsExtracted,
		m.RowsCleaned,
		m.RowsDiscarded,
		m.FactsBuilt,
		m.FactsDropped,
		m.RowsLoaded,
		m.LoadBatchFailures,
		m.LoadBatchDuration,
		m.FactsPublished,
		m.StageDuration,
		m.DimensionRows,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_extracted_total",
			Help:      "Raw rows read from source files.",
		}, []string{"source"}),
		RowsCleaned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_cleaned_total",
			Help:      "Rows that survived cleaning.",
		}, []string{"source"}),
		RowsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_discarded_total",
			Help:      "Rows removed by the missing-value strategy.",
		}, []string{"source"}),
		FactsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_built_total",
			Help:      "Fact rows assembled per source.",
		}, []string{"source"}),
		FactsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_dropped_total",
			Help:      "Readings that produced no fact, by reason.",
		}, []string{"source", "reason"}),
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows written to the warehouse per table.",
		}, []string{"table"}),
		LoadBatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_batch_failures_total",
			Help:      "Load batches that failed after all attempts.",
		}, []string{"table"}),
		LoadBatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_batch_duration_seconds",
			Help:      "Duration of a single warehouse load batch.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"table"}),
		FactsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_published_total",
			Help:      "Fact rows written to the change feed topic.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		DimensionRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dimension_rows",
			Help:      "Rows in each dimension after the last build.",
		}, []string{"dimension"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
	}
}
