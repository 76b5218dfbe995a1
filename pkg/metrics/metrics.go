package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec
	ActiveRequests     prometheus.Gauge

	// Ingestion Metrics
	IngestionRecordsTotal prometheus.Counter
	IngestionDuration     prometheus.Histogram
	IngestionErrorsTotal  *prometheus.CounterVec
	IngestionBatchSize    prometheus.Histogram

	// Cleaning and model Metrics
	ImputationsTotal         *prometheus.CounterVec
	ModelRunsTotal           *prometheus.CounterVec
	ModelRunDuration         *prometheus.HistogramVec
	ModelMeanAbsoluteError   *prometheus.GaugeVec
	StatsCalculationDuration prometheus.Histogram

	// Database Metrics
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec
}

// NewCollector creates a collector registered with the default Prometheus registry
func NewCollector(namespace string) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector registered with reg. Tests pass
// a fresh prometheus.NewRegistry() so collectors never collide.
func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer) *Collector {
	f := factory{promauto.With(reg), namespace}

	return &Collector{
		APIRequestsTotal: f.counterVec("api_requests_total",
			"Total number of API requests by endpoint, method, and status", "endpoint", "method", "status"),
		APIRequestDuration: f.histogramVec("api_request_duration_seconds",
			"API request duration in seconds", apiBuckets, "endpoint"),
		APIErrorsTotal: f.counterVec("api_errors_total",
			"Total number of API errors by type", "error_type", "endpoint"),
		ActiveRequests: f.gauge("api_active_requests",
			"Number of API requests currently being served"),

		IngestionRecordsTotal: f.counter("ingestion_records_processed_total",
			"Total number of monthly observations ingested"),
		IngestionDuration: f.histogram("ingestion_duration_seconds",
			"Duration of ingestion operations in seconds", []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60}),
		IngestionErrorsTotal: f.counterVec("ingestion_errors_total",
			"Total number of ingestion errors by type", "error_type"),
		IngestionBatchSize: f.histogram("ingestion_batch_size",
			"Number of observations per batch during ingestion", []float64{1, 12, 60, 120, 500, 1000, 5000}),

		ImputationsTotal: f.counterVec("imputations_total",
			"Values replaced by the cleaning pass, by column", "column"),
		ModelRunsTotal: f.counterVec("model_runs_total",
			"Water-balance model runs by model and outcome", "model", "outcome"),
		ModelRunDuration: f.histogramVec("model_run_duration_seconds",
			"Duration of a clean, simulate and evaluate cycle", computeBuckets, "model"),
		ModelMeanAbsoluteError: f.gaugeVec("model_mean_absolute_error_litres",
			"Mean absolute error of the latest run per lake and model", "lake_id", "model"),
		StatsCalculationDuration: f.histogram("stats_calculation_duration_seconds",
			"Duration of statistics calculation in seconds", computeBuckets),

		DBQueryDuration: f.histogramVec("db_query_duration_seconds",
			"Database query duration in seconds by query type", dbBuckets, "query_type"),
		// state is one of in_use, idle, total.
		DBConnectionPool: f.gaugeVec("db_connection_pool",
			"Database connection pool statistics", "state"),
		DBErrorsTotal: f.counterVec("db_errors_total",
			"Total number of database errors by type", "error_type"),
	}
}

var (
	apiBuckets     = []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0}
	computeBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.5, 1}
	dbBuckets      = []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5}
)

// factory binds a promauto factory to one namespace.
type factory struct {
	promauto.Factory
	namespace string
}

func (f factory) counter(name, help string) prometheus.Counter {
	return f.NewCounter(prometheus.CounterOpts{Namespace: f.namespace, Name: name, Help: help})
}

func (f factory) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return f.NewCounterVec(prometheus.CounterOpts{Namespace: f.namespace, Name: name, Help: help}, labels)
}

func (f factory) gauge(name, help string) prometheus.Gauge {
	return f.NewGauge(prometheus.GaugeOpts{Namespace: f.namespace, Name: name, Help: help})
}

func (f factory) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return f.NewGaugeVec(prometheus.GaugeOpts{Namespace: f.namespace, Name: name, Help: help}, labels)
}

func (f factory) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return f.NewHistogram(prometheus.HistogramOpts{Namespace: f.namespace, Name: name, Help: help, Buckets: buckets})
}

func (f factory) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return f.NewHistogramVec(prometheus.HistogramOpts{Namespace: f.namespace, Name: name, Help: help, Buckets: buckets}, labels)
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer creates a new timer
func (c *Collector) NewTimer(histogram prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: histogram,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAPIRequest increments API request counter
func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

// RecordAPIError increments API error counter
func (c *Collector) RecordAPIError(errorType, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorType, endpoint).Inc()
}

// RecordIngestionError increments ingestion error counter
func (c *Collector) RecordIngestionError(errorType string) {
	c.IngestionErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordImputations adds per-column repair counts from one cleaning pass
func (c *Collector) RecordImputations(byColumn map[string]int) {
	for column, n := range byColumn {
		c.ImputationsTotal.WithLabelValues(column).Add(float64(n))
	}
}

// RecordModelRun counts a model run and, on success, publishes its error
func (c *Collector) RecordModelRun(lakeID, model string, mae float64, err error) {
	if err != nil {
		c.ModelRunsTotal.WithLabelValues(model, "error").Inc()
		return
	}
	c.ModelRunsTotal.WithLabelValues(model, "success").Inc()
	c.ModelMeanAbsoluteError.WithLabelValues(lakeID, model).Set(mae)
}

// RecordDBError increments database error counter
func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
