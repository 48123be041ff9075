package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the recommendation engine.
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// Prediction metrics
	PredictionsTotal    *prometheus.CounterVec
	PredictionDuration  *prometheus.HistogramVec
	PredictionErrors    *prometheus.CounterVec
	KernelFailuresTotal *prometheus.CounterVec

	// k-NN selection metrics
	KnnNeighborsSelected prometheus.Histogram
	KnnUpdateDuration    prometheus.Histogram

	// Chunked matrix metrics
	MatrixTileBuildsTotal   *prometheus.CounterVec
	MatrixTileBuildDuration *prometheus.HistogramVec
	MeanCacheSize           *prometheus.GaugeVec
	MeanCacheEvictionsTotal *prometheus.CounterVec

	// Prediction cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheSize   prometheus.Gauge

	// Dataset metrics
	DatasetsTotal        prometheus.Gauge
	DatasetQuotaUsage    *prometheus.GaugeVec
	DatasetQueryDuration *prometheus.HistogramVec
	RatingsIngestedTotal *prometheus.CounterVec

	// System metrics
	GoroutinesCount prometheus.Gauge
	MemoryUsage     prometheus.Gauge
	CPUUsage        prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoengine_requests_total",
				Help: "Total number of requests by method and status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recoengine_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		RequestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoengine_request_errors_total",
				Help: "Total number of request errors by method and error type",
			},
			[]string{"method", "error_type"},
		),

		PredictionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoengine_predictions_total",
				Help: "Total number of rating predictions served by strategy and status",
			},
			[]string{"strategy", "status"},
		),
		PredictionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recoengine_prediction_duration_seconds",
				Help:    "Prediction duration in seconds by strategy",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"strategy"},
		),
		PredictionErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoengine_prediction_errors_total",
				Help: "Total number of prediction failures by strategy and error kind",
			},
			[]string{"strategy", "error_kind"},
		),
		KernelFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoengine_kernel_failures_total",
				Help: "Total number of similarity/distance kernel evaluations that failed",
			},
			[]string{"kernel_method"},
		),

		KnnNeighborsSelected: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recoengine_knn_neighbors_selected",
				Help:    "Number of neighbors retained by a k-NN selection",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
		),
		KnnUpdateDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "recoengine_knn_update_duration_seconds",
				Help:    "Latency of a single k-NN heap update",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
		),

		MatrixTileBuildsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoengine_matrix_tile_builds_total",
				Help: "Total number of chunked matrix tiles built by matrix kind",
			},
			[]string{"matrix_kind"},
		),
		MatrixTileBuildDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recoengine_matrix_tile_build_duration_seconds",
				Help:    "Tile build duration in seconds by matrix kind",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
			},
			[]string{"matrix_kind"},
		),
		MeanCacheSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recoengine_mean_cache_size",
				Help: "Current number of entries in the adjusted-cosine mean cache by matrix kind",
			},
			[]string{"matrix_kind"},
		),
		MeanCacheEvictionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoengine_mean_cache_evictions_total",
				Help: "Total number of mean cache evictions by matrix kind",
			},
			[]string{"matrix_kind"},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "recoengine_prediction_cache_hits_total",
				Help: "Total number of prediction cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "recoengine_prediction_cache_misses_total",
				Help: "Total number of prediction cache misses",
			},
		),
		CacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "recoengine_prediction_cache_size",
				Help: "Current number of entries in the prediction cache",
			},
		),

		DatasetsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "recoengine_datasets_total",
				Help: "Total number of active datasets",
			},
		),
		DatasetQuotaUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "recoengine_dataset_quota_usage",
				Help: "Dataset quota usage percentage by dataset and resource",
			},
			[]string{"dataset", "resource"},
		),
		DatasetQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recoengine_dataset_query_duration_seconds",
				Help:    "Store query duration in seconds by operation",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"operation"},
		),
		RatingsIngestedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoengine_ratings_ingested_total",
				Help: "Total number of ratings ingested by dataset",
			},
			[]string{"dataset"},
		),

		GoroutinesCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "recoengine_goroutines",
				Help: "Current number of goroutines",
			},
		),
		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "recoengine_memory_bytes",
				Help: "Memory usage in bytes",
			},
		),
		CPUUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "recoengine_cpu_usage",
				Help: "CPU usage percentage",
			},
		),
	}

	return m
}

// RecordRequest records a request with duration and status.
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError records a request error.
func (m *Metrics) RecordError(method, errorType string) {
	m.RequestErrors.WithLabelValues(method, errorType).Inc()
}

// RecordPrediction records a prediction of the given strategy ("user_based",
// "item_based", "slope_one") and its outcome.
func (m *Metrics) RecordPrediction(strategy, status string, duration time.Duration) {
	m.PredictionsTotal.WithLabelValues(strategy, status).Inc()
	m.PredictionDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordPredictionError records a prediction failure by strategy and error kind.
func (m *Metrics) RecordPredictionError(strategy, errorKind string) {
	m.PredictionErrors.WithLabelValues(strategy, errorKind).Inc()
}

// RecordKernelFailure records a similarity/distance kernel evaluation that
// could not be computed (e.g. no overlapping co-rated items).
func (m *Metrics) RecordKernelFailure(kernelMethod string) {
	m.KernelFailuresTotal.WithLabelValues(kernelMethod).Inc()
}

// RecordKnnUpdate records a single heap update during k-NN selection and
// the final neighbor count once selection completes.
func (m *Metrics) RecordKnnUpdate(duration time.Duration) {
	m.KnnUpdateDuration.Observe(duration.Seconds())
}

// RecordKnnSelectionSize records how many neighbors a k-NN selection retained.
func (m *Metrics) RecordKnnSelectionSize(count int) {
	m.KnnNeighborsSelected.Observe(float64(count))
}

// RecordMatrixTileBuild records a chunked matrix tile build by matrix kind
// ("similarity" or "deviation").
func (m *Metrics) RecordMatrixTileBuild(matrixKind string, duration time.Duration) {
	m.MatrixTileBuildsTotal.WithLabelValues(matrixKind).Inc()
	m.MatrixTileBuildDuration.WithLabelValues(matrixKind).Observe(duration.Seconds())
}

// UpdateMeanCacheSize updates the mean cache size gauge for a matrix kind.
func (m *Metrics) UpdateMeanCacheSize(matrixKind string, size int) {
	m.MeanCacheSize.WithLabelValues(matrixKind).Set(float64(size))
}

// RecordMeanCacheEviction records a mean cache eviction for a matrix kind.
func (m *Metrics) RecordMeanCacheEviction(matrixKind string) {
	m.MeanCacheEvictionsTotal.WithLabelValues(matrixKind).Inc()
}

// RecordCacheHit records a prediction cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a prediction cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// UpdateCacheSize updates the prediction cache size gauge.
func (m *Metrics) UpdateCacheSize(size int) {
	m.CacheSize.Set(float64(size))
}

// UpdateDatasetCount updates the total active dataset count.
func (m *Metrics) UpdateDatasetCount(count int) {
	m.DatasetsTotal.Set(float64(count))
}

// UpdateDatasetQuota updates quota usage for a dataset/resource pair.
func (m *Metrics) UpdateDatasetQuota(dataset, resource string, usage float64) {
	m.DatasetQuotaUsage.WithLabelValues(dataset, resource).Set(usage)
}

// RecordDatasetQuery records a store operation's latency.
func (m *Metrics) RecordDatasetQuery(operation string, duration time.Duration) {
	m.DatasetQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRatingsIngested records a batch of ratings ingested into a dataset.
func (m *Metrics) RecordRatingsIngested(dataset string, count int) {
	m.RatingsIngestedTotal.WithLabelValues(dataset).Add(float64(count))
}

// UpdateGoroutineCount updates goroutine count.
func (m *Metrics) UpdateGoroutineCount(count int) {
	m.GoroutinesCount.Set(float64(count))
}

// UpdateMemoryUsage updates memory usage.
func (m *Metrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateCPUUsage updates CPU usage.
func (m *Metrics) UpdateCPUUsage(percentage float64) {
	m.CPUUsage.Set(percentage)
}
