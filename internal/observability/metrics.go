// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Job metrics
	JobsCreated     prometheus.Counter
	JobsFinished    *prometheus.CounterVec
	JobsRunning     prometheus.Gauge
	JobsEvicted     prometheus.Counter
	JobDuration     *prometheus.HistogramVec
	BarsProcessed   prometheus.Counter
	TradesClosed    *prometheus.CounterVec
	StrategyErrors  *prometheus.CounterVec
	InvalidProgress prometheus.Counter

	// Progress fan-out metrics
	ProgressPublished prometheus.Counter
	ProgressErrors    prometheus.Counter
	WSClients         prometheus.Gauge

	// Archive metrics
	ArchiveWrites *prometheus.CounterVec
	ArchiveErrors *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "backtest_lab"
	}

	return &Metrics{
		// Job metrics
		JobsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "created_total",
			Help:      "Total number of backtest jobs created",
		}),
		JobsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Total number of backtest jobs finished by terminal status",
		}, []string{"status"}),
		JobsRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "running",
			Help:      "Number of jobs not yet terminal",
		}),
		JobsEvicted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "evicted_total",
			Help:      "Total number of terminal jobs evicted from the registry",
		}),
		JobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Job wall time from creation to terminal status",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"status"}),
		BarsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "bars_processed_total",
			Help:      "Total number of bars walked by completed simulations",
		}),
		TradesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_closed_total",
			Help:      "Total number of trades closed by exit reason",
		}, []string{"exit_reason"}),
		StrategyErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "strategy_errors_total",
			Help:      "Total number of strategy decision errors",
		}, []string{"strategy"}),
		InvalidProgress: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "invalid_progress_total",
			Help:      "Rejected progress regressions (indicates a defect)",
		}),

		// Progress fan-out metrics
		ProgressPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "updates_published_total",
			Help:      "Total number of progress updates published",
		}),
		ProgressErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "publish_errors_total",
			Help:      "Total number of failed progress publishes",
		}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "progress",
			Name:      "ws_clients",
			Help:      "Connected progress websocket clients",
		}),

		// Archive metrics
		ArchiveWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "writes_total",
			Help:      "Total number of job results archived by sink",
		}, []string{"sink"}),
		ArchiveErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "errors_total",
			Help:      "Total number of failed archive writes by sink",
		}, []string{"sink"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// HTTP metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		}, []string{"method", "code"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordJobCreated records a new job.
func RecordJobCreated() {
	DefaultMetrics.JobsCreated.Inc()
	DefaultMetrics.JobsRunning.Inc()
}

// RecordJobFinished records a terminal transition.
func RecordJobFinished(status string, durationSeconds float64) {
	DefaultMetrics.JobsFinished.WithLabelValues(status).Inc()
	DefaultMetrics.JobDuration.WithLabelValues(status).Observe(durationSeconds)
	DefaultMetrics.JobsRunning.Dec()
}

// RecordJobEvicted records an evicted terminal job.
func RecordJobEvicted() {
	DefaultMetrics.JobsEvicted.Inc()
}

// RecordBarsProcessed adds n walked bars.
func RecordBarsProcessed(n int) {
	DefaultMetrics.BarsProcessed.Add(float64(n))
}

// RecordTradeClosed records a closed trade.
func RecordTradeClosed(exitReason string) {
	DefaultMetrics.TradesClosed.WithLabelValues(exitReason).Inc()
}

// RecordStrategyError records a strategy decision error.
func RecordStrategyError(strategyID string) {
	DefaultMetrics.StrategyErrors.WithLabelValues(strategyID).Inc()
}

// RecordInvalidProgress records a rejected progress regression.
func RecordInvalidProgress() {
	DefaultMetrics.InvalidProgress.Inc()
}

// RecordProgressPublished records a progress publish.
func RecordProgressPublished(err error) {
	DefaultMetrics.ProgressPublished.Inc()
	if err != nil {
		DefaultMetrics.ProgressErrors.Inc()
	}
}

// UpdateWSClients adjusts the connected websocket client gauge by delta.
func UpdateWSClients(delta int) {
	DefaultMetrics.WSClients.Add(float64(delta))
}

// RecordArchive records an archive write.
func RecordArchive(sink string, err error) {
	DefaultMetrics.ArchiveWrites.WithLabelValues(sink).Inc()
	if err != nil {
		DefaultMetrics.ArchiveErrors.WithLabelValues(sink).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method string, code int) {
	DefaultMetrics.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}
