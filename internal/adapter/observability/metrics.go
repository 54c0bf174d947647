// Package observability provides logging, metrics, and tracing.
//
// It integrates with OpenTelemetry for system monitoring. The package
// provides comprehensive observability features including metrics
// collection, distributed tracing, and logging.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// HTTPRequestsTotal counts HTTP requests by route, method, and status label.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	// HTTPRequestDuration records request durations by route and method.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	// ScraperRunsTotal counts scheduled harvest runs by platform and status.
	ScraperRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_runs_total",
			Help: "Total number of harvest runs by platform and status",
		},
		[]string{"platform", "status"},
	)
	// ScraperErrorsTotal counts harvest errors by platform and error kind.
	ScraperErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of harvest errors by platform and error kind",
		},
		[]string{"platform", "kind"},
	)
	// ScrapeAttemptDuration records the duration of a single scrape attempt in
	// milliseconds, by platform.
	ScrapeAttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrape_attempt_duration_ms",
			Help:    "Duration of one scrape attempt in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"platform"},
	)
	// ProxySelectionsTotal counts proxy selections by strategy.
	ProxySelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_selections_total",
			Help: "Total number of proxy selections by rotation strategy",
		},
		[]string{"strategy"},
	)
	// ProxySuccessesTotal counts successful proxy uses.
	ProxySuccessesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_successes_total",
			Help: "Total number of successful requests through a proxy",
		},
		[]string{"proxy"},
	)
	// ProxyFailuresTotal counts failed proxy uses.
	ProxyFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_failures_total",
			Help: "Total number of failed requests through a proxy",
		},
		[]string{"proxy"},
	)
	// ProxyCircuitBreakerOpensTotal counts proxy circuit breaker trips.
	ProxyCircuitBreakerOpensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_circuit_breaker_opens_total",
			Help: "Total number of times a proxy's circuit breaker opened",
		},
		[]string{"proxy"},
	)
	// DBUploadDuration records the duration of a batch upload to Postgres in
	// milliseconds, by table.
	DBUploadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_upload_duration_ms",
			Help:    "Duration of a batch database upload in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"table"},
	)
	// RecordsScraped counts raw records discovered per platform per run.
	RecordsScraped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_scraped",
			Help: "Total number of raw records scraped by platform",
		},
		[]string{"platform"},
	)
	// RecordsUploaded counts records persisted per platform per run.
	RecordsUploaded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_uploaded",
			Help: "Total number of records uploaded by platform",
		},
		[]string{"platform"},
	)

	// CircuitBreakerStatus tracks circuit breaker state (0=closed, 1=open, 2=half-open).
	CircuitBreakerStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_status",
			Help: "Circuit breaker status (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "operation"},
	)

	// QueueDepth is a gauge of the current retry/offline queue depth.
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "retry_queue_depth",
			Help: "Number of items currently pending in the retry queue",
		},
	)
)

// InitMetrics registers all Prometheus metrics with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(ScraperRunsTotal)
	prometheus.MustRegister(ScraperErrorsTotal)
	prometheus.MustRegister(ScrapeAttemptDuration)
	prometheus.MustRegister(ProxySelectionsTotal)
	prometheus.MustRegister(ProxySuccessesTotal)
	prometheus.MustRegister(ProxyFailuresTotal)
	prometheus.MustRegister(ProxyCircuitBreakerOpensTotal)
	prometheus.MustRegister(DBUploadDuration)
	prometheus.MustRegister(RecordsScraped)
	prometheus.MustRegister(RecordsUploaded)
	prometheus.MustRegister(CircuitBreakerStatus)
	prometheus.MustRegister(QueueDepth)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// RecordRunStart records a harvest run starting for a platform.
func RecordRunStart(platform string) {
	ScraperRunsTotal.WithLabelValues(platform, "started").Inc()
}

// RecordRunOutcome records a harvest run's terminal status for a platform.
func RecordRunOutcome(platform, status string) {
	ScraperRunsTotal.WithLabelValues(platform, status).Inc()
}

// RecordScrapeError records a classified scrape-time error.
func RecordScrapeError(platform, kind string) {
	ScraperErrorsTotal.WithLabelValues(platform, kind).Inc()
}

// RecordProxySelection records a proxy selection under the active strategy.
func RecordProxySelection(strategy string) {
	ProxySelectionsTotal.WithLabelValues(strategy).Inc()
}

// RecordProxyOutcome records the success/failure outcome of a proxied request.
func RecordProxyOutcome(proxy string, success bool) {
	if success {
		ProxySuccessesTotal.WithLabelValues(proxy).Inc()
		return
	}
	ProxyFailuresTotal.WithLabelValues(proxy).Inc()
}

// RecordProxyCircuitOpen records a proxy's circuit breaker tripping open.
func RecordProxyCircuitOpen(proxy string) {
	ProxyCircuitBreakerOpensTotal.WithLabelValues(proxy).Inc()
}

// RecordCircuitBreakerStatus records circuit breaker state.
func RecordCircuitBreakerStatus(service, operation string, status int) {
	CircuitBreakerStatus.WithLabelValues(service, operation).Set(float64(status))
}

// RecordUploadDuration records how long a batch upload to a table took.
func RecordUploadDuration(table string, d time.Duration) {
	DBUploadDuration.WithLabelValues(table).Observe(float64(d.Milliseconds()))
}

// RecordRecordsScraped increments the scraped-record counter for a platform.
func RecordRecordsScraped(platform string, n int) {
	RecordsScraped.WithLabelValues(platform).Add(float64(n))
}

// RecordRecordsUploaded increments the uploaded-record counter for a platform.
func RecordRecordsUploaded(platform string, n int) {
	RecordsUploaded.WithLabelValues(platform).Add(float64(n))
}

// SetQueueDepth sets the current retry queue depth gauge.
func SetQueueDepth(n int) {
	QueueDepth.Set(float64(n))
}
