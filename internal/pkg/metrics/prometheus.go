package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "azgovernor",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "azgovernor",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "azgovernor",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Assessment metrics
	assessmentsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "azgovernor",
			Subsystem: "assessment",
			Name:      "started_total",
			Help:      "Total number of assessments accepted for execution",
		},
		[]string{"type"},
	)

	assessmentsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "azgovernor",
			Subsystem: "assessment",
			Name:      "finished_total",
			Help:      "Total number of finished assessments by terminal status",
		},
		[]string{"type", "status"},
	)

	assessmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "azgovernor",
			Subsystem: "assessment",
			Name:      "duration_seconds",
			Help:      "Assessment execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"type"},
	)

	categoryScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "azgovernor",
			Subsystem: "assessment",
			Name:      "category_score",
			Help:      "Most recent score per analyzer category",
		},
		[]string{"category"},
	)

	categoryUnavailableTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "azgovernor",
			Subsystem: "assessment",
			Name:      "category_unavailable_total",
			Help:      "Total number of analyzer runs excluded from scoring",
		},
		[]string{"category"},
	)

	// Inventory collection metrics
	inventoryFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "azgovernor",
			Subsystem: "inventory",
			Name:      "fetch_total",
			Help:      "Total number of inventory collections",
		},
		[]string{"status"},
	)

	inventoryFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "azgovernor",
			Subsystem: "inventory",
			Name:      "fetch_duration_seconds",
			Help:      "Inventory collection duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	inventoryResources = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "azgovernor",
			Subsystem: "inventory",
			Name:      "resources",
			Help:      "Resource count of the most recent inventory collection",
		},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "azgovernor",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		// Get route pattern from chi
		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAssessmentStarted records an accepted assessment
func RecordAssessmentStarted(assessmentType string) {
	assessmentsStartedTotal.WithLabelValues(assessmentType).Inc()
}

// RecordAssessmentCompleted records a finished assessment with its duration
func RecordAssessmentCompleted(assessmentType, status string, duration time.Duration) {
	assessmentsFinishedTotal.WithLabelValues(assessmentType, status).Inc()
	assessmentDuration.WithLabelValues(assessmentType).Observe(duration.Seconds())
}

// RecordCategoryScore sets the latest score gauge for a category
func RecordCategoryScore(category string, score float64) {
	categoryScore.WithLabelValues(category).Set(score)
}

// RecordCategoryUnavailable counts an analyzer run excluded from scoring
func RecordCategoryUnavailable(category string) {
	categoryUnavailableTotal.WithLabelValues(category).Inc()
}

// RecordInventoryFetch records an inventory collection attempt
func RecordInventoryFetch(status string, resources int, duration time.Duration) {
	inventoryFetchTotal.WithLabelValues(status).Inc()
	inventoryFetchDuration.Observe(duration.Seconds())
	if status == "success" {
		inventoryResources.Set(float64(resources))
	}
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
