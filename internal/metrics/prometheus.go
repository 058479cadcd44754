package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "route", "status"},
	)
	mediaOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_operations_total",
			Help: "Media store calls by driver, operation and outcome.",
		},
		[]string{"driver", "operation", "outcome"},
	)
	mediaOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_operation_duration_seconds",
			Help:    "Latency of media store calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "operation"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(mediaOperationsTotal)
	prometheus.MustRegister(mediaOperationDuration)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency labelled by chi route pattern,
// so /api/products/{id} stays one series regardless of the id.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}

		httpRequestsTotal.WithLabelValues(labels...).Inc()
		httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}

// ObserveMedia records one media store call.
func ObserveMedia(driver, operation string, started time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	mediaOperationsTotal.WithLabelValues(driver, operation, outcome).Inc()
	mediaOperationDuration.WithLabelValues(driver, operation).Observe(time.Since(started).Seconds())
}
