package http

import (
	"net/http"

	"robotics-catalog/internal/metrics"
	middleware_http "robotics-catalog/internal/middleware/http"
	"robotics-catalog/internal/version"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires every route of the service behind the tracing and metrics
// middleware.
func NewRouter(appName string, development bool, products *ProductHandler, health *HealthHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware_http.TraceMiddleware(development))
	r.Use(metrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, Response{Success: false, Message: "Route " + r.URL.RequestURI() + " not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Success: false, Message: "Method " + r.Method + " not allowed on " + r.URL.Path})
	})

	r.Get("/", banner(appName))
	r.Get("/healthz", health.Check)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	products.RegisterRoutes(r)

	return r
}

func banner(appName string) http.HandlerFunc {
	body := map[string]any{
		"success": true,
		"message": "Robotics Store API",
		"service": appName,
		"version": version.Version,
		"endpoints": map[string]any{
			"products": map[string]string{
				"getAll": "GET /api/products",
				"getOne": "GET /api/products/:id",
				"create": "POST /api/products",
				"update": "PUT /api/products/:id",
				"delete": "DELETE /api/products/:id",
			},
			"health":  "GET /healthz",
			"metrics": "GET /metrics",
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}
