package http

import (
	"context"
	"net/http"

	"robotics-catalog/internal/logger"
	"robotics-catalog/internal/service"

	"go.opentelemetry.io/otel"
)

type HealthChecker interface {
	Check(ctx context.Context) service.HealthStatus
}

type HealthHandler struct {
	service HealthChecker
}

var HttpHealthHandlerTracer = otel.Tracer("HttpHealthHandler")

func NewHealthHandler(service HealthChecker) *HealthHandler {
	return &HealthHandler{
		service: service,
	}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, span := HttpHealthHandlerTracer.Start(r.Context(), "HttpHealthHandler.Check")
	defer span.End()
	logger.Debug(ctx, "HttpHealthHandler")

	status := h.service.Check(ctx)

	overall, code := "UP", http.StatusOK
	if !status.Up() {
		overall, code = "DOWN", http.StatusInternalServerError
	}

	writeJSON(w, code, map[string]any{
		"status": overall,
		"data": map[string]string{
			"mongodb": status.Mongo,
		},
	})
}
