package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"robotics-catalog/internal/logger"
	"robotics-catalog/internal/model"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Count   *int     `json:"count,omitempty"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// writeJSON encodes before committing the status so an unencodable body
// still yields a well formed 500.
func writeJSON(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		logger.Instance().Error("Failed to encode response", slog.Int("status", status), logger.Err(err))
		status = http.StatusInternalServerError
		b, _ = json.Marshal(Response{Success: false, Message: "Internal server error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

// requestError is a problem with the request itself, found before the
// service is called.
type requestError struct {
	status  int
	message string
	err     error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *requestError) Unwrap() error { return e.err }

// errorWriter maps service errors onto status codes. fallback is the
// message used for unexpected failures.
type errorWriter struct {
	development bool
}

func (ew errorWriter) write(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	var (
		reqErr *requestError
		vErr   *model.ValidationError
		upErr  *model.UploadError
		mErr   *model.MalformedInputError
	)

	status := http.StatusInternalServerError
	resp := Response{Success: false, Message: fallback}

	switch {
	case errors.As(err, &reqErr):
		status, resp.Message = reqErr.status, reqErr.message
	case errors.As(err, &vErr):
		status, resp.Message = http.StatusBadRequest, "Validation Error"
		resp.Errors = vErr.Messages()
	case errors.Is(err, model.ErrProductNotFound):
		status, resp.Message = http.StatusNotFound, "Product not found"
	case errors.As(err, &upErr) && upErr.Auth:
		status, resp.Message = http.StatusUnauthorized, "Media storage authentication failed. Please check your API credentials."
	case errors.As(err, &upErr):
		status, resp.Message = http.StatusBadRequest, "Failed to upload image"
		if upErr.Err != nil {
			resp.Message += ": " + upErr.Err.Error()
		}
	case errors.As(err, &mErr):
		status, resp.Message = http.StatusBadRequest, "Invalid "+mErr.Field
	}

	if status >= http.StatusInternalServerError {
		logger.Error(ctx, fallback, logger.Err(err))
	} else {
		logger.Warn(ctx, resp.Message, slog.Int("status", status), logger.Err(err))
	}

	if ew.development {
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}
