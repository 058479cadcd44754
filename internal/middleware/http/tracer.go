package middleware_http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"robotics-catalog/internal/logger"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

var tracer = otel.Tracer("HttpMiddleware")

// ResponseWriter captures status, size and the first MaxBodyLogged bytes of the body.
type ResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	size        int64
	buf         bytes.Buffer
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)

	if rw.buf.Len() < logger.MaxBodyLogged {
		toCopy := logger.MaxBodyLogged - rw.buf.Len()
		if len(b) < toCopy {
			toCopy = len(b)
		}
		rw.buf.Write(b[:toCopy])
	}
	return n, err
}

// TraceMiddleware starts a server span per request (continuing any incoming
// W3C trace), exposes the trace id as X-Trace-ID, logs request and response,
// and turns panics into a JSON 500. With development set the panic value is
// included in the response.
func TraceMiddleware(development bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path)
			defer span.End()
			r = r.WithContext(ctx)

			logger.Info(ctx, "HTTP", logger.LogHTTPRequest(r, "incoming::request")...)

			rw := &ResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			rw.Header().Set("X-Trace-ID", span.SpanContext().TraceID().String())
			start := time.Now()

			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					err := errFromRecover(rec)
					span.RecordError(err)
					span.SetStatus(codes.Error, "panic occurred")
					logger.Error(ctx, "Recovered from panic", logger.Err(err), logger.Op(r.Method+" "+r.URL.Path))
					if !rw.wroteHeader {
						writePanicResponse(rw, err, development)
					}
				}

				if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
					span.SetName(r.Method + " " + rctx.RoutePattern())
					span.SetAttributes(attribute.String("http.route", rctx.RoutePattern()))
				}
				span.SetAttributes(attribute.Int("http.status_code", rw.statusCode))
				switch {
				case rw.statusCode >= 500:
					span.SetStatus(codes.Error, "internal server error")
				case rw.statusCode >= 400:
					span.SetStatus(codes.Error, "client error")
				default:
					span.SetStatus(codes.Ok, "")
				}

				attrs := logger.LogHTTPResponse(r, rw.Header(), rw.statusCode, rw.buf.Bytes(), time.Since(start).Milliseconds(), "incoming::response")
				logger.Info(ctx, "HTTP", attrs...)
			}()

			next.ServeHTTP(rw, r)
		})
	}
}

func writePanicResponse(w http.ResponseWriter, err error, development bool) {
	body := map[string]any{
		"success": false,
		"message": "Internal server error",
	}
	if development {
		body["error"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(body)
}

func errFromRecover(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", rec)
}
