package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"robotics-catalog/internal/logger"
	"robotics-catalog/internal/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var HttpClientTracer = otel.Tracer("HttpClient")

// HTTPClient calls the catalog API. Every request carries W3C trace headers
// so client and server spans join one trace.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	headers map[string]string
}

// RequestOptions for request configuration
type RequestOptions struct {
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams map[string]string
	Body        any
}

// APIResponse is the envelope the catalog returns.
type APIResponse[T any] struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Count   int      `json:"count"`
	Data    T        `json:"data"`
	Errors  []string `json:"errors"`
	Error   string   `json:"error"`
}

// StatusError is returned for any non 2xx reply.
type StatusError struct {
	StatusCode int
	Message    string
	Errors     []string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("catalog responded %d", e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Errors) > 0 {
		msg += " (" + strings.Join(e.Errors, "; ") + ")"
	}
	return msg
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: make(map[string]string),
	}
}

// SetDefaultHeader adds a header sent with every request.
func (c *HTTPClient) SetDefaultHeader(key, value string) {
	c.headers[key] = value
}

// Do performs the request and decodes a JSON reply into result. Non 2xx
// replies become *StatusError.
func (c *HTTPClient) Do(ctx context.Context, opts RequestOptions, result any) error {
	ctx, span := HttpClientTracer.Start(ctx, "HttpClient "+opts.Method)
	defer span.End()

	fullURL, err := c.buildURL(opts.URL, opts.QueryParams)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	c.setHeaders(req, opts.Headers, bodyReader != nil)
	req.Header.Set("X-Trace-ID", span.SpanContext().TraceID().String())

	logger.Info(ctx, "HttpClient request",
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
	)

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Error(ctx, "Failed to execute request", logger.Err(err))
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var envelope APIResponse[json.RawMessage]
		if json.Unmarshal(rawBody, &envelope) == nil {
			statusErr.Message = envelope.Message
			statusErr.Errors = envelope.Errors
		}
		logger.Warn(ctx, "HttpClient response", slog.Int("status", resp.StatusCode), slog.String("message", statusErr.Message))
		return statusErr
	}

	if result != nil && len(rawBody) > 0 {
		if err := json.Unmarshal(rawBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *HTTPClient) ListProducts(ctx context.Context) ([]model.Product, error) {
	var out APIResponse[[]model.Product]
	if err := c.Do(ctx, RequestOptions{Method: http.MethodGet, URL: "/api/products"}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *HTTPClient) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var out APIResponse[*model.Product]
	if err := c.Do(ctx, RequestOptions{Method: http.MethodGet, URL: "/api/products/" + url.PathEscape(id)}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// UpdateProduct sends a JSON partial update. Images cannot be changed this way.
func (c *HTTPClient) UpdateProduct(ctx context.Context, id string, fields map[string]any) (*model.Product, error) {
	var out APIResponse[*model.Product]
	opts := RequestOptions{Method: http.MethodPut, URL: "/api/products/" + url.PathEscape(id), Body: fields}
	if err := c.Do(ctx, opts, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *HTTPClient) DeleteProduct(ctx context.Context, id string) error {
	return c.Do(ctx, RequestOptions{Method: http.MethodDelete, URL: "/api/products/" + url.PathEscape(id)}, nil)
}

// Health returns the mongodb status reported by /healthz. A DOWN status is
// reported as a *StatusError.
func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.Do(ctx, RequestOptions{Method: http.MethodGet, URL: "/healthz"}, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// buildURL builds complete URL with query parameters
func (c *HTTPClient) buildURL(endpoint string, queryParams map[string]string) (string, error) {
	var fullURL string

	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		fullURL = endpoint
	} else {
		endpoint = strings.TrimLeft(endpoint, "/")
		fullURL = fmt.Sprintf("%s/%s", c.baseURL, endpoint)
	}

	if len(queryParams) > 0 {
		u, err := url.Parse(fullURL)
		if err != nil {
			return "", err
		}

		q := u.Query()
		for k, v := range queryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		fullURL = u.String()
	}

	return fullURL, nil
}

func (c *HTTPClient) setHeaders(req *http.Request, headers map[string]string, hasBody bool) {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if hasBody && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}
