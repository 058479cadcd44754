package logger

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// MaxBodyLogged caps how much of a body is buffered for logging. 1 MiB.
const MaxBodyLogged = 1 << 20

var allowedHeaders = map[string]bool{
	"content-type":   true,
	"content-length": true,
	"user-agent":     true,
	"x-request-id":   true,
	"x-trace-id":     true,
	"traceparent":    true,
	"authorization":  true,
	"set-cookie":     true,
}

var sensitiveKeys = []string{"password", "secret", "api_key", "apikey", "token"}

func isMultipart(contentType string) bool {
	ct, _, _ := mime.ParseMediaType(contentType)
	return strings.HasPrefix(ct, "multipart/")
}

// CaptureBody buffers r.Body for logging and puts an intact copy back.
// Multipart bodies are left alone: they carry image uploads that must reach
// the handler unread and untruncated.
func CaptureBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody || isMultipart(r.Header.Get("Content-Type")) {
		return nil, nil
	}
	if r.ContentLength > MaxBodyLogged {
		return nil, nil
	}

	rest := r.Body
	body, err := io.ReadAll(io.LimitReader(rest, MaxBodyLogged+1))
	if err != nil {
		return nil, err
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(body), rest), rest}

	if len(body) > MaxBodyLogged {
		return nil, nil
	}
	return body, nil
}

func HeaderAttrs(hdr http.Header) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(hdr))
	for name, values := range hdr {
		lower := strings.ToLower(name)
		if !allowedHeaders[lower] {
			continue
		}
		joined := strings.Join(values, ", ")
		if lower == "authorization" || lower == "set-cookie" {
			joined = "***"
		}
		attrs = append(attrs, slog.String("http.header."+lower, joined))
	}
	return attrs
}

func QueryAttrs(q url.Values) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(q))
	for key, values := range q {
		if len(values) == 0 {
			continue
		}
		attrs = append(attrs, slog.String("http.query."+key, strings.Join(values, ",")))
	}
	return attrs
}

// DecodeBody flattens a buffered body into attributes according to its content type.
func DecodeBody(contentType string, body []byte) ([]slog.Attr, error) {
	if len(body) == 0 {
		return nil, nil
	}

	ct, _, _ := mime.ParseMediaType(contentType)
	switch ct {
	case "application/json":
		return jsonAttrs(body), nil
	case "application/x-www-form-urlencoded":
		return formAttrs(body)
	default:
		return binaryAttrs(body), nil
	}
}

func jsonAttrs(b []byte) []slog.Attr {
	var data any
	if err := json.Unmarshal(b, &data); err != nil {
		return []slog.Attr{slog.String("http.body", string(b))}
	}
	attrs := make([]slog.Attr, 0, 8)
	flattenJSON("http.body", data, &attrs)
	return attrs
}

// flattenJSON walks objects fully but keeps only the first and last element
// of arrays to bound the attribute count.
func flattenJSON(prefix string, v any, dst *[]slog.Attr) {
	switch t := v.(type) {
	case map[string]any:
		for k, v2 := range t {
			if isSensitive(k) {
				*dst = append(*dst, slog.String(prefix+"."+k, "***"))
				continue
			}
			flattenJSON(prefix+"."+k, v2, dst)
		}
	case []any:
		if n := len(t); n > 0 {
			flattenJSON(prefix+".0", t[0], dst)
			if n > 1 {
				flattenJSON(prefix+"."+strconv.Itoa(n-1), t[n-1], dst)
			}
		}
	case string:
		*dst = append(*dst, slog.String(prefix, t))
	case float64:
		*dst = append(*dst, slog.Float64(prefix, t))
	case bool:
		*dst = append(*dst, slog.Bool(prefix, t))
	case nil:
	default:
		*dst = append(*dst, slog.String(prefix, fmt.Sprintf("%v", t)))
	}
}

func formAttrs(b []byte) ([]slog.Attr, error) {
	vals, err := url.ParseQuery(string(b))
	if err != nil {
		return nil, err
	}
	attrs := make([]slog.Attr, 0, len(vals))
	for k, v := range vals {
		value := strings.Join(v, ", ")
		if isSensitive(k) {
			value = "***"
		}
		attrs = append(attrs, slog.String("http.body."+k, value))
	}
	return attrs, nil
}

func binaryAttrs(b []byte) []slog.Attr {
	const sample = 256
	if len(b) <= sample {
		return []slog.Attr{slog.String("http.body.base64", base64.StdEncoding.EncodeToString(b))}
	}
	return []slog.Attr{
		slog.Int("http.body.size_bytes", len(b)),
		slog.String("http.body.sample_base64", base64.StdEncoding.EncodeToString(b[:sample])),
	}
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// LogHTTPRequest builds the attributes logged for an incoming request.
func LogHTTPRequest(r *http.Request, direction string) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("http.direction", direction),
		slog.String("http.remote_addr", r.RemoteAddr),
		slog.String("http.method", r.Method),
		slog.String("http.path", r.URL.Path),
	}
	attrs = append(attrs, HeaderAttrs(r.Header)...)
	attrs = append(attrs, QueryAttrs(r.URL.Query())...)

	if isMultipart(r.Header.Get("Content-Type")) {
		return append(attrs, slog.Int64("http.body.size_bytes", r.ContentLength))
	}

	body, err := CaptureBody(r)
	if err != nil {
		return append(attrs, slog.String("http.body.error", err.Error()))
	}
	bodyAttrs, err := DecodeBody(r.Header.Get("Content-Type"), body)
	if err != nil {
		return append(attrs, slog.String("http.body.error", err.Error()))
	}
	return append(attrs, bodyAttrs...)
}

// LogHTTPResponse builds the attributes logged once the handler has written its response.
func LogHTTPResponse(r *http.Request, header http.Header, status int, body []byte, durationMs int64, direction string) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("http.direction", direction),
		slog.String("http.remote_addr", r.RemoteAddr),
		slog.String("http.method", r.Method),
		slog.String("http.path", r.URL.Path),
		slog.Int("http.status", status),
		slog.Int64("duration_ms", durationMs),
	}
	attrs = append(attrs, HeaderAttrs(header)...)

	bodyAttrs, err := DecodeBody(header.Get("Content-Type"), body)
	if err != nil {
		return append(attrs, slog.String("http.body.error", err.Error()))
	}
	return append(attrs, bodyAttrs...)
}
