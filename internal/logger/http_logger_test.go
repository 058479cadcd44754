package logger

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attrMap(attrs []slog.Attr) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		out[a.Key] = a.Value.String()
	}
	return out
}

func Test_LogHTTPRequest_JSONBodyIsRestored(t *testing.T) {
	// given
	body := `{"name":"Gripper","api_key":"abc","specifications":{"weight":"2kg"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/products?debug=1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret")

	// when
	attrs := attrMap(LogHTTPRequest(req, "incoming::request"))

	// then
	assert.Equal(t, "Gripper", attrs["http.body.name"])
	assert.Equal(t, "***", attrs["http.body.api_key"])
	assert.Equal(t, "2kg", attrs["http.body.specifications.weight"])
	assert.Equal(t, "***", attrs["http.header.authorization"])
	assert.Equal(t, "1", attrs["http.query.debug"])

	restored, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(restored))
}

func Test_LogHTTPRequest_MultipartIsNotBuffered(t *testing.T) {
	// given
	body := "--xyz\r\nContent-Disposition: form-data; name=\"name\"\r\n\r\nArm\r\n--xyz--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")

	// when
	attrs := attrMap(LogHTTPRequest(req, "incoming::request"))

	// then
	assert.NotContains(t, attrs, "http.body.base64")
	assert.Contains(t, attrs, "http.body.size_bytes")
	restored, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(restored))
}

func Test_DecodeBody(t *testing.T) {
	testCases := []struct {
		name        string
		contentType string
		body        string
		expectKey   string
		expectValue string
	}{
		{name: "form", contentType: "application/x-www-form-urlencoded", body: "name=Arm&password=x", expectKey: "http.body.password", expectValue: "***"},
		{name: "invalid json", contentType: "application/json", body: "{", expectKey: "http.body", expectValue: "{"},
		{name: "binary", contentType: "image/png", body: "png", expectKey: "http.body.base64", expectValue: "cG5n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			attrs, err := DecodeBody(tc.contentType, []byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.expectValue, attrMap(attrs)[tc.expectKey])
		})
	}
}

func Test_BuildLogEntry(t *testing.T) {
	t.Setenv("APP_NAME", "catalog-test")

	entry := buildLogEntry("info", "hello", []slog.Attr{slog.String("k", "v")}, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	require.Len(t, entry.Streams, 1)
	assert.Equal(t, "catalog-test", entry.Streams[0].Stream["job"])
	assert.Contains(t, entry.Streams[0].Values[0][1], `"k":"v"`)
	assert.Contains(t, entry.Streams[0].Values[0][1], `"message":"hello"`)
}
