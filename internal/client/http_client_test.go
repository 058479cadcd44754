package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalog(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", 2*time.Second)
}

func Test_ListProducts(t *testing.T) {
	// given
	c := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/products", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Trace-ID"))
		_, _ = io.WriteString(w, `{"success":true,"count":2,"data":[
			{"id":"65f1a0c2e4b0a1b2c3d4e5f6","name":"Arm","price":10,"category":"Robotic Arms","images":[{"url":"https://cdn/a.png","public_id":"robotics_products/a"}]},
			{"id":"65f1a0c2e4b0a1b2c3d4e5f7","name":"Drone","price":20,"category":"Drones","images":[]}
		]}`)
	})

	// when
	products, err := c.ListProducts(context.Background())

	// then
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "65f1a0c2e4b0a1b2c3d4e5f6", products[0].ID.Hex())
	assert.Equal(t, "robotics_products/a", products[0].Images[0].StorageHandle)
	assert.Equal(t, "Drone", products[1].Name)
}

func Test_GetProduct_NotFound(t *testing.T) {
	c := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/abc", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"success":false,"message":"Product not found"}`)
	})

	_, err := c.GetProduct(context.Background(), "abc")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "catalog responded 404: Product not found", statusErr.Error())
}

func Test_UpdateProduct_SendsJSON(t *testing.T) {
	c := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(5), body["stock"])
		_, _ = io.WriteString(w, `{"success":true,"message":"Product updated successfully","data":{"name":"Arm","stock":5}}`)
	})

	p, err := c.UpdateProduct(context.Background(), "65f1a0c2e4b0a1b2c3d4e5f6", map[string]any{"stock": 5})

	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func Test_UpdateProduct_ValidationErrors(t *testing.T) {
	c := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"success":false,"message":"Validation Error","errors":["Stock cannot be negative"]}`)
	})

	_, err := c.UpdateProduct(context.Background(), "x", map[string]any{"stock": -1})

	assert.EqualError(t, err, "catalog responded 400: Validation Error (Stock cannot be negative)")
}

func Test_DeleteProduct(t *testing.T) {
	var called bool
	c := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodDelete, r.Method)
		_, _ = io.WriteString(w, `{"success":true,"message":"Product deleted successfully"}`)
	})

	require.NoError(t, c.DeleteProduct(context.Background(), "65f1a0c2e4b0a1b2c3d4e5f6"))
	assert.True(t, called)
}

func Test_Health(t *testing.T) {
	c := newCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"UP","data":{"mongodb":"UP"}}`)
	})

	status, err := c.Health(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "UP", status)
}

func Test_BuildURL(t *testing.T) {
	c := NewHTTPClient("http://catalog:50000/", time.Second)

	u, err := c.buildURL("/api/products", map[string]string{"q": "arm"})
	require.NoError(t, err)
	assert.Equal(t, "http://catalog:50000/api/products?q=arm", u)

	u, err = c.buildURL("https://other/x", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://other/x", u)
}
