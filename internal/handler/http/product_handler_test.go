package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"robotics-catalog/internal/model"
	"robotics-catalog/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type fakeProductService struct {
	createIn   *service.CreateInput
	updateIn   *service.UpdateInput
	updateID   string
	deletedID  string
	filesExist []bool
	products   []model.Product
	err        error
}

// takeFiles records whether the spooled files reached the service and
// removes them, as the real service does.
func (s *fakeProductService) takeFiles(files []string) {
	for _, f := range files {
		_, err := os.Stat(f)
		s.filesExist = append(s.filesExist, err == nil)
		_ = os.Remove(f)
	}
}

func (s *fakeProductService) Create(_ context.Context, in service.CreateInput) (*model.Product, error) {
	s.createIn = &in
	s.takeFiles(in.Files)
	if s.err != nil {
		return nil, s.err
	}
	return &model.Product{ID: primitive.NewObjectID(), Name: "Arm", Images: []model.Image{}}, nil
}

func (s *fakeProductService) GetAll(context.Context) ([]model.Product, error) {
	return s.products, s.err
}

func (s *fakeProductService) GetByID(_ context.Context, id string) (*model.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Product{Name: "Arm", Images: []model.Image{}}, nil
}

func (s *fakeProductService) Update(_ context.Context, id string, in service.UpdateInput) (*model.Product, error) {
	s.updateID = id
	s.updateIn = &in
	s.takeFiles(in.Files)
	if s.err != nil {
		return nil, s.err
	}
	return &model.Product{Name: "Arm", Images: []model.Image{}}, nil
}

func (s *fakeProductService) Delete(_ context.Context, id string) error {
	s.deletedID = id
	return s.err
}

type fakeHealth struct{ status service.HealthStatus }

func (f fakeHealth) Check(context.Context) service.HealthStatus { return f.status }

type testServer struct {
	handler   http.Handler
	svc       *fakeProductService
	uploadDir string
}

func newTestServer(t *testing.T, development bool) *testServer {
	t.Helper()
	svc := &fakeProductService{}
	dir := t.TempDir()
	products := NewProductHandler(svc, Options{UploadDir: dir, MaxUploadFiles: 5, MaxUploadBytes: 1 << 20, Development: development})
	health := NewHealthHandler(fakeHealth{status: service.HealthStatus{Mongo: "UP"}})
	return &testServer{handler: NewRouter("robotics-catalog", development, products, health), svc: svc, uploadDir: dir}
}

func (ts *testServer) do(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

type filePart struct {
	field   string
	name    string
	content []byte
}

func multipartRequest(t *testing.T, method, target string, fields [][2]string, files []filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		require.NoError(t, mw.WriteField(f[0], f[1]))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func Test_Create_Multipart(t *testing.T) {
	// given
	ts := newTestServer(t, false)
	req := multipartRequest(t, http.MethodPost, "/api/products",
		[][2]string{
			{"name", "Arm"},
			{"price", "10"},
			{"features", "a, b ,c"},
			{"specifications[weight]", "2kg"},
			{"specifications[compatibility][]", "ROS2"},
			{"specifications[compatibility][]", "Arduino"},
		},
		[]filePart{
			{field: "images", name: "front.PNG", content: pngBytes},
			{field: "images", name: "back.png", content: pngBytes},
		},
	)

	// when
	rec, body := ts.do(req)

	// then
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Product created successfully", body["message"])

	in := ts.svc.createIn
	require.NotNil(t, in)
	require.Len(t, in.Files, 2)
	assert.Equal(t, []bool{true, true}, ts.svc.filesExist)
	assert.Equal(t, ts.uploadDir, filepath.Dir(in.Files[0]))
	assert.Equal(t, ".png", filepath.Ext(in.Files[0]))
	assert.Equal(t, "Arm", in.Fields["name"])
	assert.Equal(t, "a, b ,c", in.Fields["features"])
	assert.Equal(t, map[string]any{
		"weight":        "2kg",
		"compatibility": []string{"ROS2", "Arduino"},
	}, in.Fields["specifications"])
}

func Test_Create_RejectsNonImage(t *testing.T) {
	ts := newTestServer(t, false)
	req := multipartRequest(t, http.MethodPost, "/api/products",
		[][2]string{{"name", "Arm"}},
		[]filePart{
			{field: "images", name: "ok.png", content: pngBytes},
			{field: "images", name: "notes.png", content: []byte("plain text pretending to be an image")},
		},
	)

	rec, body := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Only image files are allowed", body["message"])
	assert.Nil(t, ts.svc.createIn)
	assert.Empty(t, dirEntries(t, ts.uploadDir))
}

func Test_Create_TooManyFiles(t *testing.T) {
	ts := newTestServer(t, false)
	var files []filePart
	for i := 0; i < 6; i++ {
		files = append(files, filePart{field: "images", name: "p.png", content: pngBytes})
	}

	rec, body := ts.do(multipartRequest(t, http.MethodPost, "/api/products", nil, files))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Too many files. Maximum is 5", body["message"])
	assert.Nil(t, ts.svc.createIn)
	assert.Empty(t, dirEntries(t, ts.uploadDir))
}

func Test_Create_UnexpectedFileField(t *testing.T) {
	ts := newTestServer(t, false)

	rec, body := ts.do(multipartRequest(t, http.MethodPost, "/api/products", nil,
		[]filePart{{field: "avatar", name: "p.png", content: pngBytes}}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unexpected field avatar", body["message"])
}

func Test_Create_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, false)
	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, 2<<20)...)

	rec, _ := ts.do(multipartRequest(t, http.MethodPost, "/api/products", nil,
		[]filePart{{field: "images", name: "big.png", content: big}}))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, dirEntries(t, ts.uploadDir))
}

func Test_Create_JSON(t *testing.T) {
	ts := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodPost, "/api/products",
		strings.NewReader(`{"name":"Arm","price":10,"features":["gps"],"specifications":{"weight":"2kg"}}`))
	req.Header.Set("Content-Type", "application/json")

	rec, _ := ts.do(req)

	require.Equal(t, http.StatusCreated, rec.Code)
	in := ts.svc.createIn
	assert.Equal(t, 10.0, in.Fields["price"])
	assert.Equal(t, []any{"gps"}, in.Fields["features"])
	assert.Empty(t, in.Files)
}

func Test_Create_InvalidJSON(t *testing.T) {
	ts := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")

	rec, body := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON body", body["message"])
}

func Test_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name          string
		err           error
		development   bool
		expectStatus  int
		expectMessage string
	}{
		{
			name:          "validation",
			err:           &model.ValidationError{Fields: map[string]string{"category": "Toasters is not a valid category"}},
			expectStatus:  http.StatusBadRequest,
			expectMessage: "Validation Error",
		},
		{
			name:          "upload auth",
			err:           &model.UploadError{Op: "upload", Auth: true, Err: errors.New("Invalid Signature")},
			expectStatus:  http.StatusUnauthorized,
			expectMessage: "Media storage authentication failed. Please check your API credentials.",
		},
		{
			name:          "upload",
			err:           &model.UploadError{Op: "upload", Err: errors.New("Invalid image file")},
			expectStatus:  http.StatusBadRequest,
			expectMessage: "Failed to upload image: Invalid image file",
		},
		{
			name:          "malformed",
			err:           &model.MalformedInputError{Field: "specifications", Err: errors.New("unexpected end of JSON input")},
			expectStatus:  http.StatusBadRequest,
			expectMessage: "Invalid specifications",
		},
		{
			name:          "not found",
			err:           model.ErrProductNotFound,
			expectStatus:  http.StatusNotFound,
			expectMessage: "Product not found",
		},
		{
			name:          "internal",
			err:           errors.New("insert product: connection refused"),
			expectStatus:  http.StatusInternalServerError,
			expectMessage: "Error creating product",
		},
		{
			name:          "internal with detail",
			err:           errors.New("insert product: connection refused"),
			development:   true,
			expectStatus:  http.StatusInternalServerError,
			expectMessage: "Error creating product",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			ts := newTestServer(t, tc.development)
			ts.svc.err = tc.err
			req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(`{"name":"Arm"}`))
			req.Header.Set("Content-Type", "application/json")

			// when
			rec, body := ts.do(req)

			// then
			assert.Equal(t, tc.expectStatus, rec.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.expectMessage, body["message"])
			if tc.development {
				assert.Equal(t, tc.err.Error(), body["error"])
			} else {
				assert.NotContains(t, body, "error")
			}
			if tc.name == "validation" {
				assert.Equal(t, []any{"Toasters is not a valid category"}, body["errors"])
			}
		})
	}
}

func Test_Update_Multipart(t *testing.T) {
	ts := newTestServer(t, false)
	id := primitive.NewObjectID().Hex()
	req := multipartRequest(t, http.MethodPut, "/api/products/"+id,
		[][2]string{{"keepOldImages", "true"}, {"features[]", "gps"}, {"features[]", "lidar"}},
		[]filePart{{field: "images", name: "new.jpg", content: pngBytes}},
	)

	rec, body := ts.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Product updated successfully", body["message"])
	assert.Equal(t, id, ts.svc.updateID)
	in := ts.svc.updateIn
	assert.True(t, in.KeepOldImages)
	assert.NotContains(t, in.Fields, "keepOldImages")
	assert.Equal(t, []string{"gps", "lidar"}, in.Fields["features"])
	assert.Len(t, in.Files, 1)
}

func Test_Update_NotFound(t *testing.T) {
	ts := newTestServer(t, false)
	ts.svc.err = model.ErrProductNotFound
	req := httptest.NewRequest(http.MethodPut, "/api/products/abc", strings.NewReader(`{"price":1}`))
	req.Header.Set("Content-Type", "application/json")

	rec, body := ts.do(req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", body["message"])
}

func Test_GetAll(t *testing.T) {
	ts := newTestServer(t, false)
	ts.svc.products = []model.Product{{Name: "a", Images: []model.Image{}}, {Name: "b", Images: []model.Image{}}}

	rec, body := ts.do(httptest.NewRequest(http.MethodGet, "/api/products", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])
	assert.Len(t, body["data"], 2)
}

func Test_GetAll_Empty(t *testing.T) {
	ts := newTestServer(t, false)
	ts.svc.products = []model.Product{}

	rec, body := ts.do(httptest.NewRequest(http.MethodGet, "/api/products", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []any{}, body["data"])
}

func Test_GetAll_UnencodableRecord(t *testing.T) {
	ts := newTestServer(t, false)
	ts.svc.products = []model.Product{{Name: "a", Price: math.Inf(1), Images: []model.Image{}}}

	rec, body := ts.do(httptest.NewRequest(http.MethodGet, "/api/products", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Internal server error", body["message"])
}

func Test_GetByID_NotFound(t *testing.T) {
	ts := newTestServer(t, false)
	ts.svc.err = model.ErrProductNotFound

	rec, body := ts.do(httptest.NewRequest(http.MethodGet, "/api/products/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", body["message"])
}

func Test_Delete(t *testing.T) {
	ts := newTestServer(t, false)

	rec, body := ts.do(httptest.NewRequest(http.MethodDelete, "/api/products/65f0c0ffee", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Product deleted successfully", body["message"])
	assert.Equal(t, "65f0c0ffee", ts.svc.deletedID)
}

func Test_Router_Fallbacks(t *testing.T) {
	ts := newTestServer(t, false)

	rec, body := ts.do(httptest.NewRequest(http.MethodGet, "/api/nothing?x=1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route /api/nothing?x=1 not found", body["message"])

	rec, body = ts.do(httptest.NewRequest(http.MethodPatch, "/api/products/abc", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, false, body["success"])
}

func Test_Router_BannerAndHealth(t *testing.T) {
	ts := newTestServer(t, false)

	rec, body := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Robotics Store API", body["message"])
	assert.Contains(t, body, "endpoints")

	rec, body = ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "UP", body["status"])

	rec, _ = ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func Test_HealthDown(t *testing.T) {
	h := NewHealthHandler(fakeHealth{status: service.HealthStatus{Mongo: "DOWN"}})
	rec := httptest.NewRecorder()

	h.Check(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mongodb":"DOWN"`)
}

func Test_FormFields(t *testing.T) {
	testCases := []struct {
		name     string
		values   map[string][]string
		expected map[string]any
	}{
		{
			name:     "single features value stays a string",
			values:   map[string][]string{"features": {"a,b"}},
			expected: map[string]any{"features": "a,b"},
		},
		{
			name:     "repeated features form a list",
			values:   map[string][]string{"features": {"a", "b"}},
			expected: map[string]any{"features": []string{"a", "b"}},
		},
		{
			name:     "plain and bracketed features merge",
			values:   map[string][]string{"features": {"a"}, "features[]": {"b"}},
			expected: map[string]any{"features": []string{"a", "b"}},
		},
		{
			name:   "specifications json text wins over bracketed keys",
			values: map[string][]string{"specifications": {`{"power":"5V"}`}, "specifications[weight]": {"1kg"}},
			expected: map[string]any{
				"specifications": `{"power":"5V"}`,
			},
		},
		{
			name:     "indexed specification list",
			values:   map[string][]string{"specifications[compatibility][0]": {"ROS"}, "specifications[compatibility][1]": {"ROS2"}},
			expected: map[string]any{"specifications": map[string]any{"compatibility": []string{"ROS", "ROS2"}}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, service.ProductFields(tc.expected), formFields(tc.values))
		})
	}
}

func Test_TakeBool(t *testing.T) {
	fields := service.ProductFields{"keepOldImages": []string{"true"}, "flag": "nope"}

	assert.True(t, takeBool(fields, "keepOldImages"))
	assert.False(t, takeBool(fields, "flag"))
	assert.False(t, takeBool(fields, "absent"))
	assert.Empty(t, fields)
}
