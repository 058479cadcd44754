package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"robotics-catalog/internal/service"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cast"
)

const (
	imagesField   = "images"
	maxFieldBytes = 1 << 20
)

// readRequest decodes a write request into loose fields and the local paths
// of the uploaded images, spooled to the upload directory in the order they
// were sent. On error every spooled file has already been removed; on
// success the caller owns them.
func (h *ProductHandler) readRequest(w http.ResponseWriter, r *http.Request) (service.ProductFields, []string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch contentType {
	case "multipart/form-data":
		return h.readMultipart(r)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, nil, bodyError(err)
		}
		return formFields(r.PostForm), nil, nil
	default:
		fields, err := readJSON(r.Body)
		return fields, nil, err
	}
}

func readJSON(body io.Reader) (service.ProductFields, error) {
	fields := service.ProductFields{}
	err := json.NewDecoder(body).Decode(&fields)
	if errors.Is(err, io.EOF) {
		return service.ProductFields{}, nil
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, bodyError(err)
		}
		return nil, &requestError{status: http.StatusBadRequest, message: "Invalid JSON body", err: err}
	}
	return fields, nil
}

func (h *ProductHandler) readMultipart(r *http.Request) (service.ProductFields, []string, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil, &requestError{status: http.StatusBadRequest, message: "Invalid multipart body", err: err}
	}

	values := map[string][]string{}
	var files []string
	fail := func(err error) (service.ProductFields, []string, error) {
		for _, f := range files {
			_ = os.Remove(f)
		}
		return nil, nil, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(bodyError(err))
		}

		name := part.FormName()
		if part.FileName() == "" {
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			part.Close()
			if err != nil {
				return fail(bodyError(err))
			}
			if len(b) > maxFieldBytes {
				return fail(&requestError{status: http.StatusBadRequest, message: "Field " + name + " is too large"})
			}
			values[name] = append(values[name], string(b))
			continue
		}

		if name != imagesField {
			part.Close()
			return fail(&requestError{status: http.StatusBadRequest, message: "Unexpected field " + name})
		}
		if len(files) >= h.opts.MaxUploadFiles {
			part.Close()
			return fail(&requestError{
				status:  http.StatusBadRequest,
				message: fmt.Sprintf("Too many files. Maximum is %d", h.opts.MaxUploadFiles),
			})
		}

		path, err := h.spool(part)
		part.Close()
		if err != nil {
			return fail(err)
		}
		files = append(files, path)
	}

	return formFields(values), files, nil
}

// spool writes one file part to the upload directory and keeps it only if
// its content sniffs as an image.
func (h *ProductHandler) spool(part *multipart.Part) (string, error) {
	f, err := os.CreateTemp(h.opts.UploadDir, "upload-*"+strings.ToLower(filepath.Ext(part.FileName())))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	_, err = io.Copy(f, part)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", bodyError(err)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("detect file type: %w", err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		_ = os.Remove(path)
		return "", &requestError{status: http.StatusBadRequest, message: "Only image files are allowed"}
	}
	return path, nil
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &requestError{
			status:  http.StatusRequestEntityTooLarge,
			message: fmt.Sprintf("Request body exceeds %d bytes", maxErr.Limit),
			err:     err,
		}
	}
	return &requestError{status: http.StatusBadRequest, message: "Invalid request body", err: err}
}

// formFields turns form values into ProductFields. A single features value
// is kept as a string so it can be split on commas; repeated values or
// features[] keys form a list. specifications[key] and
// specifications[key][] build the specifications map.
func formFields(values map[string][]string) service.ProductFields {
	fields := service.ProductFields{}
	specs := map[string]any{}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		vals := values[key]
		switch {
		case key == "features" || key == "features[]":
		case strings.HasPrefix(key, "specifications["):
			name, rest, ok := strings.Cut(strings.TrimPrefix(key, "specifications["), "]")
			if !ok || name == "" {
				fields[key] = single(vals)
				continue
			}
			if rest == "" && len(vals) == 1 {
				specs[name] = vals[0]
				continue
			}
			list, _ := specs[name].([]string)
			specs[name] = append(list, vals...)
		default:
			fields[key] = single(vals)
		}
	}

	plain, bracketed := values["features"], values["features[]"]
	switch {
	case len(bracketed) > 0:
		fields["features"] = append(append([]string{}, plain...), bracketed...)
	case len(plain) == 1:
		fields["features"] = plain[0]
	case len(plain) > 1:
		fields["features"] = plain
	}

	if _, ok := fields["specifications"]; !ok && len(specs) > 0 {
		fields["specifications"] = specs
	}
	return fields
}

func single(vals []string) any {
	if len(vals) == 1 {
		return vals[0]
	}
	return vals
}

// takeBool removes key from fields and reports it as a boolean.
func takeBool(fields service.ProductFields, key string) bool {
	v, ok := fields[key]
	if !ok {
		return false
	}
	delete(fields, key)
	if vals, ok := v.([]string); ok {
		if len(vals) == 0 {
			return false
		}
		v = vals[0]
	}
	return cast.ToBool(v)
}
