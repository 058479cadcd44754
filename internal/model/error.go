package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrProductNotFound = errors.New("product not found")

// ValidationError reports invariant violations keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

// Messages returns the field messages sorted by field name.
func (e *ValidationError) Messages() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, e.Fields[k])
	}
	return out
}

// UploadError is a media store failure. Auth marks credential rejections.
type UploadError struct {
	Op   string
	Auth bool
	Err  error
}

func (e *UploadError) Error() string {
	if e.Auth {
		return fmt.Sprintf("media store %s: authentication failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("media store %s: %v", e.Op, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// MalformedInputError is returned when a structured field cannot be decoded.
type MalformedInputError struct {
	Field string
	Err   error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s: %v", e.Field, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }
