// Package boterr provides error types shared between the mergebot packages.
package boterr

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is returned when a remote API responded with a non-2xx status
// code.
type HTTPError struct {
	Method string
	URL    string
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed with status code: %d, response: %q", e.Method, e.URL, e.Status, string(e.Body))
}

// IsNotFound returns true if err wraps a HTTPError with status code 404.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusNotFound
	}

	return false
}

// ConfigError describes an invalid field of a policy configuration.
type ConfigError struct {
	Field string
	Err   error
}

func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration field %q: %s", e.Field, e.Err)
}
