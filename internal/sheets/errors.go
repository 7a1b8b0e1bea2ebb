package sheets

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ConfigurationError reports missing or incomplete credential configuration.
// It carries a remediation hint naming the variables to set.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) == 0 {
		return "sheets: incomplete configuration"
	}
	return fmt.Sprintf("sheets: incomplete configuration, set %s", strings.Join(e.Missing, ", "))
}

// HTTPStatus implements StatusError.
func (e *ConfigurationError) HTTPStatus() int { return http.StatusInternalServerError }

// AssertionSigningError reports a key decode or signature computation failure.
type AssertionSigningError struct {
	Err error
}

func (e *AssertionSigningError) Error() string {
	return fmt.Sprintf("sheets: sign assertion: %v", e.Err)
}

func (e *AssertionSigningError) Unwrap() error { return e.Err }

// HTTPStatus implements StatusError.
func (e *AssertionSigningError) HTTPStatus() int { return http.StatusInternalServerError }

// TokenExchangeError reports a non-success response from the token endpoint.
// Status and Body carry the upstream diagnostics verbatim.
type TokenExchangeError struct {
	Status int
	Body   string
}

func (e *TokenExchangeError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("sheets: token exchange failed with status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("sheets: token exchange failed with status %d", e.Status)
}

// HTTPStatus implements StatusError.
func (e *TokenExchangeError) HTTPStatus() int { return http.StatusInternalServerError }

// UpstreamFetchError reports a non-success response from the tabular data endpoint.
type UpstreamFetchError struct {
	Status int
	Body   string
}

func (e *UpstreamFetchError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("sheets: fetch values failed with status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("sheets: fetch values failed with status %d", e.Status)
}

// HTTPStatus implements StatusError.
func (e *UpstreamFetchError) HTTPStatus() int { return http.StatusInternalServerError }

// StatusError is implemented by pipeline errors that map to an HTTP status.
type StatusError interface {
	error
	HTTPStatus() int
}

// HTTPStatus resolves the response status for a pipeline error, defaulting to
// 500 for unclassified failures.
func HTTPStatus(err error) int {
	var se StatusError
	if errors.As(err, &se) {
		return se.HTTPStatus()
	}
	return http.StatusInternalServerError
}
