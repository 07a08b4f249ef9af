package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProvider marks transient text/image/stock provider failures. Retryable.
	ErrProvider = errors.New("provider error")
	// ErrEmptyResult marks provider output that is present but unusable.
	ErrEmptyResult = errors.New("empty result")
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrExport      = errors.New("export error")
	// ErrConcurrency marks a request that collided with in-flight work on the same unit.
	ErrConcurrency   = errors.New("already in progress")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrProvider
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether err is worth another attempt under the retry policy.
// Empty results, validation failures and lease collisions are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrEmptyResult), errors.Is(err, ErrValidation),
		errors.Is(err, ErrConcurrency), errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound):
		return false
	}
	return errors.Is(err, ErrProvider)
}

// Kind returns a stable short name for the error class, used in logs and API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConcurrency):
		return "concurrency"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.Is(err, ErrExport):
		return "export"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrProvider):
		return "provider"
	default:
		return "internal"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// MarkerForStatus maps an upstream HTTP status code to an error marker. Timeouts,
// throttling and server errors are transient; auth failures are configuration
// problems; a missing resource is not found; anything else is a rejected request.
func MarkerForStatus(code int) error {
	switch {
	case code == 408 || code == 429 || code >= 500:
		return ErrProvider
	case code == 401 || code == 403:
		return ErrConfiguration
	case code == 404:
		return ErrNotFound
	default:
		return ErrValidation
	}
}
