package api

import (
	"context"
	"errors"
	"net/http"

	"bookforge/internal/services"
)

// HTTPStatus maps an error onto the status code returned to API clients.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	switch services.Kind(err) {
	case "not_found":
		return http.StatusNotFound
	case "validation", "export":
		return http.StatusBadRequest
	case "concurrency":
		return http.StatusConflict
	case "provider", "empty_result":
		return http.StatusBadGateway
	case "configuration":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// NewErrorResponse builds the error body for err.
func NewErrorResponse(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}
	return ErrorResponse{Error: err.Error(), Kind: services.Kind(err)}
}
