// Package api defines wire-format types and converters for the HTTP API. It
// translates internal store and workflow models into transport-friendly DTOs
// and maps error kinds onto HTTP status codes.
//
// # Key Types
//
// CreateBookRequest, OutlineRequest, ExportRequest: request bodies accepted by
// the book routes.
//
// BookListResponse, ImageResponse, ImageReportResponse: response envelopes.
//
// DaemonStatus/WorkflowStatus: daemon running state, lane activity and
// provider availability.
//
// # Design Notes
//
// Field names follow the snake_case shape of the stored book JSON so clients
// see one naming convention across books, progress and listings. Errors are
// returned as {"error": message, "kind": error_kind}.
package api
