package api

import (
	"strings"

	"bookforge/internal/deps"
	"bookforge/internal/store"
	"bookforge/internal/workflow"
)

// Version is reported by the API root.
const Version = "1.0.0"

// CreateBookRequest is the body of POST /api/books.
type CreateBookRequest struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Language    string `json:"language"`
	TargetPages int    `json:"target_pages"`
	ImageSource string `json:"image_source"`
}

// NewBook converts the request into store input.
func (r CreateBookRequest) NewBook() store.NewBook {
	return store.NewBook{
		Title:       strings.TrimSpace(r.Title),
		Subtitle:    strings.TrimSpace(r.Subtitle),
		Description: strings.TrimSpace(r.Description),
		Category:    strings.TrimSpace(r.Category),
		Language:    strings.TrimSpace(r.Language),
		TargetPages: r.TargetPages,
		ImagePolicy: store.ImagePolicy(strings.ToLower(strings.TrimSpace(r.ImageSource))),
	}
}

// OutlineRequest replaces a book outline.
type OutlineRequest struct {
	Outline []store.OutlineEntry `json:"outline"`
}

// ExportRequest selects an export format.
type ExportRequest struct {
	Format string `json:"format"`
}

// BookListResponse lists books newest first.
type BookListResponse struct {
	Books []store.Summary `json:"books"`
}

// ImageResponse reports a chapter image after generation or deletion.
type ImageResponse struct {
	Chapter  int    `json:"chapter"`
	ImageURL string `json:"image_url"`
}

// ImageReportResponse summarizes a bulk image run.
type ImageReportResponse struct {
	Generated []int          `json:"generated"`
	Failed    map[int]string `json:"failed,omitempty"`
}

// MessageResponse carries a short acknowledgement.
type MessageResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WorkflowStatus describes the generation lane.
type WorkflowStatus struct {
	Running    bool     `json:"running"`
	LastError  string   `json:"last_error,omitempty"`
	ActiveBook string   `json:"active_book,omitempty"`
	Queued     []string `json:"queued"`
}

// DaemonStatus aggregates runtime information.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"database_path"`
	LockFilePath string         `json:"lock_file_path"`
	Workflow     WorkflowStatus `json:"workflow"`
	Providers    []deps.Status  `json:"providers"`
}

// FromStatusSummary converts the workflow summary.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	queued := summary.Queued
	if queued == nil {
		queued = []string{}
	}
	return WorkflowStatus{
		Running:    summary.Running,
		LastError:  summary.LastError,
		ActiveBook: summary.ActiveBook,
		Queued:     queued,
	}
}

// FromImageReport converts a bulk image report.
func FromImageReport(report *workflow.ImageReport) ImageReportResponse {
	if report == nil {
		return ImageReportResponse{Generated: []int{}}
	}
	generated := report.Generated
	if generated == nil {
		generated = []int{}
	}
	return ImageReportResponse{Generated: generated, Failed: report.Failed}
}

// ChapterImageURL returns the image reference of chapter n, or "".
func ChapterImageURL(book *store.Book, n int) string {
	if book == nil {
		return ""
	}
	if ch, ok := book.Chapter(n); ok {
		return ch.ImageURL
	}
	return ""
}
