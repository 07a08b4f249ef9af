package daemon

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"bookforge/internal/api"
	"bookforge/internal/services"
	"bookforge/internal/store"
)

func (s *apiServer) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.MessageResponse{
		Message: "bookforge API",
		Version: api.Version,
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Providers:    status.Providers,
	})
}

func (s *apiServer) handleListBooks(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if value := strings.TrimSpace(r.URL.Query().Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	books, err := s.daemon.workflow.ListBooks(r.Context(), limit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if books == nil {
		books = []store.Summary{}
	}
	s.writeJSON(w, http.StatusOK, api.BookListResponse{Books: books})
}

func (s *apiServer) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req api.CreateBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	book, err := s.daemon.workflow.CreateBook(r.Context(), req.NewBook())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, book)
}

func (s *apiServer) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.daemon.workflow.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *apiServer) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.daemon.workflow.DeleteBook(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MessageResponse{Status: "deleted", Message: id})
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.daemon.workflow.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, progress)
}

func (s *apiServer) handleGenerateOutline(w http.ResponseWriter, r *http.Request) {
	book, err := s.daemon.workflow.GenerateOutline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *apiServer) handleUpdateOutline(w http.ResponseWriter, r *http.Request) {
	var req api.OutlineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	book, err := s.daemon.workflow.UpdateOutline(r.Context(), chi.URLParam(r, "id"), req.Outline)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *apiServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	book, err := s.daemon.workflow.ApproveAndGenerate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, book)
}

func (s *apiServer) handleGenerateChapter(w http.ResponseWriter, r *http.Request) {
	n, ok := s.chapterParam(w, r)
	if !ok {
		return
	}
	book, err := s.daemon.workflow.GenerateChapter(r.Context(), chi.URLParam(r, "id"), n)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *apiServer) handleGenerateAllChapters(w http.ResponseWriter, r *http.Request) {
	book, err := s.daemon.workflow.QueueGeneration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, book)
}

// chapterParam parses the {n} route parameter, writing a 400 when it is not a
// positive integer.
func (s *apiServer) chapterParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "n")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		s.writeFailure(w, r, services.Wrap(services.ErrValidation, "api", "chapter",
			fmt.Sprintf("invalid chapter number %q", raw), nil))
		return 0, false
	}
	return n, true
}
