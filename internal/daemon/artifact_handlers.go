package daemon

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"bookforge/internal/api"
)

func (s *apiServer) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	n, ok := s.chapterParam(w, r)
	if !ok {
		return
	}
	book, err := s.daemon.workflow.GenerateImage(r.Context(), chi.URLParam(r, "id"), n)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ImageResponse{Chapter: n, ImageURL: api.ChapterImageURL(book, n)})
}

func (s *apiServer) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	n, ok := s.chapterParam(w, r)
	if !ok {
		return
	}
	if _, err := s.daemon.workflow.DeleteImage(r.Context(), chi.URLParam(r, "id"), n); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ImageResponse{Chapter: n})
}

func (s *apiServer) handleGenerateAllImages(w http.ResponseWriter, r *http.Request) {
	report, err := s.daemon.workflow.GenerateAllImages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromImageReport(report))
}

func (s *apiServer) handleGetImage(w http.ResponseWriter, r *http.Request) {
	n, ok := s.chapterParam(w, r)
	if !ok {
		return
	}
	img, err := s.daemon.store.GetImage(r.Context(), chi.URLParam(r, "id"), n)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// handleExport serves POST /export with a {"format": ...} body, or
// GET /export/{format}.
func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == "" {
		var req api.ExportRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeFailure(w, r, err)
			return
		}
		format = req.Format
	}

	artifact, err := s.daemon.exporter.Export(r.Context(), chi.URLParam(r, "id"), format)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(artifact.FileName, `"`, "")))
	w.Header().Set("X-Export-Cached", strconv.FormatBool(artifact.Cached))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}
