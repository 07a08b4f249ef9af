package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"bookforge/internal/api"
	"bookforge/internal/config"
	"bookforge/internal/logging"
	"bookforge/internal/metrics"
	"bookforge/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	router  chi.Router
	origins []string

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:    strings.TrimSpace(cfg.Paths.APIBind),
		logger:  logging.NewComponentLogger(logger, "api-server"),
		daemon:  d,
		origins: cfg.API.CORSOrigins,
	}
	srv.router = srv.routes(cfg)
	return srv
}

func (s *apiServer) routes(cfg *config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.API.CORSOrigins))

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(cfg.API.Token))
		if cfg.API.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(cfg.API.RateLimitPerMinute, time.Minute))
		}

		r.Get("/", s.handleRoot)
		r.Get("/status", s.handleStatus)

		r.Get("/books", s.handleListBooks)
		r.Post("/books", s.handleCreateBook)
		r.Post("/books/create", s.handleCreateBook)

		r.Route("/books/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetBook)
			r.Delete("/", s.handleDeleteBook)
			r.Get("/progress", s.handleProgress)
			r.Get("/events", s.handleEvents)

			r.Post("/generate-outline", s.handleGenerateOutline)
			r.Put("/outline", s.handleUpdateOutline)
			r.Post("/approve", s.handleApprove)
			r.Post("/approve-outline", s.handleApprove)

			r.Post("/generate-chapter/{n}", s.handleGenerateChapter)
			r.Post("/generate-all-chapters", s.handleGenerateAllChapters)

			r.Post("/generate-image/{n}", s.handleGenerateImage)
			r.Post("/generate-all-images", s.handleGenerateAllImages)
			r.Get("/chapters/{n}/image", s.handleGetImage)
			r.Delete("/chapters/{n}/image", s.handleDeleteImage)

			r.Post("/export", s.handleExport)
			r.Get("/export/{format}", s.handleExport)
		})
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestLogger tags the request context with the chi request id and logs
// each completed request.
func (s *apiServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := r.Context()
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = services.WithRequestID(ctx, id)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []logging.Attr{
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Int("bytes", ww.BytesWritten()),
			logging.Duration("duration", time.Since(started)),
		}
		logger := logging.WithContext(ctx, s.logger)
		if status >= http.StatusInternalServerError {
			logger.Warn("api request failed", logging.Args(attrs...)...)
			return
		}
		logger.Debug("api request", logging.Args(attrs...)...)
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeFailure maps err onto its HTTP status and logs server-side failures.
func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := api.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Warn("api operation failed",
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.NewErrorResponse(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return services.Wrap(services.ErrValidation, "api", "decode", "request body is required", nil)
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode", "invalid JSON body", err)
	}
	return nil
}
