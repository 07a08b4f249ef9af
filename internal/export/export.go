package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"bookforge/internal/config"
	"bookforge/internal/fileutil"
	"bookforge/internal/logging"
	"bookforge/internal/metrics"
	"bookforge/internal/notifications"
	"bookforge/internal/services"
	"bookforge/internal/store"
	"bookforge/internal/textutil"
)

// Format is an export file format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatEPUB Format = "epub"
)

// Formats lists the supported formats.
var Formats = []Format{FormatPDF, FormatDOCX, FormatEPUB}

// ParseFormat validates a format name.
func ParseFormat(value string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(value)))
	switch f {
	case FormatPDF, FormatDOCX, FormatEPUB:
		return f, nil
	}
	return "", services.Wrap(services.ErrExport, "export", "format", fmt.Sprintf("unsupported format %q", value), nil)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatEPUB:
		return "application/epub+zip"
	}
	return "application/octet-stream"
}

// Artifact is a rendered book.
type Artifact struct {
	BookID      string
	Format      Format
	FileName    string
	Path        string
	ContentType string
	Data        []byte
	Cached      bool
	CreatedAt   time.Time
}

// BookSource is the slice of the content store exports read from.
type BookSource interface {
	GetBook(ctx context.Context, id string) (*store.Book, error)
	GetImage(ctx context.Context, bookID string, chapter int) (*store.Image, error)
}

// Engine renders, caches and writes book artifacts.
type Engine struct {
	source    BookSource
	dir       string
	keepFiles bool
	ttl       time.Duration
	cache     *cache.Cache
	group     singleflight.Group
	logger    *slog.Logger
	notifier  notifications.Service
}

// Option customizes an Engine.
type Option func(*Engine)

// WithNotifier publishes an export-ready notification after each fresh render.
func WithNotifier(notifier notifications.Service) Option {
	return func(e *Engine) {
		e.notifier = notifier
	}
}

// NewEngine builds an export engine writing into the configured export dir.
func NewEngine(cfg *config.Config, source BookSource, logger *slog.Logger, opts ...Option) *Engine {
	ttl := time.Duration(cfg.Export.CacheTTLMinutes) * time.Minute
	cleanup := ttl
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	e := &Engine{
		source:    source,
		dir:       cfg.Paths.ExportDir,
		keepFiles: cfg.Export.KeepFiles,
		ttl:       ttl,
		cache:     cache.New(ttl, cleanup),
		logger:    logging.NewComponentLogger(logger, "export"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export renders book id in format, serving a cached artifact when the book
// has not changed since it was last rendered. A book with no chapters or an
// unknown format is an export error and produces nothing.
func (e *Engine) Export(ctx context.Context, id string, format string) (*Artifact, error) {
	started := time.Now()
	f, err := ParseFormat(format)
	if err != nil {
		metrics.ExportDone(strings.ToLower(strings.TrimSpace(format)), false, started, err)
		return nil, err
	}
	book, err := e.source.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(book.Chapters) == 0 {
		err := services.Wrap(services.ErrExport, "export", string(f), "book has no generated chapters", nil)
		metrics.ExportDone(string(f), false, started, err)
		return nil, err
	}

	key := cacheKey(book.ID, f, book.UpdatedAt)
	if cached, ok := e.cache.Get(key); ok {
		artifact := *cached.(*Artifact)
		artifact.Cached = true
		metrics.ExportDone(string(f), true, started, nil)
		return &artifact, nil
	}

	value, err, _ := e.group.Do(key, func() (any, error) {
		return e.render(ctx, book, f, key)
	})
	metrics.ExportDone(string(f), false, started, err)
	if err != nil {
		logging.WithContext(services.WithBookID(ctx, book.ID), e.logger).Warn("export failed",
			logging.Format(string(f)),
			logging.String(logging.FieldEventType, "export_failed"),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)
		return nil, err
	}
	artifact := *value.(*Artifact)
	return &artifact, nil
}

func (e *Engine) render(ctx context.Context, book *store.Book, f Format, key string) (*Artifact, error) {
	m, err := newManuscript(ctx, e.source, book)
	if err != nil {
		return nil, err
	}
	data, err := Render(m, f)
	if err != nil {
		return nil, err
	}

	artifact := &Artifact{
		BookID:      book.ID,
		Format:      f,
		FileName:    textutil.ExportFileName(book.Title, book.ID, string(f)),
		ContentType: f.ContentType(),
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}
	if e.keepFiles {
		path := filepath.Join(e.dir, artifact.FileName)
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return nil, services.Wrap(services.ErrExport, "export", string(f), "write artifact", err)
		}
		artifact.Path = path
	}
	e.forget(book.ID, f)
	if e.ttl > 0 {
		e.cache.Set(key, artifact, cache.DefaultExpiration)
	}
	// A delete that lands mid-render has already purged; undo what this
	// render stored.
	if _, err := e.source.GetBook(ctx, book.ID); errors.Is(err, services.ErrNotFound) {
		e.forget(book.ID, f)
		if e.keepFiles {
			_ = e.removeFiles(book.ID, book.Title, f)
		}
		return nil, err
	}

	logging.WithContext(services.WithBookID(ctx, book.ID), e.logger).Info("book exported",
		logging.Format(string(f)),
		logging.String("file", artifact.FileName),
		logging.Int("bytes", len(data)),
		logging.Int("chapters", len(book.Chapters)),
		logging.String(logging.FieldEventType, "export_ready"),
	)
	if e.notifier != nil {
		if err := e.notifier.Publish(ctx, notifications.EventExportReady, notifications.Payload{
			"bookID": book.ID,
			"title":  book.Title,
			"format": string(f),
			"file":   artifact.FileName,
		}); err != nil {
			e.logger.Debug("export notification failed", logging.Error(err))
		}
	}
	return artifact, nil
}

// Render produces the bytes of m in format f.
func Render(m *Manuscript, f Format) ([]byte, error) {
	if m == nil || len(m.Chapters) == 0 {
		return nil, services.Wrap(services.ErrExport, "export", string(f), "book has no generated chapters", nil)
	}
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatPDF:
		data, _, err = renderPDF(m, true)
	case FormatDOCX:
		data, err = renderDOCX(m)
	case FormatEPUB:
		data, err = renderEPUB(m)
	default:
		return nil, services.Wrap(services.ErrExport, "export", string(f), "unsupported format", nil)
	}
	if err != nil {
		if errors.Is(err, services.ErrExport) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrExport, "export", string(f), "render", err)
	}
	return data, nil
}

// Purge drops cached artifacts and exported files for a book. Files are
// matched by their full export name, so books sharing an id prefix keep theirs.
func (e *Engine) Purge(bookID, title string) error {
	if bookID == "" {
		return nil
	}
	for _, f := range Formats {
		e.forget(bookID, f)
	}
	return e.removeFiles(bookID, title, Formats...)
}

func (e *Engine) removeFiles(bookID, title string, formats ...Format) error {
	var errs []error
	for _, f := range formats {
		path := filepath.Join(e.dir, textutil.ExportFileName(title, bookID, string(f)))
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) forget(bookID string, f Format) {
	prefix := bookID + "|" + string(f) + "|"
	for key := range e.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			e.cache.Delete(key)
		}
	}
}

func cacheKey(bookID string, f Format, updated time.Time) string {
	return fmt.Sprintf("%s|%s|%d", bookID, f, updated.UnixNano())
}
