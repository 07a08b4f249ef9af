package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bookforge/internal/config"
	"bookforge/internal/images"
	"bookforge/internal/language"
	"bookforge/internal/logging"
	"bookforge/internal/notifications"
	"bookforge/internal/services"
	"bookforge/internal/store"
)

// ArtifactPurger removes exported files and cached artifacts for a book.
type ArtifactPurger interface {
	Purge(bookID, title string) error
}

// Manager coordinates outline, chapter and image generation for books.
type Manager struct {
	cfg          *config.Config
	store        *store.Store
	text         services.TextGenerator
	resolver     *images.Resolver
	logger       *slog.Logger
	notifier     notifications.Service
	purger       ArtifactPurger
	hub          *Hub
	leases       *leaseTable
	retry        retryPolicy
	pollInterval time.Duration
	wake         chan struct{}

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastErr    error
	activeBook string
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier replaces the config-derived notification service.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithArtifactPurger registers the export cleanup run after a book is deleted.
func WithArtifactPurger(purger ArtifactPurger) ManagerOption {
	return func(m *Manager) {
		m.purger = purger
	}
}

// WithHub shares an event hub with other components.
func WithHub(hub *Hub) ManagerOption {
	return func(m *Manager) {
		if hub != nil {
			m.hub = hub
		}
	}
}

// NewManager constructs a workflow manager. resolver may be nil, in which case
// image operations fail with a configuration error.
func NewManager(cfg *config.Config, st *store.Store, text services.TextGenerator, resolver *images.Resolver, logger *slog.Logger, opts ...ManagerOption) *Manager {
	poll := time.Duration(cfg.Generation.PollInterval) * time.Second
	if poll <= 0 {
		poll = time.Second
	}
	m := &Manager{
		cfg:          cfg,
		store:        st,
		text:         text,
		resolver:     resolver,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		notifier:     notifications.NewService(cfg),
		hub:          NewHub(),
		leases:       newLeaseTable(),
		retry:        newRetryPolicy(cfg.Generation.MaxAttempts, time.Duration(cfg.Generation.RetryBackoffSeconds)*time.Second),
		pollInterval: poll,
		wake:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Hub returns the event hub progress events are published to.
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Subscribe registers for events about bookID; an empty id receives every book.
func (m *Manager) Subscribe(bookID string) (<-chan Event, func()) {
	return m.hub.Subscribe(bookID)
}

// CreateBook validates metadata and stores a new book in outline_pending.
func (m *Manager) CreateBook(ctx context.Context, input store.NewBook) (*store.Book, error) {
	lang, err := language.Normalize(input.Language)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "workflow", "create book", "unsupported language "+input.Language, err)
	}
	input.Language = lang
	book, err := m.store.CreateBook(ctx, input)
	if err != nil {
		return nil, err
	}
	m.logger.Info("book created",
		logging.BookID(book.ID),
		logging.String("title", book.Title),
		logging.String("language", book.Language),
		logging.Int("target_pages", book.TargetPages),
		logging.String(logging.FieldEventType, "book_created"),
	)
	m.publishBook(book, EventStatus, 0)
	return book, nil
}

// GetBook returns the full book with outline and chapters.
func (m *Manager) GetBook(ctx context.Context, id string) (*store.Book, error) {
	return m.store.GetBook(ctx, id)
}

// ListBooks returns book summaries, newest first.
func (m *Manager) ListBooks(ctx context.Context, limit int) ([]store.Summary, error) {
	return m.store.ListBooks(ctx, limit)
}

// Progress reports generation progress without touching leases or providers.
func (m *Manager) Progress(ctx context.Context, id string) (*store.Progress, error) {
	return m.store.Progress(ctx, id)
}

// DeleteBook removes the book with its chapters and images, then its exported
// files and cached artifacts.
func (m *Manager) DeleteBook(ctx context.Context, id string) error {
	book, err := m.store.GetBook(ctx, id)
	if err != nil {
		return err
	}
	if err := m.store.DeleteBook(ctx, id); err != nil {
		return err
	}
	if m.purger != nil {
		if err := m.purger.Purge(id, book.Title); err != nil {
			m.logger.Warn("export cleanup failed; stale artifacts may remain",
				logging.BookID(id),
				logging.String(logging.FieldEventType, "export_purge_failed"),
				logging.String(logging.FieldErrorHint, "check export directory permissions"),
				logging.Error(err),
			)
		}
	}
	m.logger.Info("book deleted",
		logging.BookID(id),
		logging.String(logging.FieldEventType, "book_deleted"),
	)
	m.hub.Publish(Event{Type: EventDeleted, BookID: id})
	return nil
}

func (m *Manager) bookContext(ctx context.Context, id, op string) context.Context {
	ctx = services.WithBookID(ctx, id)
	return services.WithOperation(ctx, op)
}

func (m *Manager) publishBook(book *store.Book, kind EventType, chapter int) {
	if book == nil {
		return
	}
	m.hub.Publish(Event{
		Type:       kind,
		BookID:     book.ID,
		Chapter:    chapter,
		Status:     book.Status,
		Generation: book.Generation,
		Generated:  book.GeneratedCount(),
		Total:      len(book.Outline),
		Error:      book.Error,
	})
}
