package workflow

import (
	"context"
	"fmt"
	"sort"

	"bookforge/internal/logging"
	"bookforge/internal/notifications"
	"bookforge/internal/services"
	"bookforge/internal/store"
)

// GenerateOutline asks the text provider for an outline and stores it. The
// book must be in outline_pending; on failure nothing is stored.
func (m *Manager) GenerateOutline(ctx context.Context, id string) (*store.Book, error) {
	release, err := m.leases.acquire(leaseKey{bookID: id, unit: unitOutline})
	if err != nil {
		return nil, err
	}
	defer release()

	ctx = m.bookContext(ctx, id, "generate_outline")
	logger := logging.WithContext(ctx, m.logger)

	book, err := m.store.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if book.Status != store.StatusOutlinePending {
		return nil, services.Wrap(services.ErrValidation, "workflow", "generate outline",
			fmt.Sprintf("book is %s; outline already exists", book.Status), nil)
	}

	chapters := ChapterCount(book.TargetPages, m.cfg.Generation.MinChapters)
	prompt := outlinePrompt(book, chapters)
	provider := services.ProviderName(m.text, "text")
	outline, err := withRetry(ctx, m.retry, m.logger, "text", provider, func(ctx context.Context) ([]store.OutlineEntry, error) {
		content, err := m.text.Generate(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return parseOutline(content)
	})
	if err != nil {
		logger.Warn("outline generation failed",
			logging.String(logging.FieldEventType, "outline_failed"),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "check text provider configuration and retry"),
			logging.Error(err),
		)
		return nil, err
	}

	updated, err := m.store.Update(ctx, id, func(b *store.Book) error {
		if len(b.Outline) > 0 {
			return services.Wrap(services.ErrConcurrency, "workflow", "generate outline", "outline stored concurrently", nil)
		}
		b.Outline = outline
		b.Approved = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("outline generated",
		logging.Int("chapters", len(outline)),
		logging.Int("requested_chapters", chapters),
		logging.String(logging.FieldEventType, "outline_ready"),
	)
	m.publishBook(updated, EventOutline, 0)
	m.notify(ctx, notifications.EventOutlineReady, notifications.Payload{
		"bookID":   updated.ID,
		"title":    updated.Title,
		"chapters": len(updated.Outline),
	})
	return updated, nil
}

// UpdateOutline replaces the outline wholesale. Allowed while the outline is
// ready or approved and no generation is queued or running. Entries are
// ordered by chapter number and must number 1..N.
func (m *Manager) UpdateOutline(ctx context.Context, id string, outline []store.OutlineEntry) (*store.Book, error) {
	if len(outline) == 0 {
		return nil, services.Wrap(services.ErrValidation, "workflow", "update outline", "outline must contain at least one chapter", nil)
	}
	entries := append([]store.OutlineEntry(nil), outline...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Number < entries[j].Number
	})
	if err := store.ValidateOutline(entries); err != nil {
		return nil, err
	}

	ctx = m.bookContext(ctx, id, "update_outline")
	updated, err := m.store.Update(ctx, id, func(b *store.Book) error {
		if b.Status != store.StatusOutlineReady && b.Status != store.StatusOutlineApproved {
			return services.Wrap(services.ErrValidation, "workflow", "update outline",
				fmt.Sprintf("outline cannot be edited while book is %s", b.Status), nil)
		}
		if b.Generation.Pending() {
			return services.Wrap(services.ErrConcurrency, "workflow", "update outline", "generation is "+string(b.Generation), nil)
		}
		b.Outline = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, m.logger).Info("outline updated",
		logging.Int("chapters", len(entries)),
		logging.String(logging.FieldEventType, "outline_updated"),
	)
	m.publishBook(updated, EventOutline, 0)
	return updated, nil
}

// ApproveAndGenerate approves an outline and queues chapter generation for
// the background lane. Chapters written one at a time before approval are
// kept; the batch only fills in the missing ones.
func (m *Manager) ApproveAndGenerate(ctx context.Context, id string) (*store.Book, error) {
	ctx = m.bookContext(ctx, id, "approve_outline")
	updated, err := m.store.Update(ctx, id, func(b *store.Book) error {
		switch {
		case len(b.Outline) == 0:
			return services.Wrap(services.ErrValidation, "workflow", "approve outline", "book has no outline yet", nil)
		case b.Approved:
			return services.Wrap(services.ErrValidation, "workflow", "approve outline",
				fmt.Sprintf("outline is already approved; book is %s", b.Status), nil)
		case b.Generation.Pending():
			return services.Wrap(services.ErrConcurrency, "workflow", "approve outline", "generation is "+string(b.Generation), nil)
		case len(b.MissingChapters()) == 0:
			return services.Wrap(services.ErrValidation, "workflow", "approve outline", "all chapters are generated", nil)
		}
		b.Approved = true
		b.Generation = store.GenerationQueued
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, m.logger).Info("outline approved; generation queued",
		logging.Int("chapters", len(updated.Outline)),
		logging.String(logging.FieldEventType, "generation_queued"),
	)
	m.publishBook(updated, EventStatus, 0)
	m.Wake()
	return updated, nil
}

// QueueGeneration queues a batch run for an approved book, for example to
// resume after a recorded failure.
func (m *Manager) QueueGeneration(ctx context.Context, id string) (*store.Book, error) {
	ctx = m.bookContext(ctx, id, "queue_generation")
	updated, err := m.store.Update(ctx, id, func(b *store.Book) error {
		if !b.Approved || len(b.Outline) == 0 {
			return services.Wrap(services.ErrValidation, "workflow", "queue generation", "outline is not approved", nil)
		}
		if b.Generation.Pending() {
			return services.Wrap(services.ErrConcurrency, "workflow", "queue generation", "generation is "+string(b.Generation), nil)
		}
		if len(b.MissingChapters()) == 0 {
			return services.Wrap(services.ErrValidation, "workflow", "queue generation", "all chapters are generated", nil)
		}
		b.Generation = store.GenerationQueued
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.publishBook(updated, EventStatus, 0)
	m.Wake()
	return updated, nil
}
