package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookforge/internal/logging"
	"bookforge/internal/metrics"
	"bookforge/internal/notifications"
	"bookforge/internal/services"
	"bookforge/internal/store"
)

// GenerateChapter writes (or rewrites) chapter n. Only one call per book and
// chapter runs at a time; a concurrent caller gets services.ErrConcurrency.
// On failure any previous content is kept.
func (m *Manager) GenerateChapter(ctx context.Context, id string, n int) (*store.Book, error) {
	release, err := m.leases.acquire(leaseKey{bookID: id, unit: unitChapter, chapter: n})
	if err != nil {
		return nil, err
	}
	defer release()
	return m.generateChapter(m.bookContext(ctx, id, "generate_chapter"), id, n)
}

// generateChapter requires the caller to hold the chapter lease.
func (m *Manager) generateChapter(ctx context.Context, id string, n int) (*store.Book, error) {
	ctx = services.WithChapter(ctx, n)
	logger := logging.WithContext(ctx, m.logger)

	book, err := m.store.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(book.Outline) == 0 {
		return nil, services.Wrap(services.ErrValidation, "workflow", "generate chapter", "book has no outline yet", nil)
	}
	entry, ok := book.OutlineEntry(n)
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "generate chapter",
			fmt.Sprintf("chapter %d is not in the outline", n), nil)
	}

	prompt := chapterPrompt(book, entry, previousExcerpt(book, n), WordBudget(entry.EstimatedPages, m.cfg.Generation.WordsPerPage))
	provider := services.ProviderName(m.text, "text")
	started := time.Now()
	content, err := withRetry(ctx, m.retry, m.logger, "text", provider, func(ctx context.Context) (string, error) {
		text, err := m.text.Generate(ctx, prompt)
		if err != nil {
			return "", err
		}
		body := cleanChapter(text, entry.Title)
		if body == "" {
			return "", services.Wrap(services.ErrEmptyResult, "workflow", "generate chapter", "provider returned no chapter text", nil)
		}
		return body, nil
	})
	if err != nil {
		metrics.ChapterGenerated(err)
		logger.Warn("chapter generation failed",
			logging.Provider(provider),
			logging.String(logging.FieldEventType, "chapter_failed"),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldErrorHint, "retry the chapter once the provider recovers"),
			logging.Error(err),
		)
		return nil, err
	}

	updated, err := m.store.Update(ctx, id, func(b *store.Book) error {
		current, ok := b.OutlineEntry(n)
		if !ok {
			return services.Wrap(services.ErrNotFound, "workflow", "generate chapter",
				fmt.Sprintf("chapter %d was removed from the outline", n), nil)
		}
		chapter := store.Chapter{
			Number:      n,
			Title:       current.Title,
			Content:     content,
			GeneratedAt: time.Now().UTC(),
		}
		if existing, ok := b.Chapter(n); ok {
			chapter.ImageURL = existing.ImageURL
		}
		b.PutChapter(chapter)
		if b.Error != "" && b.FailedChapter == n {
			b.ClearError()
		}
		return nil
	})
	metrics.ChapterGenerated(err)
	if err != nil {
		return nil, err
	}

	logger.Info("chapter generated",
		logging.Provider(provider),
		logging.Int("characters", len(content)),
		logging.Duration("duration", time.Since(started)),
		logging.Int("generated", updated.GeneratedCount()),
		logging.Int("total", len(updated.Outline)),
		logging.String(logging.FieldEventType, "chapter_generated"),
	)
	m.publishBook(updated, EventChapter, n)
	return updated, nil
}

// GenerateAllChapters writes every missing chapter in increasing order. It
// requires an approved outline. Chapters already present are skipped, so a run
// after a failure resumes at the failed chapter. The first unrecoverable
// failure stops the batch and is recorded on the book.
func (m *Manager) GenerateAllChapters(ctx context.Context, id string) (*store.Book, error) {
	release, err := m.leases.acquire(leaseKey{bookID: id, unit: unitBatch})
	if err != nil {
		return nil, err
	}
	defer release()

	ctx = m.bookContext(ctx, id, "generate_all_chapters")
	logger := logging.WithContext(ctx, m.logger)

	book, err := m.store.Update(ctx, id, func(b *store.Book) error {
		if !b.Approved || len(b.Outline) == 0 {
			return services.Wrap(services.ErrValidation, "workflow", "generate all chapters", "outline is not approved", nil)
		}
		b.ClearError()
		if len(b.MissingChapters()) == 0 {
			b.Generation = store.GenerationIdle
		} else {
			b.Generation = store.GenerationRunning
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.publishBook(book, EventStatus, 0)

	missing := book.MissingChapters()
	batchStarted := time.Now()
	logger.Info("chapter batch started",
		logging.Int("missing", len(missing)),
		logging.Int("total", len(book.Outline)),
		logging.String(logging.FieldEventType, "batch_started"),
	)

	for _, n := range missing {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chapterRelease, err := m.leases.acquire(leaseKey{bookID: id, unit: unitChapter, chapter: n})
		if err != nil {
			m.requeue(ctx, id, err)
			return nil, err
		}
		_, err = m.generateChapter(ctx, id, n)
		chapterRelease()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil, err
			}
			if errors.Is(err, services.ErrNotFound) && !m.bookExists(ctx, id) {
				return nil, err
			}
			return nil, m.recordFailure(ctx, id, n, err)
		}
	}

	book, err = m.store.Update(ctx, id, func(b *store.Book) error {
		b.Generation = store.GenerationIdle
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("chapter batch complete",
		logging.Int("generated", len(missing)),
		logging.String("status", string(book.Status)),
		logging.String(logging.FieldEventType, "batch_complete"),
	)
	m.publishBook(book, EventStatus, 0)
	if book.Status == store.StatusChaptersComplete && len(missing) > 0 {
		m.notify(ctx, notifications.EventChaptersComplete, notifications.Payload{
			"bookID":   book.ID,
			"title":    book.Title,
			"chapters": len(book.Chapters),
			"duration": time.Since(batchStarted),
		})
	}

	if m.cfg.Generation.AutoImages && m.resolver != nil {
		report, err := m.GenerateAllImages(ctx, id)
		if err != nil {
			logger.Warn("automatic illustration skipped",
				logging.String(logging.FieldEventType, "auto_images_failed"),
				logging.String(logging.FieldImpact, "chapters remain without images"),
				logging.Error(err),
			)
		} else if len(report.Failed) > 0 {
			logger.Warn("some chapter images could not be generated",
				logging.Int("generated", len(report.Generated)),
				logging.Int("failed", len(report.Failed)),
				logging.String(logging.FieldEventType, "auto_images_partial"),
				logging.String(logging.FieldImpact, "chapters remain without images"),
			)
		}
		if refreshed, err := m.store.GetBook(ctx, id); err == nil {
			book = refreshed
		}
	}
	return book, nil
}

// recordFailure stores the failed chapter on the book and returns the cause.
func (m *Manager) recordFailure(ctx context.Context, id string, n int, cause error) error {
	message := fmt.Sprintf("Chapter %d failed: %v", n, cause)
	book, err := m.store.Update(ctx, id, func(b *store.Book) error {
		b.SetError(message, n)
		b.Generation = store.GenerationIdle
		return nil
	})
	if err != nil {
		m.setLastError(err)
		logging.WithContext(ctx, m.logger).Error("failed to record chapter failure",
			logging.Chapter(n),
			logging.String(logging.FieldEventType, "failure_record_failed"),
			logging.String(logging.FieldErrorHint, "check database access"),
			logging.Error(err),
		)
		return cause
	}
	logging.WithContext(ctx, m.logger).Error("chapter batch stopped",
		logging.Alert("generation_failed"),
		logging.Chapter(n),
		logging.Int("generated", book.GeneratedCount()),
		logging.Int("total", len(book.Outline)),
		logging.String(logging.FieldEventType, "batch_failed"),
		logging.String(logging.FieldErrorKind, services.Kind(cause)),
		logging.String(logging.FieldErrorHint, "regenerate the failed chapter or queue the book again"),
		logging.Error(cause),
	)
	m.publishBook(book, EventFailed, n)
	m.notify(ctx, notifications.EventGenerationFailed, notifications.Payload{
		"bookID":  book.ID,
		"title":   book.Title,
		"chapter": n,
		"error":   message,
	})
	return cause
}

// requeue hands the book back to the lane after a lease collision.
func (m *Manager) requeue(ctx context.Context, id string, cause error) {
	if _, err := m.store.Update(ctx, id, func(b *store.Book) error {
		b.Generation = store.GenerationQueued
		return nil
	}); err != nil {
		logging.WithContext(ctx, m.logger).Warn("failed to requeue book",
			logging.String(logging.FieldEventType, "requeue_failed"),
			logging.Error(err),
		)
		return
	}
	logging.WithContext(ctx, m.logger).Info("chapter busy; batch requeued",
		logging.String(logging.FieldEventType, "batch_requeued"),
		logging.Error(cause),
	)
}

func (m *Manager) bookExists(ctx context.Context, id string) bool {
	_, err := m.store.GetBook(ctx, id)
	return err == nil || !errors.Is(err, services.ErrNotFound)
}
