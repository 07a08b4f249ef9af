package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bookforge/internal/logging"
	"bookforge/internal/metrics"
	"bookforge/internal/services"
	"bookforge/internal/store"
)

const laneErrorBackoff = 5 * time.Second

// Start begins background processing of queued books.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.runLane(runCtx)
	return nil
}

// Stop terminates background processing and waits for the lane to exit. A
// batch interrupted here stays running in the store and is resumed by the
// next Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Wake asks the lane to look for queued books now instead of at the next poll.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) runLane(ctx context.Context) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("lane", "generation"))

	if n, err := m.store.RequeueInterrupted(ctx); err != nil {
		logger.Warn("failed to requeue interrupted books; they will not resume",
			logging.String(logging.FieldEventType, "requeue_failed"),
			logging.String(logging.FieldErrorHint, "check database access"),
			logging.Error(err),
		)
	} else if n > 0 {
		logger.Info("requeued interrupted books",
			logging.Int("count", n),
			logging.String(logging.FieldEventType, "books_requeued"),
		)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ids, err := m.store.BooksWithGeneration(ctx, store.GenerationQueued)
		if err != nil {
			m.handleNextBookError(ctx, logger, err)
			continue
		}
		if len(ids) == 0 {
			m.waitForBookOrShutdown(ctx)
			continue
		}

		if err := m.processBook(ctx, logger, ids[0]); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if errors.Is(err, services.ErrConcurrency) {
				m.waitForBookOrShutdown(ctx)
				continue
			}
			if delay := m.retryDelay(ctx, ids[0], err); delay > 0 {
				logger.Warn("generation lane backing off",
					logging.BookID(ids[0]),
					logging.Duration("delay", delay),
					logging.String(logging.FieldEventType, "lane_backoff"),
					logging.String(logging.FieldErrorHint, "check database access"),
					logging.Error(err),
				)
				select {
				case <-ctx.Done():
				case <-time.After(delay):
				}
			}
		}
	}
}

// retryDelay is the pause after a failed batch. A book the failure left
// queued would otherwise be picked up again at once.
func (m *Manager) retryDelay(ctx context.Context, id string, err error) time.Duration {
	if errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrConcurrency) {
		return 0
	}
	book, getErr := m.store.GetBook(ctx, id)
	switch {
	case errors.Is(getErr, services.ErrNotFound):
		return 0
	case getErr == nil && book.Generation != store.GenerationQueued:
		return 0
	}
	return laneErrorBackoff
}

func (m *Manager) processBook(ctx context.Context, logger *slog.Logger, id string) error {
	logger = logging.ForBook(logger, id)
	m.setActiveBook(id)
	metrics.SetLaneActive(true)
	defer func() {
		metrics.SetLaneActive(false)
		m.setActiveBook("")
	}()

	_, err := m.GenerateAllChapters(ctx, id)
	if err == nil {
		return nil
	}
	m.setLastError(err)
	switch {
	case errors.Is(err, context.Canceled):
	case errors.Is(err, services.ErrValidation):
		// Queued but no longer eligible.
		if _, updateErr := m.store.Update(ctx, id, func(b *store.Book) error {
			b.Generation = store.GenerationIdle
			return nil
		}); updateErr != nil && !errors.Is(updateErr, services.ErrNotFound) {
			logger.Warn("failed to dequeue ineligible book",
				logging.String(logging.FieldEventType, "dequeue_failed"),
				logging.Error(updateErr),
			)
		}
	case errors.Is(err, services.ErrConcurrency):
		logger.Debug("book busy; retrying later",
			logging.Error(err),
		)
	}
	return err
}

func (m *Manager) handleNextBookError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to fetch queued books",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(laneErrorBackoff):
	}
}

func (m *Manager) waitForBookOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}
