package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"bookforge/internal/logging"
	"bookforge/internal/services"
	"bookforge/internal/store"
)

// ImageReport summarizes a GenerateAllImages run.
type ImageReport struct {
	Generated []int          `json:"generated"`
	Failed    map[int]string `json:"failed,omitempty"`
}

// GenerateImage resolves and stores an illustration for generated chapter n,
// replacing that chapter's previous image only.
func (m *Manager) GenerateImage(ctx context.Context, id string, n int) (*store.Book, error) {
	if m.resolver == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "generate image", "no image resolver configured", nil)
	}
	release, err := m.leases.acquire(leaseKey{bookID: id, unit: unitImage, chapter: n})
	if err != nil {
		return nil, err
	}
	defer release()

	ctx = services.WithChapter(m.bookContext(ctx, id, "generate_image"), n)
	logger := logging.WithContext(ctx, m.logger)

	book, err := m.store.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, res, err := m.resolver.Generate(ctx, m.store, book, n)
	if err != nil {
		logger.Warn("chapter image failed",
			logging.String(logging.FieldEventType, "image_failed"),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.String(logging.FieldImpact, "chapter keeps its previous image, if any"),
			logging.Error(err),
		)
		return nil, err
	}
	logger.Info("chapter image stored",
		logging.String("source", string(res.Source)),
		logging.Provider(res.Provider),
		logging.String("content_type", res.ContentType),
		logging.Int("bytes", len(res.Data)),
		logging.String(logging.FieldEventType, "image_stored"),
	)
	m.publishBook(updated, EventImage, n)
	return updated, nil
}

// DeleteImage removes chapter n's illustration.
func (m *Manager) DeleteImage(ctx context.Context, id string, n int) (*store.Book, error) {
	release, err := m.leases.acquire(leaseKey{bookID: id, unit: unitImage, chapter: n})
	if err != nil {
		return nil, err
	}
	defer release()

	ctx = services.WithChapter(m.bookContext(ctx, id, "delete_image"), n)
	updated, err := m.store.DeleteImage(ctx, id, n)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, m.logger).Info("chapter image deleted",
		logging.String(logging.FieldEventType, "image_deleted"),
	)
	m.publishBook(updated, EventImage, n)
	return updated, nil
}

// GenerateAllImages illustrates every generated chapter that has no image,
// running up to images.concurrency chapters at once. Individual failures are
// reported, never returned.
func (m *Manager) GenerateAllImages(ctx context.Context, id string) (*ImageReport, error) {
	if m.resolver == nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "generate images", "no image resolver configured", nil)
	}
	book, err := m.store.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	var pending []int
	for _, ch := range book.Chapters {
		if ch.ImageURL == "" {
			pending = append(pending, ch.Number)
		}
	}

	report := &ImageReport{Failed: map[int]string{}}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(max(m.cfg.Images.Concurrency, 1))
	for _, n := range pending {
		g.Go(func() error {
			_, err := m.GenerateImage(ctx, id, n)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[n] = err.Error()
			} else {
				report.Generated = append(report.Generated, n)
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Ints(report.Generated)

	logging.WithContext(m.bookContext(ctx, id, "generate_all_images"), m.logger).Info("chapter images processed",
		logging.Int("requested", len(pending)),
		logging.Int("generated", len(report.Generated)),
		logging.Int("failed", len(report.Failed)),
		logging.String(logging.FieldEventType, "images_processed"),
	)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("generate images: %w", err)
	}
	return report, nil
}
