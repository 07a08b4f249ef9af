package images

import (
	"context"
	"fmt"

	"bookforge/internal/metrics"
	"bookforge/internal/services"
	"bookforge/internal/store"
)

// ImageStore is the slice of the content store the image lifecycle needs.
type ImageStore interface {
	PutImage(ctx context.Context, img store.Image) (*store.Book, error)
	DeleteImage(ctx context.Context, bookID string, chapter int) (*store.Book, error)
}

// RequestFor builds a resolve request for generated chapter n of book.
func RequestFor(book *store.Book, n int) (Request, error) {
	ch, ok := book.Chapter(n)
	if !ok {
		return Request{}, services.Wrap(services.ErrNotFound, "images", "request",
			fmt.Sprintf("chapter %d of book %s not generated", n, book.ID), nil)
	}
	req := Request{
		BookID:       book.ID,
		BookTitle:    book.Title,
		Language:     book.Language,
		Policy:       book.ImagePolicy,
		Chapter:      n,
		ChapterTitle: ch.Title,
		Content:      ch.Content,
	}
	if entry, ok := book.OutlineEntry(n); ok {
		req.Suggestion = entry.ImageSuggestion
	}
	return req, nil
}

// Generate resolves an image for chapter n and stores it, replacing any
// previous image for that chapter only.
func (r *Resolver) Generate(ctx context.Context, st ImageStore, book *store.Book, n int) (*store.Book, *Result, error) {
	req, err := RequestFor(book, n)
	if err != nil {
		return nil, nil, err
	}
	res, err := r.Resolve(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	updated, err := st.PutImage(ctx, store.Image{
		BookID:      book.ID,
		Chapter:     n,
		Data:        res.Data,
		ContentType: res.ContentType,
		Source:      res.Source,
	})
	if err != nil {
		return nil, nil, err
	}
	metrics.ImageStored(string(res.Source))
	return updated, res, nil
}
