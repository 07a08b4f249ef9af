package testsupport

import (
	"context"
	"strconv"
	"testing"

	"bookforge/internal/config"
	"bookforge/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// SampleOutline builds an outline with n numbered chapters.
func SampleOutline(n int) []store.OutlineEntry {
	outline := make([]store.OutlineEntry, n)
	for i := range outline {
		number := i + 1
		outline[i] = store.OutlineEntry{
			Number:          number,
			Title:           "Chapter title " + strconv.Itoa(number),
			Summary:         "Summary " + strconv.Itoa(number),
			KeyPoints:       []string{"point a", "point b"},
			EstimatedPages:  6,
			ImageSuggestion: "a calm landscape",
		}
	}
	return outline
}

// NewBookWithOutline creates a book and stores an n-chapter outline.
func NewBookWithOutline(t testing.TB, st *store.Store, n int, approved bool) *store.Book {
	t.Helper()

	ctx := context.Background()
	book, err := st.CreateBook(ctx, store.NewBook{Title: "Test Book", Language: "en", ImagePolicy: store.ImagePolicyAI})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	if n == 0 {
		return book
	}
	book, err = st.Update(ctx, book.ID, func(b *store.Book) error {
		b.Outline = SampleOutline(n)
		b.Approved = approved
		return nil
	})
	if err != nil {
		t.Fatalf("store outline: %v", err)
	}
	return book
}
