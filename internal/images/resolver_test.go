package images_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bookforge/internal/images"
	"bookforge/internal/services"
	"bookforge/internal/services/placeholder"
	"bookforge/internal/store"
	"bookforge/internal/testsupport"
)

func request(policy store.ImagePolicy) images.Request {
	return images.Request{
		BookID:       "book-1",
		BookTitle:    "Le Potager",
		Language:     "fr",
		Policy:       policy,
		Chapter:      2,
		ChapterTitle: "**Les Tomates**",
		Suggestion:   "ripe tomatoes on a wooden table",
	}
}

func TestResolveAIPolicyUsesGenerator(t *testing.T) {
	ai := &testsupport.FakeImages{Data: testsupport.PNG("ai")}
	stock := &testsupport.FakeStock{Data: testsupport.PNG("stock")}
	r := images.NewResolver(ai, stock, placeholder.New())

	res, err := r.Resolve(context.Background(), request(store.ImagePolicyAI))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != store.ImageSourceAI || res.ContentType != "image/png" {
		t.Fatalf("unexpected result: %s %s", res.Source, res.ContentType)
	}
	if len(stock.Keywords()) != 0 {
		t.Fatalf("ai policy must not consult stock, got %v", stock.Keywords())
	}
	prompts := ai.Prompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], "'Les Tomates'") || !strings.Contains(prompts[0], "ripe tomatoes") {
		t.Fatalf("unexpected prompt %v", prompts)
	}
	if !strings.Contains(prompts[0], "No text in the image") {
		t.Fatalf("prompt missing no-text instruction: %q", prompts[0])
	}
}

func TestResolveAIPolicyReportsGeneratorFailure(t *testing.T) {
	ai := &testsupport.FakeImages{Err: services.Wrap(services.ErrProvider, "ai", "generate", "invalid key", nil)}
	stock := &testsupport.FakeStock{Data: testsupport.PNG("stock")}
	r := images.NewResolver(ai, stock, placeholder.New())

	res, err := r.Resolve(context.Background(), request(store.ImagePolicyAI))
	if err == nil {
		t.Fatalf("expected failure, got source %s", res.Source)
	}
	if !errors.Is(err, images.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("generator failure must stay reachable: %v", err)
	}
	if !strings.Contains(err.Error(), "invalid key") {
		t.Fatalf("error lost provider detail: %v", err)
	}
	if len(stock.Keywords()) != 0 {
		t.Fatalf("ai policy must not consult stock, got %v", stock.Keywords())
	}
}

func TestResolveBothFallsBackToStock(t *testing.T) {
	ai := &testsupport.FakeImages{Err: services.Wrap(services.ErrProvider, "ai", "generate", "503", nil)}
	stockBytes := testsupport.PNG("stock")
	stock := &testsupport.FakeStock{Data: stockBytes}
	r := images.NewResolver(ai, stock, placeholder.New())

	res, err := r.Resolve(context.Background(), request(store.ImagePolicyBoth))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != store.ImageSourceStock || !bytes.Equal(res.Data, stockBytes) {
		t.Fatalf("expected stock bytes, got source %s", res.Source)
	}
	if kws := stock.Keywords(); len(kws) == 0 || kws[0] != "les tomates" {
		t.Fatalf("unexpected keywords %v", kws)
	}
}

func TestResolveStockMissUsesPlaceholder(t *testing.T) {
	stock := &testsupport.FakeStock{}
	r := images.NewResolver(nil, stock, placeholder.New())

	res, err := r.Resolve(context.Background(), request(store.ImagePolicyStock))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != store.ImageSourcePlaceholder {
		t.Fatalf("source = %s, want placeholder", res.Source)
	}
	if kws := stock.Keywords(); len(kws) != 2 || kws[1] != "le potager" {
		t.Fatalf("expected chapter then book title keywords, got %v", kws)
	}

	again, err := r.Resolve(context.Background(), request(store.ImagePolicyStock))
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if !bytes.Equal(res.Data, again.Data) {
		t.Fatal("placeholder must be deterministic for the same book and chapter")
	}
}

func TestResolveExhausted(t *testing.T) {
	ai := &testsupport.FakeImages{Err: services.Wrap(services.ErrEmptyResult, "ai", "generate", "blank", nil)}
	stock := &testsupport.FakeStock{}
	r := images.NewResolver(ai, stock, nil)

	_, err := r.Resolve(context.Background(), request(store.ImagePolicyBoth))
	if !errors.Is(err, images.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, services.ErrEmptyResult) {
		t.Fatalf("ErrExhausted must be an empty-result error: %v", err)
	}
}

func TestResolveRejectsNonImagePayload(t *testing.T) {
	ai := &testsupport.FakeImages{Data: []byte("<html>quota exceeded</html>")}
	r := images.NewResolver(ai, nil, nil)
	if _, err := r.Resolve(context.Background(), request(store.ImagePolicyAI)); !errors.Is(err, images.ErrExhausted) {
		t.Fatalf("expected exhausted for html payload, got %v", err)
	}
}

type slowImages struct{}

func (slowImages) GenerateImage(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolveTimeoutFallsBack(t *testing.T) {
	stock := &testsupport.FakeStock{Data: testsupport.PNG("s")}
	r := images.NewResolver(slowImages{}, stock, nil, images.WithTimeout(20*time.Millisecond))

	res, err := r.Resolve(context.Background(), request(store.ImagePolicyBoth))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != store.ImageSourceStock {
		t.Fatalf("source = %s, want stock after ai timeout", res.Source)
	}
}

func TestGenerateStoresPerChapter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	book := testsupport.NewBookWithOutline(t, st, 2, true)
	book, err := st.Update(ctx, book.ID, func(b *store.Book) error {
		b.PutChapter(store.Chapter{Number: 1, Title: "One", Content: "text"})
		b.PutChapter(store.Chapter{Number: 2, Title: "Two", Content: "text"})
		return nil
	})
	if err != nil {
		t.Fatalf("seed chapters: %v", err)
	}

	r := images.NewResolver(&testsupport.FakeImages{Data: testsupport.PNG("first")}, nil, nil)
	if _, _, err := r.Generate(ctx, st, book, 1); err != nil {
		t.Fatalf("Generate 1: %v", err)
	}
	if _, _, err := r.Generate(ctx, st, book, 2); err != nil {
		t.Fatalf("Generate 2: %v", err)
	}
	before, _ := st.GetImage(ctx, book.ID, 2)

	r2 := images.NewResolver(&testsupport.FakeImages{Data: testsupport.PNG("second")}, nil, nil)
	if _, _, err := r2.Generate(ctx, st, book, 1); err != nil {
		t.Fatalf("regenerate 1: %v", err)
	}
	after, _ := st.GetImage(ctx, book.ID, 2)
	if !bytes.Equal(before.Data, after.Data) {
		t.Fatal("regenerating chapter 1 changed chapter 2's image")
	}
	one, _ := st.GetImage(ctx, book.ID, 1)
	if !bytes.Equal(one.Data, testsupport.PNG("second")) {
		t.Fatal("chapter 1 image not replaced")
	}

	if _, _, err := r.Generate(ctx, st, &store.Book{ID: book.ID}, 9); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for missing chapter, got %v", err)
	}
}
