package testsupport

import (
	"context"
	"sync"

	"bookforge/internal/services"
	"bookforge/internal/services/placeholder"
)

// TextFunc answers a prompt for FakeText.
type TextFunc func(ctx context.Context, prompt services.Prompt) (string, error)

// FakeText is a scripted text provider that records every prompt.
type FakeText struct {
	Handler TextFunc

	mu    sync.Mutex
	calls []services.Prompt
}

// Generate records the prompt and delegates to Handler.
func (f *FakeText) Generate(ctx context.Context, prompt services.Prompt) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()
	if f.Handler == nil {
		return "## Section\n\nGenerated body text.", nil
	}
	return f.Handler(ctx, prompt)
}

// Name reports the provider name.
func (f *FakeText) Name() string { return "fake-text" }

// Calls returns a copy of recorded prompts.
func (f *FakeText) Calls() []services.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]services.Prompt(nil), f.calls...)
}

// FakeImages is an image generator returning fixed bytes or an error.
type FakeImages struct {
	Data []byte
	Err  error

	mu      sync.Mutex
	prompts []string
}

// GenerateImage records the prompt and returns the configured result.
func (f *FakeImages) GenerateImage(_ context.Context, prompt string) ([]byte, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Data, nil
}

// Name reports the provider name.
func (f *FakeImages) Name() string { return "fake-images" }

// Prompts returns a copy of recorded prompts.
func (f *FakeImages) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// FakeStock is a stock provider returning fixed bytes or an error.
type FakeStock struct {
	Data []byte
	Err  error

	mu       sync.Mutex
	keywords []string
}

// Lookup records the keyword and returns the configured result.
func (f *FakeStock) Lookup(_ context.Context, keyword string) ([]byte, error) {
	f.mu.Lock()
	f.keywords = append(f.keywords, keyword)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Data) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "stock", "lookup", "no match for "+keyword, nil)
	}
	return f.Data, nil
}

// Name reports the provider name.
func (f *FakeStock) Name() string { return "fake-stock" }

// Keywords returns a copy of recorded keywords.
func (f *FakeStock) Keywords() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keywords...)
}

// PNG returns a small valid PNG distinct per seed.
func PNG(seed string) []byte {
	return placeholder.New().Placeholder(seed)
}
