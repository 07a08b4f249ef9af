package services

import "context"

// TextGenerator produces markdown or JSON text for a prompt. Language is a BCP-47
// tag the output should be written in. Implementations return ErrProvider for
// transient upstream failures and ErrEmptyResult for blank output.
type TextGenerator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// Prompt is a single text generation request.
type Prompt struct {
	System   string
	User     string
	Language string
}

// ImageGenerator produces encoded image bytes (PNG or JPEG) for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// StockProvider looks up a stock image by keyword. A miss is ErrNotFound.
type StockProvider interface {
	Lookup(ctx context.Context, keyword string) ([]byte, error)
}

// PlaceholderProvider deterministically renders an image for a seed. It never fails.
type PlaceholderProvider interface {
	Placeholder(seed string) []byte
}

// Named is implemented by providers that report a name for logs and metrics.
type Named interface {
	Name() string
}

// ProviderName returns p's reported name or fallback.
func ProviderName(p any, fallback string) string {
	if named, ok := p.(Named); ok {
		if name := named.Name(); name != "" {
			return name
		}
	}
	return fallback
}
