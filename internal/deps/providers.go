package deps

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookforge/internal/config"
	"bookforge/internal/images"
	"bookforge/internal/services"
	"bookforge/internal/services/anthropic"
	"bookforge/internal/services/horde"
	"bookforge/internal/services/llm"
	"bookforge/internal/services/openai"
	"bookforge/internal/services/pixabay"
	"bookforge/internal/services/placeholder"
)

// Provider kinds and names.
const (
	KindText        = "text"
	KindImage       = "image"
	KindStock       = "stock"
	KindPlaceholder = "placeholder"

	ProviderNone = "none"
)

// Providers holds the clients selected by configuration. Image, Stock and
// Placeholder are nil when disabled.
type Providers struct {
	Text        services.TextGenerator
	Images      services.ImageGenerator
	Stock       services.StockProvider
	Placeholder services.PlaceholderProvider
}

// Build constructs the configured providers. A missing text credential is a
// configuration error; optional image sources without credentials are left
// disabled.
func Build(cfg *config.Config) (*Providers, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	text, err := buildText(cfg.Text)
	if err != nil {
		return nil, err
	}
	p := &Providers{Text: text}

	switch cfg.Images.Provider {
	case "openai":
		if strings.TrimSpace(cfg.Images.APIKey) != "" {
			p.Images = openai.NewClient(openai.Config{
				APIKey:         cfg.Images.APIKey,
				BaseURL:        cfg.Images.BaseURL,
				Model:          cfg.Images.Model,
				Width:          cfg.Images.Width,
				Height:         cfg.Images.Height,
				TimeoutSeconds: cfg.Images.TimeoutSeconds,
			})
		}
	case "horde":
		p.Images = horde.NewClient(horde.Config{
			APIKey: cfg.Images.APIKey,
			Model:  cfg.Images.Model,
			Width:  cfg.Images.Width,
			Height: cfg.Images.Height,
		})
	}

	if cfg.Images.StockProvider == "pixabay" && strings.TrimSpace(cfg.Images.StockAPIKey) != "" {
		p.Stock = pixabay.NewClient(pixabay.Config{
			APIKey:         cfg.Images.StockAPIKey,
			BaseURL:        cfg.Images.StockBaseURL,
			TimeoutSeconds: cfg.Images.TimeoutSeconds,
		})
	}
	if cfg.Images.Placeholder {
		p.Placeholder = placeholder.New()
	}
	return p, nil
}

func buildText(cfg config.Text) (services.TextGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "deps", "text provider",
			fmt.Sprintf("no api key configured for %s", cfg.Provider), nil)
	}
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}), nil
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			MaxTokens:      cfg.MaxTokens,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}), nil
	case "openrouter":
		return llm.NewClient(llm.Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Referer:        cfg.Referer,
			Title:          cfg.Title,
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxTokens:      cfg.MaxTokens,
		}), nil
	}
	return nil, services.Wrap(services.ErrConfiguration, "deps", "text provider",
		fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
}

// Resolver wires the image sources into an image resolver.
func (p *Providers) Resolver(cfg *config.Config, logger *slog.Logger) *images.Resolver {
	opts := []images.Option{images.WithLogger(logger)}
	if cfg != nil && cfg.Images.TimeoutSeconds > 0 {
		opts = append(opts, images.WithTimeout(time.Duration(cfg.Images.TimeoutSeconds)*time.Second))
	}
	return images.NewResolver(p.Images, p.Stock, p.Placeholder, opts...)
}
