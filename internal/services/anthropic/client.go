// Package anthropic adapts the Anthropic Messages API to services.TextGenerator.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"bookforge/internal/services"
)

// Config carries the connection settings for the Messages API.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// Client generates outline and chapter text with Claude models.
type Client struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	hasKey    bool
}

// NewClient constructs a client. SDK-level retries are disabled; the
// orchestrator applies its own retry policy.
func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaude3_5SonnetLatest)
	}
	return &Client{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		hasKey:    strings.TrimSpace(cfg.APIKey) != "",
	}
}

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string { return "anthropic" }

// Generate sends one Messages request and joins the returned text blocks.
func (c *Client) Generate(ctx context.Context, prompt services.Prompt) (string, error) {
	if !c.hasKey {
		return "", services.Wrap(services.ErrConfiguration, "anthropic", "generate", "api key required", nil)
	}
	user := strings.TrimSpace(prompt.User)
	if user == "" {
		return "", services.Wrap(services.ErrValidation, "anthropic", "generate", "user prompt required", nil)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(c.model)),
		MaxTokens: anthropic.F(c.maxTokens),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		}),
	}
	if system := strings.TrimSpace(prompt.System); system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{anthropic.NewTextBlock(system)})
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", services.Wrap(services.MarkerForStatus(apiErr.StatusCode), "anthropic", "generate", "request rejected", err)
		}
		return "", services.Wrap(services.ErrProvider, "anthropic", "generate", "request failed", err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(block.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", services.Wrap(services.ErrEmptyResult, "anthropic", "generate", "response contained no text", nil)
	}
	return text, nil
}
