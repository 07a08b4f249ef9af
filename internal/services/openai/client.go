// Package openai adapts the OpenAI chat and image APIs to the text and image
// provider contracts.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"bookforge/internal/services"
)

// Config carries connection settings shared by the text and image clients.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	Width          int
	Height         int
	TimeoutSeconds int
}

// Client implements both services.TextGenerator and services.ImageGenerator.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
	size      string
	hasKey    bool
}

// NewClient constructs a client for the configured model.
func NewClient(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = base
	}
	if cfg.TimeoutSeconds > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	return &Client{
		api:       openai.NewClientWithConfig(clientCfg),
		model:     strings.TrimSpace(cfg.Model),
		maxTokens: cfg.MaxTokens,
		size:      imageSize(cfg.Width, cfg.Height),
		hasKey:    strings.TrimSpace(cfg.APIKey) != "",
	}
}

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string { return "openai" }

// Generate issues a chat completion for the prompt.
func (c *Client) Generate(ctx context.Context, prompt services.Prompt) (string, error) {
	if !c.hasKey {
		return "", services.Wrap(services.ErrConfiguration, "openai", "generate", "api key required", nil)
	}
	user := strings.TrimSpace(prompt.User)
	if user == "" {
		return "", services.Wrap(services.ErrValidation, "openai", "generate", "user prompt required", nil)
	}
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system := strings.TrimSpace(prompt.System); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", classify(ctx, "generate", err)
	}
	for _, choice := range resp.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text, nil
		}
	}
	return "", services.Wrap(services.ErrEmptyResult, "openai", "generate", "no completion content", nil)
}

// GenerateImage requests a single base64 encoded image.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	if !c.hasKey {
		return nil, services.Wrap(services.ErrConfiguration, "openai", "image", "api key required", nil)
	}
	model := c.model
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          model,
		N:              1,
		Size:           c.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, classify(ctx, "image", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, services.Wrap(services.ErrEmptyResult, "openai", "image", "no image data returned", nil)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, services.Wrap(services.ErrEmptyResult, "openai", "image", "decode image payload", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrEmptyResult, "openai", "image", "empty image payload", nil)
	}
	return data, nil
}

func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return services.Wrap(services.MarkerForStatus(apiErr.HTTPStatusCode), "openai", op, "request rejected", err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return services.Wrap(services.MarkerForStatus(reqErr.HTTPStatusCode), "openai", op, "request rejected", err)
	}
	return services.Wrap(services.ErrProvider, "openai", op, "request failed", err)
}

// imageSize picks the closest size DALL-E 3 accepts for the requested aspect.
func imageSize(width, height int) string {
	switch {
	case width > height:
		return openai.CreateImageSize1792x1024
	case height > width:
		return openai.CreateImageSize1024x1792
	default:
		return openai.CreateImageSize1024x1024
	}
}
