// Package horde adapts the AI Horde image generation service to
// services.ImageGenerator.
package horde

import (
	"context"
	"strings"

	"github.com/opd-ai/horde"

	"bookforge/internal/services"
)

// Config carries request parameters. Zero values fall back to library defaults.
type Config struct {
	APIKey string
	Model  string
	Steps  int
	Width  int
	Height int
}

// Client submits a generation, waits for it and downloads the result. The horde
// library calls are not context aware, so each step runs in a goroutine and a
// cancelled context abandons the wait.
type Client struct {
	submit   func(prompt string) (string, error)
	wait     func(id string) (string, error)
	download func(url string) ([]byte, error)
}

// NewClient constructs a client backed by the AI Horde API.
func NewClient(cfg Config) *Client {
	api := horde.NewClient(strings.TrimSpace(cfg.APIKey))
	params := horde.Params{
		Steps:     horde.DefaultSteps,
		Width:     horde.DefaultWidth,
		Height:    horde.DefaultHeight,
		ModelName: horde.DefaultModel,
	}
	if cfg.Steps > 0 {
		params.Steps = cfg.Steps
	}
	if cfg.Width > 0 {
		params.Width = cfg.Width
	}
	if cfg.Height > 0 {
		params.Height = cfg.Height
	}
	if model := strings.TrimSpace(cfg.Model); model != "" {
		params.ModelName = model
	}
	return &Client{
		submit: func(prompt string) (string, error) {
			resp, err := api.RequestGeneration(horde.GenerationRequest{Prompt: prompt, Params: params})
			if err != nil {
				return "", err
			}
			return resp.ID, nil
		},
		wait: func(id string) (string, error) {
			status, err := api.WaitForCompletion(id)
			if err != nil {
				return "", err
			}
			if len(status.Generation) == 0 {
				return "", nil
			}
			return status.Generation[0].Image, nil
		},
		download: api.DownloadImage,
	}
}

// Name identifies the provider in logs and metrics.
func (c *Client) Name() string { return "horde" }

// GenerateImage runs the submit, wait and download cycle for prompt.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	id, err := runCtx(ctx, func() (string, error) { return c.submit(prompt) })
	if err != nil {
		return nil, classify(ctx, "submit", err)
	}
	if strings.TrimSpace(id) == "" {
		return nil, services.Wrap(services.ErrEmptyResult, "horde", "submit", "no generation id returned", nil)
	}
	url, err := runCtx(ctx, func() (string, error) { return c.wait(id) })
	if err != nil {
		return nil, classify(ctx, "wait", err)
	}
	if strings.TrimSpace(url) == "" {
		return nil, services.Wrap(services.ErrEmptyResult, "horde", "wait", "generation finished without an image", nil)
	}
	data, err := runCtx(ctx, func() ([]byte, error) { return c.download(url) })
	if err != nil {
		return nil, classify(ctx, "download", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrEmptyResult, "horde", "download", "empty image payload", nil)
	}
	return data, nil
}

func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return services.Wrap(services.ErrProvider, "horde", op, "request failed", err)
}

type result[T any] struct {
	value T
	err   error
}

func runCtx[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	done := make(chan result[T], 1)
	go func() {
		v, err := fn()
		done <- result[T]{value: v, err: err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-done:
		return r.value, r.err
	}
}
