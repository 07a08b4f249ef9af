package horde

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookforge/internal/services"
)

func TestGenerateImageRunsFullCycle(t *testing.T) {
	var gotPrompt, gotID, gotURL string
	c := &Client{
		submit:   func(p string) (string, error) { gotPrompt = p; return "job-1", nil },
		wait:     func(id string) (string, error) { gotID = id; return "https://cdn/img.webp", nil },
		download: func(u string) ([]byte, error) { gotURL = u; return []byte("img"), nil },
	}
	data, err := c.GenerateImage(context.Background(), "castle")
	if err != nil {
		t.Fatalf("GenerateImage returned error: %v", err)
	}
	if string(data) != "img" || gotPrompt != "castle" || gotID != "job-1" || gotURL != "https://cdn/img.webp" {
		t.Fatalf("unexpected cycle: data=%q prompt=%q id=%q url=%q", data, gotPrompt, gotID, gotURL)
	}
}

func TestGenerateImageFailures(t *testing.T) {
	c := &Client{
		submit:   func(string) (string, error) { return "", errors.New("queue full") },
		wait:     func(string) (string, error) { return "", nil },
		download: func(string) ([]byte, error) { return nil, nil },
	}
	if _, err := c.GenerateImage(context.Background(), "x"); !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}

	c.submit = func(string) (string, error) { return "job", nil }
	if _, err := c.GenerateImage(context.Background(), "x"); !errors.Is(err, services.ErrEmptyResult) {
		t.Fatalf("expected empty result, got %v", err)
	}
}

func TestGenerateImageHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := &Client{
		submit:   func(string) (string, error) { return "job", nil },
		wait:     func(string) (string, error) { <-release; return "", nil },
		download: func(string) ([]byte, error) { return nil, nil },
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.GenerateImage(ctx, "x"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
