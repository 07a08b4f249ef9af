package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bookforge/internal/services"
)

func newTestServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"requests"}}`))
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []any{map[string]any{
					"index":   0,
					"message": map[string]any{"role": "assistant", "content": "Chapter body"},
				}},
			})
		case strings.HasSuffix(r.URL.Path, "/images/generations"):
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["response_format"] != "b64_json" {
				t.Errorf("expected b64_json response format, got %v", req["response_format"])
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": []any{map[string]any{"b64_json": base64.StdEncoding.EncodeToString([]byte("PNGDATA"))}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
}

func TestGenerateText(t *testing.T) {
	server := newTestServer(t, http.StatusOK)
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL + "/v1", Model: "gpt-test"})
	got, err := client.Generate(context.Background(), services.Prompt{System: "s", User: "u"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got != "Chapter body" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestGenerateImageDecodesPayload(t *testing.T) {
	server := newTestServer(t, http.StatusOK)
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL + "/v1", Width: 1024, Height: 1024})
	got, err := client.GenerateImage(context.Background(), "a lighthouse")
	if err != nil {
		t.Fatalf("GenerateImage returned error: %v", err)
	}
	if string(got) != "PNGDATA" {
		t.Fatalf("unexpected image bytes %q", got)
	}
}

func TestThrottlingIsRetryable(t *testing.T) {
	server := newTestServer(t, http.StatusTooManyRequests)
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL + "/v1", Model: "gpt-test"})
	_, err := client.GenerateImage(context.Background(), "x")
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("expected throttling to be retryable")
	}
}

func TestImageSize(t *testing.T) {
	tests := []struct {
		w, h int
		want string
	}{
		{1024, 1024, "1024x1024"},
		{1600, 900, "1792x1024"},
		{900, 1600, "1024x1792"},
	}
	for _, tt := range tests {
		if got := imageSize(tt.w, tt.h); got != tt.want {
			t.Fatalf("imageSize(%d,%d) = %q, want %q", tt.w, tt.h, got, tt.want)
		}
	}
}
