package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bookforge/internal/services"
)

func messagesServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["model"] != "claude-test" {
			t.Errorf("unexpected model %v", body["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`))
			return
		}
		resp := map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"content":     []any{map[string]any{"type": "text", "text": text}},
			"usage":       map[string]any{"input_tokens": 3, "output_tokens": 5},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestGenerateReturnsText(t *testing.T) {
	server := messagesServer(t, http.StatusOK, "## Heading\n\nText")
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "claude-test"})
	got, err := client.Generate(context.Background(), services.Prompt{System: "s", User: "u", Language: "en"})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got != "## Heading\n\nText" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestGenerateClassifiesFailures(t *testing.T) {
	server := messagesServer(t, http.StatusServiceUnavailable, "")
	defer server.Close()
	client := NewClient(Config{APIKey: "k", BaseURL: server.URL, Model: "claude-test"})
	if _, err := client.Generate(context.Background(), services.Prompt{User: "u"}); !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}

	blank := messagesServer(t, http.StatusOK, "")
	defer blank.Close()
	client = NewClient(Config{APIKey: "k", BaseURL: blank.URL, Model: "claude-test"})
	if _, err := client.Generate(context.Background(), services.Prompt{User: "u"}); !errors.Is(err, services.ErrEmptyResult) {
		t.Fatalf("expected empty result, got %v", err)
	}
}

func TestGenerateRequiresKey(t *testing.T) {
	client := NewClient(Config{Model: "claude-test"})
	if _, err := client.Generate(context.Background(), services.Prompt{User: "u"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
