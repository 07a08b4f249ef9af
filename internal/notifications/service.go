package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bookforge/internal/config"
)

const userAgent = "bookforge/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventOutlineReady     Event = "outline_ready"
	EventChaptersComplete Event = "chapters_complete"
	EventGenerationFailed Event = "generation_failed"
	EventExportReady      Event = "export_ready"
	EventTestNotification Event = "test"
)

// Payload carries event fields; keys depend on the event.
type Payload map[string]any

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventOutlineReady:     cfg.Notifications.Outline,
			EventChaptersComplete: cfg.Notifications.Chapters,
			EventGenerationFailed: cfg.Notifications.Errors,
			EventExportReady:      cfg.Notifications.Chapters,
			EventTestNotification: true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	if !n.enabled[event] {
		return nil
	}
	data, ok := format(event, fields)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func format(event Event, fields Payload) (payload, bool) {
	title := strings.TrimSpace(fields.String("title"))
	if title == "" {
		title = "Untitled"
	}
	switch event {
	case EventOutlineReady:
		return payload{
			title:   "Bookforge - Outline Ready",
			message: fmt.Sprintf("📝 Outline ready for review: %s (%d chapters)", title, fields.Int("chapters")),
			tags:    []string{"bookforge", "outline", "ready"},
		}, true
	case EventChaptersComplete:
		message := fmt.Sprintf("📚 All %d chapters written: %s", fields.Int("chapters"), title)
		if d, ok := fields["duration"].(time.Duration); ok && d > 0 {
			message += fmt.Sprintf(" in %s", d.Round(time.Second))
		}
		return payload{
			title:    "Bookforge - Chapters Complete",
			message:  message,
			tags:     []string{"bookforge", "chapters", "completed"},
			priority: "high",
		}, true
	case EventGenerationFailed:
		var builder strings.Builder
		builder.WriteString("❌ Generation failed for ")
		builder.WriteString(title)
		if chapter := fields.Int("chapter"); chapter > 0 {
			fmt.Fprintf(&builder, " at chapter %d", chapter)
		}
		builder.WriteString(": ")
		if msg := strings.TrimSpace(fields.String("error")); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "Bookforge - Error",
			message:  builder.String(),
			tags:     []string{"bookforge", "error", "alert"},
			priority: "high",
		}, true
	case EventExportReady:
		return payload{
			title:    "Bookforge - Export Ready",
			message:  fmt.Sprintf("📦 %s exported: %s", strings.ToUpper(fields.String("format")), fields.String("file")),
			tags:     []string{"bookforge", "export"},
			priority: "low",
		}, true
	case EventTestNotification:
		return payload{
			title:    "Bookforge - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"bookforge", "test"},
			priority: "low",
		}, true
	}
	return payload{}, false
}

// String returns the field as a string; errors render their message.
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the field as an int, or 0.
func (p Payload) Int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
