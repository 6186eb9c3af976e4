package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bindery/internal/catalog"
	"bindery/internal/config"
)

const userAgent = "Bindery-Go/0.1.0"

// Topics published by bindery.
const (
	TopicBookUpdate     = "book_update"
	TopicBatchCompleted = "relocation_batch"
	TopicReconcile      = "reconcile"
)

// Service publishes topic/payload notifications.
type Service interface {
	Publish(ctx context.Context, topic string, payload any) error
	TestNotification(ctx context.Context) error
}

// BatchSummary is the payload for TopicBatchCompleted.
type BatchSummary struct {
	Moved    int
	Skipped  int
	Failed   int
	Duration time.Duration
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

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
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
}

func (n *ntfyService) Publish(ctx context.Context, topic string, value any) error {
	return n.send(ctx, format(topic, value))
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Bindery - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"bindery", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func format(topic string, value any) payload {
	switch v := value.(type) {
	case *catalog.Book:
		title := strings.TrimSpace(v.Title)
		if title == "" {
			title = v.FileName
		}
		return payload{
			title:   "Bindery - Book Moved",
			message: fmt.Sprintf("📚 Moved: %s\nFile: %s", title, v.FullPath()),
			tags:    []string{"bindery", "book", "moved"},
		}
	case BatchSummary:
		title := "Bindery - Relocation Complete"
		priority := ""
		if v.Failed > 0 {
			title = "Bindery - Relocation Complete (with errors)"
			priority = "high"
		}
		return payload{
			title: title,
			message: fmt.Sprintf("Moved %d, skipped %d, failed %d in %s",
				v.Moved, v.Skipped, v.Failed, v.Duration.Round(time.Millisecond)),
			tags:     []string{"bindery", "relocation", "completed"},
			priority: priority,
		}
	case error:
		return payload{
			title:    "Bindery - Error",
			message:  fmt.Sprintf("❌ Error with %s: %s", topic, strings.TrimSpace(v.Error())),
			tags:     []string{"bindery", "error", "alert"},
			priority: "high",
		}
	case string:
		return payload{
			title:   "Bindery - " + topic,
			message: v,
			tags:    []string{"bindery", topic},
		}
	default:
		body, err := json.Marshal(v)
		if err != nil {
			body = []byte(fmt.Sprintf("%v", v))
		}
		return payload{
			title:   "Bindery - " + topic,
			message: string(body),
			tags:    []string{"bindery", topic},
		}
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

func (noopService) Publish(context.Context, string, any) error { return nil }
func (noopService) TestNotification(context.Context) error     { return nil }
