package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"lecturenote/internal/config"
	"lecturenote/internal/logging"
	"lecturenote/internal/tasks"
)

const userAgent = "LectureNote/0.1.0"

// Service defines the notification surface used by the daemon.
type Service interface {
	NotifyNoteReady(ctx context.Context, taskID, title string, slides int) error
	NotifyTaskFailed(ctx context.Context, taskID, title string, phase tasks.Phase, message string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Events.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Events.NtfyTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
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

func (n *ntfyService) NotifyNoteReady(ctx context.Context, taskID, title string, slides int) error {
	data := payload{
		title:    "LectureNote - Note Ready",
		message:  fmt.Sprintf("Notes ready: %s (%d slides)\nTask %s", displayTitle(title), slides, taskID),
		tags:     []string{"lecturenote", "note", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyTaskFailed(ctx context.Context, taskID, title string, phase tasks.Phase, message string) error {
	var builder strings.Builder
	builder.WriteString("Failed")
	if phase != "" {
		builder.WriteString(" during ")
		builder.WriteString(string(phase))
	}
	builder.WriteString(": ")
	builder.WriteString(displayTitle(title))
	if message = strings.TrimSpace(message); message != "" {
		builder.WriteString("\n")
		builder.WriteString(message)
	}
	builder.WriteString("\nTask ")
	builder.WriteString(taskID)

	data := payload{
		title:    "LectureNote - Error",
		message:  builder.String(),
		tags:     []string{"lecturenote", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "LectureNote - Test",
		message:  "Notification system test",
		tags:     []string{"lecturenote", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
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

func displayTitle(title string) string {
	if title = strings.TrimSpace(title); title == "" {
		return "untitled lecture"
	}
	return title
}

type noopService struct{}

func (noopService) NotifyNoteReady(context.Context, string, string, int) error { return nil }
func (noopService) NotifyTaskFailed(context.Context, string, string, tasks.Phase, string) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }

// Notifier turns task store observations into notifications. Delivery runs on
// a background goroutine so observers never block the store.
type Notifier struct {
	service Service
	logger  *slog.Logger
	timeout time.Duration

	mu   sync.Mutex
	last map[string]tasks.Status
	wg   sync.WaitGroup
}

// NewNotifier wraps service.
func NewNotifier(service Service, logger *slog.Logger) *Notifier {
	if service == nil {
		service = noopService{}
	}
	return &Notifier{
		service: service,
		logger:  logging.NewComponentLogger(logger, "notifications"),
		timeout: 30 * time.Second,
		last:    make(map[string]tasks.Status),
	}
}

// Observe is a taskstore observer.
func (n *Notifier) Observe(task tasks.Task) {
	status := task.Status()
	n.mu.Lock()
	previous, seen := n.last[task.ID]
	n.last[task.ID] = status
	n.mu.Unlock()
	if seen && previous == status {
		return
	}

	var send func(context.Context) error
	switch state := task.State.(type) {
	case tasks.Completed:
		send = func(ctx context.Context) error {
			return n.service.NotifyNoteReady(ctx, task.ID, task.Title, len(state.Note.Slides))
		}
	case tasks.Failed:
		send = func(ctx context.Context) error {
			return n.service.NotifyTaskFailed(ctx, task.ID, task.Title, state.Phase, state.Message)
		}
	default:
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := send(ctx); err != nil {
			logging.WarnWithContext(n.logger, "notification delivery failed", "notification_failed",
				logging.String(logging.FieldTaskID, task.ID),
				logging.String("status", string(status)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "operator is not alerted about this task"),
				logging.String(logging.FieldErrorHint, "check events.ntfy_topic and network access"),
			)
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
