package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"haul/internal/config"
	"haul/internal/textutil"
)

const userAgent = "Haul/0.1.0"

// Service defines the notification surface exposed to daemon components.
type Service interface {
	DownloadComplete(ctx context.Context, name string, totalBytes int64) error
	DownloadError(ctx context.Context, name, reason string) error
	DownloadAbandoned(ctx context.Context, name string) error
	UploadComplete(ctx context.Context, name, backend string) error
	UploadFailed(ctx context.Context, name, backend string, attempts int, cause error) error
	ServiceEvent(ctx context.Context, action string) error
	Alert(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
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
		endpoint:  endpointFor(cfg.Notifications.NtfyServer, topic),
		client:    &http.Client{Timeout: timeout},
		downloads: cfg.Notifications.Downloads,
		uploads:   cfg.Notifications.Uploads,
		service:   cfg.Notifications.Service,
		errors:    cfg.Notifications.Errors,
	}
}

// endpointFor joins server and topic. A topic that is already a full URL
// is used as-is, which keeps self-hosted servers with odd paths working.
func endpointFor(server, topic string) string {
	if strings.HasPrefix(topic, "http://") || strings.HasPrefix(topic, "https://") {
		return topic
	}
	server = strings.TrimRight(strings.TrimSpace(server), "/")
	if server == "" {
		server = "https://ntfy.sh"
	}
	return server + "/" + topic
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

	downloads bool
	uploads   bool
	service   bool
	errors    bool
}

func (n *ntfyService) DownloadComplete(ctx context.Context, name string, totalBytes int64) error {
	if !n.downloads {
		return nil
	}
	name = strings.TrimSpace(name)
	message := fmt.Sprintf("⬇️ Download complete: %s", name)
	if totalBytes > 0 {
		message = fmt.Sprintf("%s (%s)", message, textutil.HumanBytes(totalBytes))
	}
	data := payload{
		title:   "Haul - Download Complete",
		message: message,
		tags:    []string{"haul", "download", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) DownloadError(ctx context.Context, name, reason string) error {
	if !n.downloads {
		return nil
	}
	name = strings.TrimSpace(name)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}
	data := payload{
		title:    "Haul - Download Failed",
		message:  fmt.Sprintf("❌ Download failed: %s: %s", name, reason),
		tags:     []string{"haul", "download", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) DownloadAbandoned(ctx context.Context, name string) error {
	if !n.downloads {
		return nil
	}
	name = strings.TrimSpace(name)
	data := payload{
		title:   "Haul - Download Stalled",
		message: fmt.Sprintf("Download disappeared before finishing: %s", name),
		tags:    []string{"haul", "download", "abandoned"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) UploadComplete(ctx context.Context, name, backend string) error {
	if !n.uploads {
		return nil
	}
	name = strings.TrimSpace(name)
	backend = strings.TrimSpace(backend)
	data := payload{
		title:   "Haul - Upload Complete",
		message: fmt.Sprintf("⬆️ Uploaded to %s: %s", backend, name),
		tags:    []string{"haul", "upload", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) UploadFailed(ctx context.Context, name, backend string, attempts int, cause error) error {
	if !n.uploads {
		return nil
	}
	name = strings.TrimSpace(name)
	backend = strings.TrimSpace(backend)
	detail := "unknown"
	if cause != nil {
		detail = strings.TrimSpace(cause.Error())
	}
	data := payload{
		title: "Haul - Upload Failed",
		message: fmt.Sprintf("❌ Upload of %s to %s failed after %d %s: %s",
			name, backend, attempts, textutil.Plural(attempts, "attempt", "attempts"), detail),
		tags:     []string{"haul", "upload", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) ServiceEvent(ctx context.Context, action string) error {
	if !n.service {
		return nil
	}
	action = strings.TrimSpace(action)
	data := payload{
		title:   "Haul - Service",
		message: fmt.Sprintf("aria2 service %s", action),
		tags:    []string{"haul", "service"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) Alert(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Haul - Error",
		message:  builder.String(),
		tags:     []string{"haul", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Haul - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"haul", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) DownloadComplete(context.Context, string, int64) error           { return nil }
func (noopService) DownloadError(context.Context, string, string) error             { return nil }
func (noopService) DownloadAbandoned(context.Context, string) error                 { return nil }
func (noopService) UploadComplete(context.Context, string, string) error            { return nil }
func (noopService) UploadFailed(context.Context, string, string, int, error) error  { return nil }
func (noopService) ServiceEvent(context.Context, string) error                      { return nil }
func (noopService) Alert(context.Context, error, string) error                      { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
