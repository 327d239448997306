package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deepscan/internal/config"
)

const userAgent = "deepscan/1.0"

// Alert describes one fake verdict.
type Alert struct {
	ID              string
	Filename        string
	Mode            string
	VideoConfidence *float64
	AudioConfidence *float64
	ArchiveURI      string
}

// Failure describes one detection that failed on the server side.
type Failure struct {
	RequestID string
	Filename  string
	Kind      string
	Err       error
}

// Service is the alert surface used by the HTTP server and CLI.
type Service interface {
	NotifyFakeDetected(ctx context.Context, alert Alert) error
	NotifyDetectionFailed(ctx context.Context, failure Failure) error
	TestNotification(ctx context.Context) error
	Enabled() bool
}

// NewService returns an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		notifyFailures: cfg.Notifications.NotifyFailures,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	notifyFailures bool
}

func (n *ntfyService) Enabled() bool { return true }

func (n *ntfyService) NotifyFakeDetected(ctx context.Context, alert Alert) error {
	name := strings.TrimSpace(alert.Filename)
	if name == "" {
		name = "upload"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 %s judged FAKE", name)
	if scores := formatScores(alert.VideoConfidence, alert.AudioConfidence); scores != "" {
		fmt.Fprintf(&b, "\n%s", scores)
	}
	if alert.Mode != "" {
		fmt.Fprintf(&b, "\nMode: %s", alert.Mode)
	}
	if alert.ID != "" {
		fmt.Fprintf(&b, "\nDetection: %s", alert.ID)
	}
	if alert.ArchiveURI != "" {
		fmt.Fprintf(&b, "\nEvidence: %s", alert.ArchiveURI)
	}
	return n.send(ctx, message{
		title:    "Deepscan - Fake Detected",
		body:     b.String(),
		tags:     []string{"deepscan", "fake", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyDetectionFailed(ctx context.Context, failure Failure) error {
	if !n.notifyFailures {
		return nil
	}
	var b strings.Builder
	b.WriteString("❌ Detection failed")
	if name := strings.TrimSpace(failure.Filename); name != "" {
		fmt.Fprintf(&b, " for %s", name)
	}
	if failure.Kind != "" {
		fmt.Fprintf(&b, " (%s)", failure.Kind)
	}
	if failure.Err != nil {
		fmt.Fprintf(&b, ": %v", failure.Err)
	}
	if failure.RequestID != "" {
		fmt.Fprintf(&b, "\nRequest: %s", failure.RequestID)
	}
	return n.send(ctx, message{
		title: "Deepscan - Error",
		body:  b.String(),
		tags:  []string{"deepscan", "error"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, message{
		title:    "Deepscan - Test",
		body:     "🧪 Notification system test",
		tags:     []string{"deepscan", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", msg.title)
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func formatScores(video, audio *float64) string {
	parts := make([]string, 0, 2)
	if video != nil {
		parts = append(parts, fmt.Sprintf("video %.2f", *video))
	}
	if audio != nil {
		parts = append(parts, fmt.Sprintf("audio %.2f", *audio))
	}
	return strings.Join(parts, ", ")
}

type noopService struct{}

func (noopService) NotifyFakeDetected(context.Context, Alert) error      { return nil }
func (noopService) NotifyDetectionFailed(context.Context, Failure) error { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
func (noopService) Enabled() bool                                        { return false }
