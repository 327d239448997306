package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"deepscan/internal/config"
	"deepscan/internal/notifications"
)

type captured struct {
	calls    int
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		got.calls++
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		got.body = string(body)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, got
}

func configFor(topic string, failures bool) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.NotifyFailures = failures
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	svc := notifications.NewService(configFor("", true))
	if svc.Enabled() {
		t.Fatal("expected noop service")
	}
	if err := svc.NotifyFakeDetected(context.Background(), notifications.Alert{Filename: "x.mp4"}); err != nil {
		t.Fatalf("expected nil from noop, got %v", err)
	}
}

func TestNotifyFakeDetectedFormatsPayload(t *testing.T) {
	server, got := newNtfyServer(t, http.StatusOK)
	svc := notifications.NewService(configFor(server.URL, false))

	video := 0.93
	err := svc.NotifyFakeDetected(context.Background(), notifications.Alert{
		ID:              "det-1",
		Filename:        "clip.mp4",
		Mode:            "dual",
		VideoConfidence: &video,
		ArchiveURI:      "gs://bucket/deepscan/clip.mp4",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.title != "Deepscan - Fake Detected" || got.priority != "high" || got.tags != "deepscan,fake,alert" {
		t.Fatalf("unexpected headers %+v", got)
	}
	want := "🚨 clip.mp4 judged FAKE\nvideo 0.93\nMode: dual\nDetection: det-1\nEvidence: gs://bucket/deepscan/clip.mp4"
	if got.body != want {
		t.Fatalf("expected body %q, got %q", want, got.body)
	}
}

func TestNotifyDetectionFailedRespectsToggle(t *testing.T) {
	server, got := newNtfyServer(t, http.StatusOK)
	failure := notifications.Failure{RequestID: "req-1", Filename: "a.wav", Kind: "model_inference", Err: errors.New("timeout")}

	if err := notifications.NewService(configFor(server.URL, false)).NotifyDetectionFailed(context.Background(), failure); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.calls != 0 {
		t.Fatalf("expected no call when failures are off, got %d", got.calls)
	}

	if err := notifications.NewService(configFor(server.URL, true)).NotifyDetectionFailed(context.Background(), failure); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.body != "❌ Detection failed for a.wav (model_inference): timeout\nRequest: req-1" {
		t.Fatalf("unexpected body %q", got.body)
	}
}

func TestSendReportsServerErrors(t *testing.T) {
	server, _ := newNtfyServer(t, http.StatusForbidden)
	err := notifications.NewService(configFor(server.URL, false)).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
