package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"deepscan/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// History uses a SQLite file under the temp data dir and archiving is off.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.TempDir = filepath.Join(base, "uploads")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Server.Bind = "127.0.0.1:0"
	for i := range cfgVal.Models.Video {
		cfgVal.Models.Video[i].URL = "http://127.0.0.1:1"
	}
	cfgVal.Models.Audio.URL = "http://127.0.0.1:1"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithModelURL points every configured classifier at baseURL.
func WithModelURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		for i := range b.cfg.Models.Video {
			b.cfg.Models.Video[i].URL = baseURL
		}
		b.cfg.Models.Audio.URL = baseURL
	}
}

// WithHistoryDisabled turns off the history store.
func WithHistoryDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// WithLocalArchive enables the local evidence archive under the temp dir.
func WithLocalArchive() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Archive.Backend = config.ArchiveLocal
		b.cfg.Archive.Dir = filepath.Join(b.baseDir, "archive")
	}
}

// WithNtfyTopic sends notifications to topicURL. failures also enables
// alerts for failed detections.
func WithNtfyTopic(topicURL string, failures bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topicURL
		b.cfg.Notifications.NotifyFailures = failures
	}
}

// WithStubbedBinaries writes stub ffmpeg and ffprobe executables that exit 0
// and points the config at them.
func WithStubbedBinaries() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		b.cfg.Tools.FFmpeg = WriteStubBinary(b.t, binDir, "ffmpeg", "exit 0\n")
		b.cfg.Tools.FFprobe = WriteStubBinary(b.t, binDir, "ffprobe", "exit 0\n")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WriteStubBinary writes an executable shell script named name into dir and
// returns its path. body is appended after the shebang line.
func WriteStubBinary(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}
