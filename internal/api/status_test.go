package api

import (
	"os"
	"path/filepath"
	"testing"

	"deepscan/internal/preflight"
)

func TestFromReportReturnsNonNilSlices(t *testing.T) {
	deps, models, checks := FromReport(preflight.Report{})
	if deps == nil || models == nil || checks == nil {
		t.Fatalf("expected non-nil slices, got %v %v %v", deps, models, checks)
	}
}

func TestWorkspacesCountsRequestDirs(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"req-a", "req-b"} {
		dir := filepath.Join(root, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "upload.bin"), make([]byte, 100), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "other"), 0o755); err != nil {
		t.Fatal(err)
	}

	status := Workspaces(root)
	if status.Active != 2 {
		t.Fatalf("expected 2 active workspaces, got %d", status.Active)
	}
	if status.Bytes != 200 {
		t.Fatalf("expected 200 bytes, got %d", status.Bytes)
	}

	if missing := Workspaces(filepath.Join(root, "missing")); missing.Active != 0 {
		t.Fatalf("expected zero for missing root, got %+v", missing)
	}
}
