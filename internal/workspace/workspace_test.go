package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deepscan/internal/logging"
)

func TestCreateSaveClose(t *testing.T) {
	root := filepath.Join(t.TempDir(), "temp_uploads")
	ws, err := Create(root, logging.NewNop())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(ws.Dir()), dirPrefix) || filepath.Dir(ws.Dir()) != root {
		t.Fatalf("unexpected workspace dir %s", ws.Dir())
	}

	path, n, err := ws.SaveUpload(strings.NewReader("payload"), "my clip.mp4", 1024)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if n != 7 {
		t.Fatalf("expected 7 bytes, got %d", n)
	}
	base := filepath.Base(path)
	if !strings.HasSuffix(base, "_my_clip.mp4") || len(base) != 32+len("_my_clip.mp4") {
		t.Fatalf("unexpected upload name %s", base)
	}

	if err := ws.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(ws.Dir()); !os.IsNotExist(err) {
		t.Fatal("workspace should be removed")
	}
	if err := ws.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestSaveUploadTooLarge(t *testing.T) {
	ws, err := Create(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer ws.Close()

	_, _, err = ws.SaveUpload(strings.NewReader(strings.Repeat("x", 100)), "big.mp4", 10)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	entries, _ := os.ReadDir(ws.Dir())
	if len(entries) != 0 {
		t.Fatalf("expected no leftover files, found %d", len(entries))
	}
}

func TestConcurrentWorkspacesDoNotCollide(t *testing.T) {
	root := t.TempDir()
	a, err := Create(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Create(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID() == b.ID() || a.Dir() == b.Dir() {
		t.Fatal("workspaces should be unique")
	}
	pa, _, err := a.SaveUpload(strings.NewReader("a"), "same.wav", 0)
	if err != nil {
		t.Fatal(err)
	}
	pb, _, err := b.SaveUpload(strings.NewReader("b"), "same.wav", 0)
	if err != nil {
		t.Fatal(err)
	}
	if pa == pb {
		t.Fatal("upload paths should differ")
	}
}

func TestCreateRequiresRoot(t *testing.T) {
	if _, err := Create("  ", nil); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldWorkspaces(t *testing.T) {
	root := t.TempDir()
	oldDir := filepath.Join(root, dirPrefix+"old")
	recentDir := filepath.Join(root, dirPrefix+"recent")
	foreignDir := filepath.Join(root, "keep-me")
	for _, dir := range []string{oldDir, recentDir, foreignDir} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	for _, dir := range []string{oldDir, foreignDir} {
		if err := os.Chtimes(dir, oldTime, oldTime); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	result := CleanStale(context.Background(), root, time.Hour, logging.NewNop())
	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("expected only %s removed, got %v", oldDir, result.Removed)
	}
	if _, err := os.Stat(recentDir); err != nil {
		t.Error("recent workspace should still exist")
	}
	if _, err := os.Stat(foreignDir); err != nil {
		t.Error("directories without the workspace prefix must be left alone")
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()
	ws, err := Create(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := ws.SaveUpload(strings.NewReader("12345"), "a.wav", 0); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dirs, err := List(root)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(dirs) != 1 || dirs[0].Path != ws.Dir() || dirs[0].Size != 5 {
		t.Fatalf("unexpected listing %+v", dirs)
	}

	missing, err := List(filepath.Join(root, "missing"))
	if err != nil || missing != nil {
		t.Fatalf("expected nil listing for missing root, got %v, %v", missing, err)
	}
}
