package fileutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteStream(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "upload.mp4")
	n, err := WriteStream(dst, strings.NewReader("frame data"), 64)
	if err != nil {
		t.Fatalf("write stream: %v", err)
	}
	if n != int64(len("frame data")) {
		t.Fatalf("unexpected byte count %d", n)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "frame data" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestWriteStreamLimit(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "big.bin")
	_, err := WriteStream(dst, bytes.NewReader(make([]byte, 11)), 10)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Fatal("oversized file should be removed")
	}

	exact := filepath.Join(dir, "exact.bin")
	if _, err := WriteStream(exact, bytes.NewReader(make([]byte, 10)), 10); err != nil {
		t.Fatalf("limit should be inclusive: %v", err)
	}
	unlimited := filepath.Join(dir, "unlimited.bin")
	if _, err := WriteStream(unlimited, bytes.NewReader(make([]byte, 1000)), 0); err != nil {
		t.Fatalf("zero limit should disable the check: %v", err)
	}
}

func TestWriteStreamRefusesExisting(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "taken")
	if err := os.WriteFile(dst, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteStream(dst, strings.NewReader("y"), 0); err == nil {
		t.Fatal("expected error for existing destination")
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	digest, err := CopyFileVerified(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(content)
	if digest != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected digest %s", digest)
	}
	hashed, err := HashFile(dst)
	if err != nil || hashed != digest {
		t.Fatalf("HashFile = %s, %v", hashed, err)
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := CopyFileVerified(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}
