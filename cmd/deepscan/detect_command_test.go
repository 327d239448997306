package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"deepscan/internal/api"
	"deepscan/internal/testsupport"
)

func TestDetectRemoteJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	media := filepath.Join(env.baseDir, "clip.mp4")
	testsupport.WriteFile(t, media, 4096)

	var gotPath string
	var gotBytes int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		gotBytes = len(data)
		video := 0.91
		_ = json.NewEncoder(w).Encode(api.DetectionResult{
			VideoConfidence:   &video,
			IsFake:            true,
			Mode:              "dual",
			AudioAbsentReason: "no_audio_stream",
		})
	}))
	defer srv.Close()

	out, _, err := runCLI(t, []string{"detect", "--dual", "--json", media}, env.configPath, srv.URL)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if gotPath != "/detect/dual" {
		t.Fatalf("expected /detect/dual, got %q", gotPath)
	}
	if gotBytes != 4096 {
		t.Fatalf("expected 4096 uploaded bytes, got %d", gotBytes)
	}
	var result api.DetectionResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if !result.IsFake || result.VideoConfidence == nil || result.AudioConfidence != nil {
		t.Fatalf("unexpected result %+v", result)
	}
	requireContains(t, out, `"audio_confidence": null`)
}

func TestDetectRemoteTable(t *testing.T) {
	env := setupCLITestEnv(t)
	media := filepath.Join(env.baseDir, "voice.wav")
	testsupport.WriteFile(t, media, 128)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		audio := 0.12
		_ = json.NewEncoder(w).Encode(api.DetectionResult{AudioConfidence: &audio, Mode: "auto", ProcessingTimeMS: 42})
	}))
	defer srv.Close()

	out, _, err := runCLI(t, []string{"detect", media}, env.configPath, srv.URL)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	requireContains(t, out, "0.1200")
	requireContains(t, out, "[OK] REAL (42 ms, mode auto)")
}

func TestDetectRemoteErrorDetail(t *testing.T) {
	env := setupCLITestEnv(t)
	media := filepath.Join(env.baseDir, "notes.txt")
	testsupport.WriteFile(t, media, 16)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Detail: "Unsupported file type: text/plain", Kind: "unsupported_media"})
	}))
	defer srv.Close()

	_, _, err := runCLI(t, []string{"detect", media}, env.configPath, srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, err.Error(), "Unsupported file type: text/plain")
}

func TestDetectFlagsAreExclusive(t *testing.T) {
	env := setupCLITestEnv(t)
	media := filepath.Join(env.baseDir, "clip.mp4")
	testsupport.WriteFile(t, media, 16)

	_, _, err := runCLI(t, []string{"detect", "--video", "--audio", media}, env.configPath, "")
	if err == nil || !strings.Contains(err.Error(), "none of the others can be") {
		t.Fatalf("expected mutually exclusive flag error, got %v", err)
	}
}

func TestDetectMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"detect", filepath.Join(env.baseDir, "absent.mp4")}, env.configPath, "")
	if err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, err.Error(), "input file")
}
