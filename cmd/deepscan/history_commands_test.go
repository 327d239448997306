package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"deepscan/internal/api"
	"deepscan/internal/history"
	"deepscan/internal/testsupport"
)

func seedHistory(t *testing.T, env *cliTestEnv, records ...*history.Record) {
	t.Helper()
	ctx := context.Background()
	store, err := history.OpenFromConfig(ctx, env.cfg)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	for _, rec := range records {
		if err := store.Add(ctx, rec); err != nil {
			t.Fatalf("add record: %v", err)
		}
	}
}

func TestHistoryLocalLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)
	video := 0.8
	now := time.Now().UTC()
	seedHistory(t, env,
		&history.Record{ID: "aaaaaaaa-1111", Filename: "old.mp4", Mode: "auto", VideoConfidence: &video, IsFake: true, CreatedAt: now.Add(-60 * 24 * time.Hour)},
		&history.Record{ID: "bbbbbbbb-2222", Filename: "fresh.wav", Mode: "audio", CreatedAt: now},
	)

	out, _, err := runCLI(t, []string{"history", "list", "--json"}, env.configPath, "")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var listed api.HistoryListResponse
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Items) != 2 || listed.Items[0].ID != "bbbbbbbb-2222" {
		t.Fatalf("unexpected list %+v", listed.Items)
	}

	out, _, err = runCLI(t, []string{"history", "list"}, env.configPath, "")
	if err != nil {
		t.Fatalf("history list table: %v", err)
	}
	requireContains(t, out, "aaaaaaaa")
	requireContains(t, out, "FAKE")

	out, _, err = runCLI(t, []string{"history", "show", "aaaaaaaa-1111"}, env.configPath, "")
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "old.mp4")
	requireContains(t, out, "0.8000")
	requireContains(t, out, "[FAIL] FAKE")

	out, _, err = runCLI(t, []string{"history", "prune", "--days", "30"}, env.configPath, "")
	if err != nil {
		t.Fatalf("history prune: %v", err)
	}
	requireContains(t, out, "Removed 1 detection(s) older than 30 day(s)")

	if _, _, err := runCLI(t, []string{"history", "show", "aaaaaaaa-1111"}, env.configPath, ""); err == nil {
		t.Fatal("expected pruned record to be gone")
	} else {
		requireContains(t, err.Error(), "not found")
	}

	out, _, err = runCLI(t, []string{"history", "rm", "bbbbbbbb-2222"}, env.configPath, "")
	if err != nil {
		t.Fatalf("history rm: %v", err)
	}
	requireContains(t, out, "Removed detection bbbbbbbb-2222")

	out, _, err = runCLI(t, []string{"history", "list"}, env.configPath, "")
	if err != nil {
		t.Fatalf("history list empty: %v", err)
	}
	requireContains(t, out, "No detections recorded")
}

func TestHistoryDisabledLocally(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithHistoryDisabled())
	_, _, err := runCLI(t, []string{"history", "list"}, env.configPath, "")
	if err == nil || !strings.Contains(err.Error(), "history is disabled") {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestHistoryRemote(t *testing.T) {
	env := setupCLITestEnv(t)

	var deleted string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/history", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("expected limit 5, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(api.HistoryListResponse{Items: []api.HistoryRecord{{ID: "remote-1", Filename: "a.mp4", Mode: "auto"}}})
	})
	mux.HandleFunc("DELETE /api/history/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "remote-1" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{Detail: "detection not found"})
			return
		}
		deleted = r.PathValue("id")
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, _, err := runCLI(t, []string{"history", "list", "-n", "5"}, env.configPath, srv.URL)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	requireContains(t, out, "a.mp4")

	if _, _, err := runCLI(t, []string{"history", "rm", "remote-1"}, env.configPath, srv.URL); err != nil {
		t.Fatalf("history rm: %v", err)
	}
	if deleted != "remote-1" {
		t.Fatalf("expected remote delete, got %q", deleted)
	}

	_, _, err = runCLI(t, []string{"history", "rm", "missing"}, env.configPath, srv.URL)
	if err == nil {
		t.Fatal("expected not found")
	}
	requireContains(t, err.Error(), "detection missing not found")

	_, _, err = runCLI(t, []string{"history", "prune", "--days", "1"}, env.configPath, srv.URL)
	if err == nil {
		t.Fatal("expected prune to refuse remote mode")
	}
}
