package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"deepscan/internal/api"
	"deepscan/internal/testsupport"
)

func TestStatusLocalJSON(t *testing.T) {
	tfServing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model_version_status":[{"version":"1","state":"AVAILABLE"}]}`))
	}))
	defer tfServing.Close()

	env := setupCLITestEnv(t, testsupport.WithModelURL(tfServing.URL))

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath, "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var status api.StatusResponse
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status %q: %v", out, err)
	}
	if len(status.Models) != 3 {
		t.Fatalf("expected 3 models, got %+v", status.Models)
	}
	for _, m := range status.Models {
		if !m.Ready {
			t.Fatalf("expected model %s ready: %s", m.Name, m.Detail)
		}
	}
	if !status.History.Enabled || status.History.Driver != "sqlite" {
		t.Fatalf("unexpected history status %+v", status.History)
	}
	if status.Thresholds.Video != 0.4 || status.Archive != "none" {
		t.Fatalf("unexpected thresholds/archive %+v %q", status.Thresholds, status.Archive)
	}
}

func TestStatusLocalReportsUnreachableModels(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath, "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[FAIL] not ready")
	requireContains(t, out, "video faceforensics_resnet50")
	requireContains(t, out, "Thresholds:")
}

func TestStatusRemote(t *testing.T) {
	env := setupCLITestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(api.StatusResponse{
			Ready:      true,
			Models:     []api.ModelStatus{{Name: "remote_model", Modality: "audio", Ready: true, Detail: "version 7"}},
			History:    api.HistoryStatus{Enabled: true, Driver: "postgres", Total: 3, Fake: 1},
			Archive:    "gcs",
			Workspaces: api.WorkspaceStatus{Active: 2, Bytes: 3 << 20},
		})
	}))
	defer srv.Close()

	out, _, err := runCLI(t, []string{"status"}, env.configPath, srv.URL)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[OK] ready")
	requireContains(t, out, "[OK] version 7")
	requireContains(t, out, "3 record(s), 1 fake")
	requireContains(t, out, "[INFO] gcs")
	requireContains(t, out, "2 active, 3.0 MiB")
}
