package tfserving

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestPredictPostsInstancesAndFlattensPredictions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/v1/models/faceforensics:predict" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Instances [][][]float64 `json:"instances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body.Instances) != 2 || len(body.Instances[0]) != 1 || len(body.Instances[0][0]) != 3 {
			t.Errorf("unexpected instance layout: %v", body.Instances)
		}
		if body.Instances[1][0][2] != 6 {
			t.Errorf("unexpected last value: %v", body.Instances[1][0][2])
		}
		_, _ = w.Write([]byte(`{"predictions": [[0.3, 0.7], [0.1, 0.9]]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/", Model: "faceforensics"})
	pred, err := client.Predict(context.Background(), []int{2, 1, 3}, []float32{1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if pred.Rows != 2 || pred.Cols != 2 {
		t.Fatalf("unexpected prediction shape %dx%d", pred.Rows, pred.Cols)
	}
	want := []float64{0.3, 0.7, 0.1, 0.9}
	for i, v := range want {
		if pred.Values[i] != v {
			t.Fatalf("value %d: got %v want %v", i, pred.Values[i], v)
		}
	}
}

func TestPredictScalarPredictions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions": [0.42]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "audio"})
	pred, err := client.Predict(context.Background(), []int{1, 2}, []float32{0.5, 0.5})
	if err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if pred.Rows != 1 || pred.Cols != 1 || pred.Values[0] != 0.42 {
		t.Fatalf("unexpected prediction %+v", pred)
	}
}

func TestPredictRejectsShapeMismatch(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Model: "m"})
	if _, err := client.Predict(context.Background(), []int{2, 2}, []float32{1, 2, 3}); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

func TestPredictRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"predictions": [[0.5]]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "m"},
		WithRetryMaxAttempts(3),
		WithRetryBackoff(time.Millisecond, time.Millisecond),
	)
	if _, err := client.Predict(context.Background(), []int{1, 1}, []float32{1}); err != nil {
		t.Fatalf("Predict returned error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestPredictMakesSingleAttemptByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "m"})
	_, err := client.Predict(context.Background(), []int{1, 1}, []float32{1})
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTPStatusError 503, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestNewClientTimeout(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		want    time.Duration
	}{
		{name: "zero leaves requests unbounded", seconds: 0, want: 0},
		{name: "negative leaves requests unbounded", seconds: -5, want: 0},
		{name: "positive sets the limit", seconds: 30, want: 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(Config{BaseURL: "http://serving", Model: "m", TimeoutSeconds: tt.seconds})
			if got := client.httpClient.Timeout; got != tt.want {
				t.Fatalf("timeout = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPredictDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "bad input shape"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "m"},
		WithRetryMaxAttempts(3),
		WithRetryBackoff(time.Millisecond, time.Millisecond),
	)
	_, err := client.Predict(context.Background(), []int{1, 1}, []float32{1})
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected HTTPStatusError 400, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad input shape") {
		t.Fatalf("expected body in error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestPredictRejectsRaggedPredictions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"predictions": [[0.1, 0.9], [0.5]]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "m"})
	if _, err := client.Predict(context.Background(), []int{2, 1}, []float32{1, 2}); err == nil {
		t.Fatal("expected ragged prediction error")
	}
}

func TestStatusReportsNewestVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/audio_cnn_lstm" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"model_version_status":[{"version":"1","state":"END"},{"version":"3","state":"AVAILABLE"}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "audio_cnn_lstm"})
	status, err := client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.Version != "3" || !status.Available() {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestEncodeInstancesRejectsNonFinite(t *testing.T) {
	if _, err := encodeInstances([]int{1, 1}, []float32{float32(math.NaN())}); err == nil {
		t.Fatal("expected non-finite error")
	}
}
