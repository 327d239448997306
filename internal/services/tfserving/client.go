package tfserving

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRetryAttempts  = 1
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 5 * time.Second
)

// Config identifies one served model.
type Config struct {
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// Client issues predict and status requests for a single model.
// It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts enables retries of transient failures. The default is a
// single attempt.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// NewClient constructs a client for cfg.Model served at cfg.BaseURL. A
// TimeoutSeconds of zero or less leaves requests unbounded except by ctx.
func NewClient(cfg Config, opts ...Option) *Client {
	var timeout time.Duration
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}
	return client
}

// Model returns the served model name.
func (c *Client) Model() string { return c.cfg.Model }

// Prediction is the model output flattened to Rows x Cols, row-major.
type Prediction struct {
	Rows   int
	Cols   int
	Values []float64
}

// HTTPStatusError reports a non-2xx response from the serving endpoint.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("tfserving: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Predict sends one batch. shape[0] is the batch size and data holds
// product(shape) values in row-major order.
func (c *Client) Predict(ctx context.Context, shape []int, data []float32) (Prediction, error) {
	if c.cfg.BaseURL == "" || c.cfg.Model == "" {
		return Prediction{}, errors.New("tfserving predict: base url and model required")
	}
	body, err := encodeInstances(shape, data)
	if err != nil {
		return Prediction{}, fmt.Errorf("tfserving predict %s: %w", c.cfg.Model, err)
	}
	endpoint := fmt.Sprintf("%s/v1/models/%s:predict", c.cfg.BaseURL, c.cfg.Model)

	attempts := max(c.retryMaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		raw, err := c.post(ctx, endpoint, body)
		if err == nil {
			pred, decodeErr := decodePredictions(raw)
			if decodeErr != nil {
				return Prediction{}, fmt.Errorf("tfserving predict %s: %w", c.cfg.Model, decodeErr)
			}
			return pred, nil
		}
		lastErr = err
		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return Prediction{}, err
		}
	}
	return Prediction{}, fmt.Errorf("tfserving predict %s: %w", c.cfg.Model, lastErr)
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// ModelStatus summarizes the model status endpoint.
type ModelStatus struct {
	Version string
	State   string
}

// Available reports whether any version is serving.
func (s ModelStatus) Available() bool {
	return strings.EqualFold(s.State, "AVAILABLE")
}

// Status queries <url>/v1/models/<name> and returns the newest version state.
func (c *Client) Status(ctx context.Context) (ModelStatus, error) {
	endpoint := fmt.Sprintf("%s/v1/models/%s", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ModelStatus{}, fmt.Errorf("tfserving status: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ModelStatus{}, fmt.Errorf("tfserving status %s: %w", c.cfg.Model, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ModelStatus{}, fmt.Errorf("tfserving status %s: read body: %w", c.cfg.Model, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return ModelStatus{}, fmt.Errorf("tfserving status %s: %w", c.cfg.Model, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(raw)})
	}
	var payload struct {
		Versions []struct {
			Version string `json:"version"`
			State   string `json:"state"`
		} `json:"model_version_status"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ModelStatus{}, fmt.Errorf("tfserving status %s: decode: %w", c.cfg.Model, err)
	}
	var best ModelStatus
	var bestVersion int64 = -1
	for _, v := range payload.Versions {
		n, _ := strconv.ParseInt(v.Version, 10, 64)
		if n > bestVersion {
			bestVersion = n
			best = ModelStatus{Version: v.Version, State: v.State}
		}
	}
	if bestVersion < 0 {
		return ModelStatus{}, fmt.Errorf("tfserving status %s: no versions reported", c.cfg.Model)
	}
	return best, nil
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode == http.StatusServiceUnavailable,
			statusErr.StatusCode == http.StatusBadGateway,
			statusErr.StatusCode == http.StatusGatewayTimeout:
			return c.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	if c.retryBaseDelay <= 0 {
		return 0
	}
	delay := c.retryBaseDelay << (attempt - 1)
	if c.retryMaxDelay > 0 && (delay > c.retryMaxDelay || delay <= 0) {
		return c.retryMaxDelay
	}
	return delay
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// encodeInstances renders {"instances": [...]} with one nested array per
// batch element. Large frame batches make reflection-based encoding slow, so
// the body is appended by hand.
func encodeInstances(shape []int, data []float32) ([]byte, error) {
	if len(shape) == 0 {
		return nil, errors.New("empty tensor shape")
	}
	total := 1
	for _, dim := range shape {
		if dim <= 0 {
			return nil, fmt.Errorf("invalid tensor shape %v", shape)
		}
		total *= dim
	}
	if total != len(data) {
		return nil, fmt.Errorf("tensor shape %v needs %d values, got %d", shape, total, len(data))
	}
	buf := make([]byte, 0, 16+len(data)*6)
	buf = append(buf, `{"instances":`...)
	var err error
	buf, _, err = appendNested(buf, shape, data)
	if err != nil {
		return nil, err
	}
	buf = append(buf, '}')
	return buf, nil
}

func appendNested(buf []byte, shape []int, data []float32) ([]byte, []float32, error) {
	buf = append(buf, '[')
	for i := 0; i < shape[0]; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		if len(shape) == 1 {
			v := float64(data[0])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, errors.New("tensor contains non-finite value")
			}
			buf = strconv.AppendFloat(buf, v, 'g', -1, 32)
			data = data[1:]
			continue
		}
		var err error
		buf, data, err = appendNested(buf, shape[1:], data)
		if err != nil {
			return nil, nil, err
		}
	}
	return append(buf, ']'), data, nil
}

func decodePredictions(raw []byte) (Prediction, error) {
	var payload struct {
		Predictions []json.RawMessage `json:"predictions"`
		Error       string            `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Prediction{}, fmt.Errorf("decode response: %w", err)
	}
	if payload.Error != "" {
		return Prediction{}, fmt.Errorf("model error: %s", payload.Error)
	}
	if len(payload.Predictions) == 0 {
		return Prediction{}, errors.New("response carried no predictions")
	}
	pred := Prediction{Rows: len(payload.Predictions)}
	for i, row := range payload.Predictions {
		var value any
		if err := json.Unmarshal(row, &value); err != nil {
			return Prediction{}, fmt.Errorf("decode prediction %d: %w", i, err)
		}
		before := len(pred.Values)
		var err error
		pred.Values, err = flatten(pred.Values, value)
		if err != nil {
			return Prediction{}, fmt.Errorf("prediction %d: %w", i, err)
		}
		width := len(pred.Values) - before
		if i == 0 {
			pred.Cols = width
		} else if width != pred.Cols {
			return Prediction{}, fmt.Errorf("prediction %d has %d values, expected %d", i, width, pred.Cols)
		}
	}
	if pred.Cols == 0 {
		return Prediction{}, errors.New("predictions are empty")
	}
	return pred, nil
}

func flatten(dst []float64, value any) ([]float64, error) {
	switch v := value.(type) {
	case float64:
		return append(dst, v), nil
	case []any:
		var err error
		for _, item := range v {
			if dst, err = flatten(dst, item); err != nil {
				return nil, err
			}
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("unexpected prediction value %T", value)
	}
}
