// Package apiclient talks to a running deepscan server over HTTP.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"deepscan/internal/api"
	"deepscan/internal/detection"
)

// ErrUnavailable reports that no server address was configured.
var ErrUnavailable = errors.New("deepscan server unavailable")

// Error is a non-2xx response decoded from the server's error body.
type Error struct {
	StatusCode int
	Detail     string
	Kind       string
}

func (e *Error) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.StatusCode, e.Kind, e.Detail)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
}

// Client issues requests against one server.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// New builds a client for addr, which may omit the scheme. token, when set,
// is sent as a bearer credential.
func New(addr, token string) (*Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, ErrUnavailable
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	base, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse server address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base: base,
		// Detection time grows with upload length; callers bound it with ctx.
		http:  &http.Client{},
		token: strings.TrimSpace(token),
	}, nil
}

// Detect uploads the file at path. ModeAuto posts to /detect; the other modes
// use their dedicated endpoints.
func (c *Client) Detect(ctx context.Context, path string, mode detection.Mode) (api.DetectionResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return api.DetectionResult{}, err
	}
	defer file.Close()

	endpoint := "/detect"
	if mode != detection.ModeAuto && mode != "" {
		endpoint += "/" + string(mode)
	}

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = form.Close()
		}
		_ = writer.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, body)
	if err != nil {
		_ = body.Close()
		return api.DetectionResult{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var result api.DetectionResult
	if err := c.do(req, &result); err != nil {
		return api.DetectionResult{}, err
	}
	return result, nil
}

// Health checks the liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.get(ctx, "/api/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "healthy" {
		return fmt.Errorf("server reported status %q", resp.Status)
	}
	return nil
}

// Status fetches the readiness report.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var resp api.StatusResponse
	err := c.get(ctx, "/api/status", nil, &resp)
	return resp, err
}

// History lists recent detections, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]api.HistoryRecord, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var resp api.HistoryListResponse
	if err := c.get(ctx, "/api/history", values, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// HistoryItem fetches one stored detection.
func (c *Client) HistoryItem(ctx context.Context, id string) (api.HistoryRecord, error) {
	var resp api.HistoryRecord
	err := c.get(ctx, "/api/history/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// DeleteHistory removes one stored detection.
func (c *Client) DeleteHistory(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/history/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *Client) get(ctx context.Context, path string, values url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, values, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, values url.Values, body io.Reader) (*http.Request, error) {
	if c == nil {
		return nil, ErrUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var payload api.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(raw, &payload) == nil && payload.Detail != "" {
			apiErr.Detail = payload.Detail
			apiErr.Kind = payload.Kind
		} else {
			apiErr.Detail = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsUnavailable reports whether err means the server could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &opErr)
}
