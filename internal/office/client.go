// Package office provides the narrow HTTP client for the Windows-side
// Office automation server. The core treats the server as a black-box
// collaborator: request in, `{success, message|error}` JSON out.
package office

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is where the office server listens when run with defaults.
const DefaultBaseURL = "http://localhost:8765"

// healthTimeout bounds the health probe; it is deliberately much shorter
// than operation calls so a dead server is detected quickly.
const healthTimeout = 5 * time.Second

// Result is the server's uniform response envelope.
type Result struct {
	// Success indicates the operation completed.
	Success bool `json:"success"`
	// Message is the human-readable outcome on success.
	Message string `json:"message,omitempty"`
	// Error is the failure description.
	Error string `json:"error,omitempty"`
	// Details carries the underlying exception text, if any.
	Details string `json:"details,omitempty"`
	// Raw is the full response body for data-bearing endpoints (reads,
	// screenshots) whose payload extends the envelope.
	Raw json.RawMessage `json:"-"`
}

// Health describes the server's health response.
type Health struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Version string          `json:"version"`
	Apps    map[string]bool `json:"apps"`
}

// Client is an HTTP client for one office server instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// CheckHealth probes the /health endpoint with a short deadline.
func (c *Client) CheckHealth(ctx context.Context) (*Health, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("office: creating health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("office: health check failed: %w", err)
	}
	defer resp.Body.Close()

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("office: parsing health response: %w", err)
	}
	return &health, nil
}

// Post sends an operation request, e.g. Post(ctx, "/word/write", payload).
func (c *Client) Post(ctx context.Context, path string, payload map[string]interface{}) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("office: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("office: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// Get sends a query request, e.g. Get(ctx, "/word/read", nil).
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Result, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("office: creating request: %w", err)
	}
	return c.do(req)
}

// Screenshot captures the active document of app ("word", "excel" or
// "powerpoint") and returns the decoded PNG bytes. The server replies
// with the image base64-encoded inside the usual envelope.
func (c *Client) Screenshot(ctx context.Context, app string) ([]byte, error) {
	result, err := c.Get(ctx, "/"+app+"/screenshot", nil)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("office: screenshot failed: %s", result.Error)
	}

	var payload struct {
		Image string `json:"image"`
	}
	if err := json.Unmarshal(result.Raw, &payload); err != nil {
		return nil, fmt.Errorf("office: parsing screenshot response: %w", err)
	}
	if payload.Image == "" {
		return nil, fmt.Errorf("office: screenshot response carried no image")
	}
	data, err := base64.StdEncoding.DecodeString(payload.Image)
	if err != nil {
		return nil, fmt.Errorf("office: decoding screenshot: %w", err)
	}
	return data, nil
}

func (c *Client) do(req *http.Request) (*Result, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("office: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("office: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("office: server returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("office: parsing response: %w", err)
	}
	result.Raw = body
	return &result, nil
}
