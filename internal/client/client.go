// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tombee/remlink/internal/control"
	"github.com/tombee/remlink/internal/daemon/httputil"
	"github.com/tombee/remlink/pkg/httpclient"
)

// DefaultTimeout bounds a single control call. It exceeds the bridge
// request timeout so bridge timeouts surface as execute errors.
const DefaultTimeout = 30 * time.Second

// HealthResponse is the daemon health snapshot.
type HealthResponse = control.HealthResponse

// Client talks to the daemon's control endpoint.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	baseURL    string
	addr       string
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// WithTimeout sets the per-call timeout. It has no effect together with
// WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("invalid timeout %v", d)
		}
		c.timeout = d
		return nil
	}
}

// WithBaseURL overrides the endpoint URL, for example an httptest server.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		c.baseURL = raw
		c.addr = u.Host
		return nil
	}
}

// New creates a client for the control endpoint at host:port.
func New(host string, port int, opts ...Option) (*Client, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	c := &Client{
		baseURL: "http://" + addr,
		addr:    addr,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.httpClient == nil {
		cfg := httpclient.DefaultConfig()
		cfg.Timeout = c.timeout
		hc, err := httpclient.New(cfg)
		if err != nil {
			return nil, err
		}
		c.httpClient = hc
	}

	return c, nil
}

// Health returns the daemon health snapshot.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("daemon returned error %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}

	return &health, nil
}

// Execute forwards an action to the bridge peer through the daemon and
// returns the peer's result as raw JSON.
func (c *Client) Execute(ctx context.Context, action string, payload map[string]any) (json.RawMessage, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(control.ExecuteRequest{Action: action, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/execute", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newExecuteError(resp.StatusCode, body)
	}

	var result control.ExecuteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return result.Result, nil
}

// Shutdown asks the daemon to stop. It returns once the daemon has
// acknowledged the request, not when it has exited.
func (c *Client) Shutdown(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/shutdown", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon returned error %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	return resp, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("request to daemon timed out: %w", err)
	}
	return &DaemonNotRunningError{Addr: c.addr, Err: err}
}

func newExecuteError(status int, body []byte) *ExecuteError {
	var eb httputil.ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error == "" {
		return &ExecuteError{
			Message:    fmt.Sprintf("daemon returned error %d: %s", status, bytes.TrimSpace(body)),
			Code:       control.CodeGeneric,
			StatusCode: status,
		}
	}
	code := eb.Code
	if code == 0 {
		code = control.CodeGeneric
	}
	return &ExecuteError{Message: eb.Error, Code: code, StatusCode: status}
}
