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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrHealthCheckTimeout is returned when the endpoint never reports healthy.
var ErrHealthCheckTimeout = errors.New("health check timeout")

// Default polling parameters for daemon startup.
const (
	DefaultHealthInterval = 200 * time.Millisecond
	DefaultHealthAttempts = 30
)

// HealthChecker polls a health endpoint at a fixed interval.
type HealthChecker struct {
	endpoint string
	client   *http.Client
	interval time.Duration
	attempts int
}

// HealthCheckResult contains the result of a health check attempt.
type HealthCheckResult struct {
	Success      bool
	StatusCode   int
	ResponseTime time.Duration
	Error        error
}

// NewHealthChecker creates a checker for endpoint polling every 200ms,
// up to 30 attempts.
func NewHealthChecker(endpoint string) *HealthChecker {
	return &HealthChecker{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 1 * time.Second,
		},
		interval: DefaultHealthInterval,
		attempts: DefaultHealthAttempts,
	}
}

// WithPolling overrides the interval and attempt budget.
func (h *HealthChecker) WithPolling(interval time.Duration, attempts int) *HealthChecker {
	h.interval = interval
	h.attempts = attempts
	return h
}

// WithHTTPClient sets a custom HTTP client.
func (h *HealthChecker) WithHTTPClient(client *http.Client) *HealthChecker {
	h.client = client
	return h
}

// Check performs a single health check. Any 2xx status is healthy.
func (h *HealthChecker) Check(ctx context.Context) *HealthCheckResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint, nil)
	if err != nil {
		return &HealthCheckResult{
			Success: false,
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	resp, err := h.client.Do(req)
	responseTime := time.Since(start)

	if err != nil {
		return &HealthCheckResult{
			Success:      false,
			ResponseTime: responseTime,
			Error:        fmt.Errorf("request failed: %w", err),
		}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return &HealthCheckResult{
		Success:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode:   resp.StatusCode,
		ResponseTime: responseTime,
	}
}

// WaitUntilHealthy sleeps one interval before each attempt, so a budget of
// 30 x 200ms gives the daemon about six seconds. Returns the number of
// attempts made.
func (h *HealthChecker) WaitUntilHealthy(ctx context.Context) (int, error) {
	var last *HealthCheckResult

	for attempt := 1; attempt <= h.attempts; attempt++ {
		select {
		case <-ctx.Done():
			return attempt - 1, ctx.Err()
		case <-time.After(h.interval):
		}

		last = h.Check(ctx)
		if last.Success {
			return attempt, nil
		}
	}

	if last != nil && last.Error != nil {
		return h.attempts, fmt.Errorf("%w after %d attempts: %v", ErrHealthCheckTimeout, h.attempts, last.Error)
	}
	return h.attempts, fmt.Errorf("%w after %d attempts", ErrHealthCheckTimeout, h.attempts)
}
