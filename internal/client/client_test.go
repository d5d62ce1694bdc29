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
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	remerrors "github.com/tombee/remlink/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New("", 0, WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestClientHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/health" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "running",
			"pid":         1234,
			"wsConnected": true,
			"uptime":      42,
			"wsPort":      3002,
			"controlPort": 3100,
		})
	})

	health, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Status != "running" || health.PID != 1234 || !health.WSConnected {
		t.Errorf("Unexpected health: %+v", health)
	}
	if health.Uptime != 42 || health.WSPort != 3002 || health.ControlPort != 3100 {
		t.Errorf("Unexpected health: %+v", health)
	}
}

func TestClientExecute(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/execute" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Action  string         `json:"action"`
			Payload map[string]any `json:"payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if body.Action != "create_note" || body.Payload["title"] != "Hello" {
			t.Errorf("Unexpected body: %+v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"remId": "r1"}})
	})

	result, err := c.Execute(context.Background(), "create_note", map[string]any{"title": "Hello"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(result, &got); err != nil {
		t.Fatalf("bad result: %v", err)
	}
	if got["remId"] != "r1" {
		t.Errorf("Expected remId r1, got %v", got["remId"])
	}
}

func TestClientExecute_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantCode    int
	}{
		{
			name:        "peer not attached",
			status:      http.StatusInternalServerError,
			body:        `{"error":"bridge: RemNote plugin not connected","code":3}`,
			wantMessage: "bridge: RemNote plugin not connected",
			wantCode:    3,
		},
		{
			name:        "peer error",
			status:      http.StatusInternalServerError,
			body:        `{"error":"Note not found","code":1}`,
			wantMessage: "Note not found",
			wantCode:    1,
		},
		{
			name:        "validation error without code",
			status:      http.StatusBadRequest,
			body:        `{"error":"Missing action field"}`,
			wantMessage: "Missing action field",
			wantCode:    1,
		},
		{
			name:        "non-json error body",
			status:      http.StatusBadGateway,
			body:        `upstream down`,
			wantMessage: "daemon returned error 502: upstream down",
			wantCode:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Execute(context.Background(), "search", nil)

			var execErr *ExecuteError
			if !errors.As(err, &execErr) {
				t.Fatalf("Expected ExecuteError, got %T: %v", err, err)
			}
			if execErr.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", execErr.Message, tt.wantMessage)
			}
			if execErr.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", execErr.Code, tt.wantCode)
			}
			if execErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", execErr.StatusCode, tt.status)
			}
			if execErr.PeerNotAttached() != (tt.wantCode == 3) {
				t.Errorf("PeerNotAttached() = %v", execErr.PeerNotAttached())
			}
		})
	}
}

func TestClientShutdown(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/shutdown" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		called = true
		json.NewEncoder(w).Encode(map[string]string{"result": "shutting down"})
	})

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !called {
		t.Error("Expected shutdown endpoint to be called")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestClient_Unreachable(t *testing.T) {
	c, err := New("127.0.0.1", freePort(t), WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = c.Health(context.Background())
	if !IsDaemonNotRunning(err) {
		t.Fatalf("Expected daemon unreachable, got %v", err)
	}

	var dnr *DaemonNotRunningError
	if !errors.As(err, &dnr) {
		t.Fatalf("Expected DaemonNotRunningError, got %T", err)
	}
	if got := remerrors.SuggestionOf(err); got != "Start it with: remlink daemon start" {
		t.Errorf("SuggestionOf() = %q", got)
	}

	_, err = c.Execute(context.Background(), "search", nil)
	if !errors.Is(err, ErrDaemonUnreachable) {
		t.Errorf("Execute error = %v, want ErrDaemonUnreachable", err)
	}
}

func TestIsDaemonNotRunning(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "daemon not running error", err: &DaemonNotRunningError{Addr: "127.0.0.1:3100"}, want: true},
		{name: "execute error", err: &ExecuteError{Message: "x", Code: 3}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDaemonNotRunning(tt.err); got != tt.want {
				t.Errorf("IsDaemonNotRunning() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWithTimeout_RejectsNonPositive(t *testing.T) {
	if _, err := New("127.0.0.1", 3100, WithTimeout(0)); err == nil {
		t.Error("Expected error for zero timeout")
	}
}
