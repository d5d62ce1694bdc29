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

package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
		wantJSON   string
	}{
		{
			name:       "health snapshot",
			status:     http.StatusOK,
			data:       map[string]any{"status": "running", "wsPort": 3002},
			wantStatus: http.StatusOK,
			wantJSON:   `{"status":"running","wsPort":3002}`,
		},
		{
			name:       "execute failure",
			status:     http.StatusInternalServerError,
			data:       ErrorBody{Error: "bridge: RemNote plugin not connected", Code: 3},
			wantStatus: http.StatusInternalServerError,
			wantJSON:   `{"error":"bridge: RemNote plugin not connected","code":3}`,
		},
		{
			name:       "empty object",
			status:     http.StatusOK,
			data:       map[string]string{},
			wantStatus: http.StatusOK,
			wantJSON:   `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.status, tt.data)

			if w.Code != tt.wantStatus {
				t.Errorf("WriteJSON() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("WriteJSON() Content-Type = %v, want application/json", ct)
			}

			var got, want map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.wantJSON), &want); err != nil {
				t.Fatalf("Failed to unmarshal expected JSON: %v", err)
			}
			if len(got) != len(want) {
				t.Errorf("WriteJSON() response length = %d, want %d", len(got), len(want))
			}
			for k, v := range want {
				if got[k] != v {
					t.Errorf("WriteJSON() response[%s] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestWriteError_OmitsZeroCode(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusNotFound, "Not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("WriteError() status = %d, want 404", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"error":"Not found"}` {
		t.Errorf("WriteError() body = %s", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Run("decodes object", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(`{"action":"search"}`))
		var v struct{ Action string }
		if err := DecodeJSON(httptest.NewRecorder(), r, &v); err != nil {
			t.Fatalf("DecodeJSON() error = %v", err)
		}
		if v.Action != "search" {
			t.Errorf("Action = %q, want search", v.Action)
		}
	})

	t.Run("rejects empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(""))
		var v map[string]any
		if err := DecodeJSON(httptest.NewRecorder(), r, &v); err == nil {
			t.Error("DecodeJSON() error = nil, want error")
		}
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		big := `{"action":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
		r := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(big))
		var v map[string]any
		if err := DecodeJSON(httptest.NewRecorder(), r, &v); err == nil {
			t.Error("DecodeJSON() error = nil, want error")
		}
	})
}
