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

package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestLoggingTransport_SetsHeaders(t *testing.T) {
	var gotAgent, gotID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotID = r.Header.Get(RequestIDHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := newLoggingTransport(http.DefaultTransport, "test-agent/1.0")

	req, err := http.NewRequest(http.MethodGet, server.URL+"/health", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotAgent != "test-agent/1.0" {
		t.Errorf("expected User-Agent %q, got %q", "test-agent/1.0", gotAgent)
	}
	if _, err := uuid.Parse(gotID); err != nil {
		t.Errorf("expected a UUID request ID, got %q", gotID)
	}
	if req.Header.Get(RequestIDHeader) != "" {
		t.Error("caller's request was modified")
	}
}

func TestLoggingTransport_PreservesExistingHeaders(t *testing.T) {
	var gotAgent, gotID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotID = r.Header.Get(RequestIDHeader)
	}))
	defer server.Close()

	transport := newLoggingTransport(nil, "test-agent/1.0")

	req, err := http.NewRequest(http.MethodPost, server.URL+"/execute", nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", "custom-agent/2.0")
	req.Header.Set(RequestIDHeader, "fixed-id")

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotAgent != "custom-agent/2.0" {
		t.Errorf("expected existing User-Agent to be kept, got %q", gotAgent)
	}
	if gotID != "fixed-id" {
		t.Errorf("expected existing request ID to be kept, got %q", gotID)
	}
}

func TestLoggingTransport_PropagatesErrors(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	transport := newLoggingTransport(http.DefaultTransport, "test-agent/1.0")
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if _, err := transport.RoundTrip(req); err == nil {
		t.Error("expected error from closed server")
	}
}
