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

package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotConnected is returned when no bridge peer is attached.
	ErrNotConnected = errors.New("bridge: RemNote plugin not connected")

	// ErrConnectionLost is returned for requests outstanding when the peer disconnects.
	ErrConnectionLost = errors.New("bridge: Connection lost")

	// ErrRequestTimeout is matched by errors returned for requests that got no reply in time.
	ErrRequestTimeout = errors.New("bridge: request timeout")

	// ErrServerClosed is returned when operations are attempted on a stopped server.
	ErrServerClosed = errors.New("bridge: server closed")

	// ErrInvalidMessage is returned when a frame cannot be classified.
	ErrInvalidMessage = errors.New("bridge: invalid message format")
)

// PeerError carries an error message reported by the peer for one request.
type PeerError struct {
	Message string
}

// Error returns the peer's message verbatim.
func (e *PeerError) Error() string {
	return e.Message
}

// Heartbeat frame types.
const (
	TypePing = "ping"
	TypePong = "pong"
)

// Request is sent to the peer.
type Request struct {
	ID      string         `json:"id"`
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload"`
}

// Response is received from the peer. Exactly one of Result or Error is
// meaningful; a response with neither carries a null result.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// Heartbeat is a ping or pong frame.
type Heartbeat struct {
	Type string `json:"type"`
}

// frame is the union of every inbound shape, used for classification.
type frame struct {
	Type   string          `json:"type,omitempty"`
	ID     string          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// NewRequest creates a request with a fresh correlation id.
func NewRequest(action string, payload map[string]any) *Request {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Request{
		ID:      uuid.New().String(),
		Action:  action,
		Payload: payload,
	}
}

// parseFrame decodes an inbound frame. It returns either a heartbeat type
// or a response; anything else is ErrInvalidMessage.
func parseFrame(data []byte) (string, *Response, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	switch f.Type {
	case TypePing, TypePong:
		return f.Type, nil, nil
	}

	if f.ID == "" {
		return "", nil, fmt.Errorf("%w: missing id", ErrInvalidMessage)
	}

	return "", &Response{ID: f.ID, Result: f.Result, Error: f.Error}, nil
}

// outcome converts a response into the value SendRequest returns.
func (r *Response) outcome() (json.RawMessage, error) {
	if len(r.Error) > 0 && !isNull(r.Error) {
		return nil, &PeerError{Message: errorMessage(r.Error)}
	}
	if len(r.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return r.Result, nil
}

// errorMessage unwraps a JSON string; other JSON values are kept as text.
func errorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
