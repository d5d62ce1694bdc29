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

package shared

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/remlink/internal/bridge"
	"github.com/tombee/remlink/internal/client"
	"github.com/tombee/remlink/internal/daemon"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "daemon unreachable", err: &client.DaemonNotRunningError{Addr: "127.0.0.1:3100"}, want: ExitDaemonNotRunning},
		{name: "no liveness record", err: daemon.ErrNotRunning, want: ExitDaemonNotRunning},
		{name: "wrapped not running", err: fmt.Errorf("%w: refused", daemon.ErrNotRunning), want: ExitDaemonNotRunning},
		{name: "peer not attached", err: &client.ExecuteError{Message: "bridge: RemNote plugin not connected", Code: 3}, want: ExitPeerNotAttached},
		{name: "connection lost in process", err: bridge.ErrConnectionLost, want: ExitPeerNotAttached},
		{name: "peer error", err: &client.ExecuteError{Message: "Note not found", Code: 1}, want: ExitFailure},
		{name: "already running", err: &daemon.AlreadyRunningError{PID: 1}, want: ExitFailure},
		{name: "plain error", err: errors.New("boom"), want: ExitFailure},
		{name: "explicit exit error", err: NewPeerNotAttachedError("no peer", nil), want: ExitPeerNotAttached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Code)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, Classify(nil))
}

func TestExitError_Message(t *testing.T) {
	cause := errors.New("inner error")

	assert.Equal(t, "inner error", (&ExitError{Code: 1, Cause: cause}).Error())
	assert.Equal(t, "stop failed: inner error", NewFailureError("stop failed", cause).Error())
	assert.Equal(t, "Daemon is not running", NewDaemonNotRunningError("Daemon is not running", nil).Error())
	assert.Same(t, cause, errors.Unwrap(NewFailureError("x", cause)))
}

func TestWriteError_JSON(t *testing.T) {
	var buf bytes.Buffer
	code := WriteError(&buf, &client.ExecuteError{Message: "Note not found", Code: 1}, false)
	assert.Equal(t, ExitFailure, code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "Note not found", out["error"])
	assert.Equal(t, float64(1), out["code"])
	assert.NotContains(t, out, "suggestion")
}

func TestWriteError_JSONWithSuggestion(t *testing.T) {
	var buf bytes.Buffer
	code := WriteError(&buf, &client.DaemonNotRunningError{Addr: "127.0.0.1:3100"}, false)
	assert.Equal(t, ExitDaemonNotRunning, code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, float64(2), out["code"])
	assert.Equal(t, "Start it with: remlink daemon start", out["suggestion"])
}

func TestWriteError_Text(t *testing.T) {
	var buf bytes.Buffer
	code := WriteError(&buf, &daemon.AlreadyRunningError{PID: 42, WSPort: 3002, ControlPort: 3100}, true)
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t,
		"Error: Daemon already running (PID 42, ws:3002, control:3100)\n\nSuggestion: Stop it first with: remlink daemon stop\n",
		buf.String())
}

func TestWriteError_Nil(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, ExitSuccess, WriteError(&buf, nil, true))
	assert.Empty(t, buf.String())
}

func TestWriteError_SilentExit(t *testing.T) {
	var buf bytes.Buffer
	code := WriteError(&buf, &ExitError{Code: ExitDaemonNotRunning}, false)
	assert.Equal(t, ExitDaemonNotRunning, code)
	assert.Empty(t, buf.String())
}
