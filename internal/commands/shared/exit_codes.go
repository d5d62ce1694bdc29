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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tombee/remlink/internal/bridge"
	"github.com/tombee/remlink/internal/client"
	"github.com/tombee/remlink/internal/daemon"
	remerrors "github.com/tombee/remlink/pkg/errors"
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitFailure          = 1
	ExitDaemonNotRunning = 2
	ExitPeerNotAttached  = 3
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	switch {
	case e.Message == "" && e.Cause != nil:
		return e.Cause.Error()
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	default:
		return e.Message
	}
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewFailureError creates an exit error with code 1.
func NewFailureError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitFailure, Message: msg, Cause: cause}
}

// NewDaemonNotRunningError creates an exit error with code 2.
func NewDaemonNotRunningError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitDaemonNotRunning, Message: msg, Cause: cause}
}

// NewPeerNotAttachedError creates an exit error with code 3.
func NewPeerNotAttachedError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitPeerNotAttached, Message: msg, Cause: cause}
}

// Classify maps err onto an exit code. An unreachable or unrecorded daemon
// is 2, a missing bridge peer is 3 and everything else is 1.
func Classify(err error) *ExitError {
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	var execErr *client.ExecuteError
	switch {
	case errors.Is(err, client.ErrDaemonUnreachable), errors.Is(err, daemon.ErrNotRunning):
		return &ExitError{Code: ExitDaemonNotRunning, Cause: err}
	case errors.As(err, &execErr) && execErr.PeerNotAttached():
		return &ExitError{Code: ExitPeerNotAttached, Cause: err}
	case errors.Is(err, bridge.ErrNotConnected), errors.Is(err, bridge.ErrConnectionLost):
		return &ExitError{Code: ExitPeerNotAttached, Cause: err}
	default:
		return &ExitError{Code: ExitFailure, Cause: err}
	}
}

type errorOutput struct {
	Error      string `json:"error"`
	Code       int    `json:"code"`
	Suggestion string `json:"suggestion,omitempty"`
}

// WriteError prints err to w as JSON or, with text set, as "Error: msg"
// followed by any suggestion. It returns the exit code for err.
func WriteError(w io.Writer, err error, text bool) int {
	if err == nil {
		return ExitSuccess
	}

	exitErr := Classify(err)
	msg := exitErr.Error()
	suggestion := remerrors.SuggestionOf(err)
	if msg == "" && suggestion == "" {
		// The command already reported the outcome.
		return exitErr.Code
	}

	if !text {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(errorOutput{Error: msg, Code: exitErr.Code, Suggestion: suggestion})
		return exitErr.Code
	}

	if msg != "" {
		fmt.Fprintln(w, "Error:", msg)
	}
	if suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
	return exitErr.Code
}

// HandleExitError prints err to stderr and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(WriteError(os.Stderr, err, GetText()))
}
