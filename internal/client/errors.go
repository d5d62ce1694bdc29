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
	"errors"
	"fmt"

	"github.com/tombee/remlink/internal/control"
)

// ErrDaemonUnreachable is matched by errors for calls that never reached the daemon.
var ErrDaemonUnreachable = errors.New("daemon unreachable")

// DaemonNotRunningError indicates the control endpoint could not be reached.
type DaemonNotRunningError struct {
	Addr string
	Err  error
}

func (e *DaemonNotRunningError) Error() string {
	return fmt.Sprintf("Daemon not running (control endpoint %s unreachable)", e.Addr)
}

func (e *DaemonNotRunningError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDaemonUnreachable.
func (e *DaemonNotRunningError) Is(target error) bool {
	return target == ErrDaemonUnreachable
}

func (e *DaemonNotRunningError) IsUserVisible() bool { return true }

func (e *DaemonNotRunningError) UserMessage() string {
	return "The remlink daemon is not running."
}

// Suggestion returns guidance for starting the daemon.
func (e *DaemonNotRunningError) Suggestion() string {
	return "Start it with: remlink daemon start"
}

// IsDaemonNotRunning checks if an error indicates the daemon is not reachable.
func IsDaemonNotRunning(err error) bool {
	return errors.Is(err, ErrDaemonUnreachable)
}

// ExecuteError is a failed /execute call. Code is the daemon-supplied
// exit code.
type ExecuteError struct {
	Message    string
	Code       int
	StatusCode int
}

func (e *ExecuteError) Error() string {
	return e.Message
}

// PeerNotAttached reports whether the failure was caused by a missing bridge peer.
func (e *ExecuteError) PeerNotAttached() bool {
	return e.Code == control.CodePeerNotAttached
}
