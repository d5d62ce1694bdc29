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

package daemon

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRunning is returned when no live daemon is recorded or it does not answer.
	ErrNotRunning = errors.New("Daemon not running")

	// ErrStartTimeout is returned when a spawned daemon never became healthy.
	ErrStartTimeout = errors.New("Daemon failed to start")
)

// AlreadyRunningError is returned by Start when a live daemon is recorded.
type AlreadyRunningError struct {
	PID         int
	WSPort      int
	ControlPort int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("Daemon already running (PID %d, ws:%d, control:%d)", e.PID, e.WSPort, e.ControlPort)
}

func (e *AlreadyRunningError) IsUserVisible() bool { return true }

func (e *AlreadyRunningError) UserMessage() string { return e.Error() }

func (e *AlreadyRunningError) Suggestion() string {
	return "Stop it first with: remlink daemon stop"
}
