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
	"os"
	"syscall"
	"time"
)

var (
	// ErrProcessNotRunning is returned when the process does not exist.
	ErrProcessNotRunning = errors.New("process not running")

	// ErrShutdownTimeout is returned when the process doesn't exit within the timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
)

// DefaultExitPollInterval is how often WaitForExit checks the process.
const DefaultExitPollInterval = 100 * time.Millisecond

// IsProcessRunning checks if a process with the given PID exists without
// affecting it. A process owned by another user (EPERM) counts as alive.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so send signal 0.
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

// IsDaemonProcess reports whether pid looks like a remlink process. It guards
// against signalling an unrelated process that reused a stale pid.
func IsDaemonProcess(pid int) bool {
	return isDaemonProcess(pid)
}

// SendSignal sends a signal to the given process. It returns an error
// wrapping ErrProcessNotRunning when the process does not exist.
func SendSignal(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := proc.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("%w: %d", ErrProcessNotRunning, pid)
		}
		return fmt.Errorf("failed to send signal %v to process %d: %w", sig, pid, err)
	}

	return nil
}

// WaitForExit polls until the process is gone, the timeout elapses or ctx is
// cancelled. Returns ErrShutdownTimeout if the process is still running.
func WaitForExit(ctx context.Context, pid int, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultExitPollInterval
	}
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !IsProcessRunning(pid) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrShutdownTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
