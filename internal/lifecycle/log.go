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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LifecycleEvent represents a lifecycle event (start, stop, etc.).
type LifecycleEvent struct {
	Timestamp   time.Time         `json:"timestamp"`
	Event       string            `json:"event"`
	PID         int               `json:"pid,omitempty"`
	WSPort      int               `json:"ws_port,omitempty"`
	ControlPort int               `json:"control_port,omitempty"`
	Success     bool              `json:"success"`
	Message     string            `json:"message,omitempty"`
	Flags       map[string]string `json:"flags,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// LifecycleLogger appends daemon lifecycle events to a JSON lines file.
// A nil logger or empty path discards events.
type LifecycleLogger struct {
	logPath string
	mu      sync.Mutex
}

// NewLifecycleLogger creates a new lifecycle logger.
func NewLifecycleLogger(logPath string) *LifecycleLogger {
	return &LifecycleLogger{
		logPath: logPath,
	}
}

// LogStart logs a start request with the flags it was given.
func (l *LifecycleLogger) LogStart(args []string, wsPort, controlPort int) error {
	return l.writeEvent(LifecycleEvent{
		Event:       "start",
		WSPort:      wsPort,
		ControlPort: controlPort,
		Success:     true,
		Message:     "Daemon start initiated",
		Flags:       parseFlags(args),
	})
}

// LogStartSuccess logs successful daemon startup with PID.
func (l *LifecycleLogger) LogStartSuccess(pid int, healthCheckAttempts int, duration time.Duration) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "start_success",
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("Daemon started successfully (health checks: %d, duration: %v)", healthCheckAttempts, duration),
	})
}

// LogStartFailure logs failed daemon startup.
func (l *LifecycleLogger) LogStartFailure(err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "start_failure",
		Success: false,
		Message: "Daemon failed to start",
		Error:   errString(err),
	})
}

// LogStop logs a stop request.
func (l *LifecycleLogger) LogStop(pid int) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "stop",
		PID:     pid,
		Success: true,
		Message: "Daemon stop initiated",
	})
}

// LogStopSuccess logs daemon shutdown. forced is true when SIGTERM was needed.
func (l *LifecycleLogger) LogStopSuccess(pid int, duration time.Duration, forced bool) error {
	msg := fmt.Sprintf("Daemon stopped (duration: %v)", duration)
	if forced {
		msg = fmt.Sprintf("Daemon stopped after SIGTERM (duration: %v)", duration)
	}
	return l.writeEvent(LifecycleEvent{
		Event:   "stop_success",
		PID:     pid,
		Success: true,
		Message: msg,
	})
}

// LogStopFailure logs failed daemon shutdown.
func (l *LifecycleLogger) LogStopFailure(pid int, err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "stop_failure",
		PID:     pid,
		Success: false,
		Message: "Failed to stop daemon",
		Error:   errString(err),
	})
}

// LogHealthCheckFailed logs a daemon that never answered its health endpoint.
func (l *LifecycleLogger) LogHealthCheckFailed(endpoint string, attempts int, err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "health_check_failed",
		Success: false,
		Message: fmt.Sprintf("Health check failed (endpoint: %s, attempts: %d)", endpoint, attempts),
		Error:   errString(err),
	})
}

// LogStalePID logs detection of a stale liveness record.
func (l *LifecycleLogger) LogStalePID(rec *Record) error {
	return l.writeEvent(LifecycleEvent{
		Event:       "stale_pid_detected",
		PID:         rec.PID,
		WSPort:      rec.WSPort,
		ControlPort: rec.ControlPort,
		Success:     true,
		Message:     "Stale liveness record detected and removed",
	})
}

// LogAlreadyRunning logs a start refused because a daemon is running.
func (l *LifecycleLogger) LogAlreadyRunning(rec *Record) error {
	return l.writeEvent(LifecycleEvent{
		Event:       "already_running",
		PID:         rec.PID,
		WSPort:      rec.WSPort,
		ControlPort: rec.ControlPort,
		Success:     true,
		Message:     "Daemon already running",
	})
}

// writeEvent appends a lifecycle event to the log file.
func (l *LifecycleLogger) writeEvent(event LifecycleEvent) error {
	if l == nil || l.logPath == "" {
		return nil
	}
	event.Timestamp = time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.logPath), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lifecycle log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// parseFlags converts command-line arguments to a map of flags for logging.
func parseFlags(args []string) map[string]string {
	flags := make(map[string]string)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		key := strings.TrimLeft(arg, "-")
		if k, v, ok := strings.Cut(key, "="); ok {
			flags[k] = v
			continue
		}

		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			flags[key] = args[i+1]
			i++
		} else {
			flags[key] = "true"
		}
	}

	return flags
}
