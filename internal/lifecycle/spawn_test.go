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
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// skipOnSpawnError checks if an error is a spawn permission error and skips if so.
// Some environments (sandboxed test runners, containers) block fork/exec.
func skipOnSpawnError(t *testing.T, err error) {
	t.Helper()
	if err != nil && strings.Contains(err.Error(), "operation not permitted") {
		t.Skipf("Skipping: spawn not permitted in this environment: %v", err)
	}
}

func waitForFileContaining(t *testing.T, path, want string) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		content, err := os.ReadFile(path)
		if err == nil && strings.Contains(string(content), want) {
			return string(content)
		}
		time.Sleep(50 * time.Millisecond)
	}
	content, _ := os.ReadFile(path)
	t.Fatalf("%s does not contain %q: %s", path, want, content)
	return ""
}

func TestSpawner_SpawnDetached(t *testing.T) {
	if os.Getenv("SKIP_SPAWN_TESTS") != "" {
		t.Skip("Skipping spawn tests (SKIP_SPAWN_TESTS is set)")
	}

	tmpDir := t.TempDir()

	t.Run("spawns detached process with output in log", func(t *testing.T) {
		logPath := filepath.Join(tmpDir, "daemon.log")

		pid, err := NewSpawner().SpawnDetached("sh", []string{"-c", "echo 'daemon output'; sleep 1"}, logPath)
		skipOnSpawnError(t, err)
		if err != nil {
			t.Fatalf("SpawnDetached() error = %v", err)
		}
		defer syscall.Kill(pid, syscall.SIGKILL)

		if !IsProcessRunning(pid) {
			t.Error("Spawned process is not running")
		}
		waitForFileContaining(t, logPath, "daemon output")
	})

	t.Run("runs in its own session", func(t *testing.T) {
		pid, err := NewSpawner().SpawnDetached("sleep", []string{"2"}, filepath.Join(tmpDir, "sid.log"))
		skipOnSpawnError(t, err)
		if err != nil {
			t.Fatalf("SpawnDetached() error = %v", err)
		}
		defer syscall.Kill(pid, syscall.SIGKILL)

		sid, err := unix.Getsid(pid)
		if err != nil {
			t.Fatalf("Getsid() error = %v", err)
		}
		if sid != pid {
			t.Errorf("child session id = %d, want %d (session leader)", sid, pid)
		}
	})

	t.Run("creates log directory with restrictive permissions", func(t *testing.T) {
		logPath := filepath.Join(tmpDir, "nested", "dir", "daemon.log")

		pid, err := NewSpawner().SpawnDetached("true", nil, logPath)
		skipOnSpawnError(t, err)
		if err != nil {
			t.Fatalf("SpawnDetached() error = %v", err)
		}
		defer syscall.Kill(pid, syscall.SIGKILL)

		info, err := os.Stat(filepath.Dir(logPath))
		if err != nil {
			t.Fatalf("Log directory not created: %v", err)
		}
		if mode := info.Mode() & os.ModePerm; mode != 0o700 {
			t.Errorf("Log directory mode = %04o, want 0700", mode)
		}
	})

	t.Run("appends to existing log file", func(t *testing.T) {
		logPath := filepath.Join(tmpDir, "append.log")
		if err := os.WriteFile(logPath, []byte("initial\n"), 0o600); err != nil {
			t.Fatalf("Failed to create initial log: %v", err)
		}

		pid, err := NewSpawner().SpawnDetached("echo", []string{"appended"}, logPath)
		skipOnSpawnError(t, err)
		if err != nil {
			t.Fatalf("SpawnDetached() error = %v", err)
		}
		defer syscall.Kill(pid, syscall.SIGKILL)

		content := waitForFileContaining(t, logPath, "appended")
		if !strings.Contains(content, "initial") {
			t.Error("Original content was overwritten")
		}
	})

	t.Run("passes environment through", func(t *testing.T) {
		logPath := filepath.Join(tmpDir, "env.log")
		spawner := NewSpawner()
		spawner.Env = append(spawner.Env, "REMLINK_SPAWN_MARKER=present")

		pid, err := spawner.SpawnDetached("sh", []string{"-c", "echo marker=$REMLINK_SPAWN_MARKER"}, logPath)
		skipOnSpawnError(t, err)
		if err != nil {
			t.Fatalf("SpawnDetached() error = %v", err)
		}
		defer syscall.Kill(pid, syscall.SIGKILL)

		waitForFileContaining(t, logPath, "marker=present")
	})

	t.Run("handles invalid binary path", func(t *testing.T) {
		_, err := NewSpawner().SpawnDetached("/nonexistent/binary", nil, filepath.Join(tmpDir, "error.log"))
		if err == nil {
			t.Error("SpawnDetached() with invalid binary succeeded, want error")
		}
	})
}
