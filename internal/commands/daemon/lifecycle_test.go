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
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/remlink/internal/client"
	"github.com/tombee/remlink/internal/commands/shared"
	"github.com/tombee/remlink/internal/lifecycle"
)

// daemonChildEnv makes the test binary behave as the remlink CLI so a
// background start can spawn it as the daemon.
const daemonChildEnv = "REMLINK_TEST_DAEMON_CHILD"

func TestMain(m *testing.M) {
	if os.Getenv(daemonChildEnv) == "1" {
		os.Exit(runAsCLI(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func runAsCLI(args []string) int {
	root := &cobra.Command{Use: "remlink", SilenceUsage: true, SilenceErrors: true}
	shared.RegisterGlobalFlags(root)
	root.AddCommand(NewCommand())
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		return shared.WriteError(os.Stderr, err, false)
	}
	return shared.ExitSuccess
}

func TestDaemon_BackgroundLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns a daemon process")
	}
	if os.Getenv("SKIP_SPAWN_TESTS") != "" {
		t.Skip("Skipping spawn tests (SKIP_SPAWN_TESTS is set)")
	}

	env := setupEnv(t)
	t.Setenv(daemonChildEnv, "1")

	records := lifecycle.NewRecordStore(filepath.Join(env.dataDir, "daemon.pid"))
	t.Cleanup(func() {
		if rec, ok := records.Read(); ok {
			_ = syscall.Kill(rec.PID, syscall.SIGKILL)
		}
	})

	out, err := run(t, "daemon", "start")
	if err != nil && strings.Contains(err.Error(), "operation not permitted") {
		t.Skipf("spawn not permitted in this environment: %v", err)
	}
	if err != nil {
		logs, _ := os.ReadFile(filepath.Join(env.dataDir, "daemon.log"))
		t.Fatalf("daemon start: %v\ndaemon log:\n%s", err, logs)
	}

	var started StartedOutput
	require.NoError(t, json.Unmarshal([]byte(out), &started))
	assert.Equal(t, "Daemon started", started.Message)
	assert.Equal(t, env.controlPort, started.ControlPort)

	rec, ok := records.Read()
	require.True(t, ok, "the spawned daemon should publish its record")
	assert.NotEqual(t, os.Getpid(), rec.PID)

	cl, err := client.New("127.0.0.1", env.controlPort)
	require.NoError(t, err)
	health, err := cl.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "running", health.Status)
	assert.Equal(t, rec.PID, health.PID)
	assert.Equal(t, env.wsPort, health.WSPort)

	out, err = run(t, "daemon", "status")
	require.NoError(t, err)
	var status client.HealthResponse
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, rec.PID, status.PID)

	_, err = run(t, "daemon", "stop")
	require.NoError(t, err)

	_, err = run(t, "daemon", "status")
	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr), "got %v", err)
	assert.Equal(t, shared.ExitDaemonNotRunning, exitErr.Code)

	events := lifecycleEvents(t, filepath.Join(env.dataDir, "lifecycle.log"))
	assert.Contains(t, events, "start_success")
	assert.Contains(t, events, "stop_success")
	assert.NotContains(t, events, "health_check_failed")
}

func lifecycleEvents(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var events []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var ev lifecycle.LifecycleEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev.Event)
	}
	return events
}
