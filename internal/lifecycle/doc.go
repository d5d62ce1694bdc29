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

/*
Package lifecycle provides the process-level building blocks used to run the
remlink daemon: the liveness record, process probing, detached spawning,
health polling, file locks and the lifecycle audit log.

# Liveness Record

The record tells short-lived CLI invocations whether a daemon is running and
which ports it listens on. Writes are atomic (temp file + rename), so a reader
never sees a partial record. A missing or malformed file reads as absent:

	store := lifecycle.NewRecordStore("~/.remlink/daemon.pid")
	if rec, ok := store.GetRunningDaemon(); ok {
	    fmt.Println("running as", rec.PID)
	}

GetRunningDaemon removes records whose process is gone.

# Process Operations

IsProcessRunning checks with signal 0 and never affects the target. A process
owned by another user is reported alive.

# Health Checking

Startup polling uses a fixed interval (200ms, 30 attempts by default):

	checker := lifecycle.NewHealthChecker("http://127.0.0.1:3100/health")
	attempts, err := checker.WaitUntilHealthy(ctx)

# Locks

TryLock and LockWithTimeout wrap gofrs/flock. The daemon holds one lock for
its whole lifetime; start commands take a second one so two concurrent starts
cannot both pass the already-running check.
*/
package lifecycle
