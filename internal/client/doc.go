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
Package client provides an HTTP client for the remlink daemon's control endpoint.

CLI commands use it to query health, forward actions to the RemNote plugin,
and request shutdown. Requests go through pkg/httpclient, which tags them
with a request ID that appears in the daemon's access log.

# Basic Usage

	c, err := client.New("127.0.0.1", 3100)
	if err != nil {
	    return err
	}

	result, err := c.Execute(ctx, "search", map[string]any{"query": "go"})

# Errors

Calls that cannot reach the daemon return *DaemonNotRunningError, which
matches ErrDaemonUnreachable:

	if client.IsDaemonNotRunning(err) {
	    // exit 2
	}

Execute failures reported by the daemon return *ExecuteError carrying the
daemon's message and exit code.
*/
package client
