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
Package cli builds the remlink command tree.

# Command Tree

	remlink
	├── daemon
	│   ├── start     Start the daemon (background or --foreground)
	│   ├── stop      Stop the daemon
	│   └── status    Show daemon health
	├── status        Check the bridge connection
	├── create        Create a note
	├── read          Read a note
	├── update        Update a note
	├── search        Search the knowledge base
	├── journal       Append to today's daily document
	├── version       Show version
	└── help          Show help

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	if err := cli.NewRootCommand().Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

	--control-port   Control port of the daemon
	--text           Human-readable output instead of JSON
	--jq             Filter JSON output with a jq expression
	--config         Path to config file

# Exit Codes

  - 0: Success
  - 1: Failure
  - 2: Daemon not running
  - 3: RemNote plugin not connected
*/
package cli
