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

package cli

import (
	"github.com/spf13/cobra"

	"github.com/tombee/remlink/internal/commands/daemon"
	"github.com/tombee/remlink/internal/commands/notes"
	"github.com/tombee/remlink/internal/commands/shared"
	versioncmd "github.com/tombee/remlink/internal/commands/version"
	"github.com/tombee/remlink/internal/jq"
	remerrors "github.com/tombee/remlink/pkg/errors"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the remlink command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remlink",
		Short: "remlink - command-line bridge to RemNote",
		Long: `remlink reads and writes a RemNote knowledge base from the command line.

A local daemon holds the WebSocket connection to the RemNote bridge plugin.
Note commands are forwarded to the plugin through the daemon's control port.

Run 'remlink daemon start' before using the note commands.

Output is JSON unless --text is given. Exit codes: 0 success, 1 failure,
2 daemon not running, 3 RemNote plugin not connected.`,
		SilenceUsage:      true, // Don't show usage on errors
		SilenceErrors:     true, // We handle errors ourselves for proper exit codes
		PersistentPreRunE: validateGlobalFlags,
	}

	shared.RegisterGlobalFlags(cmd)

	cmd.AddCommand(daemon.NewCommand())
	cmd.AddCommand(notes.NewCommands()...)
	cmd.AddCommand(versioncmd.NewVersionCommand())
	cmd.SetHelpCommand(NewHelpCommand(cmd))

	return cmd
}

// validateGlobalFlags rejects a malformed --jq expression before any
// request is sent.
func validateGlobalFlags(cmd *cobra.Command, args []string) error {
	expr := shared.GetJQ()
	if expr == "" {
		return nil
	}
	if err := jq.NewExecutor(0, 0).Validate(expr); err != nil {
		return &remerrors.ValidationError{
			Field:      "jq",
			Message:    err.Error(),
			Suggestion: "Check the expression syntax, e.g. --jq '.results[].remId'",
		}
	}
	return nil
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
