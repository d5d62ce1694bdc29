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

	"github.com/spf13/cobra"

	"github.com/tombee/remlink/internal/commands/shared"
	daemonctl "github.com/tombee/remlink/internal/daemon"
)

type messageOutput struct {
	Message string `json:"message"`
}

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		Long: `Stop the remlink daemon.

The daemon is asked to shut down through its control endpoint. If it has
not exited within the shutdown timeout it is sent SIGTERM. Exits with code 2
when no daemon is running.`,
		Args: cobra.NoArgs,
		RunE: runStop,
	}
}

func runStop(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	spinner := shared.NewSpinner()
	spinner.Start("Stopping daemon")
	err = newController(cfg).Stop(cmd.Context())
	spinner.Stop()

	if errors.Is(err, daemonctl.ErrNotRunning) {
		return shared.NewDaemonNotRunningError("Daemon is not running", nil)
	}
	if err != nil {
		return err
	}

	out := messageOutput{Message: "Daemon stopped"}
	return shared.NewPrinter(cmd.OutOrStdout()).Print(cmd.Context(), out, func(any) string {
		return out.Message
	})
}
