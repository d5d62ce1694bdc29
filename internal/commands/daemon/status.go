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
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/remlink/internal/client"
	"github.com/tombee/remlink/internal/commands/shared"
	daemonctl "github.com/tombee/remlink/internal/daemon"
)

type stoppedOutput struct {
	Status string `json:"status"`
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Long: `Show the health of the running daemon: PID, uptime, ports and whether
the RemNote bridge plugin is connected.

Prints {"status":"stopped"} and exits with code 2 when no daemon is running.`,
		Example: `  # Full health snapshot
  remlink daemon status

  # Is the bridge plugin attached?
  remlink daemon status --jq .wsConnected`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	printer := shared.NewPrinter(cmd.OutOrStdout())

	health, err := newController(cfg).Status(cmd.Context())
	if errors.Is(err, daemonctl.ErrNotRunning) {
		perr := printer.Print(cmd.Context(), stoppedOutput{Status: "stopped"}, func(any) string {
			return "Daemon is not running"
		})
		if perr != nil {
			return perr
		}
		return &shared.ExitError{Code: shared.ExitDaemonNotRunning}
	}
	if err != nil {
		return err
	}

	return printer.Print(cmd.Context(), health, func(any) string {
		return renderHealth(health)
	})
}

func renderHealth(h *client.HealthResponse) string {
	bridge := "no"
	if h.WSConnected {
		bridge = "yes"
	}
	lines := []string{
		shared.RenderLabel("Status", shared.RenderStatus(h.Status == "running", h.Status)),
		shared.RenderLabel("PID", fmt.Sprint(h.PID)),
		shared.RenderLabel("Uptime", fmt.Sprintf("%ds", h.Uptime)),
		shared.RenderLabel("WebSocket port", fmt.Sprint(h.WSPort)),
		shared.RenderLabel("Control port", fmt.Sprint(h.ControlPort)),
		shared.RenderLabel("Bridge connected", shared.RenderStatus(h.WSConnected, bridge)),
	}
	return strings.Join(lines, "\n")
}
