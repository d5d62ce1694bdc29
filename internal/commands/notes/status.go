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

package notes

import (
	"github.com/spf13/cobra"

	"github.com/tombee/remlink/internal/commands/shared"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the bridge connection",
		Long: `Ask the RemNote bridge plugin for its status.

Exits with code 2 when the daemon is not running and 3 when the plugin is
not connected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, ActionGetStatus, map[string]any{}, renderStatus)
		},
	}
}

func renderStatus(data any) string {
	r := object(data)
	ok, _ := r["connected"].(bool)
	connected := "Not connected"
	if ok {
		connected = "Connected"
	}
	version := ""
	if v := shared.Field(r, "pluginVersion"); v != "" {
		version = " (plugin v" + v + ")"
	}
	return "Bridge: " + shared.RenderStatus(ok, connected) + version
}
