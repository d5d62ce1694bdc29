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

// Package daemon implements the "remlink daemon" command group.
package daemon

import (
	"github.com/spf13/cobra"

	"github.com/tombee/remlink/internal/commands/shared"
	"github.com/tombee/remlink/internal/config"
	daemonctl "github.com/tombee/remlink/internal/daemon"
)

// NewCommand creates the daemon command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use: "daemon",
		Annotations: map[string]string{
			"group": "system",
		},
		Short: "Manage the remlink daemon",
		Long: `Commands for managing the remlink daemon.

The daemon holds the WebSocket connection to the RemNote bridge plugin and
serves a local HTTP control endpoint. Every note command goes through it.`,
	}

	cmd.AddCommand(newStartCommand())
	cmd.AddCommand(newStopCommand())
	cmd.AddCommand(newStatusCommand())

	return cmd
}

// controllerFactory builds the lifecycle controller. Tests replace it.
var controllerFactory = func(cfg *config.Config, opts ...daemonctl.ControllerOption) *daemonctl.Controller {
	return daemonctl.NewController(cfg, opts...)
}

func newController(cfg *config.Config, opts ...daemonctl.ControllerOption) *daemonctl.Controller {
	v, _, _ := shared.GetVersion()
	opts = append([]daemonctl.ControllerOption{daemonctl.WithVersion(v)}, opts...)
	return controllerFactory(cfg, opts...)
}
