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

// Package notes implements the commands that act on the RemNote knowledge
// base through the daemon.
package notes

import (
	"github.com/spf13/cobra"

	"github.com/tombee/remlink/internal/client"
	"github.com/tombee/remlink/internal/commands/shared"
)

// Bridge actions understood by the RemNote plugin.
const (
	ActionGetStatus     = "get_status"
	ActionCreateNote    = "create_note"
	ActionReadNote      = "read_note"
	ActionUpdateNote    = "update_note"
	ActionSearch        = "search"
	ActionAppendJournal = "append_journal"
)

// NewCommands returns the note commands, registered at the top level.
func NewCommands() []*cobra.Command {
	return []*cobra.Command{
		newStatusCommand(),
		newCreateCommand(),
		newReadCommand(),
		newUpdateCommand(),
		newSearchCommand(),
		newJournalCommand(),
	}
}

// execute forwards action to the daemon and prints the result.
func execute(cmd *cobra.Command, action string, payload map[string]any, render shared.TextFunc) error {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	c, err := client.New(cfg.Daemon.Host, cfg.Daemon.ControlPort)
	if err != nil {
		return err
	}

	result, err := c.Execute(cmd.Context(), action, payload)
	if err != nil {
		return shared.Classify(err)
	}
	return shared.NewPrinter(cmd.OutOrStdout()).Print(cmd.Context(), result, render)
}

// object returns data as a JSON object, or an empty one.
func object(data any) map[string]any {
	if m, ok := data.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// stringList returns the elements of a JSON array.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, shared.Scalar(item))
	}
	return out
}
