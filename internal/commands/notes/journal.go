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

func newJournalCommand() *cobra.Command {
	var noTimestamp bool

	cmd := &cobra.Command{
		Use:   "journal <content>",
		Short: "Append to today's daily document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{"content": args[0], "timestamp": !noTimestamp}
			return execute(cmd, ActionAppendJournal, payload, renderJournal)
		},
	}

	cmd.Flags().BoolVar(&noTimestamp, "no-timestamp", false, "Do not prefix the entry with the current time")

	return cmd
}

func renderJournal(data any) string {
	if id := shared.Field(object(data), "remId"); id != "" {
		return "Journal entry added (ID: " + id + ")"
	}
	return "Journal entry added"
}
