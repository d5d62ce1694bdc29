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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/remlink/internal/commands/shared"
)

type createOptions struct {
	content  string
	parentID string
	tags     []string
}

func newCreateCommand() *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a note",
		Example: `  remlink create "Meeting notes" --content "Agenda" --tags work,weekly
  remlink create "Subtopic" --parent-id abc123 --text`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, ActionCreateNote, createPayload(args[0], opts), func(data any) string {
				return renderCreated(args[0], data)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.content, "content", "c", "", "Initial content of the note")
	cmd.Flags().StringVar(&opts.parentID, "parent-id", "", "ID of the parent note")
	cmd.Flags().StringSliceVarP(&opts.tags, "tags", "t", nil, "Tags to apply")

	return cmd
}

func createPayload(title string, opts createOptions) map[string]any {
	payload := map[string]any{"title": title}
	if opts.content != "" {
		payload["content"] = opts.content
	}
	if opts.parentID != "" {
		payload["parentId"] = opts.parentID
	}
	if len(opts.tags) > 0 {
		payload["tags"] = opts.tags
	}
	return payload
}

func renderCreated(title string, data any) string {
	id := shared.Field(object(data), "remId")
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("Created note: %s (ID: %s)", title, id)
}
