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
)

type updateOptions struct {
	title      string
	append     string
	addTags    []string
	removeTags []string
}

func newUpdateCommand() *cobra.Command {
	var opts updateOptions

	cmd := &cobra.Command{
		Use:   "update <rem-id>",
		Short: "Update a note",
		Example: `  remlink update abc123 --title "New title"
  remlink update abc123 --append "Another line" --add-tags done --remove-tags todo`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remID := args[0]
			return execute(cmd, ActionUpdateNote, updatePayload(remID, opts), func(any) string {
				return fmt.Sprintf("Updated note %s", remID)
			})
		},
	}

	cmd.Flags().StringVar(&opts.title, "title", "", "New title")
	cmd.Flags().StringVar(&opts.append, "append", "", "Content to append")
	cmd.Flags().StringSliceVar(&opts.addTags, "add-tags", nil, "Tags to add")
	cmd.Flags().StringSliceVar(&opts.removeTags, "remove-tags", nil, "Tags to remove")

	return cmd
}

func updatePayload(remID string, opts updateOptions) map[string]any {
	payload := map[string]any{"remId": remID}
	if opts.title != "" {
		payload["title"] = opts.title
	}
	if opts.append != "" {
		payload["appendContent"] = opts.append
	}
	if len(opts.addTags) > 0 {
		payload["addTags"] = opts.addTags
	}
	if len(opts.removeTags) > 0 {
		payload["removeTags"] = opts.removeTags
	}
	return payload
}
