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
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/remlink/internal/cli/format"
	"github.com/tombee/remlink/internal/commands/shared"
	remerrors "github.com/tombee/remlink/pkg/errors"
)

func newReadCommand() *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "read <rem-id>",
		Short: "Read a note",
		Long: `Read a note and its children.

In text mode the note content is rendered as markdown when stdout is a
terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if depth < 0 {
				return &remerrors.ValidationError{
					Field:      "depth",
					Message:    fmt.Sprintf("depth must not be negative, got %d", depth),
					Suggestion: "Use --depth 0 to read only the note itself",
				}
			}
			tty := format.IsTerminal(cmd.OutOrStdout())
			payload := map[string]any{"remId": args[0], "depth": depth}
			return execute(cmd, ActionReadNote, payload, func(data any) string {
				return renderNote(data, tty)
			})
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", 1, "Levels of children to include")

	return cmd
}

func renderNote(data any, tty bool) string {
	note := object(data)

	var lines []string
	if title := shared.Field(note, "title"); title != "" {
		lines = append(lines, shared.RenderLabel("Title", title))
	}
	if id := shared.Field(note, "remId"); id != "" {
		lines = append(lines, shared.RenderLabel("ID", id))
	}
	if content := shared.Field(note, "content"); content != "" {
		rendered, err := format.FormatMarkdown(content, tty)
		if err != nil {
			rendered = format.SanitizeANSI(content)
		}
		lines = append(lines, shared.RenderLabel("Content", rendered))
	}
	if tags := stringList(note["tags"]); len(tags) > 0 {
		lines = append(lines, shared.RenderLabel("Tags", strings.Join(tags, ", ")))
	}
	if children, ok := note["children"].([]any); ok {
		lines = append(lines, shared.RenderLabel("Children", fmt.Sprint(len(children))))
	}
	if len(lines) == 0 {
		return shared.KeyValueText(data)
	}
	return strings.Join(lines, "\n")
}
