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
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/tombee/remlink/internal/commands/shared"
	remerrors "github.com/tombee/remlink/pkg/errors"
)

const maxDetailLength = 80

var typeTags = map[string]string{
	"document":      "[doc] ",
	"dailyDocument": "[daily] ",
	"concept":       "[concept] ",
	"descriptor":    "[desc] ",
	"portal":        "[portal] ",
}

type searchOptions struct {
	limit          int
	includeContent bool
}

func newSearchCommand() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Example: `  remlink search "project alpha" --limit 10 --text
  remlink search alpha --jq '.results[].remId'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.limit < 1 {
				return &remerrors.ValidationError{
					Field:      "limit",
					Message:    fmt.Sprintf("limit must be positive, got %d", opts.limit),
					Suggestion: "Pass --limit 1 or more",
				}
			}
			payload := map[string]any{"query": args[0], "limit": opts.limit}
			if opts.includeContent {
				payload["includeContent"] = true
			}
			return execute(cmd, ActionSearch, payload, renderSearch)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "l", 50, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.includeContent, "include-content", false, "Include note content in results")

	return cmd
}

func renderSearch(data any) string {
	results, _ := object(data)["results"].([]any)
	if len(results) == 0 {
		return "No results found."
	}

	lines := make([]string, 0, len(results))
	for i, item := range results {
		r := object(item)
		title := shared.Field(r, "title")
		if title == "" {
			title = "(untitled)"
		}
		detail := ""
		if d := shared.Field(r, "detail"); d != "" {
			detail = " — " + truncate(d, maxDetailLength)
		}
		lines = append(lines, fmt.Sprintf("%d. %s%s%s [%s]",
			i+1, typeTags[shared.Field(r, "remType")], title, detail, shared.Field(r, "remId")))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
