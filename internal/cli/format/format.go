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

// Package format renders command results for the terminal.
package format

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
)

const (
	maxJSONSize     = 10 * 1024 * 1024 // 10MB
	maxMarkdownSize = 5 * 1024 * 1024  // 5MB

	markdownWidth = 100
)

// ansiEscapeRegex matches ANSI escape sequences.
var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07]*\x07`)

// SanitizeANSI removes escape sequences from note text before it is printed.
func SanitizeANSI(s string) string {
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

func enforceSize(n int, format string, maxSize int) error {
	if n > maxSize {
		return fmt.Errorf("output size (%d bytes) exceeds maximum for %s format (%d bytes)", n, format, maxSize)
	}
	return nil
}

// FormatMarkdown renders note content as Markdown when stdout is a terminal
// and returns the sanitized source otherwise. Rendering failures fall back to
// the source text.
func FormatMarkdown(content string, isTTY bool) (string, error) {
	if err := enforceSize(len(content), "markdown", maxMarkdownSize); err != nil {
		return "", err
	}

	clean := SanitizeANSI(content)
	if !isTTY || strings.TrimSpace(clean) == "" {
		return clean, nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(markdownWidth),
	)
	if err != nil {
		return clean, nil
	}

	rendered, err := renderer.Render(clean)
	if err != nil {
		return clean, nil
	}
	return strings.TrimRight(rendered, "\n"), nil
}

// FormatJSON pretty-prints v with 2-space indentation. json.RawMessage and
// []byte values are re-indented rather than re-encoded.
func FormatJSON(v any) (string, error) {
	var raw []byte
	switch val := v.(type) {
	case json.RawMessage:
		raw = val
	case []byte:
		raw = val
	}

	if raw != nil {
		if len(raw) == 0 {
			return "null", nil
		}
		if err := enforceSize(len(raw), "json", maxJSONSize); err != nil {
			return "", err
		}
		var obj any
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", fmt.Errorf("invalid JSON: %w", err)
		}
		v = obj
	}

	formatted, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format JSON: %w", err)
	}
	if err := enforceSize(len(formatted), "json", maxJSONSize); err != nil {
		return "", err
	}
	return string(formatted), nil
}
