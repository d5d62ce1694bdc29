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

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tombee/remlink/internal/commands/shared"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	shared.ResetFlagsForTest()
	t.Cleanup(shared.ResetFlagsForTest)

	rootCmd := NewRootCommand()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestHelpCommandJSON_ListsCommands(t *testing.T) {
	output, err := runRoot(t, "help", "--json")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal([]byte(output), &resp); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\nOutput: %s", err, output)
	}

	if resp.Command != nil {
		t.Errorf("Expected command to be nil for list, got %+v", resp.Command)
	}
	names := map[string]bool{}
	for _, c := range resp.Commands {
		names[c.Name] = true
	}
	for _, want := range []string{"daemon", "status", "create", "read", "update", "search", "journal", "version"} {
		if !names[want] {
			t.Errorf("Expected %q in command list", want)
		}
	}
	if names["help"] {
		t.Error("help should not list itself")
	}
	if resp.ExitCodes["2"] != "daemon not running" {
		t.Errorf("unexpected exit codes: %v", resp.ExitCodes)
	}

	var global []string
	for _, f := range resp.GlobalFlags {
		global = append(global, f.Name)
	}
	for _, want := range []string{"control-port", "text", "jq", "config"} {
		if !strings.Contains(strings.Join(global, ","), want) {
			t.Errorf("Expected global flag %q, got %v", want, global)
		}
	}
}

func TestHelpCommandJSON_SingleCommand(t *testing.T) {
	output, err := runRoot(t, "help", "daemon", "--json")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal([]byte(output), &resp); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\nOutput: %s", err, output)
	}
	if resp.Command == nil {
		t.Fatal("Expected command metadata, got nil")
	}
	if resp.Command.Name != "daemon" {
		t.Errorf("Expected command name 'daemon', got %s", resp.Command.Name)
	}
	if resp.Command.Group != "system" {
		t.Errorf("Expected group 'system', got %s", resp.Command.Group)
	}
	if !strings.Contains(strings.Join(resp.Command.Subcommands, ","), "start") {
		t.Errorf("Expected start subcommand, got %v", resp.Command.Subcommands)
	}
	if len(resp.Commands) > 0 {
		t.Errorf("Expected commands to be empty for single command, got %d", len(resp.Commands))
	}
}

func TestHelpCommandJSON_Flags(t *testing.T) {
	output, err := runRoot(t, "help", "search", "--json")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}

	var resp HelpResponse
	if err := json.Unmarshal([]byte(output), &resp); err != nil {
		t.Fatalf("Failed to parse JSON output: %v", err)
	}

	var limit *FlagMetadata
	for i := range resp.Command.Flags {
		if resp.Command.Flags[i].Name == "limit" {
			limit = &resp.Command.Flags[i]
		}
	}
	if limit == nil {
		t.Fatalf("Expected limit flag, got %+v", resp.Command.Flags)
	}
	if limit.Shorthand != "l" || limit.Default != "50" {
		t.Errorf("unexpected limit metadata: %+v", limit)
	}
}

func TestHelpCommandText(t *testing.T) {
	output, err := runRoot(t, "help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !strings.Contains(output, "remlink daemon start") {
		t.Errorf("Expected long description in help, got: %s", output)
	}
	if json.Valid([]byte(output)) {
		t.Error("Expected plain text help")
	}
}

func TestHelpCommandUnknown(t *testing.T) {
	_, err := runRoot(t, "help", "nonexistent")
	if err == nil {
		t.Fatal("Expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "nonexistent") {
		t.Errorf("unexpected error: %v", err)
	}
}
