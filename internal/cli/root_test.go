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
	"errors"
	"testing"

	remerrors "github.com/tombee/remlink/pkg/errors"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "remlink" {
		t.Errorf("expected use 'remlink', got %q", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("expected short description to be set")
	}

	if cmd.Long == "" {
		t.Error("expected long description to be set")
	}

	if !cmd.SilenceErrors || !cmd.SilenceUsage {
		t.Error("expected errors and usage to be silenced")
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"control-port", "text", "jq", "config"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("%s flag not registered", name)
		}
	}
}

func TestInvalidJQRejected(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("REMLINK_DATA_DIR", t.TempDir())

	_, err := runRoot(t, "--jq", ".foo | | .bar", "version")
	if err == nil {
		t.Fatal("expected invalid jq expression to fail")
	}

	var ve *remerrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %T: %v", err, err)
	}
	if ve.Field != "jq" {
		t.Errorf("expected field 'jq', got %q", ve.Field)
	}
}

func TestValidJQAccepted(t *testing.T) {
	output, err := runRoot(t, "--jq", ".version", "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if output != "\"dev\"\n" {
		t.Errorf("expected filtered version, got %q", output)
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2025-12-22")
	defer SetVersion("dev", "unknown", "unknown")

	v, c, b := GetVersion()
	if v != "1.2.3" {
		t.Errorf("expected version '1.2.3', got %q", v)
	}
	if c != "abc123" {
		t.Errorf("expected commit 'abc123', got %q", c)
	}
	if b != "2025-12-22" {
		t.Errorf("expected build date '2025-12-22', got %q", b)
	}
}
