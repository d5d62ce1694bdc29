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

package shared

import (
	"github.com/spf13/cobra"

	"github.com/tombee/remlink/internal/config"
	remerrors "github.com/tombee/remlink/pkg/errors"
)

var (
	controlPortFlag int
	textFlag        bool
	jqFlag          string
	configFlag      string

	// Build-time version information
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// RegisterGlobalFlags binds the global flags to cmd's persistent flags.
func RegisterGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.IntVar(&controlPortFlag, "control-port", 0, "Control port of the daemon (default 3100)")
	flags.BoolVar(&textFlag, "text", false, "Print human-readable text instead of JSON")
	flags.StringVar(&jqFlag, "jq", "", "Filter JSON output with a jq expression")
	flags.StringVar(&configFlag, "config", "", "Path to config file (default: ~/.config/remlink/config.yaml)")
}

// SetVersion sets the version information.
func SetVersion(v, c, b string) {
	version = v
	commit = c
	buildDate = b
}

// GetVersion returns version information.
func GetVersion() (string, string, string) {
	return version, commit, buildDate
}

// GetControlPort returns the --control-port override, or 0 when unset.
func GetControlPort() int {
	return controlPortFlag
}

// GetText reports whether --text output was requested.
func GetText() bool {
	return textFlag
}

// GetJQ returns the --jq filter expression.
func GetJQ() string {
	return jqFlag
}

// GetConfigPath returns the --config path.
func GetConfigPath() string {
	return configFlag
}

// LoadConfig loads configuration from --config, the environment and the
// --control-port override, in increasing precedence.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if controlPortFlag != 0 {
		if err := config.ValidatePort(controlPortFlag); err != nil {
			return nil, &remerrors.ValidationError{
				Field:      "control-port",
				Message:    err.Error(),
				Suggestion: "Use a port between 1 and 65535",
			}
		}
		cfg.Daemon.ControlPort = controlPortFlag
	}
	return cfg, nil
}

// ResetFlagsForTest restores the global flags to their zero values.
func ResetFlagsForTest() {
	controlPortFlag = 0
	textFlag = false
	jqFlag = ""
	configFlag = ""
}
