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

package daemon

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/remlink/internal/commands/shared"
	"github.com/tombee/remlink/internal/config"
	daemonctl "github.com/tombee/remlink/internal/daemon"
	"github.com/tombee/remlink/internal/log"
	remerrors "github.com/tombee/remlink/pkg/errors"
)

type startOptions struct {
	foreground bool
	spawned    bool
	wsPort     int
	logLevel   string
	logFile    string
}

// StartedOutput is printed once a background daemon is healthy.
type StartedOutput struct {
	Message     string `json:"message"`
	WSPort      int    `json:"wsPort"`
	ControlPort int    `json:"controlPort"`
}

func newStartCommand() *cobra.Command {
	var opts startOptions

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long: `Start the remlink daemon.

By default the daemon is detached into the background and this command
returns once its control endpoint answers health checks. Background output
goes to ~/.remlink/daemon.log.

With --foreground the daemon runs in this process until interrupted.`,
		Example: `  # Start in the background
  remlink daemon start

  # Run in the foreground with debug logging
  remlink daemon start --foreground --log-level debug

  # Use non-default ports
  remlink daemon start --ws-port 4002 --control-port 4100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, os.Args[1:], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.foreground, "foreground", "f", false, "Run in the foreground instead of detaching")
	cmd.Flags().IntVar(&opts.wsPort, "ws-port", 0, "WebSocket port the bridge plugin connects to (default 3002)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, silent (default silent in background, info in foreground)")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "Write logs to this file (default ~/.remlink/daemon.log in background)")
	cmd.Flags().BoolVar(&opts.spawned, "spawned", false, "Set by a background start on the daemon it launches")
	_ = cmd.Flags().MarkHidden("spawned")

	return cmd
}

func runStart(cmd *cobra.Command, argv []string, opts startOptions) error {
	cfg, err := loadStartConfig(opts)
	if err != nil {
		return err
	}

	if opts.foreground {
		return runForeground(cmd, cfg, argv, opts)
	}

	spinner := shared.NewSpinner()
	spinner.Start("Starting daemon")
	result, err := newController(cfg).Start(cmd.Context(), daemonctl.StartOptions{
		LogLevel:   opts.logLevel,
		LogFile:    opts.logFile,
		ConfigPath: shared.GetConfigPath(),
		Args:       argv,
	})
	spinner.Stop()
	if err != nil {
		return err
	}

	out := StartedOutput{
		Message:     "Daemon started",
		WSPort:      result.WSPort,
		ControlPort: result.ControlPort,
	}
	return shared.NewPrinter(cmd.OutOrStdout()).Print(cmd.Context(), out, func(any) string {
		return fmt.Sprintf("Daemon started (ws:%d, control:%d)", out.WSPort, out.ControlPort)
	})
}

func runForeground(cmd *cobra.Command, cfg *config.Config, argv []string, opts startOptions) error {
	logger, closeLog, err := foregroundLogger(cfg, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	ctl := newController(cfg, daemonctl.WithLogger(logger))
	_, err = ctl.Start(cmd.Context(), daemonctl.StartOptions{
		Foreground: true,
		Spawned:    opts.spawned,
		Args:       argv,
		OnReady: func(r *daemonctl.StartResult) {
			logger.Info("daemon ready",
				slog.Int("pid", r.PID),
				slog.Int("ws_port", r.WSPort),
				slog.Int("control_port", r.ControlPort))
		},
	})
	return err
}

// loadStartConfig applies the start flags on top of the loaded configuration.
func loadStartConfig(opts startOptions) (*config.Config, error) {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return nil, err
	}

	if opts.wsPort != 0 {
		if err := config.ValidatePort(opts.wsPort); err != nil {
			return nil, &remerrors.ValidationError{
				Field:      "ws-port",
				Message:    err.Error(),
				Suggestion: "Use a port between 1 and 65535",
			}
		}
		cfg.Daemon.WSPort = opts.wsPort
	}
	if cfg.Daemon.WSPort == cfg.Daemon.ControlPort {
		return nil, &remerrors.ValidationError{
			Field:      "ws-port",
			Message:    fmt.Sprintf("WebSocket and control ports must differ, both are %d", cfg.Daemon.WSPort),
			Suggestion: "Pass a different --ws-port or --control-port",
		}
	}

	if opts.logLevel != "" && !log.ValidLevel(opts.logLevel) {
		return nil, &remerrors.ValidationError{
			Field:      "log-level",
			Message:    fmt.Sprintf("unknown log level %q", opts.logLevel),
			Suggestion: "Use one of: trace, debug, info, warn, error, silent",
		}
	}
	return cfg, nil
}

// foregroundLogger builds the daemon logger. An explicit --log-level wins
// over the configured level, and --log-file replaces stderr.
func foregroundLogger(cfg *config.Config, opts startOptions, stderr io.Writer) (*slog.Logger, func(), error) {
	lc := &log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		Output:    stderr,
		AddSource: cfg.Log.AddSource,
	}
	if opts.logLevel != "" {
		lc.Level = opts.logLevel
	}

	closeLog := func() {}
	if opts.logFile != "" {
		f, err := log.OpenFile(opts.logFile)
		if err != nil {
			return nil, nil, err
		}
		lc.Output = f
		closeLog = func() { _ = f.Close() }
	}
	return log.New(lc), closeLog, nil
}
