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

// Package config loads daemon and CLI settings from defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	internallog "github.com/tombee/remlink/internal/log"
	remerrors "github.com/tombee/remlink/pkg/errors"
)

// Default ports and timings.
const (
	DefaultHost            = "127.0.0.1"
	DefaultWSPort          = 3002
	DefaultControlPort     = 3100
	DefaultRequestTimeout  = 5 * time.Second
	DefaultShutdownTimeout = 3 * time.Second
)

// Config represents the complete remlink configuration.
type Config struct {
	Daemon  DaemonConfig  `yaml:"daemon"`
	Log     LogConfig     `yaml:"log"`
	Tracing TracingConfig `yaml:"tracing"`
}

// DaemonConfig configures the companion daemon and where it keeps state.
type DaemonConfig struct {
	// Host is the loopback address both listeners bind to.
	Host string `yaml:"host,omitempty"`

	// WSPort is the port the bridge peer connects to.
	WSPort int `yaml:"ws_port,omitempty"`

	// ControlPort is the port CLI invocations talk HTTP to.
	ControlPort int `yaml:"control_port,omitempty"`

	// RequestTimeout bounds a single bridge request.
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// ShutdownTimeout bounds how long stop waits before sending SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`

	// DataDir holds the liveness record, locks and logs.
	DataDir string `yaml:"data_dir,omitempty"`

	// PIDFile is the liveness record path. Defaults to DataDir/daemon.pid.
	PIDFile string `yaml:"pid_file,omitempty"`

	// LogFile receives daemon output when started in the background.
	// Defaults to DataDir/daemon.log.
	LogFile string `yaml:"log_file,omitempty"`

	// LifecycleLog is the JSON lines audit trail of start/stop events.
	// Defaults to DataDir/lifecycle.log.
	LifecycleLog string `yaml:"lifecycle_log,omitempty"`
}

// LogConfig configures the daemon logger.
type LogConfig struct {
	Level     string `yaml:"level,omitempty"`
	Format    string `yaml:"format,omitempty"`
	AddSource bool   `yaml:"add_source,omitempty"`
}

// TracingConfig configures span export for bridge requests.
type TracingConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// Output is the file spans are written to as JSON lines.
	// Defaults to DataDir/traces.jsonl.
	Output string `yaml:"output,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			Host:            DefaultHost,
			WSPort:          DefaultWSPort,
			ControlPort:     DefaultControlPort,
			RequestTimeout:  DefaultRequestTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			DataDir:         defaultDataDir(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads configuration from the given path. An empty path means the
// default location, which may be absent. An explicit path must exist.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	path := configPath
	if path == "" {
		if p, err := ConfigPath(); err == nil {
			path = p
		}
	}

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			if configPath != "" || !errors.Is(err, fs.ErrNotExist) {
				return nil, &remerrors.ConfigError{
					Key:    "config_file",
					Reason: fmt.Sprintf("failed to load from %s", path),
					Cause:  err,
				}
			}
		}
	}

	cfg.loadFromEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Daemon.Host == "" {
		c.Daemon.Host = defaults.Daemon.Host
	}
	if c.Daemon.WSPort == 0 {
		c.Daemon.WSPort = defaults.Daemon.WSPort
	}
	if c.Daemon.ControlPort == 0 {
		c.Daemon.ControlPort = defaults.Daemon.ControlPort
	}
	if c.Daemon.RequestTimeout == 0 {
		c.Daemon.RequestTimeout = defaults.Daemon.RequestTimeout
	}
	if c.Daemon.ShutdownTimeout == 0 {
		c.Daemon.ShutdownTimeout = defaults.Daemon.ShutdownTimeout
	}
	if c.Daemon.DataDir == "" {
		c.Daemon.DataDir = defaults.Daemon.DataDir
	}
	c.Daemon.DataDir = expandHome(c.Daemon.DataDir)

	if c.Daemon.PIDFile == "" {
		c.Daemon.PIDFile = filepath.Join(c.Daemon.DataDir, "daemon.pid")
	}
	if c.Daemon.LogFile == "" {
		c.Daemon.LogFile = filepath.Join(c.Daemon.DataDir, "daemon.log")
	}
	if c.Daemon.LifecycleLog == "" {
		c.Daemon.LifecycleLog = filepath.Join(c.Daemon.DataDir, "lifecycle.log")
	}
	c.Daemon.PIDFile = expandHome(c.Daemon.PIDFile)
	c.Daemon.LogFile = expandHome(c.Daemon.LogFile)
	c.Daemon.LifecycleLog = expandHome(c.Daemon.LifecycleLog)

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}

	if c.Tracing.Output == "" {
		c.Tracing.Output = filepath.Join(c.Daemon.DataDir, "traces.jsonl")
	}
	c.Tracing.Output = expandHome(c.Tracing.Output)
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(expandHome(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("REMLINK_HOST"); val != "" {
		c.Daemon.Host = val
	}
	if val := os.Getenv("REMLINK_WS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Daemon.WSPort = port
		}
	}
	if val := os.Getenv("REMLINK_CONTROL_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Daemon.ControlPort = port
		}
	}
	if val := os.Getenv("REMLINK_REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Daemon.RequestTimeout = d
		}
	}
	if val := os.Getenv("REMLINK_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Daemon.ShutdownTimeout = d
		}
	}
	if val := os.Getenv("REMLINK_DATA_DIR"); val != "" {
		c.Daemon.DataDir = val
	}
	if val := os.Getenv("REMLINK_PID_FILE"); val != "" {
		c.Daemon.PIDFile = val
	}

	if val := os.Getenv("REMLINK_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	} else if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}

	if val := os.Getenv("REMLINK_TRACING"); val != "" {
		c.Tracing.Enabled = val == "1" || strings.ToLower(val) == "true"
	}
}

// Validate checks port ranges, timeouts and log settings.
func (c *Config) Validate() error {
	var errs []string

	if err := ValidatePort(c.Daemon.WSPort); err != nil {
		errs = append(errs, fmt.Sprintf("daemon.ws_port %v", err))
	}
	if err := ValidatePort(c.Daemon.ControlPort); err != nil {
		errs = append(errs, fmt.Sprintf("daemon.control_port %v", err))
	}
	if c.Daemon.WSPort == c.Daemon.ControlPort {
		errs = append(errs, fmt.Sprintf("daemon.ws_port and daemon.control_port must differ, both are %d", c.Daemon.WSPort))
	}
	if c.Daemon.RequestTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("daemon.request_timeout must be positive, got %v", c.Daemon.RequestTimeout))
	}
	if c.Daemon.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("daemon.shutdown_timeout must be positive, got %v", c.Daemon.ShutdownTimeout))
	}

	if !internallog.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error, silent], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true, "auto": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text, auto], got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return &remerrors.ConfigError{
			Key:    "validation",
			Reason: strings.Join(errs, "; "),
		}
	}
	return nil
}

// ValidatePort rejects ports outside 1..65535.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be between 1 and 65535, got %d", port)
	}
	return nil
}

// LockFile is held by the running daemon for its whole lifetime.
func (c *DaemonConfig) LockFile() string {
	return filepath.Join(c.DataDir, "daemon.lock")
}

// StartLockFile serializes concurrent start commands.
func (c *DaemonConfig) StartLockFile() string {
	return filepath.Join(c.DataDir, "start.lock")
}

// ControlAddr is the host:port of the control endpoint.
func (c *DaemonConfig) ControlAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.ControlPort)
}

// defaultDataDir returns ~/.remlink, falling back to the temp dir when the
// home directory cannot be resolved.
func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "remlink")
	}
	return filepath.Join(homeDir, ".remlink")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
