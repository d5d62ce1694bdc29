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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/tombee/remlink/internal/client"
	"github.com/tombee/remlink/internal/config"
	"github.com/tombee/remlink/internal/lifecycle"
	internallog "github.com/tombee/remlink/internal/log"
)

const (
	// DefaultStopGrace is how long Stop waits after SIGTERM before removing the record.
	DefaultStopGrace = 500 * time.Millisecond

	startLockTimeout = 10 * time.Second
	controlTimeout   = 2 * time.Second
)

// Spawner starts a detached daemon process.
type Spawner interface {
	SpawnDetached(binary string, args []string, logPath string) (int, error)
}

// Controller starts, stops and queries the daemon from a CLI process.
type Controller struct {
	cfg    *config.Config
	logger *slog.Logger

	records *lifecycle.RecordStore
	audit   *lifecycle.LifecycleLogger
	spawner Spawner

	executable     func() (string, error)
	verifyProcess  func(pid int) bool
	healthInterval time.Duration
	healthAttempts int
	stopGrace      time.Duration
	version        string
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithSpawner replaces the detached process spawner.
func WithSpawner(s Spawner) ControllerOption {
	return func(c *Controller) { c.spawner = s }
}

// WithExecutable replaces the lookup of the binary to spawn.
func WithExecutable(fn func() (string, error)) ControllerOption {
	return func(c *Controller) { c.executable = fn }
}

// WithProcessVerifier sets the check run before a pid is signalled.
func WithProcessVerifier(fn func(pid int) bool) ControllerOption {
	return func(c *Controller) { c.verifyProcess = fn }
}

// WithHealthPolling overrides the post-spawn health polling cadence.
func WithHealthPolling(interval time.Duration, attempts int) ControllerOption {
	return func(c *Controller) {
		c.healthInterval = interval
		c.healthAttempts = attempts
	}
}

// WithStopGrace overrides the wait after SIGTERM.
func WithStopGrace(d time.Duration) ControllerOption {
	return func(c *Controller) { c.stopGrace = d }
}

// WithLogger sets the logger used by foreground daemons.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// WithVersion sets the version reported by foreground daemons.
func WithVersion(v string) ControllerOption {
	return func(c *Controller) { c.version = v }
}

// NewController creates a controller for the daemon described by cfg.
func NewController(cfg *config.Config, opts ...ControllerOption) *Controller {
	c := &Controller{
		cfg:            cfg,
		logger:         slog.Default(),
		records:        lifecycle.NewRecordStore(cfg.Daemon.PIDFile),
		audit:          lifecycle.NewLifecycleLogger(cfg.Daemon.LifecycleLog),
		spawner:        lifecycle.NewSpawner(),
		executable:     os.Executable,
		verifyProcess:  lifecycle.IsDaemonProcess,
		healthInterval: lifecycle.DefaultHealthInterval,
		healthAttempts: lifecycle.DefaultHealthAttempts,
		stopGrace:      DefaultStopGrace,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.records.OnStale = func(rec *lifecycle.Record) {
		c.warnAudit(c.audit.LogStalePID(rec))
	}
	return c
}

// StartOptions configures Start.
type StartOptions struct {
	// Foreground runs the daemon in this process until it is stopped.
	Foreground bool

	// Spawned marks a foreground daemon launched by a background start.
	// The parent holds the start lock until the child is healthy, so the
	// child must not wait for it.
	Spawned bool

	// LogLevel is passed to a background daemon.
	LogLevel string

	// LogFile receives background daemon output. Defaults to the configured log file.
	LogFile string

	// ConfigPath is passed to a background daemon when set.
	ConfigPath string

	// Args are recorded in the lifecycle log.
	Args []string

	// OnReady is called once a foreground daemon is serving.
	OnReady func(*StartResult)
}

// StartResult describes a started daemon.
type StartResult struct {
	PID         int
	WSPort      int
	ControlPort int
}

// Start launches the daemon. Concurrent starts are serialized on the start
// lock so only one of them can pass the already-running check. A background
// start keeps the lock until its child answers health checks.
func (c *Controller) Start(ctx context.Context, opts StartOptions) (*StartResult, error) {
	d := c.cfg.Daemon

	var lock *flock.Flock
	if !opts.Spawned {
		var err error
		lock, err = lifecycle.LockWithTimeout(ctx, d.StartLockFile(), startLockTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire start lock: %w", err)
		}
	}
	unlock := func() {
		if lock != nil {
			_ = lock.Unlock()
			lock = nil
		}
	}
	defer unlock()

	c.warnAudit(c.audit.LogStart(opts.Args, d.WSPort, d.ControlPort))

	if rec, ok := c.records.GetRunningDaemon(); ok {
		c.warnAudit(c.audit.LogAlreadyRunning(rec))
		return nil, &AlreadyRunningError{PID: rec.PID, WSPort: rec.WSPort, ControlPort: rec.ControlPort}
	}

	if opts.Foreground {
		return c.runForeground(ctx, opts, unlock)
	}
	return c.startBackground(ctx, opts)
}

func (c *Controller) runForeground(ctx context.Context, opts StartOptions, unlock func()) (*StartResult, error) {
	// SIGHUP must not kill a daemon whose terminal goes away.
	signal.Ignore(syscall.SIGHUP)
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	sup := NewSupervisor(Options{Config: c.cfg, Logger: c.logger, Version: c.version})
	if err := sup.Start(sigCtx); err != nil {
		c.warnAudit(c.audit.LogStartFailure(err))
		return nil, err
	}
	unlock()

	result := &StartResult{
		PID:         os.Getpid(),
		WSPort:      c.cfg.Daemon.WSPort,
		ControlPort: c.cfg.Daemon.ControlPort,
	}
	c.warnAudit(c.audit.LogStartSuccess(result.PID, 0, time.Since(start)))
	if opts.OnReady != nil {
		opts.OnReady(result)
	}

	if err := sup.Serve(sigCtx); err != nil {
		return result, err
	}
	return result, nil
}

func (c *Controller) startBackground(ctx context.Context, opts StartOptions) (*StartResult, error) {
	d := c.cfg.Daemon

	binary, err := c.executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	logPath := opts.LogFile
	if logPath == "" {
		logPath = d.LogFile
	}

	start := time.Now()
	pid, err := c.spawner.SpawnDetached(binary, c.childArgs(opts, logPath), logPath)
	if err != nil {
		c.warnAudit(c.audit.LogStartFailure(err))
		return nil, fmt.Errorf("failed to spawn daemon: %w", err)
	}

	endpoint := fmt.Sprintf("http://%s/health", d.ControlAddr())
	checker := lifecycle.NewHealthChecker(endpoint).WithPolling(c.healthInterval, c.healthAttempts)

	attempts, err := checker.WaitUntilHealthy(ctx)
	if err != nil {
		if c.verifyProcess(pid) {
			_ = lifecycle.SendSignal(pid, syscall.SIGTERM)
		}
		c.warnAudit(c.audit.LogHealthCheckFailed(endpoint, attempts, err))
		c.warnAudit(c.audit.LogStartFailure(err))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		wait := c.healthInterval * time.Duration(c.healthAttempts)
		return nil, fmt.Errorf("%w within %v. Check logs at %s", ErrStartTimeout, wait, logPath)
	}

	c.warnAudit(c.audit.LogStartSuccess(pid, attempts, time.Since(start)))
	return &StartResult{PID: pid, WSPort: d.WSPort, ControlPort: d.ControlPort}, nil
}

// childArgs builds the command line of a background daemon.
func (c *Controller) childArgs(opts StartOptions, logPath string) []string {
	d := c.cfg.Daemon
	level := opts.LogLevel
	if level == "" {
		level = "silent"
	}

	args := []string{
		"daemon", "start", "--foreground", "--spawned",
		"--ws-port", strconv.Itoa(d.WSPort),
		"--control-port", strconv.Itoa(d.ControlPort),
		"--log-level", level,
	}
	if logPath != "" {
		args = append(args, "--log-file", logPath)
	}
	if opts.ConfigPath != "" {
		args = append(args, "--config", opts.ConfigPath)
	}
	return args
}

// Stop asks the recorded daemon to shut down and escalates to SIGTERM
// when it does not exit within the shutdown timeout. SIGTERM is only sent
// to a pid whose command line still looks like a remlink daemon; a reused
// pid is left alone and the record is dropped.
func (c *Controller) Stop(ctx context.Context) error {
	rec, ok := c.records.GetRunningDaemon()
	if !ok {
		return ErrNotRunning
	}

	c.warnAudit(c.audit.LogStop(rec.PID))
	start := time.Now()

	if cl, err := client.New(c.cfg.Daemon.Host, rec.ControlPort, client.WithTimeout(controlTimeout)); err == nil {
		// Delivery failures are covered by the SIGTERM fallback.
		_ = cl.Shutdown(ctx)
	}

	forced := false
	err := lifecycle.WaitForExit(ctx, rec.PID, c.cfg.Daemon.ShutdownTimeout, lifecycle.DefaultExitPollInterval)
	switch {
	case err == nil:
	case errors.Is(err, lifecycle.ErrShutdownTimeout):
		if c.verifyProcess(rec.PID) {
			if sigErr := lifecycle.SendSignal(rec.PID, syscall.SIGTERM); sigErr != nil && !errors.Is(sigErr, lifecycle.ErrProcessNotRunning) {
				c.warnAudit(c.audit.LogStopFailure(rec.PID, sigErr))
			}
			forced = true
		}
		select {
		case <-time.After(c.stopGrace):
		case <-ctx.Done():
		}
	default:
		// Cancelled while waiting. Keep the record only if the daemon is
		// still alive so a later stop can finish the job.
		if lifecycle.IsProcessRunning(rec.PID) {
			c.warnAudit(c.audit.LogStopFailure(rec.PID, err))
			return err
		}
	}

	c.records.Remove()
	c.warnAudit(c.audit.LogStopSuccess(rec.PID, time.Since(start), forced))
	return nil
}

// Status returns the health snapshot of the recorded daemon.
func (c *Controller) Status(ctx context.Context) (*client.HealthResponse, error) {
	rec, ok := c.records.GetRunningDaemon()
	if !ok {
		return nil, ErrNotRunning
	}

	cl, err := client.New(c.cfg.Daemon.Host, rec.ControlPort, client.WithTimeout(controlTimeout))
	if err != nil {
		return nil, err
	}
	health, err := cl.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	return health, nil
}

func (c *Controller) warnAudit(err error) {
	if err != nil {
		c.logger.Warn("failed to write lifecycle log", internallog.Error(err))
	}
}
