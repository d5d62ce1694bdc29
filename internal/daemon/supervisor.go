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

// Package daemon runs the remlink daemon and manages it as a background process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tombee/remlink/internal/bridge"
	"github.com/tombee/remlink/internal/config"
	"github.com/tombee/remlink/internal/control"
	"github.com/tombee/remlink/internal/lifecycle"
	internallog "github.com/tombee/remlink/internal/log"
	"github.com/tombee/remlink/internal/tracing"
)

// Options configures a Supervisor.
type Options struct {
	Config  *config.Config
	Logger  *slog.Logger
	Version string
}

// Supervisor owns the bridge server, the control endpoint and the liveness
// record for one daemon process.
type Supervisor struct {
	cfg     *config.Config
	base    *slog.Logger
	logger  *slog.Logger
	version string

	registry  *prometheus.Registry
	telemetry *tracing.Provider
	lock      *flock.Flock
	bridge    *bridge.Server
	control   *control.Server
	records   *lifecycle.RecordStore

	mu      sync.Mutex
	started bool

	shutdownOnce sync.Once
	shutdownCh   chan struct{}

	stopOnce sync.Once
	stopErr  error
	done     chan struct{}
}

// NewSupervisor creates a supervisor. Nothing is bound until Start.
func NewSupervisor(opts Options) *Supervisor {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Supervisor{
		cfg:        cfg,
		base:       logger,
		logger:     internallog.WithComponent(logger, "daemon"),
		version:    opts.Version,
		records:    lifecycle.NewRecordStore(cfg.Daemon.PIDFile),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start acquires the instance lock, starts both listeners and publishes
// the liveness record. On failure everything already started is undone.
func (s *Supervisor) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("daemon already started")
	}

	d := s.cfg.Daemon

	defer func() {
		if err != nil {
			s.unwind()
		}
	}()

	s.lock, err = lifecycle.TryLock(d.LockFile())
	if err != nil {
		if errors.Is(err, lifecycle.ErrLocked) {
			return fmt.Errorf("another daemon holds %s: %w", d.LockFile(), err)
		}
		return err
	}

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.telemetry, err = tracing.NewProvider(tracing.Config{
		Enabled:        s.cfg.Tracing.Enabled,
		Output:         s.cfg.Tracing.Output,
		ServiceName:    "remlink",
		ServiceVersion: s.version,
		Registerer:     s.registry,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	s.bridge = bridge.NewServer(&bridge.ServerConfig{
		Host:           d.Host,
		Port:           d.WSPort,
		RequestTimeout: d.RequestTimeout,
		Logger:         s.base,
		Registerer:     s.registry,
		Tracer:         s.telemetry.Tracer("github.com/tombee/remlink/internal/bridge"),
	})
	s.bridge.OnConnect(func() { s.logger.Info("bridge connected") })
	s.bridge.OnDisconnect(func() { s.logger.Info("bridge disconnected") })
	if err = s.bridge.Start(ctx); err != nil {
		return err
	}

	startedAt := time.Now()
	s.control = control.NewServer(control.ServerConfig{
		Host:           d.Host,
		Port:           d.ControlPort,
		WSPort:         d.WSPort,
		Bridge:         s.bridge,
		Logger:         s.base,
		MetricsHandler: promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}),
		Meter:          s.telemetry.Meter("github.com/tombee/remlink/internal/control"),
		StartedAt:      startedAt,
	})
	s.control.OnShutdown(s.requestShutdown)
	if err = s.control.Start(ctx); err != nil {
		return err
	}

	if err = s.records.Write(&lifecycle.Record{
		PID:         os.Getpid(),
		WSPort:      d.WSPort,
		ControlPort: d.ControlPort,
		StartedAt:   startedAt,
	}); err != nil {
		return fmt.Errorf("failed to write liveness record: %w", err)
	}

	s.started = true
	s.logger.Info("remlink daemon started",
		slog.Int("pid", os.Getpid()),
		slog.Int("ws_port", d.WSPort),
		slog.Int("control_port", d.ControlPort),
		slog.String("version", s.version))
	return nil
}

// unwind releases whatever a failed Start acquired.
func (s *Supervisor) unwind() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if s.control != nil {
		_ = s.control.Stop(ctx)
	}
	if s.bridge != nil {
		_ = s.bridge.Stop(ctx)
	}
	if s.telemetry != nil {
		_ = s.telemetry.Shutdown(ctx)
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	s.control, s.bridge, s.telemetry, s.lock = nil, nil, nil, nil
}

// Stop shuts the control endpoint and bridge down, removes the liveness
// record and releases the lock. Concurrent callers wait for the first.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		defer close(s.done)

		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if !started {
			return
		}

		s.logger.Info("remlink daemon stopping")

		var errs []error
		if err := s.control.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := s.bridge.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		s.records.Remove()
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Warn("failed to flush telemetry", internallog.Error(err))
		}
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release lock: %w", err))
		}

		s.stopErr = errors.Join(errs...)
		s.logger.Info("remlink daemon stopped")
	})
	return s.stopErr
}

// Run starts the daemon and blocks until ctx is cancelled or a shutdown is
// requested through the control endpoint. Both paths end in Stop.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve blocks on a started supervisor until ctx is cancelled or a shutdown
// is requested, then stops it.
func (s *Supervisor) Serve(ctx context.Context) error {
	select {
	case <-ctx.Done():
		s.logger.Info("received stop signal")
	case <-s.shutdownCh:
	case <-s.done:
		return s.stopErr
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Daemon.ShutdownTimeout+2*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

// Done is closed once Stop has completed.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

func (s *Supervisor) requestShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}
