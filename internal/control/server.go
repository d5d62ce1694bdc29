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

// Package control serves the daemon's local HTTP control endpoint.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/tombee/remlink/internal/bridge"
	"github.com/tombee/remlink/internal/daemon/httputil"
	"github.com/tombee/remlink/internal/log"
	remerrors "github.com/tombee/remlink/pkg/errors"
)

// Error codes carried in failed execute responses. They double as CLI exit codes.
const (
	CodeGeneric         = 1
	CodePeerNotAttached = 3
)

// Bridge is the part of the bridge server the control endpoint depends on.
type Bridge interface {
	IsConnected() bool
	SendRequest(ctx context.Context, action string, payload map[string]any) (json.RawMessage, error)
}

// ServerConfig configures the control endpoint. Ports are fixed here and
// reported verbatim by /health.
type ServerConfig struct {
	Host   string
	Port   int
	WSPort int

	Bridge Bridge

	// Logger is used for request logging. If nil, slog.Default is used.
	Logger *slog.Logger

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	// Meter records request counts and latency. If nil, nothing is recorded.
	Meter metric.Meter

	// PID is reported by /health. Zero means the current process.
	PID int

	// StartedAt anchors the reported uptime. Zero means construction time.
	StartedAt time.Time
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	PID         int    `json:"pid"`
	WSConnected bool   `json:"wsConnected"`
	Uptime      int64  `json:"uptime"`
	WSPort      int    `json:"wsPort"`
	ControlPort int    `json:"controlPort"`
}

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ExecuteResponse is the success body of POST /execute.
type ExecuteResponse struct {
	Result json.RawMessage `json:"result"`
}

// Server is the control endpoint.
type Server struct {
	config ServerConfig
	logger *slog.Logger

	requests metric.Int64Counter
	duration metric.Float64Histogram

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	onShutdown []func()
}

// NewServer creates a control endpoint. It does not bind until Start.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.PID == 0 {
		cfg.PID = os.Getpid()
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	meter := cfg.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("control")
	}

	s := &Server{
		config: cfg,
		logger: log.WithComponent(cfg.Logger, "control"),
	}

	var err error
	s.requests, err = meter.Int64Counter("remlink.control.requests",
		metric.WithDescription("Control endpoint requests by route and status"))
	if err != nil {
		s.logger.Warn("failed to create request counter", log.Error(err))
		s.requests, _ = noop.NewMeterProvider().Meter("control").Int64Counter("remlink.control.requests")
	}
	s.duration, err = meter.Float64Histogram("remlink.control.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Control endpoint request latency"))
	if err != nil {
		s.logger.Warn("failed to create latency histogram", log.Error(err))
		s.duration, _ = noop.NewMeterProvider().Meter("control").Float64Histogram("remlink.control.request.duration")
	}

	return s
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.instrument("/health", s.handleHealth))
	mux.HandleFunc("POST /execute", s.instrument("/execute", s.handleExecute))
	mux.HandleFunc("POST /shutdown", s.instrument("/shutdown", s.handleShutdown))
	if s.config.MetricsHandler != nil {
		mux.Handle("GET /metrics", s.config.MetricsHandler)
	}
	mux.HandleFunc("/", s.handleNotFound)

	return log.HTTPMiddleware(s.logger, mux)
}

// OnShutdown registers a callback invoked after a /shutdown response is flushed.
func (s *Server) OnShutdown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onShutdown = append(s.onShutdown, fn)
}

// Start binds the control port and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("control: server already started")
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return remerrors.Wrapf(err, "failed to bind control listener on %s", addr)
	}
	s.listener = ln

	// WriteTimeout leaves room for a full bridge request timeout.
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("control server starting", slog.String("addr", ln.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server error", log.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	if httpServer == nil {
		return nil
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("control shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:      "running",
		PID:         s.config.PID,
		WSConnected: s.config.Bridge != nil && s.config.Bridge.IsConnected(),
		Uptime:      int64(time.Since(s.config.StartedAt).Seconds()),
		WSPort:      s.config.WSPort,
		ControlPort: s.config.Port,
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Action == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Missing action field")
		return
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}
	if s.config.Bridge == nil {
		httputil.WriteErrorCode(w, http.StatusInternalServerError, bridge.ErrNotConnected.Error(), CodePeerNotAttached)
		return
	}

	result, err := s.config.Bridge.SendRequest(r.Context(), req.Action, req.Payload)
	if err != nil {
		s.logger.Debug("execute failed",
			slog.String(log.ActionKey, req.Action),
			log.Error(err))
		httputil.WriteErrorCode(w, http.StatusInternalServerError, err.Error(), CodeFor(err))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ExecuteResponse{Result: result})
}

// CodeFor maps a bridge error to the code carried in execute failures.
func CodeFor(err error) int {
	if errors.Is(err, bridge.ErrNotConnected) || errors.Is(err, bridge.ErrConnectionLost) {
		return CodePeerNotAttached
	}
	return CodeGeneric
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"result": "shutting down"})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	s.mu.Lock()
	hooks := append([]func(){}, s.onShutdown...)
	s.mu.Unlock()

	s.logger.Info("shutdown requested via control endpoint")
	go func() {
		for _, fn := range hooks {
			fn()
		}
	}()
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteError(w, http.StatusNotFound, "Not found")
}

type codeWriter struct {
	http.ResponseWriter
	status int
}

func (c *codeWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *codeWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		cw := &codeWriter{ResponseWriter: w, status: http.StatusOK}
		next(cw, r)

		attrs := metric.WithAttributes(
			attribute.String("route", route),
			attribute.Int("status", cw.status),
		)
		s.requests.Add(r.Context(), 1, attrs)
		s.duration.Record(r.Context(), time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("route", route)))
	}
}
