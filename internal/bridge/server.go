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

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/remlink/internal/log"
	remerrors "github.com/tombee/remlink/pkg/errors"
)

const (
	// DefaultRequestTimeout bounds how long a request waits for its response.
	DefaultRequestTimeout = 5 * time.Second

	// CloseReasonSecondPeer is sent with close code 1008 to rejected peers.
	CloseReasonSecondPeer = "only one bridge connection allowed"

	writeWait    = 10 * time.Second
	maxFrameSize = 32 << 20

	tracerName = "github.com/tombee/remlink/internal/bridge"
)

// ServerConfig configures the bridge server.
type ServerConfig struct {
	// Host is the interface to bind. Default: 127.0.0.1
	Host string

	// Port is the WebSocket port. Zero picks a free port.
	Port int

	// RequestTimeout is the per-request deadline. Default: 5 seconds
	RequestTimeout time.Duration

	// Logger is the structured logger for bridge events.
	// If nil, a default logger is used.
	Logger *slog.Logger

	// Registerer receives the bridge collectors. If nil, metrics are
	// tracked but not exported.
	Registerer prometheus.Registerer

	// Tracer creates request spans. If nil, the global provider is used.
	Tracer trace.Tracer
}

// DefaultConfig returns a ServerConfig with sensible defaults.
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Host:           "127.0.0.1",
		Port:           3002,
		RequestTimeout: DefaultRequestTimeout,
		Logger:         slog.Default(),
	}
}

// Server accepts a single bridge peer over WebSocket and multiplexes
// correlated requests onto it.
type Server struct {
	config   *ServerConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
	metrics  *metrics
	tracer   trace.Tracer

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	closed     bool

	// connMu guards peer. It is taken before pendingMu when both are needed.
	connMu sync.Mutex
	peer   *peerConn

	pendingMu sync.Mutex
	pending   map[string]*pendingRequest

	hookMu       sync.RWMutex
	onConnect    []func()
	onDisconnect []func()

	readers      sync.WaitGroup
	shutdownOnce sync.Once
}

type peerConn struct {
	conn    *websocket.Conn
	remote  string
	writeMu sync.Mutex
}

func (p *peerConn) writeJSON(v any) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(v)
}

func (p *peerConn) close(code int, reason string) {
	p.writeMu.Lock()
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
	p.writeMu.Unlock()
	_ = p.conn.Close()
}

// NewServer creates a new bridge server with the given configuration.
func NewServer(config *ServerConfig) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}

	tracer := config.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Server{
		config: config,
		logger: log.WithComponent(config.Logger, "bridge"),
		upgrader: websocket.Upgrader{
			// The plugin runs inside the RemNote web origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		metrics: newMetrics(config.Registerer),
		tracer:  tracer,
		pending: make(map[string]*pendingRequest),
	}
}

// Start binds the listener and begins accepting connections on any path.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.listener != nil {
		return errors.New("bridge: server already started")
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return remerrors.Wrapf(err, "failed to bind bridge listener on %s", addr)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           http.HandlerFunc(s.handleWebSocket),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("bridge server starting", slog.String("addr", ln.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("bridge server error", log.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// OnConnect registers a hook run after a peer is admitted.
func (s *Server) OnConnect(fn func()) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onConnect = append(s.onConnect, fn)
}

// OnDisconnect registers a hook run after the peer's connection is torn down.
func (s *Server) OnDisconnect(fn func()) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.onDisconnect = append(s.onDisconnect, fn)
}

// IsConnected reports whether a peer is attached.
func (s *Server) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.peer != nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", log.Error(err))
		return
	}

	p := &peerConn{conn: conn, remote: r.RemoteAddr}

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		p.close(websocket.CloseGoingAway, "server shutting down")
		return
	}

	s.connMu.Lock()
	if s.peer != nil {
		s.connMu.Unlock()
		s.metrics.rejected.Inc()
		s.logger.Warn("rejecting second bridge connection", slog.String("remote", p.remote))
		p.close(websocket.ClosePolicyViolation, CloseReasonSecondPeer)
		return
	}
	s.peer = p
	s.readers.Add(1)
	s.connMu.Unlock()

	conn.SetReadLimit(maxFrameSize)
	s.metrics.setConnected(true)
	s.logger.Info("bridge peer connected", slog.String("remote", p.remote))
	s.runHooks(s.connectHooks())

	go s.readLoop(p)
}

func (s *Server) readLoop(p *peerConn) {
	defer s.readers.Done()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("bridge read error", log.Error(err))
			}
			break
		}
		s.handleFrame(p, data)
	}

	// Pending requests are drained before the slot is free, so requests sent
	// to the next peer are never failed on behalf of this one.
	s.connMu.Lock()
	if s.peer == p {
		s.peer = nil
	}
	failed := s.failAll(ErrConnectionLost)
	s.connMu.Unlock()

	_ = p.conn.Close()

	s.metrics.setConnected(false)
	s.logger.Info("bridge peer disconnected",
		slog.String("remote", p.remote),
		slog.Int("rejected_requests", failed))
	s.runHooks(s.disconnectHooks())
}

func (s *Server) handleFrame(p *peerConn, data []byte) {
	kind, resp, err := parseFrame(data)
	if err != nil {
		s.logger.Warn("dropping malformed bridge frame", log.Error(err))
		return
	}

	switch kind {
	case TypePing:
		s.metrics.heartbeats.Inc()
		if err := p.writeJSON(Heartbeat{Type: TypePong}); err != nil {
			s.logger.Debug("failed to write pong", log.Error(err))
		}
		return
	case TypePong:
		return
	}

	result, perr := resp.outcome()
	if !s.settle(resp.ID, outcome{result: result, err: perr}) {
		log.Trace(s.logger, "response for unknown request", slog.String(log.RequestIDKey, resp.ID))
	}
}

// SendRequest sends action and payload to the peer and waits for the
// correlated response. A nil payload is sent as an empty object.
//
// Cancelling ctx abandons the wait; the request stays pending until the
// peer answers, the timeout fires, or the connection drops.
func (s *Server) SendRequest(ctx context.Context, action string, payload map[string]any) (json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "bridge.SendRequest",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("bridge.action", action)))
	defer span.End()

	start := time.Now()
	req := NewRequest(action, payload)
	span.SetAttributes(attribute.String("bridge.request_id", req.ID))

	pr, p := s.register(req)
	if pr == nil {
		s.metrics.recordRequest(action, outcomeNotConnected, time.Since(start))
		span.RecordError(ErrNotConnected)
		span.SetStatus(codes.Error, ErrNotConnected.Error())
		return nil, ErrNotConnected
	}

	log.Trace(s.logger, "sending bridge request",
		slog.String(log.RequestIDKey, req.ID),
		slog.String(log.ActionKey, action))

	if err := p.writeJSON(req); err != nil {
		s.settle(req.ID, outcome{err: fmt.Errorf("%w: %v", ErrConnectionLost, err)})
	}

	select {
	case out := <-pr.done:
		elapsed := time.Since(start)
		s.metrics.recordRequest(action, classify(out.err), elapsed)
		if out.err != nil {
			span.RecordError(out.err)
			span.SetStatus(codes.Error, out.err.Error())
			s.logger.Debug("bridge request failed",
				slog.String(log.RequestIDKey, req.ID),
				slog.String(log.ActionKey, action),
				slog.Int64(log.DurationKey, elapsed.Milliseconds()),
				log.Error(out.err))
			return nil, out.err
		}
		span.SetStatus(codes.Ok, "")
		return out.result, nil
	case <-ctx.Done():
		s.metrics.recordRequest(action, outcomeAbandoned, time.Since(start))
		span.RecordError(ctx.Err())
		span.SetStatus(codes.Error, ctx.Err().Error())
		return nil, ctx.Err()
	}
}

// register adds a pending entry while a peer is attached. It returns nil
// when no peer is connected.
func (s *Server) register(req *Request) (*pendingRequest, *peerConn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.peer == nil {
		return nil, nil
	}

	pr := &pendingRequest{
		id:        req.ID,
		action:    req.Action,
		createdAt: time.Now(),
		done:      make(chan outcome, 1),
	}

	s.pendingMu.Lock()
	s.pending[req.ID] = pr
	timeout := s.config.RequestTimeout
	pr.timer = time.AfterFunc(timeout, func() {
		s.settle(req.ID, outcome{err: &remerrors.TimeoutError{
			Operation: "bridge request " + req.Action,
			Duration:  timeout,
			Cause:     ErrRequestTimeout,
		}})
	})
	s.metrics.pending.Set(float64(len(s.pending)))
	s.pendingMu.Unlock()

	return pr, s.peer
}

func classify(err error) string {
	var peerErr *PeerError
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.As(err, &peerErr):
		return outcomePeerError
	case errors.Is(err, ErrRequestTimeout):
		return outcomeTimeout
	case errors.Is(err, ErrConnectionLost):
		return outcomeConnectionLost
	default:
		return outcomePeerError
	}
}

// Stop closes the peer with a going-away frame, rejects every pending
// request, and shuts the listener down. It is safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		httpServer := s.httpServer
		s.mu.Unlock()

		s.connMu.Lock()
		p := s.peer
		s.connMu.Unlock()
		if p != nil {
			p.close(websocket.CloseGoingAway, "server shutting down")
		}

		if httpServer != nil {
			if shutdownErr := httpServer.Shutdown(ctx); shutdownErr != nil {
				err = fmt.Errorf("bridge shutdown: %w", shutdownErr)
			}
		}

		done := make(chan struct{})
		go func() {
			s.readers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			if err == nil {
				err = fmt.Errorf("bridge shutdown: %w", ctx.Err())
			}
		}

		// Requests registered against a peer whose reader already exited.
		s.failAll(ErrConnectionLost)
		s.logger.Info("bridge server stopped")
	})
	return err
}

func (s *Server) connectHooks() []func() {
	s.hookMu.RLock()
	defer s.hookMu.RUnlock()
	return append([]func(){}, s.onConnect...)
}

func (s *Server) disconnectHooks() []func() {
	s.hookMu.RLock()
	defer s.hookMu.RUnlock()
	return append([]func(){}, s.onDisconnect...)
}

func (s *Server) runHooks(hooks []func()) {
	for _, fn := range hooks {
		fn()
	}
}
