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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes used as the "outcome" label.
const (
	outcomeSuccess        = "success"
	outcomePeerError      = "peer_error"
	outcomeTimeout        = "timeout"
	outcomeConnectionLost = "connection_lost"
	outcomeNotConnected   = "not_connected"
	outcomeAbandoned      = "abandoned"
)

// metrics holds the bridge collectors. A nil registerer leaves them
// unregistered, which keeps tests independent of each other.
type metrics struct {
	connected  prometheus.Gauge
	pending    prometheus.Gauge
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	rejected   prometheus.Counter
	heartbeats prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		connected: f.NewGauge(prometheus.GaugeOpts{
			Name: "remlink_bridge_connected",
			Help: "1 when a bridge peer is attached, 0 otherwise",
		}),
		pending: f.NewGauge(prometheus.GaugeOpts{
			Name: "remlink_bridge_pending_requests",
			Help: "Number of requests awaiting a peer response",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "remlink_bridge_requests_total",
			Help: "Total bridge requests by action and outcome",
		}, []string{"action", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "remlink_bridge_request_duration_seconds",
			Help:    "Time from sending a bridge request to its settlement",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"action"}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "remlink_bridge_rejected_connections_total",
			Help: "Connections closed because a peer was already attached",
		}),
		heartbeats: f.NewCounter(prometheus.CounterOpts{
			Name: "remlink_bridge_heartbeats_total",
			Help: "Ping frames answered with a pong",
		}),
	}
}

func (m *metrics) recordRequest(action, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(action, outcome).Inc()
	m.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (m *metrics) setConnected(connected bool) {
	if connected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}
