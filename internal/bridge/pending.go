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
	"encoding/json"
	"time"
)

type outcome struct {
	result json.RawMessage
	err    error
}

// pendingRequest is one in-flight request. Removal from the pending map is
// what settles it, so done receives exactly one value.
type pendingRequest struct {
	id        string
	action    string
	createdAt time.Time
	timer     *time.Timer
	done      chan outcome
}

// settle resolves the pending request with id. It returns false when the
// request was already settled or never existed.
func (s *Server) settle(id string, out outcome) bool {
	s.pendingMu.Lock()
	pr, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	remaining := len(s.pending)
	s.pendingMu.Unlock()

	if !ok {
		return false
	}

	pr.timer.Stop()
	s.metrics.pending.Set(float64(remaining))
	pr.done <- out
	return true
}

// failAll settles every pending request with err and returns how many it settled.
func (s *Server) failAll(err error) int {
	s.pendingMu.Lock()
	drained := s.pending
	s.pending = make(map[string]*pendingRequest)
	s.pendingMu.Unlock()

	for _, pr := range drained {
		pr.timer.Stop()
		pr.done <- outcome{err: err}
	}
	s.metrics.pending.Set(0)
	return len(drained)
}

// PendingCount returns the number of requests awaiting a response.
func (s *Server) PendingCount() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}
