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

package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrUnsafeDirectory is returned when the record directory is world-writable.
var ErrUnsafeDirectory = errors.New("liveness record directory is world-writable")

// Record is the on-disk description of a running daemon.
type Record struct {
	PID         int       `json:"pid"`
	WSPort      int       `json:"wsPort"`
	ControlPort int       `json:"controlPort"`
	StartedAt   time.Time `json:"startedAt"`
}

// RecordStore reads and writes the liveness record.
type RecordStore struct {
	path string

	// OnStale is called with a record whose process is gone, just before
	// the record is removed. Optional.
	OnStale func(rec *Record)

	alive func(pid int) bool
}

// NewRecordStore creates a store for the record at path.
func NewRecordStore(path string) *RecordStore {
	return &RecordStore{
		path:  path,
		alive: IsProcessRunning,
	}
}

// Path returns the record location.
func (s *RecordStore) Path() string {
	return s.path
}

// Write persists rec atomically. Readers see either the previous record or
// the new one, never a partial file.
func (s *RecordStore) Write(rec *Record) error {
	dir := filepath.Dir(s.path)
	if err := verifyDirectorySafety(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode liveness record: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".daemon-pid-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Read returns the stored record. A missing, unreadable or malformed file
// reads as absent.
func (s *RecordStore) Read() (*Record, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	if rec.PID <= 0 {
		return nil, false
	}
	return &rec, true
}

// Remove deletes the record. Errors are ignored.
func (s *RecordStore) Remove() {
	_ = os.Remove(s.path)
}

// GetRunningDaemon returns the record of a live daemon. A record whose
// process no longer exists is removed and reported as absent.
func (s *RecordStore) GetRunningDaemon() (*Record, bool) {
	rec, ok := s.Read()
	if !ok {
		return nil, false
	}
	if !s.alive(rec.PID) {
		if s.OnStale != nil {
			s.OnStale(rec)
		}
		s.Remove()
		return nil, false
	}
	return rec, true
}

// verifyDirectorySafety rejects world-writable directories so another user
// cannot plant a record pointing at an arbitrary pid.
func verifyDirectorySafety(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if mode := info.Mode(); mode&0o002 != 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrUnsafeDirectory, dir, mode&os.ModePerm)
	}
	return nil
}
