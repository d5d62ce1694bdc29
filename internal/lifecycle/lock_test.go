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
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "daemon.lock")

	first, err := TryLock(path)
	require.NoError(t, err)

	_, err = TryLock(path)
	assert.True(t, errors.Is(err, ErrLocked), "second lock should fail, got %v", err)

	require.NoError(t, first.Unlock())

	again, err := TryLock(path)
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}

func TestLockWithTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "start.lock")

	held, err := TryLock(path)
	require.NoError(t, err)

	start := time.Now()
	_, err = LockWithTimeout(context.Background(), path, 250*time.Millisecond)
	assert.True(t, errors.Is(err, ErrLocked), "expected ErrLocked, got %v", err)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = held.Unlock()
	}()

	lock, err := LockWithTimeout(context.Background(), path, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, lock.Unlock())
}
