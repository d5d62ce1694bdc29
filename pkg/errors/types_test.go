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

package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	remerrors "github.com/tombee/remlink/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *remerrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &remerrors.ValidationError{
				Field:   "action",
				Message: "Missing action field",
			},
			wantMsg: "validation failed on action: Missing action field",
		},
		{
			name:    "without field",
			err:     &remerrors.ValidationError{Message: "invalid JSON body"},
			wantMsg: "validation failed: invalid JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigError(t *testing.T) {
	cause := errors.New("yaml: line 3: bad indentation")
	err := &remerrors.ConfigError{Key: "daemon.ws_port", Reason: "must be between 1 and 65535", Cause: cause}

	if got := err.Error(); got != "config error at daemon.ws_port: must be between 1 and 65535" {
		t.Errorf("ConfigError.Error() = %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("ConfigError should unwrap to its cause")
	}

	bare := &remerrors.ConfigError{Reason: "unreadable"}
	if got := bare.Error(); got != "config error: unreadable" {
		t.Errorf("ConfigError.Error() without key = %q", got)
	}
}

func TestTimeoutError(t *testing.T) {
	sentinel := errors.New("request timed out")
	err := &remerrors.TimeoutError{Operation: "bridge request search", Duration: 5 * time.Second, Cause: sentinel}

	msg := err.Error()
	if !strings.Contains(msg, "timeout") || !strings.Contains(msg, "5s") {
		t.Errorf("TimeoutError.Error() = %q, want timeout and duration", msg)
	}

	wrapped := fmt.Errorf("execute: %w", err)
	if !errors.Is(wrapped, sentinel) {
		t.Error("wrapped TimeoutError should match its cause")
	}

	var te *remerrors.TimeoutError
	if !errors.As(wrapped, &te) || te.Operation != "bridge request search" {
		t.Error("errors.As should find the TimeoutError")
	}
}
