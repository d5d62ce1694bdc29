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

package httpclient

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.UserAgent != "remlink-cli" {
		t.Errorf("expected user agent remlink-cli, got %q", cfg.UserAgent)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid", modify: func(c *Config) {}},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: true},
		{name: "negative retries", modify: func(c *Config) { c.RetryAttempts = -1 }, wantErr: true},
		{name: "zero backoff with retries", modify: func(c *Config) { c.RetryBackoff = 0 }, wantErr: true},
		{name: "zero backoff without retries", modify: func(c *Config) {
			c.RetryAttempts = 0
			c.RetryBackoff = 0
		}},
		{name: "max below base", modify: func(c *Config) { c.MaxBackoff = time.Millisecond }, wantErr: true},
		{name: "empty user agent", modify: func(c *Config) { c.UserAgent = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	if _, err := New(cfg); err == nil {
		t.Error("expected error for invalid config")
	}
}
