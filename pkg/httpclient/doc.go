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

// Package httpclient builds the HTTP client used to reach the daemon's
// control endpoint.
//
// Requests carry a User-Agent and an X-Request-ID header and are logged via
// log/slog at debug level, or warn when they fail. GET requests are retried
// with exponential backoff on 5xx, 408 and 429 responses and on dropped
// connections. Other methods are sent once, so an action is never delivered
// to the RemNote plugin twice.
//
// A refused connection is never retried: it means the daemon is not
// running and callers report that immediately.
//
//	client, err := httpclient.New(httpclient.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	resp, err := client.Get("http://127.0.0.1:3100/health")
package httpclient
