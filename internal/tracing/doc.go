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

/*
Package tracing sets up OpenTelemetry for the remlink daemon.

# Spans

Bridge requests are traced as "bridge.SendRequest" spans. When tracing is
enabled the spans are written to a local JSON-lines file:

	p, err := tracing.NewProvider(tracing.Config{
	    Enabled: true,
	    Output:  filepath.Join(dataDir, "traces.jsonl"),
	})
	defer p.Shutdown(ctx)

When disabled, spans are still created so that context propagation works,
but nothing is exported.

# Metrics

Meters obtained from Provider.Meter are exported through the Prometheus
registerer in Config, next to the daemon's native collectors.
*/
package tracing
