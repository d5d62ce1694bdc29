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

package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the telemetry provider.
type Config struct {
	// Enabled turns on span export to Output.
	Enabled bool

	// Output is the span file. Spans are written as JSON, one per line.
	Output string

	// ServiceName identifies this service in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// Registerer receives OpenTelemetry instruments as Prometheus
	// collectors. If nil, instruments are recorded but not exported.
	Registerer prometheus.Registerer
}

// Provider owns the daemon's tracer and meter providers.
type Provider struct {
	tp  *sdktrace.TracerProvider
	mp  *sdkmetric.MeterProvider
	out io.Closer
}

// NewProvider creates the tracer and meter providers and installs the
// tracer provider globally. Extra options are appended after the built-in
// ones, which lets tests attach an in-memory exporter.
func NewProvider(cfg Config, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "remlink"
	}

	// Empty schema URL avoids conflicts when merging with the default resource.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Enabled {
		exporter, closer, err := newFileExporter(cfg.Output)
		if err != nil {
			return nil, err
		}
		p.out = closer
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	tpOpts = append(tpOpts, opts...)
	p.tp = sdktrace.NewTracerProvider(tpOpts...)

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.Registerer != nil {
		promExporter, err := otelprom.New(
			otelprom.WithRegisterer(cfg.Registerer),
			otelprom.WithoutScopeInfo(),
			otelprom.WithoutTargetInfo(),
		)
		if err != nil {
			_ = p.tp.Shutdown(context.Background())
			p.closeOutput()
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(promExporter))
	}
	p.mp = sdkmetric.NewMeterProvider(mpOpts...)

	otel.SetTracerProvider(p.tp)

	return p, nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Meter returns a meter for the given instrumentation scope.
func (p *Provider) Meter(name string) metric.Meter {
	return p.mp.Meter(name)
}

// Shutdown flushes pending spans and releases the span file.
func (p *Provider) Shutdown(ctx context.Context) error {
	err := errors.Join(p.tp.Shutdown(ctx), p.mp.Shutdown(ctx))
	if closeErr := p.closeOutput(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

func (p *Provider) closeOutput() error {
	if p.out == nil {
		return nil
	}
	err := p.out.Close()
	p.out = nil
	return err
}
