// Copyright 2026 The OpenTrusty Authors
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

package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance. When metrics are disabled the meter is a
// no-op so instruments can always be created.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}

	// Uses the global meter provider; exporters are configured by the OTel SDK environment
	return &Meter{meter: otel.Meter(serviceName)}, nil
}

// NewNoop returns a meter whose instruments record nothing.
func NewNoop() *Meter {
	return &Meter{meter: noop.NewMeterProvider().Meter("noop")}
}

// NewFromProvider creates a meter from an explicit provider.
func NewFromProvider(provider metric.MeterProvider, name string) *Meter {
	return &Meter{meter: provider.Meter(name)}
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}

// Lifecycle holds the instruments recorded by the installer.
type Lifecycle struct {
	operations     metric.Int64Counter
	actionDuration metric.Float64Histogram
}

// NewLifecycle creates the installer instruments on m.
func NewLifecycle(m *Meter) (*Lifecycle, error) {
	ops, err := m.CreateCounter("lifecycle.installer.operations", "Installer operations by kind and outcome")
	if err != nil {
		return nil, err
	}
	dur, err := m.CreateHistogram("lifecycle.installer.action.duration", "Duration of install, upgrade and uninstall actions", "ms")
	if err != nil {
		return nil, err
	}
	return &Lifecycle{operations: ops, actionDuration: dur}, nil
}

// RecordOperation counts one installer operation.
func (l *Lifecycle) RecordOperation(ctx context.Context, op, outcome string) {
	if l == nil {
		return
	}
	l.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

// RecordAction records how long an action ran.
func (l *Lifecycle) RecordAction(ctx context.Context, action string, elapsed time.Duration, failed bool) {
	if l == nil {
		return
	}
	l.actionDuration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(
		attribute.String("action", action),
		attribute.Bool("failed", failed),
	))
}
