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

// Package appdata implements the installer actions for the service's own
// per-tenant data: a set of default options under a common prefix and an
// ordered ladder of upgrade steps.
package appdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/opentrusty/lifecycle/internal/observability/logger"
	"github.com/opentrusty/lifecycle/internal/option"
	"github.com/opentrusty/lifecycle/internal/tenant"
	"github.com/opentrusty/lifecycle/internal/version"
)

// Step migrates a tenant's data to Version.
type Step struct {
	Version     string
	Description string
	Apply       func(ctx context.Context, store option.Store, tenantID string) error
}

// Plan describes the data owned by the application.
type Plan struct {
	// Prefix scopes every option the application owns.
	Prefix   string
	Defaults map[string]string
	Steps    []Step
}

// Validate checks that the plan is usable for the running version.
func (p Plan) Validate() error {
	if p.Prefix == "" {
		return errors.New("plan prefix is required")
	}
	for name := range p.Defaults {
		if !strings.HasPrefix(name, p.Prefix) {
			return fmt.Errorf("default %q is outside prefix %q", name, p.Prefix)
		}
	}
	for _, s := range p.Steps {
		if !version.Valid(s.Version) {
			return fmt.Errorf("step %q has invalid version %q", s.Description, s.Version)
		}
		if s.Apply == nil {
			return fmt.Errorf("step %s has no apply func", s.Version)
		}
	}
	return nil
}

// Covers reports whether an option name falls under the plan's prefix.
func (p Plan) Covers(name string) bool {
	return strings.HasPrefix(name, p.Prefix)
}

// Actions implements installer.Actions on an option store.
type Actions struct {
	store   option.Store
	plan    Plan
	running string
	steps   []Step
}

// New creates the actions for the running version.
func New(store option.Store, plan Plan, running string) (*Actions, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if _, err := version.Parse(running); err != nil {
		return nil, fmt.Errorf("invalid running version: %w", err)
	}

	steps := append([]Step(nil), plan.Steps...)
	sort.SliceStable(steps, func(a, b int) bool {
		less, _ := version.Less(steps[a].Version, steps[b].Version)
		return less
	})
	return &Actions{store: store, plan: plan, running: running, steps: steps}, nil
}

// Install writes the plan's defaults, keeping any value already present.
func (a *Actions) Install(ctx context.Context) error {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	n, err := a.writeDefaults(ctx, tenantID)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "installed default options",
		logger.TenantID(tenantID),
		logger.Count(n),
	)
	return nil
}

// Upgrade applies, in version order, every step newer than from and not
// newer than the running version, then fills in defaults added since. An
// unparseable from applies every step up to the running version.
func (a *Actions) Upgrade(ctx context.Context, from string) error {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return err
	}

	for _, s := range a.pending(from) {
		if err := s.Apply(ctx, a.store, tenantID); err != nil {
			return fmt.Errorf("upgrade step %s (%s): %w", s.Version, s.Description, err)
		}
		slog.InfoContext(ctx, "applied upgrade step",
			logger.TenantID(tenantID),
			logger.Version(s.Version),
			logger.String("description", s.Description),
		)
	}

	_, err = a.writeDefaults(ctx, tenantID)
	return err
}

// Uninstall deletes every option under the plan's prefix.
func (a *Actions) Uninstall(ctx context.Context) error {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	n, err := a.store.DeletePrefix(ctx, tenantID, a.plan.Prefix)
	if err != nil {
		return fmt.Errorf("failed to delete application options: %w", err)
	}
	slog.InfoContext(ctx, "deleted application options",
		logger.TenantID(tenantID),
		logger.RowsAffected(n),
	)
	return nil
}

func (a *Actions) pending(from string) []Step {
	var out []Step
	for _, s := range a.steps {
		if newer, err := version.Less(from, s.Version); err == nil && !newer {
			continue
		}
		if beyond, _ := version.Less(a.running, s.Version); beyond {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (a *Actions) writeDefaults(ctx context.Context, tenantID string) (int, error) {
	names := make([]string, 0, len(a.plan.Defaults))
	for name := range a.plan.Defaults {
		names = append(names, name)
	}
	sort.Strings(names)

	written := 0
	for _, name := range names {
		_, err := a.store.Get(ctx, tenantID, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, option.ErrNotFound) {
			return written, fmt.Errorf("failed to read option %s: %w", name, err)
		}
		if err := a.store.Set(ctx, tenantID, name, a.plan.Defaults[name]); err != nil {
			return written, fmt.Errorf("failed to write option %s: %w", name, err)
		}
		written++
	}
	return written, nil
}
