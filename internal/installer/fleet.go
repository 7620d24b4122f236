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

package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opentrusty/lifecycle/internal/observability/logger"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNotMultisite is returned by fleet operations in single-site mode.
var ErrNotMultisite = errors.New("installer is not in fleet mode")

// TenantResult is the outcome of a fleet operation for one tenant. Removed
// is set when uninstall deleted the tenant's data.
type TenantResult struct {
	TenantID string `json:"tenant_id"`
	OK       bool   `json:"ok"`
	Removed  bool   `json:"removed,omitempty"`
	Err      error  `json:"-"`
	Error    string `json:"error,omitempty"`
}

// FleetReport collects per-tenant outcomes of one fleet call.
type FleetReport struct {
	Results []TenantResult `json:"results"`
	// More is set when the call stopped at the page size and further
	// tenants may remain.
	More bool `json:"more"`
	// Err is set when the fleet could not be enumerated.
	Err error `json:"-"`
}

// OK reports whether enumeration and every visited tenant succeeded.
func (r FleetReport) OK() bool {
	if r.Err != nil {
		return false
	}
	for _, res := range r.Results {
		if !res.OK {
			return false
		}
	}
	return true
}

// Failed returns the results that did not succeed.
func (r FleetReport) Failed() []TenantResult {
	var out []TenantResult
	for _, res := range r.Results {
		if !res.OK {
			out = append(out, res)
		}
	}
	return out
}

// Progressed reports whether the call cleared at least one mirror entry, so
// that a further call can reach tenants beyond this page.
func (r FleetReport) Progressed() bool {
	for _, res := range r.Results {
		if res.OK {
			return true
		}
	}
	return false
}

func newResult(tenantID string, err error) TenantResult {
	res := TenantResult{TenantID: tenantID, OK: err == nil, Err: err}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// UninstallFleet enumerates up to one page of tenants whose marker is
// mirrored in the fleet index and runs the uninstall sequence in each one's
// context, in enumeration order. A successful tenant has its mirror entry
// cleared so the next call moves on. In Suppress mode a failed tenant does
// not stop the rest; in Propagate mode the first failure is returned after
// the tenant context has been restored.
func (i *Installer) UninstallFleet(ctx context.Context) (FleetReport, error) {
	if i.fleet == nil {
		return FleetReport{Err: ErrNotMultisite}, ErrNotMultisite
	}
	ctx, span := i.tracer.Start(ctx, "installer.UninstallFleet")
	defer span.End()

	ids, err := i.fleet.TenantsWithKey(ctx, i.markerKey, i.pageSize)
	if err != nil {
		err = fmt.Errorf("failed to enumerate installed tenants: %w", err)
		_, ferr := i.fail(ctx, span, "uninstall_fleet", err)
		return FleetReport{Err: err}, ferr
	}
	span.SetAttributes(attribute.Int("lifecycle.tenants", len(ids)))

	report := FleetReport{More: len(ids) >= i.pageSize}
	for _, tenantID := range ids {
		res := i.uninstallScoped(ctx, tenantID)
		report.Results = append(report.Results, res)
		if res.Err != nil {
			if _, ferr := i.fail(ctx, span, "uninstall", res.Err); ferr != nil {
				return report, ferr
			}
		}
	}

	slog.InfoContext(ctx, "fleet uninstall pass complete",
		logger.Count(len(ids)),
		slog.Int("failed", len(report.Failed())),
		slog.Bool("more", report.More),
	)
	return report, nil
}

func (i *Installer) uninstallScoped(ctx context.Context, tenantID string) TenantResult {
	tctx, restore := i.switcher.Switch(ctx, tenantID)
	defer restore()

	removed, err := i.uninstallTenant(tctx, tenantID)
	if err == nil {
		i.dropMirror(tctx, tenantID)
	}
	res := newResult(tenantID, err)
	res.Removed = removed
	return res
}

// dropMirror clears the tenant's fleet index entry. Failure is logged only;
// the marker itself is authoritative.
func (i *Installer) dropMirror(ctx context.Context, tenantID string) {
	if err := i.fleet.Delete(ctx, tenantID, i.markerKey); err != nil {
		slog.WarnContext(ctx, "failed to clear fleet index entry",
			logger.TenantID(tenantID),
			logger.Error(err),
		)
	}
}

// InstallFleet runs the install sequence in every tenant's context, paging
// through the tenant directory. Cancelling ctx stops between tenants and
// sets More on the report.
func (i *Installer) InstallFleet(ctx context.Context) (FleetReport, error) {
	if i.fleet == nil {
		return FleetReport{Err: ErrNotMultisite}, ErrNotMultisite
	}
	if i.tenants == nil {
		err := errors.New("fleet install requires a tenant directory")
		return FleetReport{Err: err}, err
	}
	ctx, span := i.tracer.Start(ctx, "installer.InstallFleet")
	defer span.End()

	var report FleetReport
	for offset := 0; ; offset += i.pageSize {
		page, err := i.tenants.List(ctx, i.pageSize, offset)
		if err != nil {
			err = fmt.Errorf("failed to list tenants: %w", err)
			report.Err = err
			_, ferr := i.fail(ctx, span, "install_fleet", err)
			return report, ferr
		}

		for _, t := range page {
			if ctx.Err() != nil {
				report.More = true
				return report, nil
			}
			res := i.installScoped(ctx, t.ID)
			report.Results = append(report.Results, res)
			if res.Err != nil {
				if _, ferr := i.fail(ctx, span, "install", res.Err); ferr != nil {
					return report, ferr
				}
			}
		}
		if len(page) < i.pageSize {
			break
		}
	}

	span.SetAttributes(attribute.Int("lifecycle.tenants", len(report.Results)))
	slog.InfoContext(ctx, "fleet install complete",
		logger.Count(len(report.Results)),
		slog.Int("failed", len(report.Failed())),
	)
	return report, nil
}

func (i *Installer) installScoped(ctx context.Context, tenantID string) TenantResult {
	tctx, restore := i.switcher.Switch(ctx, tenantID)
	defer restore()
	return newResult(tenantID, i.installTenant(tctx, tenantID))
}
