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

// Package installer brings a tenant's persisted application data up to the
// running version and tears it down on request, for a single site or for a
// fleet of sites.
//
// Each tenant carries an installed-version marker and a delete-data flag.
// Install runs exactly one of the install or upgrade actions when the marker
// is absent or older than the running version. Uninstall runs the uninstall
// action only when the tenant has opted in through the flag. In fleet mode a
// mirror of the marker in a fleet index lets uninstall find installed
// tenants without visiting every tenant.
package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opentrusty/lifecycle/internal/audit"
	"github.com/opentrusty/lifecycle/internal/guard"
	"github.com/opentrusty/lifecycle/internal/observability/logger"
	"github.com/opentrusty/lifecycle/internal/observability/metrics"
	"github.com/opentrusty/lifecycle/internal/observability/tracing"
	"github.com/opentrusty/lifecycle/internal/sitemeta"
	"github.com/opentrusty/lifecycle/internal/tenant"
	"github.com/opentrusty/lifecycle/internal/version"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultPageSize caps the tenants visited by one fleet call.
const DefaultPageSize = 20

// MarkerStore holds the installed version per tenant. An empty value means
// not installed.
type MarkerStore interface {
	Get(ctx context.Context, tenantID string) (string, error)
	Update(ctx context.Context, tenantID, v string) error
	Delete(ctx context.Context, tenantID string) error
}

// FlagStore holds the delete-data opt-in per tenant. Unset reads as false.
type FlagStore interface {
	Get(ctx context.Context, tenantID string) (bool, error)
	Update(ctx context.Context, tenantID string, v bool) error
	Delete(ctx context.Context, tenantID string) error
}

// FleetIndex is the fleet-level mirror of installed markers.
type FleetIndex interface {
	Get(ctx context.Context, tenantID, key string) (string, error)
	Set(ctx context.Context, tenantID, key, value string) error
	Delete(ctx context.Context, tenantID, key string) error
	TenantsWithKey(ctx context.Context, key string, limit int) ([]string, error)
}

// TenantLister enumerates the fleet for InstallFleet.
type TenantLister interface {
	List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error)
}

// State classifies a tenant's marker against the running version.
type State string

const (
	StateNotInstalled     State = "not_installed"
	StateInstalledCurrent State = "installed_current"
	StateInstalledStale   State = "installed_stale"
)

// Config holds installer settings.
type Config struct {
	// Version is the running application version.
	Version string
	// MarkerKey names the marker in the fleet index.
	MarkerKey string
	// PageSize caps tenants per fleet call. Zero means DefaultPageSize.
	PageSize int
	Mode     guard.Mode
}

// Deps holds the installer's collaborators. Fleet, Switcher and Tenants are
// only needed in fleet mode; a nil Fleet selects single-site mode.
type Deps struct {
	Actions     Actions
	Markers     MarkerStore
	Flags       FlagStore
	Fleet       FleetIndex
	Switcher    tenant.Switcher
	Tenants     TenantLister
	Audit       audit.Logger
	Tracer      *tracing.Tracer
	Instruments *metrics.Lifecycle
}

// Installer orchestrates the data lifecycle.
type Installer struct {
	version   string
	markerKey string
	pageSize  int
	guard     guard.Guard

	actions  Actions
	markers  MarkerStore
	flags    FlagStore
	fleet    FleetIndex
	switcher tenant.Switcher
	tenants  TenantLister

	audit   audit.Logger
	tracer  *tracing.Tracer
	metrics *metrics.Lifecycle
}

// New creates an installer.
func New(cfg Config, deps Deps) (*Installer, error) {
	if _, err := version.Parse(cfg.Version); err != nil {
		return nil, fmt.Errorf("invalid running version: %w", err)
	}
	if deps.Actions == nil || deps.Markers == nil || deps.Flags == nil {
		return nil, errors.New("installer requires actions, marker store and flag store")
	}
	if deps.Fleet != nil {
		if cfg.MarkerKey == "" {
			return nil, errors.New("fleet mode requires a marker key")
		}
		if deps.Switcher == nil {
			return nil, errors.New("fleet mode requires a tenant switcher")
		}
	}

	i := &Installer{
		version:   cfg.Version,
		markerKey: cfg.MarkerKey,
		pageSize:  cfg.PageSize,
		guard:     guard.New(cfg.Mode),
		actions:   deps.Actions,
		markers:   deps.Markers,
		flags:     deps.Flags,
		fleet:     deps.Fleet,
		switcher:  deps.Switcher,
		tenants:   deps.Tenants,
		audit:     deps.Audit,
		tracer:    deps.Tracer,
		metrics:   deps.Instruments,
	}
	if i.pageSize <= 0 {
		i.pageSize = DefaultPageSize
	}
	if i.audit == nil {
		i.audit = audit.NopLogger{}
	}
	if i.tracer == nil {
		i.tracer = tracing.Noop()
	}
	return i, nil
}

// Version returns the running version.
func (i *Installer) Version() string { return i.version }

// Multisite reports whether the installer runs in fleet mode.
func (i *Installer) Multisite() bool { return i.fleet != nil }

// Mode returns the failure mode.
func (i *Installer) Mode() guard.Mode { return i.guard.Mode() }

// Install brings the current tenant's data up to the running version. It
// reports false when the install or upgrade action failed; the error is only
// returned in Propagate mode. A context without a tenant is always an error.
func (i *Installer) Install(ctx context.Context) (bool, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return false, err
	}
	ctx, span := i.startSpan(ctx, "installer.Install", tenantID)
	defer span.End()

	if err := i.installTenant(ctx, tenantID); err != nil {
		return i.fail(ctx, span, "install", err)
	}
	return true, nil
}

// IsInstalled reports whether the current tenant holds a marker.
func (i *Installer) IsInstalled(ctx context.Context) (bool, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return false, err
	}
	stored, err := i.markers.Get(ctx, tenantID)
	if err != nil {
		return i.guard.Fail(ctx, "is_installed", fmt.Errorf("failed to read marker: %w", err))
	}
	return stored != "", nil
}

// Uninstall removes the current tenant's data in single-site mode, or up to
// one page of installed tenants in fleet mode. It reports true only if every
// visited tenant succeeded.
func (i *Installer) Uninstall(ctx context.Context) (bool, error) {
	if i.fleet != nil {
		report, err := i.UninstallFleet(ctx)
		return report.OK(), err
	}

	return i.UninstallCurrent(ctx)
}

// UninstallCurrent removes only the current tenant's data, in either mode. In
// fleet mode the tenant's mirror entry is dropped once its data is gone.
func (i *Installer) UninstallCurrent(ctx context.Context) (bool, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return false, err
	}
	ctx, span := i.startSpan(ctx, "installer.Uninstall", tenantID)
	defer span.End()

	removed, err := i.uninstallTenant(ctx, tenantID)
	if err != nil {
		return i.fail(ctx, span, "uninstall", err)
	}
	if removed && i.fleet != nil {
		i.dropMirror(ctx, tenantID)
	}
	return true, nil
}

// Status describes a tenant's installation.
type Status struct {
	TenantID       string `json:"tenant_id"`
	Installed      bool   `json:"installed"`
	StoredVersion  string `json:"stored_version,omitempty"`
	RunningVersion string `json:"running_version"`
	State          State  `json:"state"`
	DeleteData     bool   `json:"delete_data"`
}

// Status reads the current tenant's marker and flag. Store errors are always
// returned.
func (i *Installer) Status(ctx context.Context) (Status, error) {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return Status{}, err
	}
	stored, err := i.markers.Get(ctx, tenantID)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read marker: %w", err)
	}
	deleteData, err := i.flags.Get(ctx, tenantID)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read delete-data flag: %w", err)
	}
	return Status{
		TenantID:       tenantID,
		Installed:      stored != "",
		StoredVersion:  stored,
		RunningVersion: i.version,
		State:          i.classify(ctx, tenantID, stored),
		DeleteData:     deleteData,
	}, nil
}

// SetDeleteData records the current tenant's delete-data opt-in.
func (i *Installer) SetDeleteData(ctx context.Context, enabled bool) error {
	tenantID, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	if err := i.flags.Update(ctx, tenantID, enabled); err != nil {
		return fmt.Errorf("failed to update delete-data flag: %w", err)
	}
	i.audit.Log(ctx, audit.Event{
		Type:     audit.TypeDeleteDataChanged,
		TenantID: tenantID,
		Resource: "installation",
		Metadata: map[string]any{"enabled": enabled},
	})
	return nil
}

func (i *Installer) classify(ctx context.Context, tenantID, stored string) State {
	if stored == "" {
		return StateNotInstalled
	}
	cmp, err := version.Compare(stored, i.version)
	if err != nil {
		slog.WarnContext(ctx, "stored marker is not a valid version, treating as stale",
			logger.TenantID(tenantID),
			logger.StoredVersion(stored),
			logger.Error(err),
		)
		return StateInstalledStale
	}
	if cmp >= 0 {
		return StateInstalledCurrent
	}
	return StateInstalledStale
}

// installTenant returns nil on success or the failure that stopped it.
func (i *Installer) installTenant(ctx context.Context, tenantID string) error {
	stored, err := i.markers.Get(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to read marker: %w", err)
	}

	state := i.classify(ctx, tenantID, stored)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("lifecycle.state", string(state)))

	var (
		op        Op
		eventType string
	)
	switch state {
	case StateInstalledCurrent:
		if i.fleet != nil {
			i.ensureMirror(ctx, tenantID, stored)
		}
		i.metrics.RecordOperation(ctx, string(OpInstall), "noop")
		slog.DebugContext(ctx, "tenant data is current",
			logger.TenantID(tenantID),
			logger.StoredVersion(stored),
			logger.Version(i.version),
		)
		return nil
	case StateNotInstalled:
		op, eventType = OpInstall, audit.TypeDataInstalled
		err = i.runAction(ctx, op, tenantID, i.actions.Install)
	default:
		op, eventType = OpUpgrade, audit.TypeDataUpgraded
		err = i.runAction(ctx, op, tenantID, func(ctx context.Context) error {
			return i.actions.Upgrade(ctx, stored)
		})
	}
	if err != nil {
		return err
	}

	if err := i.markers.Update(ctx, tenantID, i.version); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}
	if i.fleet != nil {
		i.setMirror(ctx, tenantID, i.version)
	}

	i.metrics.RecordOperation(ctx, string(op), "success")
	i.audit.Log(ctx, audit.Event{
		Type:     eventType,
		TenantID: tenantID,
		Resource: "installation",
		Metadata: map[string]any{"from": stored, "to": i.version},
	})
	slog.InfoContext(ctx, "tenant data "+string(op)+" complete",
		logger.TenantID(tenantID),
		logger.StoredVersion(stored),
		logger.Version(i.version),
	)
	return nil
}

// ensureMirror restores the fleet index entry of an installed tenant whose
// entry went missing, e.g. after a fleet uninstall pass the tenant did not
// opt in to.
func (i *Installer) ensureMirror(ctx context.Context, tenantID, stored string) {
	mirrored, err := i.fleet.Get(ctx, tenantID, i.markerKey)
	switch {
	case err == nil && mirrored == stored:
		return
	case err != nil && !errors.Is(err, sitemeta.ErrNotFound):
		slog.WarnContext(ctx, "failed to read fleet index entry",
			logger.TenantID(tenantID),
			logger.Error(err),
		)
		return
	}
	i.setMirror(ctx, tenantID, stored)
}

// setMirror writes the tenant's fleet index entry. Failure is logged only;
// the marker itself is authoritative.
func (i *Installer) setMirror(ctx context.Context, tenantID, v string) {
	if err := i.fleet.Set(ctx, tenantID, i.markerKey, v); err != nil {
		slog.WarnContext(ctx, "failed to mirror marker into fleet index",
			logger.TenantID(tenantID),
			logger.Error(err),
		)
	}
}

// uninstallTenant reports whether data was removed, or the failure that
// stopped it. Nothing is removed unless the tenant opted in.
func (i *Installer) uninstallTenant(ctx context.Context, tenantID string) (bool, error) {
	stored, err := i.markers.Get(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to read marker: %w", err)
	}
	deleteData, err := i.flags.Get(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to read delete-data flag: %w", err)
	}

	if stored == "" || !deleteData {
		i.metrics.RecordOperation(ctx, string(OpUninstall), "noop")
		slog.DebugContext(ctx, "uninstall skipped",
			logger.TenantID(tenantID),
			slog.Bool("installed", stored != ""),
			slog.Bool("delete_data", deleteData),
		)
		return false, nil
	}

	if err := i.runAction(ctx, OpUninstall, tenantID, i.actions.Uninstall); err != nil {
		return false, err
	}

	if err := i.markers.Delete(ctx, tenantID); err != nil {
		return false, fmt.Errorf("failed to delete marker: %w", err)
	}
	if err := i.flags.Delete(ctx, tenantID); err != nil {
		return false, fmt.Errorf("failed to delete delete-data flag: %w", err)
	}

	i.metrics.RecordOperation(ctx, string(OpUninstall), "success")
	i.audit.Log(ctx, audit.Event{
		Type:     audit.TypeDataUninstalled,
		TenantID: tenantID,
		Resource: "installation",
		Metadata: map[string]any{"version": stored},
	})
	slog.InfoContext(ctx, "tenant data uninstalled",
		logger.TenantID(tenantID),
		logger.StoredVersion(stored),
	)
	return true, nil
}

// runAction calls fn with panic recovery and wraps any failure in an
// *ActionError.
func (i *Installer) runAction(ctx context.Context, op Op, tenantID string, fn func(context.Context) error) error {
	start := time.Now()
	err := guard.Call(ctx, fn)
	i.metrics.RecordAction(ctx, string(op), time.Since(start), err != nil)
	if err == nil {
		return nil
	}

	i.metrics.RecordOperation(ctx, string(op), "failed")
	i.audit.Log(ctx, audit.Event{
		Type:     audit.TypeLifecycleFailed,
		TenantID: tenantID,
		Resource: "installation",
		Metadata: map[string]any{"operation": string(op), "error": err.Error()},
	})
	return &ActionError{Op: op, TenantID: tenantID, Err: err}
}

func (i *Installer) startSpan(ctx context.Context, name, tenantID string) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("lifecycle.version", i.version),
	))
}

func (i *Installer) fail(ctx context.Context, span trace.Span, op string, err error) (bool, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return i.guard.Fail(ctx, op, err)
}
