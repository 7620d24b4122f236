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

// Package app wires configuration, stores and the installer together for the
// server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opentrusty/lifecycle/internal/appdata"
	"github.com/opentrusty/lifecycle/internal/audit"
	"github.com/opentrusty/lifecycle/internal/config"
	"github.com/opentrusty/lifecycle/internal/guard"
	"github.com/opentrusty/lifecycle/internal/installer"
	"github.com/opentrusty/lifecycle/internal/observability/logger"
	"github.com/opentrusty/lifecycle/internal/observability/metrics"
	"github.com/opentrusty/lifecycle/internal/observability/tracing"
	"github.com/opentrusty/lifecycle/internal/option"
	"github.com/opentrusty/lifecycle/internal/sitemeta"
	"github.com/opentrusty/lifecycle/internal/store/memory"
	"github.com/opentrusty/lifecycle/internal/store/postgres"
	"github.com/opentrusty/lifecycle/internal/store/redis"
	"github.com/opentrusty/lifecycle/internal/store/sqlite"
	"github.com/opentrusty/lifecycle/internal/tenant"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	Installer *installer.Installer
	Tenants   *tenant.Service
	Scope     *tenant.Scope
	Options   option.Store
	Audit     audit.Logger
	Tracer    *tracing.Tracer

	migrate func(ctx context.Context) error
	closers []func() error
}

type stores struct {
	options option.Store
	meta    sitemeta.Store
	tenants tenant.Repository
}

// Build wires the application for cfg. Call Close when done.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{
		Config: cfg,
		Audit:  audit.NewSlogLogger(),
		Scope:  tenant.NewScope(cfg.Installer.PrimaryTenant),
	}

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize tracer", logger.Error(err))
		tracer = tracing.Noop()
	}
	a.Tracer = tracer
	a.closers = append(a.closers, func() error { return tracer.Shutdown(context.Background()) })

	meter, err := metrics.New(ctx, metrics.Config{Enabled: cfg.Observability.OTELEnabled}, cfg.Observability.ServiceName)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize meter", logger.Error(err))
		meter = metrics.NewNoop()
	}
	instruments, err := metrics.NewLifecycle(meter)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	s, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Options = s.options
	a.Tenants = tenant.NewService(s.tenants, a.Audit)

	actions, err := appdata.New(s.options, appdata.DefaultPlan(), cfg.Installer.Version)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build application actions: %w", err)
	}

	deps := installer.Deps{
		Actions:     actions,
		Markers:     option.String(s.options, cfg.Installer.MarkerKey, ""),
		Flags:       option.Bool(s.options, cfg.Installer.DeleteDataKey, false),
		Audit:       a.Audit,
		Tracer:      tracer,
		Instruments: instruments,
	}
	if cfg.Installer.Multisite {
		mirror, err := a.openMirror(ctx, s.meta)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Fleet = mirror
		deps.Switcher = a.Scope
		deps.Tenants = s.tenants
	}

	a.Installer, err = installer.New(installer.Config{
		Version:   cfg.Installer.Version,
		MarkerKey: cfg.Installer.MarkerKey,
		PageSize:  cfg.Installer.FleetPageSize,
		Mode:      guard.ModeFor(cfg.Installer.Debug),
	}, deps)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create installer: %w", err)
	}

	slog.InfoContext(ctx, "application wired",
		logger.Driver(cfg.Store.Driver),
		logger.Version(cfg.Installer.Version),
		slog.Bool("multisite", cfg.Installer.Multisite),
		slog.String("failure_mode", a.Installer.Mode().String()),
	)
	return a, nil
}

func (a *App) openStores(ctx context.Context) (stores, error) {
	cfg := a.Config
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, postgres.Config{
			Host:           cfg.Database.Host,
			Port:           cfg.Database.Port,
			User:           cfg.Database.User,
			Password:       cfg.Database.Password,
			Database:       cfg.Database.Database,
			SSLMode:        cfg.Database.SSLMode,
			MaxOpenConns:   cfg.Database.MaxOpenConns,
			MaxIdleConns:   cfg.Database.MaxIdleConns,
			ConnectTimeout: cfg.Database.ConnectTimeout,
		})
		if err != nil {
			return stores{}, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, func() error { db.Close(); return nil })
		a.migrate = func(ctx context.Context) error { return db.Migrate(ctx, postgres.InitialSchema) }
		return stores{
			options: postgres.NewOptionRepository(db),
			meta:    postgres.NewSiteMetaRepository(db),
			tenants: postgres.NewTenantRepository(db),
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return stores{}, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.migrate = func(context.Context) error { return sqlite.Migrate(db) }
		return stores{
			options: &sqlite.OptionRepo{DB: db},
			meta:    &sqlite.SiteMetaRepo{DB: db},
			tenants: &sqlite.TenantRepo{DB: db},
		}, nil

	case config.DriverMemory:
		a.migrate = func(context.Context) error { return nil }
		return stores{
			options: memory.NewOptionStore(),
			meta:    memory.NewSiteMetaStore(),
			tenants: memory.NewTenantRepository(),
		}, nil
	}
	return stores{}, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func (a *App) openMirror(ctx context.Context, dbMeta sitemeta.Store) (sitemeta.Store, error) {
	if a.Config.Installer.MirrorBackend != config.MirrorRedis {
		return dbMeta, nil
	}
	rc := a.Config.Redis
	store, err := redis.NewSiteMetaStore(ctx, redis.Config{
		Addr:           rc.Addr,
		Password:       rc.Password,
		DB:             rc.DB,
		ConnectTimeout: rc.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

// Migrate applies the store schema.
func (a *App) Migrate(ctx context.Context) error {
	if a.migrate == nil {
		return errors.New("no store configured")
	}
	if err := a.migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// EnsurePrimaryTenant creates the primary tenant record if it is missing.
func (a *App) EnsurePrimaryTenant(ctx context.Context) error {
	id := a.Config.Installer.PrimaryTenant
	_, err := a.Tenants.GetTenant(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, tenant.ErrTenantNotFound) {
		return err
	}
	if _, err := a.Tenants.CreateTenant(ctx, id, id); err != nil && !errors.Is(err, tenant.ErrTenantAlreadyExists) {
		return err
	}
	return nil
}

// PrimaryContext returns ctx with the primary tenant as current tenant.
func (a *App) PrimaryContext(ctx context.Context) context.Context {
	return tenant.WithTenant(ctx, a.Config.Installer.PrimaryTenant)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
