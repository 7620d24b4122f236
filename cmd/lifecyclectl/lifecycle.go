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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/opentrusty/lifecycle/internal/app"
	"github.com/opentrusty/lifecycle/internal/installer"
	"github.com/opentrusty/lifecycle/internal/tenant"
	"github.com/spf13/cobra"
)

// maxFleetPasses bounds --until-done so a fleet that never drains cannot
// loop forever.
const maxFleetPasses = 10000

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
				if err := a.EnsurePrimaryTenant(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "migration complete")
				return err
			})
		},
	}
}

func newInstallCmd(opts *rootOptions) *cobra.Command {
	var (
		tenantID string
		fleet    bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install or upgrade a tenant's data, or every tenant's with --fleet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fleet && tenantID != "" {
				return errors.New("--fleet and --tenant are mutually exclusive")
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				if fleet {
					report, err := a.Installer.InstallFleet(ctx)
					if perr := printReport(out, "install", report); perr != nil {
						return perr
					}
					return reportError("fleet install", report, err)
				}

				id := opts.tenantOrPrimary(tenantID)
				ok, err := a.Installer.Install(tenant.WithTenant(ctx, id))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("install failed for tenant %s", id)
				}
				_, err = fmt.Fprintf(out, "tenant %s is at version %s\n", id, a.Installer.Version())
				return err
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant to install (default: the primary tenant)")
	cmd.Flags().BoolVar(&fleet, "fleet", false, "install every tenant in the directory")
	return cmd
}

func newUninstallCmd(opts *rootOptions) *cobra.Command {
	var (
		tenantID  string
		untilDone bool
	)

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove tenant data for tenants that opted in",
		Long: "Without --tenant in multisite mode, uninstalls one page of installed tenants.\n" +
			"--until-done repeats while pages are full and each pass makes progress.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				if tenantID != "" || !a.Installer.Multisite() {
					if untilDone {
						return errors.New("--until-done only applies to fleet uninstall")
					}
					id := opts.tenantOrPrimary(tenantID)
					ok, err := a.Installer.UninstallCurrent(tenant.WithTenant(ctx, id))
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("uninstall failed for tenant %s", id)
					}
					_, err = fmt.Fprintf(out, "tenant %s uninstall complete\n", id)
					return err
				}

				var failed bool
				for pass := 0; pass < maxFleetPasses; pass++ {
					report, err := a.Installer.UninstallFleet(ctx)
					if perr := printReport(out, "uninstall", report); perr != nil {
						return perr
					}
					if err := reportError("fleet uninstall", report, err); err != nil {
						if report.Err != nil || !untilDone {
							return err
						}
						failed = true
					}
					if !untilDone || !report.More || !report.Progressed() {
						break
					}
				}
				if failed {
					return errors.New("fleet uninstall finished with failures")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "uninstall only this tenant")
	cmd.Flags().BoolVar(&untilDone, "until-done", false, "repeat fleet uninstall until no installed tenants remain")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a tenant's installation status as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				status, err := a.Installer.Status(tenant.WithTenant(ctx, opts.tenantOrPrimary(tenantID)))
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), status)
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant to inspect (default: the primary tenant)")
	return cmd
}

func newDeleteDataCmd(opts *rootOptions) *cobra.Command {
	var (
		tenantID string
		enable   bool
		disable  bool
	)

	cmd := &cobra.Command{
		Use:   "delete-data",
		Short: "Opt a tenant in or out of data removal on uninstall",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				id := opts.tenantOrPrimary(tenantID)
				if err := a.Installer.SetDeleteData(tenant.WithTenant(ctx, id), enable); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "tenant %s delete-data=%t\n", id, enable)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant to configure (default: the primary tenant)")
	cmd.Flags().BoolVar(&enable, "enable", false, "remove data on uninstall")
	cmd.Flags().BoolVar(&disable, "disable", false, "keep data on uninstall")
	cmd.MarkFlagsMutuallyExclusive("enable", "disable")
	cmd.MarkFlagsOneRequired("enable", "disable")
	return cmd
}

func printReport(out io.Writer, op string, report installer.FleetReport) error {
	for _, res := range report.Results {
		line := fmt.Sprintf("%s %s: ok", op, res.TenantID)
		switch {
		case !res.OK:
			line = fmt.Sprintf("%s %s: failed: %s", op, res.TenantID, res.Error)
		case res.Removed:
			line += " (data removed)"
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(out, "%s: %d tenant(s), %d failed, more=%t\n",
		op, len(report.Results), len(report.Failed()), report.More)
	return err
}

func reportError(what string, report installer.FleetReport, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if report.Err != nil {
		return fmt.Errorf("%s: %w", what, report.Err)
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%s: %d tenant(s) failed", what, len(failed))
	}
	return nil
}
