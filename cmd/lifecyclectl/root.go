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
	"encoding/json"
	"io"
	"os"

	"github.com/opentrusty/lifecycle/internal/app"
	"github.com/opentrusty/lifecycle/internal/config"
	"github.com/opentrusty/lifecycle/internal/observability/logger"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "lifecyclectl",
		Short:         "Install, upgrade and uninstall tenant data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Observability.LogLevel = opts.logLevel
			}
			logger.InitLogger(logger.Config{
				Level:       cfg.Observability.LogLevel,
				Format:      cfg.Observability.LogFormat,
				ServiceName: cfg.Observability.ServiceName,
				OTelEnabled: cfg.Observability.OTELEnabled,
				Output:      cmd.ErrOrStderr(),
			})
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", envOr("CONFIG_FILE", ""), "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newInstallCmd(opts),
		newUninstallCmd(opts),
		newStatusCmd(opts),
		newDeleteDataCmd(opts),
		newTenantsCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

// withApp builds the application for the duration of fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Build(ctx, o.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// tenantOrPrimary returns id, or the configured primary tenant when empty.
func (o *rootOptions) tenantOrPrimary(id string) string {
	if id == "" {
		return o.cfg.Installer.PrimaryTenant
	}
	return id
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
