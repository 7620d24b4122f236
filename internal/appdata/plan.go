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

package appdata

import (
	"context"
	"errors"

	"github.com/opentrusty/lifecycle/internal/option"
)

// Prefix is the option namespace owned by the application.
const Prefix = "app."

// DefaultPlan returns the application's defaults and upgrade ladder.
func DefaultPlan() Plan {
	return Plan{
		Prefix: Prefix,
		Defaults: map[string]string{
			"app.retention_days":        "30",
			"app.notifications_enabled": "true",
			"app.default_locale":        "en",
			"app.page_size":             "25",
		},
		Steps: []Step{
			{
				Version:     "0.9.0",
				Description: "split locale from region",
				Apply:       splitLocale,
			},
			{
				Version:     "1.0.0",
				Description: "rename retention to retention_days",
				Apply:       renameOption("app.retention", "app.retention_days"),
			},
		},
	}
}

// renameOption moves a value to a new name unless the new name is already set.
func renameOption(from, to string) func(context.Context, option.Store, string) error {
	return func(ctx context.Context, store option.Store, tenantID string) error {
		v, err := store.Get(ctx, tenantID, from)
		if errors.Is(err, option.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := store.Get(ctx, tenantID, to); errors.Is(err, option.ErrNotFound) {
			if err := store.Set(ctx, tenantID, to, v); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		return store.Delete(ctx, tenantID, from)
	}
}

// splitLocale turns app.locale values like "en_US" into
// app.default_locale=en and app.region=US.
func splitLocale(ctx context.Context, store option.Store, tenantID string) error {
	v, err := store.Get(ctx, tenantID, "app.locale")
	if errors.Is(err, option.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	lang, region := v, ""
	for i := 0; i < len(v); i++ {
		if v[i] == '_' || v[i] == '-' {
			lang, region = v[:i], v[i+1:]
			break
		}
	}
	if err := store.Set(ctx, tenantID, "app.default_locale", lang); err != nil {
		return err
	}
	if region != "" {
		if err := store.Set(ctx, tenantID, "app.region", region); err != nil {
			return err
		}
	}
	return store.Delete(ctx, tenantID, "app.locale")
}
