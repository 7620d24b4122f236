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
)

// ErrActionFailed matches every *ActionError.
var ErrActionFailed = errors.New("lifecycle action failed")

// Op names an installer action.
type Op string

const (
	OpInstall   Op = "install"
	OpUpgrade   Op = "upgrade"
	OpUninstall Op = "uninstall"
)

// Actions performs the application's data work for one tenant. The tenant
// is available from the context via tenant.FromContext.
type Actions interface {
	Install(ctx context.Context) error
	// Upgrade migrates data written by the from version.
	Upgrade(ctx context.Context, from string) error
	Uninstall(ctx context.Context) error
}

// ActionFuncs adapts plain functions to Actions. Nil funcs succeed.
type ActionFuncs struct {
	InstallFunc   func(ctx context.Context) error
	UpgradeFunc   func(ctx context.Context, from string) error
	UninstallFunc func(ctx context.Context) error
}

func (f ActionFuncs) Install(ctx context.Context) error {
	if f.InstallFunc == nil {
		return nil
	}
	return f.InstallFunc(ctx)
}

func (f ActionFuncs) Upgrade(ctx context.Context, from string) error {
	if f.UpgradeFunc == nil {
		return nil
	}
	return f.UpgradeFunc(ctx, from)
}

func (f ActionFuncs) Uninstall(ctx context.Context) error {
	if f.UninstallFunc == nil {
		return nil
	}
	return f.UninstallFunc(ctx)
}

// ActionError reports an action that did not complete for a tenant.
type ActionError struct {
	Op       Op
	TenantID string
	Err      error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s action failed for tenant %s: %v", e.Op, e.TenantID, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrActionFailed) hold for any ActionError.
func (e *ActionError) Is(target error) bool { return target == ErrActionFailed }
