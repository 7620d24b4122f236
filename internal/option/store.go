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

// Package option stores tenant-scoped key/value options and exposes typed
// accessors with default fallback over them.
package option

import (
	"context"
	"errors"
)

var (
	ErrNotFound    = errors.New("option not found")
	ErrInvalidName = errors.New("invalid option name")
	ErrNoTenant    = errors.New("tenant id is required")
)

// Store persists raw option values per tenant.
type Store interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, tenantID, name string) (string, error)
	Set(ctx context.Context, tenantID, name, value string) error
	// Delete removes the option. Deleting a missing option is not an error.
	Delete(ctx context.Context, tenantID, name string) error
	// DeletePrefix removes every option whose name starts with prefix and
	// reports how many were removed.
	DeletePrefix(ctx context.Context, tenantID, prefix string) (int64, error)
	// List returns every option whose name starts with prefix.
	List(ctx context.Context, tenantID, prefix string) (map[string]string, error)
}

// ValidateKey checks the tenant and option name before they reach storage.
func ValidateKey(tenantID, name string) error {
	if tenantID == "" {
		return ErrNoTenant
	}
	if name == "" || len(name) > 191 {
		return ErrInvalidName
	}
	return nil
}
