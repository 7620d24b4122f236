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

// Package sitemeta holds fleet-level metadata about tenants. It lives outside
// any tenant's own option space so the fleet can be queried without visiting
// every tenant.
package sitemeta

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("site meta not found")

// DefaultLimit caps TenantsWithKey when the caller asks for no limit.
const DefaultLimit = 20

// Store persists per-tenant metadata values keyed by (tenant, key).
type Store interface {
	// Get returns the value or ErrNotFound.
	Get(ctx context.Context, tenantID, key string) (string, error)
	Set(ctx context.Context, tenantID, key, value string) error
	// Delete removes the entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, tenantID, key string) error
	// TenantsWithKey returns up to limit tenant IDs holding a non-empty
	// value for key, ordered by tenant ID.
	TenantsWithKey(ctx context.Context, key string, limit int) ([]string, error)
}

// ClampLimit applies DefaultLimit to non-positive limits.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
