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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/lifecycle/internal/sitemeta"
)

// SiteMetaRepository implements sitemeta.Store
type SiteMetaRepository struct {
	db *DB
}

// NewSiteMetaRepository creates a new site meta repository
func NewSiteMetaRepository(db *DB) *SiteMetaRepository {
	return &SiteMetaRepository{db: db}
}

// Get retrieves a meta value for a tenant
func (r *SiteMetaRepository) Get(ctx context.Context, tenantID, key string) (string, error) {
	var value string
	err := r.db.pool.QueryRow(ctx, `
		SELECT meta_value FROM tenant_meta
		WHERE tenant_id = $1 AND meta_key = $2
	`, tenantID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", sitemeta.ErrNotFound
		}
		return "", fmt.Errorf("failed to get site meta: %w", err)
	}
	return value, nil
}

// Set inserts or replaces a meta value
func (r *SiteMetaRepository) Set(ctx context.Context, tenantID, key, value string) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO tenant_meta (tenant_id, meta_key, meta_value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, meta_key)
		DO UPDATE SET meta_value = EXCLUDED.meta_value, updated_at = EXCLUDED.updated_at
	`, tenantID, key, value)
	if err != nil {
		return fmt.Errorf("failed to set site meta: %w", err)
	}
	return nil
}

// Delete removes a meta value
func (r *SiteMetaRepository) Delete(ctx context.Context, tenantID, key string) error {
	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM tenant_meta WHERE tenant_id = $1 AND meta_key = $2
	`, tenantID, key)
	if err != nil {
		return fmt.Errorf("failed to delete site meta: %w", err)
	}
	return nil
}

// TenantsWithKey lists tenants holding a non-empty value for key
func (r *SiteMetaRepository) TenantsWithKey(ctx context.Context, key string, limit int) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT tenant_id FROM tenant_meta
		WHERE meta_key = $1 AND meta_value <> ''
		ORDER BY tenant_id
		LIMIT $2
	`, key, sitemeta.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants by meta: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan tenant ids: %w", err)
	}
	return ids, nil
}
