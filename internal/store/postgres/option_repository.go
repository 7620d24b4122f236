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
	"github.com/opentrusty/lifecycle/internal/option"
)

// OptionRepository implements option.Store
type OptionRepository struct {
	db *DB
}

// NewOptionRepository creates a new option repository
func NewOptionRepository(db *DB) *OptionRepository {
	return &OptionRepository{db: db}
}

// Get retrieves a single option value
func (r *OptionRepository) Get(ctx context.Context, tenantID, name string) (string, error) {
	if err := option.ValidateKey(tenantID, name); err != nil {
		return "", err
	}

	var value string
	err := r.db.pool.QueryRow(ctx, `
		SELECT value FROM tenant_options
		WHERE tenant_id = $1 AND name = $2
	`, tenantID, name).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", option.ErrNotFound
		}
		return "", fmt.Errorf("failed to get option: %w", err)
	}
	return value, nil
}

// Set inserts or replaces an option value
func (r *OptionRepository) Set(ctx context.Context, tenantID, name, value string) error {
	if err := option.ValidateKey(tenantID, name); err != nil {
		return err
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO tenant_options (tenant_id, name, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, name)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, tenantID, name, value)
	if err != nil {
		return fmt.Errorf("failed to set option: %w", err)
	}
	return nil
}

// Delete removes an option
func (r *OptionRepository) Delete(ctx context.Context, tenantID, name string) error {
	if err := option.ValidateKey(tenantID, name); err != nil {
		return err
	}

	_, err := r.db.pool.Exec(ctx, `
		DELETE FROM tenant_options WHERE tenant_id = $1 AND name = $2
	`, tenantID, name)
	if err != nil {
		return fmt.Errorf("failed to delete option: %w", err)
	}
	return nil
}

// DeletePrefix removes every option whose name starts with prefix
func (r *OptionRepository) DeletePrefix(ctx context.Context, tenantID, prefix string) (int64, error) {
	if err := option.ValidateKey(tenantID, prefix); err != nil {
		return 0, err
	}

	result, err := r.db.pool.Exec(ctx, `
		DELETE FROM tenant_options
		WHERE tenant_id = $1 AND left(name, char_length($2)) = $2
	`, tenantID, prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to delete options: %w", err)
	}
	return result.RowsAffected(), nil
}

// List returns options whose name starts with prefix
func (r *OptionRepository) List(ctx context.Context, tenantID, prefix string) (map[string]string, error) {
	if tenantID == "" {
		return nil, option.ErrNoTenant
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT name, value FROM tenant_options
		WHERE tenant_id = $1 AND left(name, char_length($2)) = $2
		ORDER BY name
	`, tenantID, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate options: %w", err)
	}
	return out, nil
}
