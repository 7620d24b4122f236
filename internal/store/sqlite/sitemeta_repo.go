package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opentrusty/lifecycle/internal/sitemeta"
)

// SiteMetaRepo implements [sitemeta.Store] backed by SQLite.
type SiteMetaRepo struct {
	DB *sql.DB
}

func (r *SiteMetaRepo) Get(ctx context.Context, tenantID, key string) (string, error) {
	var value string
	err := r.DB.QueryRowContext(ctx,
		`SELECT meta_value FROM tenant_meta WHERE tenant_id = ? AND meta_key = ?`,
		tenantID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sitemeta.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get site meta: %w", err)
	}
	return value, nil
}

func (r *SiteMetaRepo) Set(ctx context.Context, tenantID, key, value string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO tenant_meta (tenant_id, meta_key, meta_value) VALUES (?, ?, ?)
		 ON CONFLICT (tenant_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`,
		tenantID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set site meta: %w", err)
	}
	return nil
}

func (r *SiteMetaRepo) Delete(ctx context.Context, tenantID, key string) error {
	if _, err := r.DB.ExecContext(ctx,
		`DELETE FROM tenant_meta WHERE tenant_id = ? AND meta_key = ?`,
		tenantID, key,
	); err != nil {
		return fmt.Errorf("failed to delete site meta: %w", err)
	}
	return nil
}

func (r *SiteMetaRepo) TenantsWithKey(ctx context.Context, key string, limit int) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT tenant_id FROM tenant_meta
		 WHERE meta_key = ? AND meta_value <> ''
		 ORDER BY tenant_id LIMIT ?`,
		key, sitemeta.ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants by meta: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
