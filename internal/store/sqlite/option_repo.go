package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opentrusty/lifecycle/internal/option"
)

// OptionRepo implements [option.Store] backed by SQLite.
type OptionRepo struct {
	DB *sql.DB
}

func (r *OptionRepo) Get(ctx context.Context, tenantID, name string) (string, error) {
	if err := option.ValidateKey(tenantID, name); err != nil {
		return "", err
	}
	var value string
	err := r.DB.QueryRowContext(ctx,
		`SELECT value FROM tenant_options WHERE tenant_id = ? AND name = ?`,
		tenantID, name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", option.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get option: %w", err)
	}
	return value, nil
}

func (r *OptionRepo) Set(ctx context.Context, tenantID, name, value string) error {
	if err := option.ValidateKey(tenantID, name); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO tenant_options (tenant_id, name, value) VALUES (?, ?, ?)
		 ON CONFLICT (tenant_id, name) DO UPDATE SET value = excluded.value`,
		tenantID, name, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set option: %w", err)
	}
	return nil
}

func (r *OptionRepo) Delete(ctx context.Context, tenantID, name string) error {
	if err := option.ValidateKey(tenantID, name); err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx,
		`DELETE FROM tenant_options WHERE tenant_id = ? AND name = ?`,
		tenantID, name,
	); err != nil {
		return fmt.Errorf("failed to delete option: %w", err)
	}
	return nil
}

func (r *OptionRepo) DeletePrefix(ctx context.Context, tenantID, prefix string) (int64, error) {
	if err := option.ValidateKey(tenantID, prefix); err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM tenant_options WHERE tenant_id = ? AND substr(name, 1, length(?)) = ?`,
		tenantID, prefix, prefix,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete options: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

func (r *OptionRepo) List(ctx context.Context, tenantID, prefix string) (map[string]string, error) {
	if tenantID == "" {
		return nil, option.ErrNoTenant
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT name, value FROM tenant_options
		 WHERE tenant_id = ? AND substr(name, 1, length(?)) = ?
		 ORDER BY name`,
		tenantID, prefix, prefix,
	)
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
	return out, rows.Err()
}
