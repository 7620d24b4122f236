package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opentrusty/lifecycle/internal/tenant"
)

// TenantRepo implements [tenant.Repository] backed by SQLite.
type TenantRepo struct {
	DB *sql.DB
}

func (r *TenantRepo) Create(ctx context.Context, t *tenant.Tenant) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO tenants (id, name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Status, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tenant %q: %w", t.ID, tenant.ErrTenantAlreadyExists)
		}
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	return nil
}

func (r *TenantRepo) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, name, status, created_at, updated_at FROM tenants WHERE id = ?`, id)
	return scanTenant(row)
}

func (r *TenantRepo) GetByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, name, status, created_at, updated_at FROM tenants WHERE name = ?`, name)
	return scanTenant(row)
}

func (r *TenantRepo) Update(ctx context.Context, t *tenant.Tenant) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tenants SET name = ?, status = ?, updated_at = ? WHERE id = ?`,
		t.Name, t.Status, formatTime(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return requireAffected(res)
}

func (r *TenantRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tenant_options WHERE tenant_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tenant options: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tenant_meta WHERE tenant_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete tenant meta: %w", err)
	}
	return tx.Commit()
}

func (r *TenantRepo) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, name, status, created_at, updated_at FROM tenants
		 ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(s scanner) (*tenant.Tenant, error) {
	var (
		t                tenant.Tenant
		created, updated string
	)
	if err := s.Scan(&t.ID, &t.Name, &t.Status, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}
	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &t, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}
