// Package storetest provides contract tests for option.Store, sitemeta.Store
// and tenant.Repository implementations.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/opentrusty/lifecycle/internal/option"
	"github.com/opentrusty/lifecycle/internal/sitemeta"
	"github.com/opentrusty/lifecycle/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// OptionFactory creates a fresh, empty option.Store for each test.
type OptionFactory func(t *testing.T) option.Store

// SiteMetaFactory creates a fresh, empty sitemeta.Store for each test.
type SiteMetaFactory func(t *testing.T) sitemeta.Store

// TenantFactory creates a fresh, empty tenant.Repository for each test.
type TenantFactory func(t *testing.T) tenant.Repository

// RunOptionStore exercises the option.Store contract.
func RunOptionStore(t *testing.T, factory OptionFactory) {
	t.Run("GetNotFound", func(t *testing.T) {
		s := factory(t)
		_, err := s.Get(context.Background(), "site-a", "missing")
		assert.ErrorIs(t, err, option.ErrNotFound)
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "site-a", "lifecycle_version", "0.9.0"))
		require.NoError(t, s.Set(ctx, "site-a", "lifecycle_version", "1.0.0"))

		got, err := s.Get(ctx, "site-a", "lifecycle_version")
		require.NoError(t, err)
		assert.Equal(t, "1.0.0", got)
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "site-a", "k", "a"))

		_, err := s.Get(ctx, "site-b", "k")
		assert.ErrorIs(t, err, option.ErrNotFound)
	})

	t.Run("DeleteMissingIsNotAnError", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		assert.NoError(t, s.Delete(ctx, "site-a", "missing"))

		require.NoError(t, s.Set(ctx, "site-a", "k", "v"))
		require.NoError(t, s.Delete(ctx, "site-a", "k"))
		_, err := s.Get(ctx, "site-a", "k")
		assert.ErrorIs(t, err, option.ErrNotFound)
	})

	t.Run("DeletePrefix", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "site-a", "app.one", "1"))
		require.NoError(t, s.Set(ctx, "site-a", "app.two", "2"))
		require.NoError(t, s.Set(ctx, "site-a", "apple", "x"))
		require.NoError(t, s.Set(ctx, "site-b", "app.one", "1"))

		n, err := s.DeletePrefix(ctx, "site-a", "app.")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		left, err := s.List(ctx, "site-a", "")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"apple": "x"}, left)

		other, err := s.List(ctx, "site-b", "app.")
		require.NoError(t, err)
		assert.Len(t, other, 1)
	})

	t.Run("PrefixIsLiteral", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "site-a", "app_x", "1"))
		require.NoError(t, s.Set(ctx, "site-a", "app%y", "2"))

		got, err := s.List(ctx, "site-a", "app%")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"app%y": "2"}, got)
	})

	t.Run("RejectsEmptyTenant", func(t *testing.T) {
		s := factory(t)
		err := s.Set(context.Background(), "", "k", "v")
		assert.ErrorIs(t, err, option.ErrNoTenant)
	})
}

// RunSiteMetaStore exercises the sitemeta.Store contract.
func RunSiteMetaStore(t *testing.T, factory SiteMetaFactory) {
	t.Run("GetNotFound", func(t *testing.T) {
		s := factory(t)
		_, err := s.Get(context.Background(), "site-a", "lifecycle_version")
		assert.ErrorIs(t, err, sitemeta.ErrNotFound)
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "site-a", "lifecycle_version", "1.0.0"))

		got, err := s.Get(ctx, "site-a", "lifecycle_version")
		require.NoError(t, err)
		assert.Equal(t, "1.0.0", got)

		require.NoError(t, s.Delete(ctx, "site-a", "lifecycle_version"))
		require.NoError(t, s.Delete(ctx, "site-a", "lifecycle_version"))
		_, err = s.Get(ctx, "site-a", "lifecycle_version")
		assert.ErrorIs(t, err, sitemeta.ErrNotFound)
	})

	t.Run("TenantsWithKeyOrderedAndCapped", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		for i := 25; i >= 1; i-- {
			require.NoError(t, s.Set(ctx, fmt.Sprintf("site-%02d", i), "lifecycle_version", "1.0.0"))
		}
		require.NoError(t, s.Set(ctx, "site-00", "lifecycle_version", ""))
		require.NoError(t, s.Set(ctx, "site-99", "other", "x"))

		ids, err := s.TenantsWithKey(ctx, "lifecycle_version", 0)
		require.NoError(t, err)
		require.Len(t, ids, sitemeta.DefaultLimit)
		assert.Equal(t, "site-01", ids[0])
		assert.Equal(t, "site-20", ids[19])

		ids, err = s.TenantsWithKey(ctx, "lifecycle_version", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"site-01", "site-02", "site-03"}, ids)
	})

	t.Run("TenantsWithKeyEmpty", func(t *testing.T) {
		s := factory(t)
		ids, err := s.TenantsWithKey(context.Background(), "lifecycle_version", 20)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

// RunTenantRepository exercises the tenant.Repository contract.
func RunTenantRepository(t *testing.T, factory TenantFactory) {
	sample := func(id, name string) *tenant.Tenant {
		return &tenant.Tenant{ID: id, Name: name, Status: tenant.StatusActive}
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		r := factory(t)
		ctx := context.Background()
		require.NoError(t, r.Create(ctx, sample("site-a", "Site A")))

		got, err := r.GetByID(ctx, "site-a")
		require.NoError(t, err)
		assert.Equal(t, "Site A", got.Name)
		assert.Equal(t, tenant.StatusActive, got.Status)
		assert.False(t, got.CreatedAt.IsZero())

		byName, err := r.GetByName(ctx, "Site A")
		require.NoError(t, err)
		assert.Equal(t, "site-a", byName.ID)
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		r := factory(t)
		ctx := context.Background()
		require.NoError(t, r.Create(ctx, sample("site-a", "Site A")))
		err := r.Create(ctx, sample("site-a", "Other"))
		assert.ErrorIs(t, err, tenant.ErrTenantAlreadyExists)
	})

	t.Run("GetNotFound", func(t *testing.T) {
		r := factory(t)
		_, err := r.GetByID(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("UpdateAndDelete", func(t *testing.T) {
		r := factory(t)
		ctx := context.Background()
		tn := sample("site-a", "Site A")
		require.NoError(t, r.Create(ctx, tn))

		tn.Status = tenant.StatusInactive
		require.NoError(t, r.Update(ctx, tn))
		got, err := r.GetByID(ctx, "site-a")
		require.NoError(t, err)
		assert.Equal(t, tenant.StatusInactive, got.Status)

		require.NoError(t, r.Delete(ctx, "site-a"))
		assert.ErrorIs(t, r.Delete(ctx, "site-a"), tenant.ErrTenantNotFound)
		assert.ErrorIs(t, r.Update(ctx, tn), tenant.ErrTenantNotFound)
	})

	t.Run("ListPaged", func(t *testing.T) {
		r := factory(t)
		ctx := context.Background()
		for _, id := range []string{"c", "a", "b"} {
			require.NoError(t, r.Create(ctx, sample(id, "Site "+id)))
		}

		page, err := r.List(ctx, 2, 0)
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "a", page[0].ID)
		assert.Equal(t, "b", page[1].ID)

		page, err = r.List(ctx, 2, 2)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "c", page[0].ID)

		page, err = r.List(ctx, 2, 10)
		require.NoError(t, err)
		assert.Empty(t, page)
	})
}
