// Package memory provides in-process implementations of the option, site
// meta and tenant stores for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opentrusty/lifecycle/internal/option"
	"github.com/opentrusty/lifecycle/internal/sitemeta"
	"github.com/opentrusty/lifecycle/internal/tenant"
)

type key struct {
	tenantID string
	name     string
}

// OptionStore implements option.Store.
type OptionStore struct {
	mu   sync.RWMutex
	data map[key]string
}

func NewOptionStore() *OptionStore {
	return &OptionStore{data: make(map[key]string)}
}

func (s *OptionStore) Get(_ context.Context, tenantID, name string) (string, error) {
	if err := option.ValidateKey(tenantID, name); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key{tenantID, name}]
	if !ok {
		return "", option.ErrNotFound
	}
	return v, nil
}

func (s *OptionStore) Set(_ context.Context, tenantID, name, value string) error {
	if err := option.ValidateKey(tenantID, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key{tenantID, name}] = value
	return nil
}

func (s *OptionStore) Delete(_ context.Context, tenantID, name string) error {
	if err := option.ValidateKey(tenantID, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key{tenantID, name})
	return nil
}

func (s *OptionStore) DeletePrefix(_ context.Context, tenantID, prefix string) (int64, error) {
	if err := option.ValidateKey(tenantID, prefix); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if k.tenantID == tenantID && strings.HasPrefix(k.name, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *OptionStore) List(_ context.Context, tenantID, prefix string) (map[string]string, error) {
	if tenantID == "" {
		return nil, option.ErrNoTenant
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string)
	for k, v := range s.data {
		if k.tenantID == tenantID && strings.HasPrefix(k.name, prefix) {
			out[k.name] = v
		}
	}
	return out, nil
}

// SiteMetaStore implements sitemeta.Store.
type SiteMetaStore struct {
	mu   sync.RWMutex
	data map[key]string
}

func NewSiteMetaStore() *SiteMetaStore {
	return &SiteMetaStore{data: make(map[key]string)}
}

func (s *SiteMetaStore) Get(_ context.Context, tenantID, metaKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key{tenantID, metaKey}]
	if !ok {
		return "", sitemeta.ErrNotFound
	}
	return v, nil
}

func (s *SiteMetaStore) Set(_ context.Context, tenantID, metaKey, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key{tenantID, metaKey}] = value
	return nil
}

func (s *SiteMetaStore) Delete(_ context.Context, tenantID, metaKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key{tenantID, metaKey})
	return nil
}

func (s *SiteMetaStore) TenantsWithKey(_ context.Context, metaKey string, limit int) ([]string, error) {
	s.mu.RLock()
	var ids []string
	for k, v := range s.data {
		if k.name == metaKey && v != "" {
			ids = append(ids, k.tenantID)
		}
	}
	s.mu.RUnlock()

	sort.Strings(ids)
	if limit = sitemeta.ClampLimit(limit); len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// TenantRepository implements tenant.Repository.
type TenantRepository struct {
	mu      sync.RWMutex
	tenants map[string]tenant.Tenant
}

func NewTenantRepository() *TenantRepository {
	return &TenantRepository{tenants: make(map[string]tenant.Tenant)}
}

func (r *TenantRepository) Create(_ context.Context, t *tenant.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tenants[t.ID]; ok {
		return tenant.ErrTenantAlreadyExists
	}
	for _, existing := range r.tenants {
		if existing.Name == t.Name {
			return tenant.ErrTenantAlreadyExists
		}
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	r.tenants[t.ID] = *t
	return nil
}

func (r *TenantRepository) GetByID(_ context.Context, id string) (*tenant.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return &t, nil
}

func (r *TenantRepository) GetByName(_ context.Context, name string) (*tenant.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenants {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (r *TenantRepository) Update(_ context.Context, t *tenant.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tenants[t.ID]; !ok {
		return tenant.ErrTenantNotFound
	}
	t.UpdatedAt = time.Now().UTC()
	r.tenants[t.ID] = *t
	return nil
}

func (r *TenantRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tenants[id]; !ok {
		return tenant.ErrTenantNotFound
	}
	delete(r.tenants, id)
	return nil
}

func (r *TenantRepository) List(_ context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.tenants))
	for id := range r.tenants {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	if offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*tenant.Tenant, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.tenants[id]; ok {
			out = append(out, &t)
		}
	}
	return out, nil
}
