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

package tenant

import (
	"context"
	"sync"
)

type contextKey struct{}

// WithTenant returns a context whose current tenant is tenantID.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// FromContext returns the current tenant, or "" if none is set.
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}

// Require returns the current tenant or ErrNoTenant.
func Require(ctx context.Context) (string, error) {
	if t := FromContext(ctx); t != "" {
		return t, nil
	}
	return "", ErrNoTenant
}

// Switcher makes a tenant current for the duration of a scope. The returned
// restore func puts back whatever tenant was current before and must be
// called exactly once, normally with defer.
type Switcher interface {
	Switch(ctx context.Context, tenantID string) (context.Context, func())
}

// Scope is a Switcher that also tracks the process-wide current tenant for
// collaborators that do not read it from the context.
type Scope struct {
	mu      sync.Mutex
	current string
}

// NewScope creates a scope whose current tenant is initial.
func NewScope(initial string) *Scope {
	return &Scope{current: initial}
}

// Current returns the process-wide current tenant.
func (s *Scope) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Switch makes tenantID current and returns a context carrying it.
func (s *Scope) Switch(ctx context.Context, tenantID string) (context.Context, func()) {
	s.mu.Lock()
	prev := s.current
	s.current = tenantID
	s.mu.Unlock()

	var once sync.Once
	restore := func() {
		once.Do(func() {
			s.mu.Lock()
			s.current = prev
			s.mu.Unlock()
		})
	}
	return WithTenant(ctx, tenantID), restore
}
