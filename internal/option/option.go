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

package option

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/opentrusty/lifecycle/internal/observability/logger"
	"github.com/spf13/cast"
)

// Option is a typed view over a single named option in a Store.
type Option[T any] struct {
	store  Store
	name   string
	def    T
	decode func(string) (T, error)
	encode func(T) string
}

// String returns an option holding a string value.
func String(store Store, name, def string) *Option[string] {
	return &Option[string]{
		store:  store,
		name:   name,
		def:    def,
		decode: func(raw string) (string, error) { return cast.ToStringE(raw) },
		encode: func(v string) string { return v },
	}
}

// Bool returns an option holding a boolean. Stored values such as "1",
// "true" and "yes" are accepted.
func Bool(store Store, name string, def bool) *Option[bool] {
	return &Option[bool]{
		store:  store,
		name:   name,
		def:    def,
		decode: decodeBool,
		encode: strconv.FormatBool,
	}
}

// Int returns an option holding an integer.
func Int(store Store, name string, def int) *Option[int] {
	return &Option[int]{
		store:  store,
		name:   name,
		def:    def,
		decode: func(raw string) (int, error) { return cast.ToIntE(raw) },
		encode: strconv.Itoa,
	}
}

func decodeBool(raw string) (bool, error) {
	switch raw {
	case "yes", "on", "y":
		return true, nil
	case "no", "off", "n", "":
		return false, nil
	}
	return cast.ToBoolE(raw)
}

// Name returns the option's storage key.
func (o *Option[T]) Name() string { return o.name }

// Default returns the value used when nothing usable is stored.
func (o *Option[T]) Default() T { return o.def }

// Get returns the typed value for tenantID. A missing value, or one that
// cannot be cast to T, yields the default.
func (o *Option[T]) Get(ctx context.Context, tenantID string) (T, error) {
	raw, err := o.store.Get(ctx, tenantID, o.name)
	if errors.Is(err, ErrNotFound) {
		return o.def, nil
	}
	if err != nil {
		return o.def, fmt.Errorf("failed to read option %s: %w", o.name, err)
	}

	v, err := o.decode(raw)
	if err != nil {
		slog.WarnContext(ctx, "option value cannot be cast, using default",
			logger.Key(o.name),
			logger.TenantID(tenantID),
			logger.Error(err),
		)
		return o.def, nil
	}
	return v, nil
}

// Update stores v for tenantID.
func (o *Option[T]) Update(ctx context.Context, tenantID string, v T) error {
	if err := o.store.Set(ctx, tenantID, o.name, o.encode(v)); err != nil {
		return fmt.Errorf("failed to update option %s: %w", o.name, err)
	}
	return nil
}

// Delete removes the stored value for tenantID.
func (o *Option[T]) Delete(ctx context.Context, tenantID string) error {
	if err := o.store.Delete(ctx, tenantID, o.name); err != nil {
		return fmt.Errorf("failed to delete option %s: %w", o.name, err)
	}
	return nil
}
