package option_test

import (
	"context"
	"errors"
	"testing"

	"github.com/opentrusty/lifecycle/internal/option"
	"github.com/opentrusty/lifecycle/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	option.Store
	err error
}

func (f failingStore) Get(context.Context, string, string) (string, error) {
	return "", f.err
}

// TestPurpose: Validates default fallback for missing options.
// Scope: Unit Test
// Expected: A missing option reads as the configured default.
// Test Case ID: OPT-01
func TestOption_DefaultWhenMissing(t *testing.T) {
	store := memory.NewOptionStore()
	ctx := context.Background()

	s, err := option.String(store, "lifecycle_version", "").Get(ctx, "site-a")
	require.NoError(t, err)
	assert.Empty(t, s)

	b, err := option.Bool(store, "lifecycle_delete_data", false).Get(ctx, "site-a")
	require.NoError(t, err)
	assert.False(t, b)

	n, err := option.Int(store, "app.page_size", 25).Get(ctx, "site-a")
	require.NoError(t, err)
	assert.Equal(t, 25, n)
}

// TestPurpose: Validates typed casting of stored values.
// Scope: Unit Test
// Expected: Common boolean spellings, numeric strings and plain strings are cast; uncastable values fall back to the default.
// Test Case ID: OPT-02
func TestOption_Casting(t *testing.T) {
	store := memory.NewOptionStore()
	ctx := context.Background()
	flag := option.Bool(store, "flag", false)

	for raw, want := range map[string]bool{"1": true, "true": true, "yes": true, "0": false, "false": false, "off": false} {
		require.NoError(t, store.Set(ctx, "site-a", "flag", raw))
		got, err := flag.Get(ctx, "site-a")
		require.NoError(t, err)
		assert.Equal(t, want, got, raw)
	}

	require.NoError(t, store.Set(ctx, "site-a", "flag", "maybe"))
	got, err := option.Bool(store, "flag", true).Get(ctx, "site-a")
	require.NoError(t, err)
	assert.True(t, got)

	require.NoError(t, store.Set(ctx, "site-a", "size", "42"))
	n, err := option.Int(store, "size", 0).Get(ctx, "site-a")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	require.NoError(t, store.Set(ctx, "site-a", "size", "lots"))
	n, err = option.Int(store, "size", 7).Get(ctx, "site-a")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	version := option.String(store, "version", "0.0.0")
	require.NoError(t, version.Update(ctx, "site-a", "1.2.0"))
	s, err := version.Get(ctx, "site-a")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", s)
}

// TestPurpose: Validates update and delete round trips through the typed accessor.
// Scope: Unit Test
// Expected: Update stores the encoded value and Delete restores the default.
// Test Case ID: OPT-03
func TestOption_UpdateDelete(t *testing.T) {
	store := memory.NewOptionStore()
	ctx := context.Background()
	flag := option.Bool(store, "lifecycle_delete_data", false)
	assert.Equal(t, "lifecycle_delete_data", flag.Name())

	require.NoError(t, flag.Update(ctx, "site-a", true))
	raw, err := store.Get(ctx, "site-a", "lifecycle_delete_data")
	require.NoError(t, err)
	assert.Equal(t, "true", raw)

	require.NoError(t, flag.Delete(ctx, "site-a"))
	got, err := flag.Get(ctx, "site-a")
	require.NoError(t, err)
	assert.False(t, got)
}

// TestPurpose: Validates that storage failures are not masked by the default.
// Scope: Unit Test
// Expected: A store error is returned wrapped, alongside the default value.
// Test Case ID: OPT-04
func TestOption_StoreError(t *testing.T) {
	boom := errors.New("connection refused")
	v, err := option.String(failingStore{err: boom}, "k", "def").Get(context.Background(), "site-a")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "def", v)
}

// TestPurpose: Validates key validation.
// Scope: Unit Test
// Expected: Empty tenant or name is rejected.
// Test Case ID: OPT-05
func TestValidateKey(t *testing.T) {
	assert.ErrorIs(t, option.ValidateKey("", "k"), option.ErrNoTenant)
	assert.ErrorIs(t, option.ValidateKey("site-a", ""), option.ErrInvalidName)
	assert.NoError(t, option.ValidateKey("site-a", "k"))
}
