package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that the current tenant travels in the context.
// Scope: Unit Test
// Expected: Require fails with ErrNoTenant until a tenant is attached.
// Test Case ID: TEN-06
func TestTenant_Context_Require(t *testing.T) {
	ctx := context.Background()

	_, err := Require(ctx)
	assert.ErrorIs(t, err, ErrNoTenant)

	ctx = WithTenant(ctx, "site-a")
	got, err := Require(ctx)
	require.NoError(t, err)
	assert.Equal(t, "site-a", got)
}

// TestPurpose: Validates that a switch is undone by its restore func.
// Scope: Unit Test
// Expected: The previous tenant is current again after restore, and a second restore is harmless.
// Test Case ID: TEN-07
func TestTenant_Scope_SwitchRestore(t *testing.T) {
	scope := NewScope("main")

	ctx, restore := scope.Switch(context.Background(), "site-b")
	assert.Equal(t, "site-b", scope.Current())
	assert.Equal(t, "site-b", FromContext(ctx))

	inner, restoreInner := scope.Switch(ctx, "site-c")
	assert.Equal(t, "site-c", FromContext(inner))
	restoreInner()
	assert.Equal(t, "site-b", scope.Current())

	restore()
	restore()
	assert.Equal(t, "main", scope.Current())
}

// TestPurpose: Validates that restore runs even when the scoped work panics.
// Scope: Unit Test
// Expected: A deferred restore puts the original tenant back after a recovered panic.
// Test Case ID: TEN-08
func TestTenant_Scope_RestoreOnPanic(t *testing.T) {
	scope := NewScope("main")

	func() {
		defer func() { _ = recover() }()
		_, restore := scope.Switch(context.Background(), "site-b")
		defer restore()
		panic("action failed")
	}()

	assert.Equal(t, "main", scope.Current())
}
