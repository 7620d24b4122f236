package appdata

import (
	"context"
	"errors"
	"testing"

	"github.com/opentrusty/lifecycle/internal/option"
	"github.com/opentrusty/lifecycle/internal/store/memory"
	"github.com/opentrusty/lifecycle/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingStep(v string, applied *[]string) Step {
	return Step{
		Version:     v,
		Description: "step " + v,
		Apply: func(_ context.Context, _ option.Store, _ string) error {
			*applied = append(*applied, v)
			return nil
		},
	}
}

// TestPurpose: Validates that install writes defaults without overwriting existing values.
// Scope: Unit Test
// Expected: Missing defaults are written and a pre-existing value is kept.
// Test Case ID: APP-01
func TestActions_Install_Defaults(t *testing.T) {
	store := memory.NewOptionStore()
	ctx := tenant.WithTenant(context.Background(), "site-a")
	require.NoError(t, store.Set(ctx, "site-a", "app.page_size", "50"))

	a, err := New(store, DefaultPlan(), "1.0.0")
	require.NoError(t, err)
	require.NoError(t, a.Install(ctx))

	got, err := store.List(ctx, "site-a", Prefix)
	require.NoError(t, err)
	assert.Equal(t, "50", got["app.page_size"])
	assert.Equal(t, "30", got["app.retention_days"])
	assert.Len(t, got, 4)
}

// TestPurpose: Validates upgrade step selection and order.
// Scope: Unit Test
// Expected: Only steps in (from, running] run, in ascending version order regardless of declaration order.
// Test Case ID: APP-02
func TestActions_Upgrade_StepWindow(t *testing.T) {
	var applied []string
	plan := Plan{
		Prefix: "app.",
		Steps: []Step{
			recordingStep("1.2.0", &applied),
			recordingStep("0.8.0", &applied),
			recordingStep("1.10.0", &applied),
			recordingStep("0.9.1", &applied),
			recordingStep("2.0.0", &applied),
		},
	}
	a, err := New(memory.NewOptionStore(), plan, "1.10.0")
	require.NoError(t, err)

	require.NoError(t, a.Upgrade(tenant.WithTenant(context.Background(), "site-a"), "0.9.0"))
	assert.Equal(t, []string{"0.9.1", "1.2.0", "1.10.0"}, applied)
}

// TestPurpose: Validates upgrade from an unparseable version.
// Scope: Unit Test
// Expected: Every step up to the running version runs.
// Test Case ID: APP-03
func TestActions_Upgrade_UnparseableFrom(t *testing.T) {
	var applied []string
	plan := Plan{
		Prefix: "app.",
		Steps:  []Step{recordingStep("0.9.0", &applied), recordingStep("1.0.0", &applied), recordingStep("1.1.0", &applied)},
	}
	a, err := New(memory.NewOptionStore(), plan, "1.0.0")
	require.NoError(t, err)

	require.NoError(t, a.Upgrade(tenant.WithTenant(context.Background(), "site-a"), "garbage"))
	assert.Equal(t, []string{"0.9.0", "1.0.0"}, applied)
}

// TestPurpose: Validates that a failing step stops the upgrade.
// Scope: Unit Test
// Expected: The error names the step and later steps are not applied.
// Test Case ID: APP-04
func TestActions_Upgrade_StepFailure(t *testing.T) {
	var applied []string
	boom := errors.New("boom")
	plan := Plan{
		Prefix: "app.",
		Steps: []Step{
			{Version: "0.9.0", Description: "broken", Apply: func(context.Context, option.Store, string) error { return boom }},
			recordingStep("1.0.0", &applied),
		},
	}
	a, err := New(memory.NewOptionStore(), plan, "1.0.0")
	require.NoError(t, err)

	err = a.Upgrade(tenant.WithTenant(context.Background(), "site-a"), "0.8.0")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "0.9.0")
	assert.Empty(t, applied)
}

// TestPurpose: Validates the built-in upgrade ladder.
// Scope: Unit Test
// Expected: Upgrading from 0.8.0 splits the locale and renames retention.
// Test Case ID: APP-05
func TestDefaultPlan_Upgrade(t *testing.T) {
	store := memory.NewOptionStore()
	ctx := tenant.WithTenant(context.Background(), "site-a")
	require.NoError(t, store.Set(ctx, "site-a", "app.locale", "de_AT"))
	require.NoError(t, store.Set(ctx, "site-a", "app.retention", "90"))

	a, err := New(store, DefaultPlan(), "1.0.0")
	require.NoError(t, err)
	require.NoError(t, a.Upgrade(ctx, "0.8.0"))

	got, err := store.List(ctx, "site-a", Prefix)
	require.NoError(t, err)
	assert.Equal(t, "de", got["app.default_locale"])
	assert.Equal(t, "AT", got["app.region"])
	assert.Equal(t, "90", got["app.retention_days"])
	assert.NotContains(t, got, "app.retention")
	assert.NotContains(t, got, "app.locale")
}

// TestPurpose: Validates that uninstall removes only the application's options.
// Scope: Unit Test
// Expected: Options under the prefix are gone while the lifecycle marker and other tenants remain.
// Test Case ID: APP-06
func TestActions_Uninstall(t *testing.T) {
	store := memory.NewOptionStore()
	ctx := tenant.WithTenant(context.Background(), "site-a")
	require.NoError(t, store.Set(ctx, "site-a", "lifecycle_version", "1.0.0"))
	require.NoError(t, store.Set(ctx, "site-b", "app.page_size", "10"))

	a, err := New(store, DefaultPlan(), "1.0.0")
	require.NoError(t, err)
	require.NoError(t, a.Install(ctx))
	require.NoError(t, a.Uninstall(ctx))

	left, err := store.List(ctx, "site-a", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"lifecycle_version": "1.0.0"}, left)

	other, err := store.List(ctx, "site-b", "")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

// TestPurpose: Validates plan validation.
// Scope: Unit Test
// Expected: Defaults outside the prefix, invalid step versions and a missing tenant are rejected.
// Test Case ID: APP-07
func TestPlan_Validate(t *testing.T) {
	assert.Error(t, Plan{}.Validate())
	assert.Error(t, Plan{Prefix: "app.", Defaults: map[string]string{"other": "x"}}.Validate())
	assert.Error(t, Plan{Prefix: "app.", Steps: []Step{{Version: "x", Apply: splitLocale}}}.Validate())
	assert.NoError(t, DefaultPlan().Validate())
	assert.True(t, DefaultPlan().Covers("app.page_size"))
	assert.False(t, DefaultPlan().Covers("lifecycle_version"))

	a, err := New(memory.NewOptionStore(), DefaultPlan(), "1.0.0")
	require.NoError(t, err)
	assert.ErrorIs(t, a.Install(context.Background()), tenant.ErrNoTenant)
}
