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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opentrusty/lifecycle/internal/admintoken"
	"github.com/opentrusty/lifecycle/internal/audit"
	"github.com/opentrusty/lifecycle/internal/installer"
	"github.com/opentrusty/lifecycle/internal/option"
	"github.com/opentrusty/lifecycle/internal/store/memory"
	"github.com/opentrusty/lifecycle/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type apiFixture struct {
	router  http.Handler
	tenants *tenant.Service
	failFor map[string]error
	token   string
}

func newAPIFixture(t *testing.T, multisite bool) *apiFixture {
	t.Helper()

	f := &apiFixture{failFor: map[string]error{}}
	options := memory.NewOptionStore()
	repo := memory.NewTenantRepository()
	scope := tenant.NewScope("main")
	f.tenants = tenant.NewService(repo, audit.NopLogger{})

	fail := func(ctx context.Context) error { return f.failFor[tenant.FromContext(ctx)] }
	deps := installer.Deps{
		Actions: installer.ActionFuncs{
			InstallFunc:   fail,
			UninstallFunc: fail,
		},
		Markers: option.String(options, "lifecycle_version", ""),
		Flags:   option.Bool(options, "lifecycle_delete_data", false),
	}
	if multisite {
		deps.Fleet = memory.NewSiteMetaStore()
		deps.Switcher = scope
		deps.Tenants = repo
	}
	inst, err := installer.New(installer.Config{
		Version:   "1.0.0",
		MarkerKey: "lifecycle_version",
	}, deps)
	require.NoError(t, err)

	tokens, err := admintoken.NewService("lifecycle-test", testSecret)
	require.NoError(t, err)
	f.token, err = tokens.Issue("ops@example.com", time.Minute)
	require.NoError(t, err)

	f.router = NewRouter(NewHandler(inst, f.tenants, tokens, audit.NopLogger{}), nil)
	return f
}

func (f *apiFixture) createTenant(t *testing.T, id string) {
	t.Helper()
	_, err := f.tenants.CreateTenant(context.Background(), id, "Tenant "+id)
	require.NoError(t, err)
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+f.token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// TestPurpose: Validates that the health endpoint is public.
// Scope: Unit Test
// Expected: GET /health without credentials returns 200 and the running version.
// Test Case ID: HTTP-01
func TestHandler_HealthCheck(t *testing.T) {
	f := newAPIFixture(t, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.0.0", body["version"])
}

// TestPurpose: Validates that admin routes require a valid bearer token.
// Scope: Unit Test
// Security: Admin API authentication
// Expected: Missing, malformed and forged tokens are rejected with 401.
// Test Case ID: HTTP-02
func TestHandler_AdminAuth(t *testing.T) {
	f := newAPIFixture(t, false)

	forger, err := admintoken.NewService("lifecycle-test", "ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	forged, err := forger.Issue("intruder", time.Minute)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing": "",
		"basic":   "Basic b3BzOnNlY3JldA==",
		"forged":  "Bearer " + forged,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

// TestPurpose: Validates tenant creation and listing.
// Scope: Unit Test
// Expected: Create returns 201, a duplicate 409, a blank name 400, and list returns the created tenants.
// Test Case ID: HTTP-03
func TestHandler_Tenants(t *testing.T) {
	f := newAPIFixture(t, false)

	rec := f.do(t, http.MethodPost, "/api/v1/tenants", CreateTenantRequest{ID: "site-a", Name: "Site A"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/tenants", CreateTenantRequest{ID: "site-a", Name: "Again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/tenants", CreateTenantRequest{ID: "site-b", Name: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/tenants?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Tenants []tenant.Tenant `json:"tenants"`
		Count   int             `json:"count"`
	}](t, rec)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "site-a", body.Tenants[0].ID)
}

// TestPurpose: Validates the per-tenant installation lifecycle over HTTP.
// Scope: Unit Test
// Expected: Install marks the tenant installed; uninstall without opt-in keeps it; after opting in, uninstall removes it.
// Test Case ID: HTTP-04
func TestHandler_InstallationLifecycle(t *testing.T) {
	f := newAPIFixture(t, false)
	f.createTenant(t, "site-a")
	base := "/api/v1/tenants/site-a/installation"

	rec := f.do(t, http.MethodPost, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[InstallationResponse](t, rec)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Status)
	assert.Equal(t, installer.StateInstalledCurrent, resp.Status.State)

	rec = f.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[InstallationResponse](t, rec)
	assert.True(t, resp.Status.Installed, "uninstall without opt-in keeps data")

	rec = f.do(t, http.MethodPut, base+"/delete-data", DeleteDataRequest{Enabled: ptr(true)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[installer.Status](t, rec).DeleteData)

	rec = f.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[InstallationResponse](t, rec)
	assert.False(t, resp.Status.Installed)
	assert.False(t, resp.Status.DeleteData)

	rec = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, installer.StateNotInstalled, decode[installer.Status](t, rec).State)
}

// TestPurpose: Validates request errors on installation routes.
// Scope: Unit Test
// Expected: An unknown tenant is 404; a delete-data body without "enabled" is 400.
// Test Case ID: HTTP-05
func TestHandler_InstallationErrors(t *testing.T) {
	f := newAPIFixture(t, false)
	f.createTenant(t, "site-a")

	rec := f.do(t, http.MethodGet, "/api/v1/tenants/nope/installation", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/tenants/site-a/installation/delete-data", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestPurpose: Validates that a failed install is reported, not hidden.
// Scope: Unit Test
// Expected: In Suppress mode a failing install action yields 500 with success=false and the tenant stays not installed.
// Test Case ID: HTTP-06
func TestHandler_InstallFailure(t *testing.T) {
	f := newAPIFixture(t, false)
	f.createTenant(t, "site-a")
	f.failFor["site-a"] = errors.New("disk full")

	rec := f.do(t, http.MethodPost, "/api/v1/tenants/site-a/installation", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[InstallationResponse](t, rec)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	require.NotNil(t, resp.Status)
	assert.False(t, resp.Status.Installed)
}

// TestPurpose: Validates that fleet routes are refused in single-site mode.
// Scope: Unit Test
// Expected: Both fleet routes return 409.
// Test Case ID: HTTP-07
func TestHandler_Fleet_SingleSite(t *testing.T) {
	f := newAPIFixture(t, false)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/fleet/install", nil).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/fleet/uninstall", nil).Code)
}

// TestPurpose: Validates fleet install and uninstall over HTTP.
// Scope: Unit Test
// Expected: Fleet install reports every tenant; fleet uninstall reports a partial failure with 500 and per-tenant results.
// Test Case ID: HTTP-08
func TestHandler_Fleet(t *testing.T) {
	f := newAPIFixture(t, true)
	for _, id := range []string{"site-a", "site-b"} {
		f.createTenant(t, id)
	}

	rec := f.do(t, http.MethodPost, "/api/v1/fleet/install", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[FleetResponse](t, rec)
	assert.True(t, report.Success)
	assert.Len(t, report.Results, 2)

	for _, id := range []string{"site-a", "site-b"} {
		rec = f.do(t, http.MethodPut, "/api/v1/tenants/"+id+"/installation/delete-data", DeleteDataRequest{Enabled: ptr(true)})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	f.failFor["site-b"] = errors.New("locked")

	rec = f.do(t, http.MethodPost, "/api/v1/fleet/uninstall", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	report = decode[FleetResponse](t, rec)
	assert.False(t, report.Success)
	assert.False(t, report.More)
	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[0].OK)
	assert.False(t, report.Results[1].OK)
	assert.Contains(t, report.Results[1].Error, "locked")
}

// TestPurpose: Validates per-IP rate limiting.
// Scope: Unit Test
// Expected: Requests beyond the burst get 429; client IPs come from the first X-Forwarded-For entry or the remote host.
// Test Case ID: HTTP-09
func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	t.Cleanup(rl.Stop)

	h := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, serve("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, serve("10.0.0.1:5678"))
	assert.Equal(t, http.StatusNoContent, serve("10.0.0.2:1234"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(req))
}

func ptr[T any](v T) *T { return &v }
