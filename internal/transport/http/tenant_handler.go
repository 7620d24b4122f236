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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/opentrusty/lifecycle/internal/observability/logger"
	"github.com/opentrusty/lifecycle/internal/tenant"
	"github.com/spf13/cast"
)

// CreateTenantRequest represents tenant creation data
type CreateTenantRequest struct {
	ID   string `json:"id" example:"site-42"`
	Name string `json:"name" example:"Example Site"`
}

// CreateTenant handles tenant creation
// @Summary Create Tenant
// @Description Register a tenant. An empty id is generated.
// @Tags Tenant
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTenantRequest true "Tenant Data"
// @Success 201 {object} tenant.Tenant
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /tenants [post]
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.tenantService.CreateTenant(r.Context(), req.ID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, tenant.ErrNameRequired):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, tenant.ErrTenantAlreadyExists):
			respondError(w, http.StatusConflict, "tenant already exists")
		default:
			slog.ErrorContext(r.Context(), "failed to create tenant", logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to create tenant")
		}
		return
	}

	respondJSON(w, http.StatusCreated, t)
}

// ListTenants lists tenants
// @Summary List Tenants
// @Description List registered tenants by ID
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Router /tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit := cast.ToInt(r.URL.Query().Get("limit"))
	offset := cast.ToInt(r.URL.Query().Get("offset"))

	tenants, err := h.tenantService.ListTenants(r.Context(), limit, offset)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list tenants", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list tenants")
		return
	}
	if tenants == nil {
		tenants = []*tenant.Tenant{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"tenants": tenants,
		"count":   len(tenants),
	})
}
