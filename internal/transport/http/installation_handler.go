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
	"log/slog"
	"net/http"

	"github.com/opentrusty/lifecycle/internal/installer"
	"github.com/opentrusty/lifecycle/internal/observability/logger"
	"github.com/opentrusty/lifecycle/internal/tenant"
)

// InstallationResponse reports an install or uninstall of one tenant.
type InstallationResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Status  *installer.Status `json:"status,omitempty"`
}

// FleetResponse reports one fleet call.
type FleetResponse struct {
	Success bool                     `json:"success"`
	More    bool                     `json:"more"`
	Results []installer.TenantResult `json:"results"`
	Error   string                   `json:"error,omitempty"`
}

// DeleteDataRequest toggles the delete-data opt-in.
type DeleteDataRequest struct {
	Enabled *bool `json:"enabled" example:"true"`
}

// GetInstallation returns the tenant's installation status
// @Summary Installation Status
// @Description Stored and running versions, state and delete-data flag
// @Tags Installation
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} installer.Status
// @Failure 404 {object} map[string]any
// @Router /tenants/{tenantID}/installation [get]
func (h *Handler) GetInstallation(w http.ResponseWriter, r *http.Request) {
	status, err := h.lifecycle.Status(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read installation status",
			logger.TenantID(tenant.FromContext(r.Context())),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "failed to read installation status")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// Install brings the tenant's data up to the running version
// @Summary Install
// @Description Install or upgrade the tenant's data; a current tenant is a no-op
// @Tags Installation
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} InstallationResponse
// @Failure 500 {object} InstallationResponse
// @Router /tenants/{tenantID}/installation [post]
func (h *Handler) Install(w http.ResponseWriter, r *http.Request) {
	ok, err := h.lifecycle.Install(r.Context())
	h.respondInstallation(w, r, ok, err, "install failed")
}

// Uninstall removes the tenant's data if it opted in
// @Summary Uninstall
// @Description Remove the tenant's data when its delete-data flag is set; otherwise a no-op
// @Tags Installation
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} InstallationResponse
// @Failure 500 {object} InstallationResponse
// @Router /tenants/{tenantID}/installation [delete]
func (h *Handler) Uninstall(w http.ResponseWriter, r *http.Request) {
	ok, err := h.lifecycle.UninstallCurrent(r.Context())
	h.respondInstallation(w, r, ok, err, "uninstall failed")
}

// SetDeleteData records the tenant's delete-data opt-in
// @Summary Set Delete-Data
// @Description Opt the tenant in or out of data removal on uninstall
// @Tags Installation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param request body DeleteDataRequest true "Flag"
// @Success 200 {object} installer.Status
// @Failure 400 {object} map[string]any
// @Router /tenants/{tenantID}/installation/delete-data [put]
func (h *Handler) SetDeleteData(w http.ResponseWriter, r *http.Request) {
	var req DeleteDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		respondError(w, http.StatusBadRequest, "enabled is required")
		return
	}

	if err := h.lifecycle.SetDeleteData(r.Context(), *req.Enabled); err != nil {
		slog.ErrorContext(r.Context(), "failed to set delete-data flag",
			logger.TenantID(tenant.FromContext(r.Context())),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "failed to set delete-data flag")
		return
	}

	h.GetInstallation(w, r)
}

// InstallFleet installs every tenant in the directory
// @Summary Fleet Install
// @Description Install or upgrade every tenant's data
// @Tags Fleet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} FleetResponse
// @Failure 409 {object} map[string]any
// @Failure 500 {object} FleetResponse
// @Router /fleet/install [post]
func (h *Handler) InstallFleet(w http.ResponseWriter, r *http.Request) {
	report, err := h.lifecycle.InstallFleet(r.Context())
	h.respondFleet(w, r, report, err)
}

// UninstallFleet uninstalls one page of installed tenants
// @Summary Fleet Uninstall
// @Description Uninstall up to one page of installed tenants; "more" signals a further call may find more
// @Tags Fleet
// @Produce json
// @Security BearerAuth
// @Success 200 {object} FleetResponse
// @Failure 409 {object} map[string]any
// @Failure 500 {object} FleetResponse
// @Router /fleet/uninstall [post]
func (h *Handler) UninstallFleet(w http.ResponseWriter, r *http.Request) {
	report, err := h.lifecycle.UninstallFleet(r.Context())
	h.respondFleet(w, r, report, err)
}

func (h *Handler) respondInstallation(w http.ResponseWriter, r *http.Request, ok bool, err error, failure string) {
	resp := InstallationResponse{Success: ok && err == nil}
	if status, serr := h.lifecycle.Status(r.Context()); serr == nil {
		resp.Status = &status
	}
	if resp.Success {
		respondJSON(w, http.StatusOK, resp)
		return
	}

	resp.Error = failure
	if err != nil {
		resp.Error = err.Error()
	}
	respondJSON(w, http.StatusInternalServerError, resp)
}

func (h *Handler) respondFleet(w http.ResponseWriter, r *http.Request, report installer.FleetReport, err error) {
	resp := FleetResponse{
		Success: report.OK() && err == nil,
		More:    report.More,
		Results: report.Results,
	}
	if resp.Results == nil {
		resp.Results = []installer.TenantResult{}
	}
	switch {
	case err != nil:
		resp.Error = err.Error()
	case report.Err != nil:
		resp.Error = report.Err.Error()
	}

	if !resp.Success {
		slog.WarnContext(r.Context(), "fleet operation reported failures",
			logger.Path(r.URL.Path),
			logger.Count(len(report.Failed())),
		)
		respondJSON(w, http.StatusInternalServerError, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
