// @title OpenTrusty Lifecycle API
// @version 1.0.0
// @description Tenant data lifecycle administration

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opentrusty/lifecycle/internal/admintoken"
	"github.com/opentrusty/lifecycle/internal/audit"
	"github.com/opentrusty/lifecycle/internal/installer"
	"github.com/opentrusty/lifecycle/internal/observability/logger"
	"github.com/opentrusty/lifecycle/internal/tenant"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Lifecycle is the installer surface the admin API drives.
type Lifecycle interface {
	Version() string
	Multisite() bool
	Install(ctx context.Context) (bool, error)
	UninstallCurrent(ctx context.Context) (bool, error)
	Status(ctx context.Context) (installer.Status, error)
	SetDeleteData(ctx context.Context, enabled bool) error
	InstallFleet(ctx context.Context) (installer.FleetReport, error)
	UninstallFleet(ctx context.Context) (installer.FleetReport, error)
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	lifecycle     Lifecycle
	tenantService *tenant.Service
	tokens        *admintoken.Service
	auditLogger   audit.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	lifecycle Lifecycle,
	tenantService *tenant.Service,
	tokens *admintoken.Service,
	auditLogger audit.Logger,
) *Handler {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Handler{
		lifecycle:     lifecycle,
		tenantService: tenantService,
		tokens:        tokens,
		auditLogger:   auditLogger,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AdminAuthMiddleware)

		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", h.ListTenants)
			r.Post("/", h.CreateTenant)

			r.Route("/{tenantID}/installation", func(r chi.Router) {
				r.Use(h.TenantPathMiddleware)
				r.Get("/", h.GetInstallation)
				r.Post("/", h.Install)
				r.Delete("/", h.Uninstall)
				r.Put("/delete-data", h.SetDeleteData)
			})
		})

		r.Route("/fleet", func(r chi.Router) {
			r.Use(h.RequireMultisite)
			r.Post("/install", h.InstallFleet)
			r.Post("/uninstall", h.UninstallFleet)
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "lifecycle",
		"version": h.lifecycle.Version(),
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", logger.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
