package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/incial/crm-api/internal/auth"
	"github.com/incial/crm-api/internal/cache"
	"github.com/incial/crm-api/internal/config"
	"github.com/incial/crm-api/internal/database"
	"github.com/incial/crm-api/internal/domain"
	"github.com/incial/crm-api/internal/http/handler"
	"github.com/incial/crm-api/internal/http/middleware"
	"github.com/incial/crm-api/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/incial/crm-api/docs" // Import generated swagger docs
)

// Role groups used by the route table
var (
	adminRoles        = []domain.UserRoleType{domain.RoleAdmin, domain.RoleSuperAdmin}
	executiveRoles    = []domain.UserRoleType{domain.RoleExecutive, domain.RoleAdmin, domain.RoleSuperAdmin}
	salesRoles        = []domain.UserRoleType{domain.RoleSalesCoordinator, domain.RoleAdmin, domain.RoleSuperAdmin}
	accountsRoles     = []domain.UserRoleType{domain.RoleAccounts, domain.RoleAdmin, domain.RoleSuperAdmin}
	installationRoles = []domain.UserRoleType{domain.RoleInstallation, domain.RoleAdmin, domain.RoleSuperAdmin}
)

type Router struct {
	cfg             *config.Config
	logger          *zap.Logger
	db              *gorm.DB
	cache           *cache.Client
	metrics         *metrics.Metrics
	gatherer        prometheus.Gatherer
	authMiddleware  *auth.Middleware
	rateLimiter     *middleware.RateLimiter
	projectHandler  *handler.ProjectHandler
	workflowHandler *handler.WorkflowHandler
	alertHandler    *handler.AlertHandler
}

// NewRouter wires handlers into the HTTP surface. cacheClient and m may be
// nil; gatherer defaults to the global Prometheus registry.
func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	cacheClient *cache.Client,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	projectHandler *handler.ProjectHandler,
	workflowHandler *handler.WorkflowHandler,
	alertHandler *handler.AlertHandler,
) *Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Router{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		cache:           cacheClient,
		metrics:         m,
		gatherer:        gatherer,
		authMiddleware:  authMiddleware,
		rateLimiter:     rateLimiter,
		projectHandler:  projectHandler,
		workflowHandler: workflowHandler,
		alertHandler:    alertHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.Recovery(rt.logger))
	if sentry.CurrentHub().Client() != nil {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
	}
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/ready", rt.readiness)

	if rt.cfg.Metrics.Enabled {
		r.Handle(rt.cfg.Metrics.Path, promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
			r.Use(chimw.Timeout(timeout))
		}
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(middleware.TagUser)
		r.Use(rt.rateLimiter.LimitByUser)

		r.Route("/projects", func(r chi.Router) {
			r.With(rt.authMiddleware.RequireRole(executiveRoles...)).Post("/", rt.projectHandler.Create)
			r.With(rt.authMiddleware.RequireRole(adminRoles...)).Get("/", rt.projectHandler.List)

			r.With(rt.authMiddleware.RequireRole(executiveRoles...)).Get("/executive", rt.projectHandler.ListExecutive)
			r.With(rt.authMiddleware.RequireRole(salesRoles...)).Get("/sales", rt.projectHandler.ListSales)
			r.With(rt.authMiddleware.RequireRole(accountsRoles...)).Get("/accounts", rt.projectHandler.ListAccounts)
			r.With(rt.authMiddleware.RequireRole(installationRoles...)).Get("/installation", rt.projectHandler.ListInstallation)
			r.Get("/completed", rt.projectHandler.ListCompleted)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.projectHandler.GetByID)
				r.With(rt.authMiddleware.RequireRole(executiveRoles...)).Put("/", rt.projectHandler.Update)
				r.With(rt.authMiddleware.RequireRole(executiveRoles...)).Delete("/", rt.projectHandler.Delete)

				r.Get("/history", rt.projectHandler.GetHistory)
				r.Get("/activities", rt.projectHandler.GetActivities)
				r.Get("/payments", rt.projectHandler.GetPayments)
				r.Get("/payments/{paymentId}/proof", rt.workflowHandler.DownloadProof)

				// The stage graph authorizes transitions per role
				r.Post("/transition", rt.workflowHandler.Transition)

				r.With(rt.authMiddleware.RequireRole(salesRoles...)).Put("/sales", rt.workflowHandler.UpdateSales)
				r.With(rt.authMiddleware.RequireRole(salesRoles...)).Post("/ready-for-accounts", rt.workflowHandler.MarkReadyForAccounts)
				r.With(rt.authMiddleware.RequireRole(accountsRoles...)).Post("/payments", rt.workflowHandler.RecordPayment)
				r.With(rt.authMiddleware.RequireRole(installationRoles...)).Put("/installation", rt.workflowHandler.RecordInstallation)
			})
		})

		r.Get("/workflow/graph", rt.workflowHandler.StageGraph)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/project/{projectId}", rt.alertHandler.ListForProject)

			r.Group(func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireRole(adminRoles...))
				r.Get("/", rt.alertHandler.ListActive)
				r.Get("/summary", rt.alertHandler.Summary)
				r.Post("/{alertId}/dismiss", rt.alertHandler.Dismiss)
				r.Post("/generate", rt.alertHandler.Generate)
			})
		})
	})

	return r
}

func writeHealth(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// databaseHealth reports connection pool statistics
func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	stats, err := database.HealthCheckWithStats(ctx, rt.db)
	if err != nil {
		rt.logger.Error("database health check failed", zap.Error(err))
		writeHealth(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats":   stats,
	})
}

// readiness checks every dependency the API needs to serve traffic. Redis
// is only checked when configured.
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]interface{})
	healthy := true

	if err := database.HealthCheck(ctx, rt.db); err != nil {
		rt.logger.Error("database health check failed", zap.Error(err))
		checks["database"] = map[string]string{"status": "unhealthy", "error": err.Error()}
		healthy = false
	} else {
		checks["database"] = map[string]string{"status": "healthy"}
	}

	if rt.cache != nil {
		if err := rt.cache.Ping(ctx); err != nil {
			rt.logger.Error("redis health check failed", zap.Error(err))
			checks["redis"] = map[string]string{"status": "unhealthy", "error": err.Error()}
			healthy = false
		} else {
			checks["redis"] = map[string]string{"status": "healthy"}
		}
	}

	status, label := http.StatusOK, "healthy"
	if !healthy {
		status, label = http.StatusServiceUnavailable, "unhealthy"
	}
	writeHealth(w, status, map[string]interface{}{"status": label, "checks": checks})
}
