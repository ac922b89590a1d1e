package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/infra/config"
	"github.com/arklim/maintenance-service/internal/transport/http/handlers"
	"github.com/arklim/maintenance-service/internal/transport/http/middleware"
	"github.com/arklim/maintenance-service/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Gate         *usecase.Gate
	Clients      *usecase.ResourceService[domain.Client, *domain.Client]
	Equipment    *usecase.ResourceService[domain.Equipment, *domain.Equipment]
	WorkOrders   *usecase.ResourceService[domain.WorkOrder, *domain.WorkOrder]
	Transactions *usecase.ResourceService[domain.Transaction, *domain.Transaction]
	Quotes       *usecase.ResourceService[domain.Quote, *domain.Quote]
	Schedule     *usecase.SchedulingService
	AuditLog     *usecase.AuditLogService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	Verifier       middleware.ActorVerifier
	RateLimiter    *middleware.RateLimiter
	HTTPMetrics    *middleware.HTTPMetrics
	MetricsHandler http.Handler
	Services       ServiceSet
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(deps.HTTPMetrics.Handler())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Config != nil && len(deps.Config.CORS.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.CORS))
	}

	checks := make([]handlers.ReadinessCheck, 0, 2)
	if deps.Database != nil {
		checks = append(checks, handlers.ReadinessCheck{Name: "postgres", Check: deps.Database.Ping})
	}
	if deps.Cache != nil {
		checks = append(checks, handlers.ReadinessCheck{Name: "redis", Check: deps.Cache.HealthCheck})
	}
	healthHandler := handlers.NewHealthHandler(checks...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	if deps.Verifier == nil {
		return r
	}

	api := r.Group("/api/v1")
	api.Use(middleware.Authenticate(deps.Verifier))
	api.Use(buildRateLimitMiddlewares(deps)...)

	svc := deps.Services

	if svc.Clients != nil {
		handlers.NewResourceHandler(svc.Clients, handlers.ResourcePermissions{
			Read: domain.PermReadClients, Write: domain.PermWriteClients, Delete: domain.PermDeleteClients,
		}).RegisterRoutes(api.Group("/clients"))
	}

	if svc.Equipment != nil {
		handlers.NewResourceHandler(svc.Equipment, handlers.ResourcePermissions{
			Read: domain.PermReadEquipment, Write: domain.PermWriteEquipment, Delete: domain.PermDeleteEquipment,
		}).RegisterRoutes(api.Group("/equipment"))
	}

	if svc.WorkOrders != nil {
		workOrders := handlers.NewResourceHandler(svc.WorkOrders, handlers.ResourcePermissions{
			Read: domain.PermReadWorkOrders, Write: domain.PermWriteWorkOrders, Delete: domain.PermDeleteWorkOrders,
		})
		workOrders.RegisterRoutes(api.Group("/work-orders"))
		workOrders.RegisterOwnRoutes(api.Group("/my/work-orders"), domain.PermReadOwnOrders)
	}

	if svc.Transactions != nil {
		handlers.NewResourceHandler(svc.Transactions, handlers.ResourcePermissions{
			Read: domain.PermReadFinance, Write: domain.PermWriteFinance, Delete: domain.PermDeleteFinance,
		}).RegisterRoutes(api.Group("/transactions"))
	}

	if svc.Quotes != nil {
		quotes := handlers.NewResourceHandler(svc.Quotes, handlers.ResourcePermissions{
			Read: domain.PermReadQuotes, Write: domain.PermWriteQuotes, Delete: domain.PermDeleteQuotes,
		})
		quotes.RegisterRoutes(api.Group("/quotes"))
		quotes.RegisterOwnRoutes(api.Group("/my/quotes"), domain.PermReadOwnQuotes)
	}

	if svc.Schedule != nil {
		handlers.NewScheduleHandler(svc.Schedule).RegisterRoutes(api.Group("/schedule"))
	}

	if svc.AuditLog != nil {
		api.GET("/audit", handlers.NewAuditHandler(svc.AuditLog).Recent)
	}

	if svc.Gate != nil {
		access := handlers.NewAccessHandler(svc.Gate)
		api.GET("/me/permissions", access.MyPermissions)

		admin := api.Group("/admin")
		admin.Use(middleware.RequireRole(svc.Gate, domain.RoleAdmin))
		admin.GET("/roles", access.Roles)
	}

	return r
}

func buildRateLimitMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || !deps.Config.RateLimit.Enabled {
		return nil
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rateLimitPolicy(deps.Config.RateLimit, deps.Logger))}
}

// rateLimitPolicy maps configured budgets onto roles. Roles with a zero budget fall back to
// max_requests; unknown role names are skipped.
func rateLimitPolicy(cfg config.RateLimitSettings, log *zap.Logger) middleware.RateLimitPolicy {
	window := cfg.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	policy := middleware.RateLimitPolicy{
		Name:      "api",
		Window:    window,
		Default:   cfg.MaxRequests,
		Anonymous: cfg.AnonymousRequests,
		Roles:     make(map[domain.Role]int),
	}

	for name, limit := range cfg.Roles.ByRole() {
		if limit <= 0 {
			continue
		}
		role, err := domain.ParseRole(name)
		if err != nil {
			if log != nil {
				log.Warn("skipping rate limit for unknown role", zap.String("role", name))
			}
			continue
		}
		policy.Roles[role] = limit
	}

	return policy
}
