package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
	"github.com/arklim/maintenance-service/internal/infra/config"
	"github.com/arklim/maintenance-service/internal/infra/database"
	kafkainfra "github.com/arklim/maintenance-service/internal/infra/kafka"
	"github.com/arklim/maintenance-service/internal/infra/logger"
	redisinfra "github.com/arklim/maintenance-service/internal/infra/redis"
	"github.com/arklim/maintenance-service/internal/infra/security"
	"github.com/arklim/maintenance-service/internal/infra/telemetry"
	postgresrepo "github.com/arklim/maintenance-service/internal/repository/postgres"
	redisrepo "github.com/arklim/maintenance-service/internal/repository/redis"
	"github.com/arklim/maintenance-service/internal/transport/http/middleware"
	"github.com/arklim/maintenance-service/internal/transport/http/routes"
	"github.com/arklim/maintenance-service/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	audit    *usecase.AuditSink
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.release(context.Background())
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	provider, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	authzMetrics, err := usecase.NewMetrics(provider.Registry())
	if err != nil {
		return nil, fmt.Errorf("init authz metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: provider.Registry()})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	repos := postgresrepo.NewRepositories(a.pool)

	a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	auditStream := a.auditStream(authzMetrics)
	a.audit = usecase.NewAuditSink(usecase.AuditSinkConfig{
		BufferSize:   cfg.Audit.BufferSize,
		WriteTimeout: cfg.Audit.WriteTimeout,
	}, log, authzMetrics,
		usecase.NamedAuditWriter{Name: "postgres", Writer: repos.Audit},
		usecase.NamedAuditWriter{Name: "kafka", Writer: auditStream},
	)

	requestWindows := redisrepo.NewRequestWindowRepository(a.redis.Client(), cfg.Redis.RateLimitPrefix)
	rateLimiter := middleware.NewRateLimiter(requestWindows, log).WithAudit(a.audit)

	gate := usecase.NewGate(a.audit, log).WithMetrics(authzMetrics)
	filter, err := usecase.NewIsolationFilter(a.audit, log).WithOwnerCache(cfg.Authz.OwnerCacheSize)
	if err != nil {
		return nil, fmt.Errorf("init isolation filter: %w", err)
	}

	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, err
	}

	verifier, err := security.NewTokenVerifier(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	services := routes.ServiceSet{
		Gate: gate,
		Clients: usecase.NewResourceService[domain.Client, *domain.Client](
			domain.ResourceClient, repos.Clients, gate, filter, a.audit, log),
		Equipment: usecase.NewResourceService[domain.Equipment, *domain.Equipment](
			domain.ResourceEquipment, repos.Equipment, gate, filter, a.audit, log),
		WorkOrders: usecase.NewResourceService[domain.WorkOrder, *domain.WorkOrder](
			domain.ResourceWorkOrder, repos.WorkOrders, gate, filter, a.audit, log),
		Transactions: usecase.NewResourceService[domain.Transaction, *domain.Transaction](
			domain.ResourceTransaction, repos.Transactions, gate, filter, a.audit, log),
		Quotes: usecase.NewResourceService[domain.Quote, *domain.Quote](
			domain.ResourceQuote, repos.Quotes, gate, filter, a.audit, log),
		Schedule: usecase.NewSchedulingService(repos.WorkOrders, gate, filter, a.audit, loc, log),
		AuditLog: usecase.NewAuditLogService(repos.Audit, gate),
	}

	a.engine = routes.Register(routes.Dependencies{
		Config:         cfg,
		Logger:         log,
		Verifier:       verifier,
		RateLimiter:    rateLimiter,
		HTTPMetrics:    httpMetrics,
		MetricsHandler: provider.Handler(),
		Services:       services,
		Database:       a.pool,
		Cache:          a.redis,
	})

	ok = true
	return a, nil
}

// auditStream returns the Kafka audit writer, or a logging stub when no brokers are configured
// or the producer cannot start.
func (a *Application) auditStream(metrics *usecase.Metrics) port.AuditWriter {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub audit publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger, func(error) {
		metrics.AuditWriteFailures.WithLabelValues("kafka").Inc()
	})
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub audit publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}

	a.producer = producer
	return kafkainfra.NewAuditPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting maintenance API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})

	err := g.Wait()

	releaseCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.release(releaseCtx)

	return err
}

// release drains the audit sink before closing the stores it writes to.
func (a *Application) release(ctx context.Context) {
	if a.audit != nil {
		if err := a.audit.Close(ctx); err != nil {
			a.logger.Warn("audit sink did not drain", zap.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
