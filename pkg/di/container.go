package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"conversation-analytics/backend/internal/service"
	"conversation-analytics/backend/internal/ws"
	"conversation-analytics/backend/pkg/config"
	apperrors "conversation-analytics/backend/pkg/errors"
	"conversation-analytics/backend/pkg/health"
	"conversation-analytics/backend/pkg/jwt"
	"conversation-analytics/backend/pkg/logger"
	"conversation-analytics/backend/pkg/query"
	"conversation-analytics/backend/pkg/resilience"
	sharedredis "conversation-analytics/backend/shared/redis"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry

	Pool    *pgxpool.Pool
	ORM     *gorm.DB
	Querier query.Querier
	Breaker *resilience.CircuitBreaker
	Redis   *redis.Client

	JWTService *jwt.Service
	Health     *health.Checker
	Hub        *ws.Hub

	Conversations *service.ConversationService
	Contacts      *service.ContactService
	Sessions      *service.SessionService
	Leads         *service.LeadService
	Knowledge     *service.KnowledgeService
	Stock         *service.StockService
	Search        *service.SearchService
	Metrics       *service.MetricsService
	Companies     *service.CompanyService
}

// Storage is the set of storage clients the services run on. Pool and
// Redis are optional; Querier is required.
type Storage struct {
	Pool    *pgxpool.Pool
	Querier query.Querier
	ORM     *gorm.DB
	Redis   *redis.Client
}

// Open connects to the database (and redis when the rate limiter needs it)
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (Storage, error) {
	pool, err := config.NewPool(ctx, cfg)
	if err != nil {
		return Storage{}, err
	}
	orm, err := config.NewGorm(pool, cfg)
	if err != nil {
		pool.Close()
		return Storage{}, err
	}

	st := Storage{
		Pool:    pool,
		Querier: query.NewPoolQuerier(query.PgxPool{Pool: pool}, cfg.Database.AcquireTimeout),
		ORM:     orm,
	}
	if cfg.Security.RateLimitStore == "redis" {
		client, err := sharedredis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("Redis unavailable, rate limiting falls back to memory", "error", err.Error())
		} else {
			st.Redis = client
		}
	}
	return st, nil
}

// New wires the services over st. The querier is wrapped with tracing,
// query metrics, a statement timeout and a circuit breaker that only counts
// connectivity failures.
func New(cfg *config.Config, log *logger.Logger, st Storage) (*Container, error) {
	if st.Querier == nil {
		return nil, fmt.Errorf("storage querier is required")
	}
	if log == nil {
		log = logger.GetGlobal()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	breakerCfg := resilience.DefaultCircuitBreakerConfig("postgres")
	breakerCfg.IsFailure = func(err error) bool {
		return apperrors.FromStorage(err).StatusCode == http.StatusServiceUnavailable
	}
	breaker := resilience.NewCircuitBreaker(breakerCfg, log)

	db := query.Instrument(st.Querier, query.InstrumentOptions{
		Timeout: cfg.Database.QueryTimeout,
		Breaker: breaker,
	})

	checker := health.NewChecker(log, 30*time.Second)
	checker.RegisterDatabaseCheck(func(ctx context.Context) error {
		_, err := db.Exec(ctx, "SELECT 1")
		return err
	})
	if st.Redis != nil {
		client := st.Redis
		checker.RegisterRedisCheck(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	return &Container{
		Config:   cfg,
		Logger:   log,
		Registry: registry,

		Pool:    st.Pool,
		ORM:     st.ORM,
		Querier: db,
		Breaker: breaker,
		Redis:   st.Redis,

		JWTService: jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry),
		Health:     checker,
		Hub:        ws.NewHub(log, cfg.Security.AllowedOrigins),

		Conversations: service.NewConversationService(db),
		Contacts:      service.NewContactService(db),
		Sessions:      service.NewSessionService(db, st.ORM),
		Leads:         service.NewLeadService(db),
		Knowledge:     service.NewKnowledgeService(db),
		Stock:         service.NewStockService(db),
		Search:        service.NewSearchService(db),
		Metrics:       service.NewMetricsService(db),
		Companies:     service.NewCompanyService(st.ORM),
	}, nil
}

// Close releases the storage clients
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", "error", err.Error())
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
