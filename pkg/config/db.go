package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DSN renders the connection string for the configured database
func (c *Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Host:   c.Database.Host + ":" + c.Database.Port,
		Path:   c.Database.Name,
	}
	q := u.Query()
	q.Set("sslmode", c.Database.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// NewPool creates the process-wide connection pool. It is created once at
// startup, injected into every component and closed on shutdown.
func NewPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MaxConnIdleTime = 10 * time.Minute
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.ConnConfig.ConnectTimeout = cfg.Database.ConnectTimeout

	// Add retry mechanism
	var pool *pgxpool.Pool
	retries := 5
	delay := 2 * time.Second

	for i := 0; i < retries; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
			err = pool.Ping(pingCtx)
			cancel()
			if err == nil {
				return pool, nil
			}
			pool.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d retries: %w", retries, err)
}

// NewGorm opens an ORM session on top of the shared pool, so both paths draw
// from the same connection budget.
func NewGorm(pool *pgxpool.Pool, cfg *Config) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)

	gormConfig := &gorm.Config{}

	// Set logging level based on application environment
	if cfg.IsDevelopment() {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	} else {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Error)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open orm session: %w", err)
	}
	return db, nil
}
