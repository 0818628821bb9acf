// Package db builds the pgx connection pool every service shares.
package db

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"30m"`
	HealthCheck     time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"30s"`
}

func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.HealthCheckPeriod = cfg.HealthCheck
	return pgxpool.NewWithConfig(ctx, pc)
}

// MustConnect reads the config from the environment and panics on failure.
// Service mains call this once during startup.
func MustConnect(ctx context.Context) *pgxpool.Pool {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}
	pool, err := Connect(ctx, cfg)
	if err != nil {
		panic(err)
	}
	return pool
}
