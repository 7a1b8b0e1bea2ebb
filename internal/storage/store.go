package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ibex-sync/internal/config"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

// CompanyStore defines operations for company record persistence. The sync
// pipeline produces batches; the API and CLI read them back.
type CompanyStore interface {
	ReplaceCompanies(ctx context.Context, companies []Company, syncedAt time.Time) error
	ListCompanies(ctx context.Context) ([]Company, error)
	GetCompany(ctx context.Context, ticker string) (Company, error)
	SectorAggregates(ctx context.Context) ([]SectorAggregate, error)
	LastSync(ctx context.Context) (time.Time, error)
	RecordSyncRun(ctx context.Context, run SyncRun) error
	ListRecentSyncRuns(ctx context.Context, limit int) ([]SyncRun, error)
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}
