package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	deleteCompaniesSQL = `DELETE FROM companies;`

	insertCompanySQL = `INSERT INTO companies (
        ticker,
        name,
        sector,
        formatted_ticker,
        price_eur,
        market_cap_eur,
        volume_eur,
        synced_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (ticker) DO UPDATE
    SET
        name             = EXCLUDED.name,
        sector           = EXCLUDED.sector,
        formatted_ticker = EXCLUDED.formatted_ticker,
        price_eur        = EXCLUDED.price_eur,
        market_cap_eur   = EXCLUDED.market_cap_eur,
        volume_eur       = EXCLUDED.volume_eur,
        synced_at        = EXCLUDED.synced_at;`

	listCompaniesSQL = `SELECT
        ticker,
        name,
        sector,
        formatted_ticker,
        price_eur::text,
        market_cap_eur::text,
        volume_eur::text
    FROM companies
    ORDER BY ticker;`

	getCompanySQL = `SELECT
        ticker,
        name,
        sector,
        formatted_ticker,
        price_eur::text,
        market_cap_eur::text,
        volume_eur::text
    FROM companies
    WHERE ticker = $1;`

	sectorAggregatesSQL = `SELECT
        sector,
        COUNT(*),
        COALESCE(SUM(market_cap_eur), 0)::text,
        COALESCE(SUM(volume_eur), 0)::text
    FROM companies
    GROUP BY sector
    ORDER BY sector;`

	lastSyncSQL = `SELECT COALESCE(MAX(synced_at), 'epoch'::timestamptz) FROM companies;`

	insertSyncRunSQL = `INSERT INTO sync_runs (
        started_at,
        completed_at,
        source,
        companies,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    ) RETURNING id;`

	listSyncRunsSQL = `SELECT
        id,
        started_at,
        completed_at,
        source,
        companies,
        status,
        error
    FROM sync_runs
    ORDER BY started_at DESC
    LIMIT $1;`
)

// PostgresStore persists companies and sync runs in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ReplaceCompanies swaps the full record set inside one transaction.
func (s *PostgresStore) ReplaceCompanies(ctx context.Context, companies []Company, syncedAt time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteCompaniesSQL); err != nil {
		return fmt.Errorf("clear companies: %w", err)
	}

	for _, c := range companies {
		if _, err := tx.Exec(ctx, insertCompanySQL,
			c.Ticker,
			c.Name,
			c.Sector,
			c.FormattedTicker,
			decimal.NewFromFloat(c.CurrentPriceEur),
			decimal.NewFromFloat(c.MarketCapEur),
			decimal.NewFromFloat(c.VolumeEur),
			syncedAt,
		); err != nil {
			return fmt.Errorf("insert company %s: %w", c.Ticker, err)
		}
	}

	return tx.Commit(ctx)
}

// ListCompanies returns all records ordered by ticker.
func (s *PostgresStore) ListCompanies(ctx context.Context) ([]Company, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listCompaniesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list companies: %w", queryErr)
	}
	defer rows.Close()

	companies := make([]Company, 0)
	for rows.Next() {
		company, scanErr := scanCompany(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		companies = append(companies, company)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return companies, nil
}

// GetCompany looks up one record by ticker.
func (s *PostgresStore) GetCompany(ctx context.Context, ticker string) (Company, error) {
	pool, err := s.getPool()
	if err != nil {
		return Company{}, err
	}

	rows, queryErr := pool.Query(ctx, getCompanySQL, ticker)
	if queryErr != nil {
		return Company{}, fmt.Errorf("get company: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Company{}, rows.Err()
		}
		return Company{}, ErrNotFound
	}
	return scanCompany(rows)
}

// SectorAggregates sums market cap and volume per sector in SQL.
func (s *PostgresStore) SectorAggregates(ctx context.Context) ([]SectorAggregate, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, sectorAggregatesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("sector aggregates: %w", queryErr)
	}
	defer rows.Close()

	aggregates := make([]SectorAggregate, 0)
	for rows.Next() {
		var agg SectorAggregate
		var capStr, volStr string
		if err := rows.Scan(&agg.Sector, &agg.Companies, &capStr, &volStr); err != nil {
			return nil, err
		}

		var convErr error
		agg.TotalMarketCapEur, convErr = decimal.NewFromString(capStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse market cap total: %w", convErr)
		}
		agg.TotalVolumeEur, convErr = decimal.NewFromString(volStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse volume total: %w", convErr)
		}

		aggregates = append(aggregates, agg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return aggregates, nil
}

// LastSync returns the most recent synced_at across stored companies.
func (s *PostgresStore) LastSync(ctx context.Context) (time.Time, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, err
	}

	var ts time.Time
	if scanErr := pool.QueryRow(ctx, lastSyncSQL).Scan(&ts); scanErr != nil {
		return time.Time{}, fmt.Errorf("last sync: %w", scanErr)
	}
	if ts.Unix() <= 0 {
		return time.Time{}, nil
	}
	return ts, nil
}

// RecordSyncRun persists a pipeline execution audit record.
func (s *PostgresStore) RecordSyncRun(ctx context.Context, run SyncRun) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var id int64
	if scanErr := pool.QueryRow(ctx, insertSyncRunSQL,
		run.StartedAt,
		run.CompletedAt,
		run.Source,
		run.Companies,
		run.Status,
		run.Error,
	).Scan(&id); scanErr != nil {
		return fmt.Errorf("insert sync run: %w", scanErr)
	}
	return nil
}

// ListRecentSyncRuns lists most recent runs.
func (s *PostgresStore) ListRecentSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSyncRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list sync runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]SyncRun, 0, limit)
	for rows.Next() {
		var run SyncRun
		if err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.CompletedAt,
			&run.Source,
			&run.Companies,
			&run.Status,
			&run.Error,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

func scanCompany(rows pgx.Rows) (Company, error) {
	var c Company
	var priceStr, capStr, volStr string
	if err := rows.Scan(
		&c.Ticker,
		&c.Name,
		&c.Sector,
		&c.FormattedTicker,
		&priceStr,
		&capStr,
		&volStr,
	); err != nil {
		return Company{}, err
	}

	for _, field := range []struct {
		dst  *float64
		src  string
		name string
	}{
		{&c.CurrentPriceEur, priceStr, "price"},
		{&c.MarketCapEur, capStr, "market cap"},
		{&c.VolumeEur, volStr, "volume"},
	} {
		d, err := decimal.NewFromString(field.src)
		if err != nil {
			return Company{}, fmt.Errorf("parse %s: %w", field.name, err)
		}
		*field.dst = d.InexactFloat64()
	}

	return c, nil
}

var _ CompanyStore = (*PostgresStore)(nil)
