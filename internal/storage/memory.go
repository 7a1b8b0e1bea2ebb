package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// maxRetainedRuns bounds the in-memory sync-run history.
const maxRetainedRuns = 100

// MemoryStore keeps company records in keyed maps guarded by a RWMutex. It
// models the original system's in-memory database behind the same interface
// as the Postgres store.
type MemoryStore struct {
	mu        sync.RWMutex
	companies map[string]Company
	lastSync  time.Time
	runs      []SyncRun
	nextRunID int64
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		companies: make(map[string]Company),
		nextRunID: 1,
	}
}

// ReplaceCompanies swaps the full record set atomically.
func (s *MemoryStore) ReplaceCompanies(_ context.Context, companies []Company, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.companies = make(map[string]Company, len(companies))
	for _, c := range companies {
		s.companies[c.Ticker] = c
	}
	s.lastSync = syncedAt
	return nil
}

// ListCompanies returns all records ordered by ticker.
func (s *MemoryStore) ListCompanies(_ context.Context) ([]Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	companies := make([]Company, 0, len(s.companies))
	for _, c := range s.companies {
		companies = append(companies, c)
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i].Ticker < companies[j].Ticker })
	return companies, nil
}

// GetCompany looks up one record by ticker.
func (s *MemoryStore) GetCompany(_ context.Context, ticker string) (Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.companies[ticker]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

// SectorAggregates sums market cap and volume per sector.
func (s *MemoryStore) SectorAggregates(_ context.Context) ([]SectorAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySector := make(map[string]*SectorAggregate)
	for _, c := range s.companies {
		agg, ok := bySector[c.Sector]
		if !ok {
			agg = &SectorAggregate{Sector: c.Sector}
			bySector[c.Sector] = agg
		}
		agg.Companies++
		agg.TotalMarketCapEur = agg.TotalMarketCapEur.Add(decimal.NewFromFloat(c.MarketCapEur))
		agg.TotalVolumeEur = agg.TotalVolumeEur.Add(decimal.NewFromFloat(c.VolumeEur))
	}

	aggregates := make([]SectorAggregate, 0, len(bySector))
	for _, agg := range bySector {
		aggregates = append(aggregates, *agg)
	}
	sort.Slice(aggregates, func(i, j int) bool { return aggregates[i].Sector < aggregates[j].Sector })
	return aggregates, nil
}

// LastSync returns the time of the most recent successful replace, zero when
// the store has never been filled.
func (s *MemoryStore) LastSync(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync, nil
}

// RecordSyncRun appends an audit record, trimming old history.
func (s *MemoryStore) RecordSyncRun(_ context.Context, run SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.ID = s.nextRunID
	s.nextRunID++
	s.runs = append(s.runs, run)
	if len(s.runs) > maxRetainedRuns {
		s.runs = s.runs[len(s.runs)-maxRetainedRuns:]
	}
	return nil
}

// ListRecentSyncRuns returns up to limit runs, most recent first.
func (s *MemoryStore) ListRecentSyncRuns(_ context.Context, limit int) ([]SyncRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	runs := make([]SyncRun, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, s.runs[i])
	}
	return runs, nil
}

var _ CompanyStore = (*MemoryStore)(nil)
