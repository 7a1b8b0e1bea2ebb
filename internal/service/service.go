package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ibex-sync/internal/alerting"
	"ibex-sync/internal/config"
	"ibex-sync/internal/sheets"
	"ibex-sync/internal/storage"
)

const (
	statusComplete = "complete"
	statusErrored  = "errored"
)

// SyncResult is the output of one pipeline execution.
type SyncResult struct {
	Companies []storage.Company
	Source    string
	FetchedAt time.Time
}

// Service orchestrates the ingestion pipeline: credential resolution, token
// acquisition, tabular fetch, transformation, and persistence.
type Service struct {
	cfg      *config.Config
	store    storage.CompanyStore
	notifier alerting.Notifier
	logger   zerolog.Logger

	// fetcher and strategy are built lazily on the first successful credential
	// resolution so the caching token source survives across requests.
	mu       sync.Mutex
	fetcher  *sheets.Fetcher
	creds    sheets.Credentials
	failures int
}

// New constructs the sync service. A nil notifier disables alerting.
func New(cfg *config.Config, store storage.CompanyStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// pipeline resolves credentials and returns the shared fetcher. Resolution
// errors are not cached: every call re-checks configuration so the caller
// always gets the current remediation hint.
func (s *Service) pipeline() (*sheets.Fetcher, sheets.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetcher != nil {
		return s.fetcher, s.creds, nil
	}

	creds, err := sheets.ResolveCredentials(s.cfg.Sheets)
	if err != nil {
		return nil, sheets.Credentials{}, err
	}

	src, err := sheets.NewTokenSource(creds, sheets.ExchangeOptions{
		TokenURL: s.cfg.Sheets.TokenURL,
		Timeout:  s.cfg.Sheets.RequestTimeout,
	}, s.cfg.Sheets.Scope, s.logger)
	if err != nil {
		return nil, sheets.Credentials{}, err
	}

	s.fetcher = sheets.NewFetcher(sheets.FetcherOptions{
		BaseURL: s.cfg.Sheets.BaseURL,
		Timeout: s.cfg.Sheets.RequestTimeout,
	}, sheets.NewCachingTokenSource(src), s.logger)
	s.creds = creds

	return s.fetcher, s.creds, nil
}

// Sync runs the pipeline once and returns the validated batch without
// touching the store.
func (s *Service) Sync(ctx context.Context) (SyncResult, error) {
	fetcher, creds, err := s.pipeline()
	if err != nil {
		return SyncResult{}, err
	}

	rows, err := fetcher.FetchValues(ctx, creds.SheetID)
	if err != nil {
		return SyncResult{}, err
	}

	companies := sheets.TransformRows(rows, s.logger)

	s.logger.Info().
		Int("rows", len(rows)).
		Int("companies", len(companies)).
		Str("source", string(creds.Strategy)).
		Msg("sheet sync completed")

	return SyncResult{
		Companies: companies,
		Source:    string(creds.Strategy),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// Refresh runs the pipeline and persists the result, recording an audit run
// either way. Consecutive failures beyond the alerting threshold trigger a
// notification.
func (s *Service) Refresh(ctx context.Context) (SyncResult, error) {
	started := time.Now().UTC()

	result, err := s.Sync(ctx)
	if err != nil {
		s.recordRun(ctx, started, result, err)
		s.noteFailure(ctx, err)
		return SyncResult{}, err
	}

	if storeErr := s.store.ReplaceCompanies(ctx, result.Companies, result.FetchedAt); storeErr != nil {
		s.logger.Error().Err(storeErr).Msg("failed to persist company batch")
		s.recordRun(ctx, started, result, storeErr)
		return SyncResult{}, fmt.Errorf("persist companies: %w", storeErr)
	}

	s.recordRun(ctx, started, result, nil)
	s.resetFailures()
	return result, nil
}

func (s *Service) recordRun(ctx context.Context, started time.Time, result SyncResult, runErr error) {
	if s.store == nil {
		return
	}

	run := storage.SyncRun{
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
		Source:      result.Source,
		Companies:   len(result.Companies),
		Status:      statusComplete,
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Status = statusErrored
		run.Error = &msg
	}

	if err := s.store.RecordSyncRun(ctx, run); err != nil {
		s.logger.Error().Err(err).Msg("failed to record sync run")
	}
}

func (s *Service) noteFailure(ctx context.Context, cause error) {
	if !s.cfg.Alerting.Enabled || s.notifier == nil {
		return
	}

	s.mu.Lock()
	s.failures++
	failures := s.failures
	s.mu.Unlock()

	threshold := s.cfg.Alerting.FailureThreshold
	if failures < threshold {
		return
	}

	note := alerting.Notification{
		FailedAt:            time.Now().UTC(),
		SheetID:             s.cfg.Sheets.SheetID,
		Strategy:            string(s.creds.Strategy),
		ConsecutiveFailures: failures,
		Threshold:           threshold,
		LastError:           cause.Error(),
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Msg("failed to dispatch sync failure alert")
	}
}

func (s *Service) resetFailures() {
	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()
}
