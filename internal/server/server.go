package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"ibex-sync/internal/config"
	"ibex-sync/internal/service"
	"ibex-sync/internal/sheets"
	"ibex-sync/internal/storage"
)

// Server exposes the company sync pipeline over a public read-only HTTP API.
type Server struct {
	cfg    config.ServerConfig
	svc    *service.Service
	store  storage.CompanyStore
	logger zerolog.Logger
	router chi.Router
}

// New wires the HTTP routes over the sync service and store.
func New(cfg config.ServerConfig, svc *service.Service, store storage.CompanyStore, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		store:  store,
		logger: logger.With().Str("component", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/companies", s.handleCompanies)
		r.Options("/companies", handlePreflight)
		r.Get("/companies/{ticker}", s.handleCompany)
		r.Options("/companies/{ticker}", handlePreflight)
		r.Get("/sectors", s.handleSectors)
		r.Options("/sectors", handlePreflight)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownTimeout := s.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}

// handleCompanies serves the company batch, refreshing from the sheet when
// the stored batch is older than the cache TTL. Pipeline failures always
// surface as a structured error envelope.
func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lastSync, err := s.store.LastSync(ctx)
	if err == nil && !lastSync.IsZero() && time.Since(lastSync) < s.cfg.CacheTTL {
		companies, listErr := s.store.ListCompanies(ctx)
		if listErr == nil {
			writeSuccess(w, s.logger, companies, len(companies), lastSync, "cache", s.cfg.CacheTTL)
			return
		}
		s.logger.Error().Err(listErr).Msg("stale-read fallback failed, refreshing")
	}

	result, err := s.svc.Refresh(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sync pipeline failed")
		writeError(w, s.logger, sheets.HTTPStatus(err), err.Error())
		return
	}

	writeSuccess(w, s.logger, result.Companies, len(result.Companies), result.FetchedAt, result.Source, s.cfg.CacheTTL)
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	company, err := s.store.GetCompany(r.Context(), ticker)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, s.logger, http.StatusNotFound, "unknown ticker: "+ticker)
			return
		}
		writeError(w, s.logger, http.StatusInternalServerError, err.Error())
		return
	}

	lastSync, _ := s.store.LastSync(r.Context())
	writeSuccess(w, s.logger, company, 1, lastSync, "store", s.cfg.CacheTTL)
}

func (s *Server) handleSectors(w http.ResponseWriter, r *http.Request) {
	aggregates, err := s.store.SectorAggregates(r.Context())
	if err != nil {
		writeError(w, s.logger, http.StatusInternalServerError, err.Error())
		return
	}

	lastSync, _ := s.store.LastSync(r.Context())
	writeSuccess(w, s.logger, aggregates, len(aggregates), lastSync, "store", s.cfg.CacheTTL)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// corsMiddleware advertises open cross-origin readability on every response;
// this is a public read API with no caller authentication.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusMethodNotAllowed)
	_, _ = w.Write([]byte("Method not allowed"))
}
