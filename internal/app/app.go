package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ibex-sync/internal/alerting"
	"ibex-sync/internal/config"
	"ibex-sync/internal/scheduler"
	"ibex-sync/internal/server"
	"ibex-sync/internal/service"
	"ibex-sync/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openStore returns the configured store: PostgreSQL when a DSN is set, the
// in-memory store otherwise.
func (a *App) openStore(ctx context.Context) (storage.CompanyStore, func(), error) {
	if a.Config.Database.DSN == "" {
		a.Logger.Debug().Msg("database.dsn not configured; using in-memory store")
		return storage.NewMemoryStore(), func() {}, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewPostgresStore(pool)
	return store, store.Close, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// ServeOptions configure the serve command.
type ServeOptions struct {
	// Seed preloads the bundled sample batch so the API answers without
	// spreadsheet credentials.
	Seed bool
}

// Serve runs the HTTP API, optionally with the background refresh loop.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Seed {
		if err := seedStore(ctx, store, a.Logger); err != nil {
			return err
		}
	}

	svc := service.New(a.Config, store, a.newNotifier(), a.Logger)
	srv := server.New(a.Config.Server, svc, store, a.Logger)

	if a.Config.Scheduler.Enabled {
		sched := scheduler.New(scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			AlignToStart: a.Config.Scheduler.AlignToBucket,
			StartupDelay: a.Config.Scheduler.StartupDelay,
		}, a.Logger)

		go func() {
			err := sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
				_, err := svc.Refresh(ctx)
				return err
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("scheduler terminated with error")
			}
		}()
	}

	a.Logger.Info().Msg("starting sync service")
	err = srv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("sync service stopped")
	return nil
}

// SyncOnce runs the pipeline a single time and persists the batch.
func (a *App) SyncOnce(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := service.New(a.Config, store, a.newNotifier(), a.Logger)

	result, err := svc.Refresh(ctx)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Int("companies", len(result.Companies)).
		Str("source", result.Source).
		Msg("one-shot sync completed")
	return nil
}

// ExportOptions hold parameters for exporting stored companies.
type ExportOptions struct {
	PNGPath string
	CSVPath string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Runs  bool
	Limit int
}
