package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"ibex-sync/internal/storage"
)

// Show prints stored companies, or recent sync runs with --runs.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Runs {
		return a.showRuns(ctx, store, opts.Limit)
	}
	return a.showCompanies(ctx, store)
}

func (a *App) showCompanies(ctx context.Context, store storage.CompanyStore) error {
	companies, err := store.ListCompanies(ctx)
	if err != nil {
		return err
	}
	if len(companies) == 0 {
		fmt.Fprintln(os.Stdout, "no companies stored")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"TICKER", "COMPANY", "SECTOR", "PRICE EUR", "MARKET CAP EUR", "VOLUME EUR"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignRight},
	})

	for _, c := range companies {
		tw.AppendRow(table.Row{
			c.Ticker,
			c.Name,
			c.Sector,
			fmt.Sprintf("%.2f", c.CurrentPriceEur),
			fmt.Sprintf("%.0f", c.MarketCapEur),
			fmt.Sprintf("%.0f", c.VolumeEur),
		})
	}

	tw.Render()
	return nil
}

func (a *App) showRuns(ctx context.Context, store storage.CompanyStore, limit int) error {
	runs, err := store.ListRecentSyncRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "no sync runs recorded")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"STARTED (UTC)", "DURATION", "SOURCE", "COMPANIES", "STATUS", "ERROR"})

	for _, run := range runs {
		errMsg := ""
		if run.Error != nil {
			errMsg = sanitizeInline(*run.Error)
		}
		tw.AppendRow(table.Row{
			run.StartedAt.UTC().Format(time.RFC3339),
			run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
			run.Source,
			run.Companies,
			run.Status,
			errMsg,
		})
	}

	tw.Render()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
