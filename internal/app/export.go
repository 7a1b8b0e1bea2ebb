package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"ibex-sync/internal/storage"
)

var decBillion = decimal.NewFromInt(1_000_000_000)

// Export writes the stored company batch as CSV and/or a market-cap-by-sector
// PNG chart.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	companies, err := store.ListCompanies(ctx)
	if err != nil {
		return err
	}
	if len(companies) == 0 {
		a.Logger.Info().Msg("no companies stored; nothing to export")
		return nil
	}

	a.Logger.Info().Int("companies", len(companies)).Msg("exporting stored batch")

	if opts.CSVPath != "" {
		if err := writeCompaniesCSV(opts.CSVPath, companies); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		aggregates, err := store.SectorAggregates(ctx)
		if err != nil {
			return err
		}
		if err := writeSectorPNG(opts.PNGPath, aggregates); err != nil {
			return err
		}
	}

	return nil
}

func writeCompaniesCSV(path string, companies []storage.Company) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"ticker", "company", "sector", "formatted_ticker", "price_eur", "market_cap_eur", "volume_eur"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, c := range companies {
		record := []string{
			c.Ticker,
			c.Name,
			c.Sector,
			c.FormattedTicker,
			strconv.FormatFloat(c.CurrentPriceEur, 'f', -1, 64),
			strconv.FormatFloat(c.MarketCapEur, 'f', -1, 64),
			strconv.FormatFloat(c.VolumeEur, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSectorPNG(path string, aggregates []storage.SectorAggregate) error {
	if len(aggregates) == 0 {
		return errors.New("no sector aggregates to chart")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	bars := make([]chart.Value, 0, len(aggregates))
	for _, agg := range aggregates {
		capBn, _ := agg.TotalMarketCapEur.Div(decBillion).Float64()
		bars = append(bars, chart.Value{
			Label: agg.Sector,
			Value: capBn,
		})
	}

	graph := chart.BarChart{
		Title:    "IBEX 35 market cap by sector (EUR bn)",
		Width:    1280,
		Height:   720,
		BarWidth: 60,
		XAxis: chart.Style{
			TextRotationDegrees: 45,
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.1f")
			},
		},
		Bars: bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := graph.Render(chart.PNG, file); err != nil {
		return fmt.Errorf("render sector chart: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
