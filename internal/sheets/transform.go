package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"ibex-sync/internal/storage"
)

// Column-position contract for the fetched range. The upstream rows are
// positional arrays with no header names; these indices are the only
// addressing mechanism and must match the sheet layout exactly.
const (
	colTicker = iota
	colCompany
	colSector
	colFormattedTicker
	colPriceEur
	colMarketCapEur
	colVolumeEur
)

// firstDataRow is the 1-based sheet row of the first fetched row (the header
// row is excluded by the fetch range).
const firstDataRow = 2

// TransformRows maps raw positional rows to validated company records.
//
// The mapping is partial-failure tolerant: a row that cannot be mapped is
// logged with its sheet row index and dropped, never failing the batch.
// Records that fail the inclusion predicate are dropped silently as a
// data-quality filter, not an error.
func TransformRows(rows [][]any, logger zerolog.Logger) []storage.Company {
	companies := make([]storage.Company, 0, len(rows))

	for i, row := range rows {
		rec, err := mapRow(row)
		if err != nil {
			logger.Warn().Int("sheet_row", i+firstDataRow).Err(err).Msg("dropping unmappable row")
			continue
		}
		if !rec.Valid() {
			logger.Debug().Int("sheet_row", i+firstDataRow).Str("ticker", rec.Ticker).Msg("row excluded by validity predicate")
			continue
		}
		companies = append(companies, rec)
	}

	return companies
}

// mapRow converts one raw row. Rows may be ragged: missing trailing cells
// read as empty, and a panic from an unexpected cell shape is confined to the
// row.
func mapRow(row []any) (rec storage.Company, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("map row: %v", r)
		}
	}()

	if len(row) == 0 {
		return storage.Company{}, fmt.Errorf("empty row")
	}

	rec = storage.Company{
		Ticker:          cellString(row, colTicker),
		Name:            cellString(row, colCompany),
		Sector:          cellString(row, colSector),
		FormattedTicker: cellString(row, colFormattedTicker),
		CurrentPriceEur: cellFloat(row, colPriceEur),
		MarketCapEur:    cellFloat(row, colMarketCapEur),
		VolumeEur:       cellFloat(row, colVolumeEur),
	}
	return rec, nil
}

func cellString(row []any, idx int) string {
	if idx >= len(row) || row[idx] == nil {
		return ""
	}
	switch v := row[idx].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// cellFloat coerces a numeric cell with a parse-or-zero policy; it never
// fails the row.
func cellFloat(row []any, idx int) float64 {
	if idx >= len(row) || row[idx] == nil {
		return 0
	}
	switch v := row[idx].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
