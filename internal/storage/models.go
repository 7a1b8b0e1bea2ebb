package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company is a validated IBEX 35 company record as served to dashboard
// clients. Numeric fields are coerced floats: unparseable upstream cells
// arrive as zero, and the validity predicate keeps zero-priced rows out.
type Company struct {
	Ticker          string  `json:"ticker"`
	Name            string  `json:"company"`
	Sector          string  `json:"sector"`
	FormattedTicker string  `json:"formattedTicker"`
	CurrentPriceEur float64 `json:"currentPriceEur"`
	MarketCapEur    float64 `json:"marketCapEur"`
	VolumeEur       float64 `json:"volumeEur"`
}

// Valid reports whether the record passes the inclusion predicate: ticker and
// company name present, price strictly positive.
func (c Company) Valid() bool {
	return c.Ticker != "" && c.Name != "" && c.CurrentPriceEur > 0
}

// SectorAggregate summarises stored companies by sector. Totals are decimal
// so large market caps sum without float drift.
type SectorAggregate struct {
	Sector            string          `json:"sector"`
	Companies         int             `json:"companies"`
	TotalMarketCapEur decimal.Decimal `json:"totalMarketCapEur"`
	TotalVolumeEur    decimal.Decimal `json:"totalVolumeEur"`
}

// SyncRun records one pipeline execution for auditing.
type SyncRun struct {
	ID          int64
	StartedAt   time.Time
	CompletedAt time.Time
	Source      string
	Companies   int
	Status      string
	Error       *string
}
