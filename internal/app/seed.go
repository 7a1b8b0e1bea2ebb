package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ibex-sync/internal/sheets"
	"ibex-sync/internal/storage"
)

// sampleRows is a bundled snapshot of IBEX 35 rows in the sheet's positional
// layout. It goes through the real transformer so seeding exercises the same
// validation as a live sync.
var sampleRows = [][]any{
	{"SAN.MC", "Banco Santander", "Banking", "SAN", 4.52, 71_500_000_000.0, 98_400_000.0},
	{"BBVA.MC", "BBVA", "Banking", "BBVA", 10.94, 63_100_000_000.0, 61_200_000.0},
	{"CABK.MC", "CaixaBank", "Banking", "CABK", 5.61, 40_800_000_000.0, 44_700_000.0},
	{"ITX.MC", "Inditex", "Retail", "ITX", 47.30, 147_400_000_000.0, 23_900_000.0},
	{"IBE.MC", "Iberdrola", "Utilities", "IBE", 13.87, 88_300_000_000.0, 35_600_000.0},
	{"ELE.MC", "Endesa", "Utilities", "ELE", 21.12, 22_400_000_000.0, 8_100_000.0},
	{"NTGY.MC", "Naturgy", "Utilities", "NTGY", 24.06, 23_300_000_000.0, 2_700_000.0},
	{"REP.MC", "Repsol", "Energy", "REP", 12.41, 15_200_000_000.0, 27_800_000.0},
	{"TEF.MC", "Telefonica", "Telecommunications", "TEF", 4.38, 24_900_000_000.0, 52_300_000.0},
	{"AMS.MC", "Amadeus IT Group", "Technology", "AMS", 67.54, 30_400_000_000.0, 6_500_000.0},
	{"AENA.MC", "Aena", "Infrastructure", "AENA", 206.80, 31_000_000_000.0, 1_900_000.0},
	{"FER.MC", "Ferrovial", "Infrastructure", "FER", 39.76, 29_100_000_000.0, 4_200_000.0},
	{"ACS.MC", "ACS", "Construction", "ACS", 44.15, 11_900_000_000.0, 3_300_000.0},
	{"GRF.MC", "Grifols", "Healthcare", "GRF", 9.87, 6_700_000_000.0, 10_800_000.0},
	{"MAP.MC", "Mapfre", "Insurance", "MAP", 2.54, 7_800_000_000.0, 9_600_000.0},
}

// Seed loads the bundled sample batch into the configured store.
func (a *App) Seed(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return seedStore(ctx, store, a.Logger)
}

func seedStore(ctx context.Context, store storage.CompanyStore, logger zerolog.Logger) error {
	companies := sheets.TransformRows(sampleRows, logger)
	now := time.Now().UTC()

	if err := store.ReplaceCompanies(ctx, companies, now); err != nil {
		return err
	}

	run := storage.SyncRun{
		StartedAt:   now,
		CompletedAt: now,
		Source:      "seed",
		Companies:   len(companies),
		Status:      "complete",
	}
	if err := store.RecordSyncRun(ctx, run); err != nil {
		return err
	}

	logger.Info().Int("companies", len(companies)).Msg("store seeded with sample batch")
	return nil
}
