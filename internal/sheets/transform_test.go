package sheets

import (
	"testing"
)

func TestTransformRowsMapsFullRow(t *testing.T) {
	rows := [][]any{
		{"SAN.MC", "Santander", "Banking", "SAN", "4.50", "60000000000", "1000000"},
	}

	companies := TransformRows(rows, noopLogger())
	if len(companies) != 1 {
		t.Fatalf("expected 1 company, got %d", len(companies))
	}

	c := companies[0]
	if c.Ticker != "SAN.MC" || c.Name != "Santander" || c.Sector != "Banking" || c.FormattedTicker != "SAN" {
		t.Fatalf("string fields mismatched: %#v", c)
	}
	if c.CurrentPriceEur != 4.5 || c.MarketCapEur != 6e10 || c.VolumeEur != 1e6 {
		t.Fatalf("numeric fields mismatched: %#v", c)
	}
}

func TestTransformRowsUnformattedNumbers(t *testing.T) {
	// Unformatted value rendering delivers raw JSON numbers, not strings.
	rows := [][]any{
		{"IBE.MC", "Iberdrola", "Utilities", "IBE", 13.87, 8.83e10, 3.56e7},
	}

	companies := TransformRows(rows, noopLogger())
	if len(companies) != 1 {
		t.Fatalf("expected 1 company, got %d", len(companies))
	}
	if companies[0].CurrentPriceEur != 13.87 {
		t.Fatalf("numeric cell should pass through: %#v", companies[0])
	}
}

func TestTransformRowsInclusionPredicate(t *testing.T) {
	rows := [][]any{
		{"", "No Ticker", "Sector", "NT", "1.0", "1", "1"},
		{"NO-NAME.MC", "", "Sector", "NN", "1.0", "1", "1"},
		{"ZERO.MC", "Zero Price", "Sector", "ZP", "0", "1", "1"},
		{"OK.MC", "Kept", "Sector", "OK", "2.5", "1", "1"},
	}

	companies := TransformRows(rows, noopLogger())
	if len(companies) != 1 {
		t.Fatalf("only the complete row should survive the predicate, got %d", len(companies))
	}
	if companies[0].Ticker != "OK.MC" {
		t.Fatalf("wrong survivor: %#v", companies[0])
	}
}

func TestTransformRowsCoercesUnparseableNumericToZero(t *testing.T) {
	rows := [][]any{
		{"BAD.MC", "Bad Price", "Sector", "BP", "abc", "1", "1"},
		{"OK.MC", "Kept", "Sector", "OK", "2.5", "not-a-number", "1"},
	}

	companies := TransformRows(rows, noopLogger())

	// Row 1: price "abc" coerces to 0 and the predicate excludes it.
	// Row 2: market cap coerces to 0 but the row stays included.
	if len(companies) != 1 {
		t.Fatalf("expected 1 company, got %d", len(companies))
	}
	if companies[0].Ticker != "OK.MC" || companies[0].MarketCapEur != 0 {
		t.Fatalf("coercion mismatch: %#v", companies[0])
	}
}

func TestTransformRowsPartialFailureIsolation(t *testing.T) {
	rows := [][]any{
		{"A.MC", "Alpha", "S", "A", "1.0", "1", "1"},
		{}, // unmappable: dropped, must not abort the batch
		{"B.MC", "Beta", "S", "B", "2.0", "2", "2"},
	}

	companies := TransformRows(rows, noopLogger())
	if len(companies) != 2 {
		t.Fatalf("one bad row must not abort the batch, got %d records", len(companies))
	}
}

func TestTransformRowsRaggedRow(t *testing.T) {
	// Trailing cells missing: strings read empty, numerics read zero.
	rows := [][]any{
		{"RAG.MC", "Ragged", "Sector"},
	}

	companies := TransformRows(rows, noopLogger())
	if len(companies) != 0 {
		t.Fatalf("ragged row without price must be excluded, got %d", len(companies))
	}
}

func TestTransformRowsEmptyBatch(t *testing.T) {
	companies := TransformRows([][]any{}, noopLogger())
	if len(companies) != 0 {
		t.Fatalf("empty input should yield empty output, got %d", len(companies))
	}
}
