package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// valueRange addresses the company table: columns A-G, header row
	// excluded. The transformer's column-position contract depends on it.
	valueRange = "A2:G"

	// renderOption asks for raw underlying values instead of locale-formatted
	// display strings.
	renderOption = "UNFORMATTED_VALUE"
)

// FetcherOptions parameterise the values fetcher.
type FetcherOptions struct {
	BaseURL string
	Timeout time.Duration
}

// Fetcher retrieves the rectangular value range from the spreadsheet API.
type Fetcher struct {
	tokens  TokenSource
	client  *http.Client
	logger  zerolog.Logger
	baseURL string
}

// NewFetcher constructs a values fetcher over the given token source.
func NewFetcher(opts FetcherOptions, tokens TokenSource, logger zerolog.Logger) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	}

	return &Fetcher{
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "values_fetcher").Logger(),
		baseURL: baseURL,
	}
}

// FetchValues retrieves the raw values array for the sheet. Rows may be
// ragged; an empty sheet yields an empty slice. Transport-level failures get
// one retry; HTTP-level failures are terminal.
func (f *Fetcher) FetchValues(ctx context.Context, sheetID string) ([][]any, error) {
	tok, err := f.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/values/%s?valueRenderOption=%s",
		f.baseURL, url.PathEscape(sheetID), url.PathEscape(valueRange), renderOption)

	values, err := f.fetchOnce(ctx, endpoint, tok)
	if err != nil {
		if _, terminal := err.(*UpstreamFetchError); terminal || ctx.Err() != nil {
			return nil, err
		}
		f.logger.Warn().Err(err).Msg("values fetch failed, retrying once")
		values, err = f.fetchOnce(ctx, endpoint, tok)
		if err != nil {
			return nil, err
		}
	}

	return values, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, endpoint string, tok Token) ([][]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamFetchError{Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	var body struct {
		Values [][]any `json:"values"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decode values response: %w", err)
	}

	if body.Values == nil {
		return [][]any{}, nil
	}
	return body.Values, nil
}
