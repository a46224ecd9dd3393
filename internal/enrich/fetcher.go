// Package enrich fetches token metadata from the external price/metadata
// source and feeds it through the write queue. The source is opaque: a fetch
// either returns a record or reports the token as absent.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmittakarin8/solflow/internal/domain"
)

// Fetcher retrieves token metadata over HTTP.
type Fetcher struct {
	baseURL string
	client  *http.Client
}

// NewFetcher creates a Fetcher for the given base URL.
func NewFetcher(baseURL string, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Fetcher{baseURL: baseURL, client: client}
}

// tokenResponse is the source's wire shape.
type tokenResponse struct {
	Mint            string   `json:"mint"`
	Symbol          *string  `json:"symbol"`
	Name            *string  `json:"name"`
	Decimals        uint8    `json:"decimals"`
	PriceUSD        *float64 `json:"price_usd"`
	MarketCapUSD    *float64 `json:"market_cap_usd"`
	TokenAgeSeconds *int64   `json:"token_age_seconds"`
}

// Fetch returns the metadata record for a mint, or (nil, nil) when the
// source does not know the token.
func (f *Fetcher) Fetch(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	url := fmt.Sprintf("%s/token/%s", f.baseURL, mint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build metadata request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for %s: %w", mint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch metadata for %s: status %d", mint, resp.StatusCode)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", mint, err)
	}

	return &domain.TokenMetadata{
		Mint:            mint,
		Symbol:          body.Symbol,
		Name:            body.Name,
		Decimals:        body.Decimals,
		PriceUSD:        body.PriceUSD,
		MarketCapUSD:    body.MarketCapUSD,
		TokenAgeSeconds: body.TokenAgeSeconds,
		UpdatedAt:       time.Now().Unix(),
	}, nil
}
