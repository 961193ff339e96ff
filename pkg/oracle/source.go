package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Digital-Creators-Team/faucet-module/httpclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultSourceURL is the public nanswap market feed.
const DefaultSourceURL = "https://data.nanswap.com/get-markets"

// HTTPSource reads a JSON array of {key: "BASE/QUOTE", midPrice} entries.
type HTTPSource struct {
	url    string
	client *httpclient.Client
}

type marketEntry struct {
	Key      string           `json:"key"`
	Pair     string           `json:"pair"`
	MidPrice *decimal.Decimal `json:"midPrice"`
}

// NewHTTPSource creates a source for url.
func NewHTTPSource(url string, timeout time.Duration, logger zerolog.Logger) *HTTPSource {
	if url == "" {
		url = DefaultSourceURL
	}
	return &HTTPSource{
		url:    url,
		client: httpclient.New(httpclient.Config{BaseURL: url, Timeout: timeout, Logger: logger}),
	}
}

// Name implements Source
func (s *HTTPSource) Name() string { return s.url }

// Fetch implements Source. Entries without a BASE/QUOTE pair are skipped;
// a missing midPrice is reported as a zero price for the caller to reject.
func (s *HTTPSource) Fetch(ctx context.Context) ([]Quote, error) {
	var entries []marketEntry
	if err := s.client.GetJSON(ctx, "", nil, &entries); err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}

	quotes := make([]Quote, 0, len(entries))
	for _, e := range entries {
		pair := e.Key
		if pair == "" {
			pair = e.Pair
		}
		base, quote, ok := strings.Cut(pair, "/")
		if !ok || base == "" || quote == "" {
			continue
		}
		q := Quote{Base: strings.ToUpper(base), Quote: strings.ToUpper(quote)}
		if e.MidPrice != nil {
			q.Price = *e.MidPrice
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}
