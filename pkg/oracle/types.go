package oracle

import (
	"context"
	"time"

	"github.com/Digital-Creators-Team/faucet-module/pkg/currency"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DefaultTTL            = time.Hour
	DefaultRequestTimeout = 10 * time.Second
)

// DefaultMaxDeviation is the largest accepted relative change between two refreshes.
var DefaultMaxDeviation = decimal.NewFromFloat(0.10)

// DefaultRetryLadder is the backoff used after consecutive fetch failures.
var DefaultRetryLadder = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}

// Quote is one market entry reported by a price source.
type Quote struct {
	Base  string
	Quote string
	Price decimal.Decimal
}

// Source fetches the current market snapshot.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Quote, error)
}

// Observer receives refresh outcomes, e.g. for metrics.
type Observer interface {
	ObserveRefresh(outcome string)
	SetAvailable(available bool)
}

// Refresh outcomes reported to the Observer.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeDeviation = "deviation"
)

// Config configures a Service.
type Config struct {
	Supported      []currency.Currency
	QuoteCurrency  currency.Currency
	TTL            time.Duration
	MaxDeviation   decimal.Decimal
	RequestTimeout time.Duration
	RetryLadder    []time.Duration
	Logger         zerolog.Logger
	Observer       Observer
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Snapshot is a point-in-time copy of the cache.
type Snapshot struct {
	Rates      map[string]decimal.Decimal `json:"rates"`
	LastUpdate time.Time                  `json:"lastUpdate"`
	Available  bool                       `json:"available"`
}

type noopObserver struct{}

func (noopObserver) ObserveRefresh(string) {}
func (noopObserver) SetAvailable(bool) {}
