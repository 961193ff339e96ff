package oracle

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/Digital-Creators-Team/faucet-module/errors"
	"github.com/Digital-Creators-Team/faucet-module/pkg/currency"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Service caches exchange rates relative to a quote currency.
// Rates are fresh for TTL after the last accepted refresh.
type Service struct {
	source    Source
	supported []currency.Currency
	quote     currency.Currency
	ttl       time.Duration
	maxDev    decimal.Decimal
	timeout   time.Duration
	ladder    []time.Duration
	logger    zerolog.Logger
	observer  Observer
	now       func() time.Time

	mu         sync.RWMutex
	rates      map[currency.Currency]decimal.Decimal
	lastUpdate time.Time

	refreshing bool // Flag to prevent concurrent refreshes
	refreshMu  sync.Mutex

	timerMu  sync.Mutex
	ticker   *time.Ticker
	retry    *time.Timer
	failures int
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewService creates an oracle with an empty cache. Call Start to fetch.
func NewService(source Source, cfg Config) *Service {
	s := &Service{
		source:    source,
		supported: cfg.Supported,
		quote:     cfg.QuoteCurrency,
		ttl:       cfg.TTL,
		maxDev:    cfg.MaxDeviation,
		timeout:   cfg.RequestTimeout,
		ladder:    cfg.RetryLadder,
		logger:    cfg.Logger.With().Str("component", "price-oracle").Logger(),
		observer:  cfg.Observer,
		now:       cfg.Now,
		rates:     make(map[currency.Currency]decimal.Decimal),
		stopChan:  make(chan struct{}),
	}
	if len(s.supported) == 0 {
		s.supported = currency.Supported
	}
	if s.quote == "" {
		s.quote = currency.NANO
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.maxDev.Sign() <= 0 {
		s.maxDev = DefaultMaxDeviation
	}
	if s.timeout <= 0 {
		s.timeout = DefaultRequestTimeout
	}
	if s.ladder == nil {
		s.ladder = DefaultRetryLadder
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Start arms the steady-state timer and performs the startup refresh.
func (s *Service) Start(ctx context.Context) {
	s.timerMu.Lock()
	if s.ticker == nil {
		s.ticker = time.NewTicker(s.ttl)
		go s.loop(s.ticker)
	}
	s.timerMu.Unlock()

	s.Refresh(ctx, true)
}

// Stop cancels the steady-state and retry timers.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.timerMu.Lock()
		defer s.timerMu.Unlock()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		if s.retry != nil {
			s.retry.Stop()
		}
	})
}

func (s *Service) loop(ticker *time.Ticker) {
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Refresh(context.Background(), false)
		}
	}
}

func (s *Service) stopped() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

// Available reports whether the cache was refreshed within the TTL.
func (s *Service) Available() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.availableLocked()
}

func (s *Service) availableLocked() bool {
	if s.lastUpdate.IsZero() {
		return false
	}
	return s.now().Sub(s.lastUpdate) < s.ttl
}

// Convert converts amount of from into to, rounded to 4 decimal places.
func (s *Service) Convert(from, to currency.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.availableLocked() {
		return decimal.Zero, apperrors.ServiceUnavailable
	}
	if !s.isSupported(from) || !s.isSupported(to) {
		return decimal.Zero, apperrors.NewWithDebug(apperrors.ErrUnsupportedCurrency, "unsupported currency",
			fmt.Sprintf("%s -> %s", from, to))
	}
	if from == to {
		return amount, nil
	}

	fromRate, okFrom := s.rates[from]
	toRate, okTo := s.rates[to]
	if !okFrom || !okTo || fromRate.Sign() <= 0 || toRate.Sign() <= 0 || amount.Sign() <= 0 {
		return decimal.Zero, apperrors.NewWithDebug(apperrors.ErrInvalidRate, "invalid rate",
			fmt.Sprintf("%s=%s %s=%s amount=%s", from, fromRate, to, toRate, amount))
	}

	return amount.Mul(fromRate).Div(toRate).Round(4), nil
}

// Snapshot returns a copy of the cached rates.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Rates: lo.MapKeys(s.rates, func(_ decimal.Decimal, c currency.Currency) string {
			return c.String()
		}),
		LastUpdate: s.lastUpdate,
		Available:  s.availableLocked(),
	}
}

// Refresh fetches and validates a new snapshot. Concurrent calls while a
// refresh is in flight return immediately. Errors are logged, never returned.
func (s *Service) Refresh(ctx context.Context, startup bool) {
	s.refreshMu.Lock()
	if s.refreshing {
		s.refreshMu.Unlock()
		s.logger.Debug().Msg("Refresh already in progress, skipping")
		return
	}
	s.refreshing = true
	s.refreshMu.Unlock()

	defer func() {
		s.refreshMu.Lock()
		s.refreshing = false
		s.refreshMu.Unlock()
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	next, err := s.fetch(fetchCtx)
	if err != nil {
		s.observer.ObserveRefresh(OutcomeFailure)
		s.logger.Warn().Err(err).Bool("startup", startup).Msg("Price refresh failed")
		s.scheduleRetry()
		return
	}

	s.mu.Lock()
	if c, dev, ok := s.deviating(next); ok {
		s.lastUpdate = time.Time{}
		s.mu.Unlock()
		s.observer.ObserveRefresh(OutcomeDeviation)
		s.observer.SetAvailable(false)
		s.logger.Error().
			Str("currency", c.String()).
			Str("deviation", dev.StringFixed(4)).
			Str("max_deviation", s.maxDev.String()).
			Msg("FATAL price anomaly: rate deviation over threshold, rate cache invalidated")
		return
	}
	s.rates = next
	s.lastUpdate = s.now()
	s.mu.Unlock()

	s.observer.ObserveRefresh(OutcomeSuccess)
	s.observer.SetAvailable(true)
	s.onSuccess()

	s.logger.Debug().
		Bool("startup", startup).
		Interface("rates", next).
		Msg("Exchange rates updated")
}

// fetch returns the validated rate map for the supported currencies.
func (s *Service) fetch(ctx context.Context) (map[currency.Currency]decimal.Decimal, error) {
	quotes, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUpstreamFetch, "price source fetch failed")
	}

	next := map[currency.Currency]decimal.Decimal{s.quote: decimal.NewFromInt(1)}
	for _, q := range quotes {
		base := currency.Currency(q.Base)
		if !s.isSupported(base) || currency.Currency(q.Quote) != s.quote || base == s.quote {
			continue
		}
		if q.Price.Sign() <= 0 {
			return nil, apperrors.NewWithDebug(apperrors.ErrUpstreamFetch, "malformed price entry",
				fmt.Sprintf("%s/%s midPrice=%s", q.Base, q.Quote, q.Price))
		}
		next[base] = q.Price
	}
	if len(next) == 1 {
		return nil, apperrors.NewWithDebug(apperrors.ErrUpstreamFetch, "no supported markets in response",
			fmt.Sprintf("%d entries from %s", len(quotes), s.source.Name()))
	}
	return next, nil
}

// deviating reports the first currency whose new rate moved more than maxDev.
// Caller holds s.mu.
func (s *Service) deviating(next map[currency.Currency]decimal.Decimal) (currency.Currency, decimal.Decimal, bool) {
	for c, rate := range next {
		old, ok := s.rates[c]
		if !ok || old.Sign() <= 0 {
			continue
		}
		dev := rate.Sub(old).Abs().Div(old)
		if dev.GreaterThan(s.maxDev) {
			return c, dev, true
		}
	}
	return "", decimal.Zero, false
}

func (s *Service) onSuccess() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	s.failures = 0
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	if s.ticker != nil && !s.stopped() {
		s.ticker.Reset(s.ttl)
	}
}

func (s *Service) scheduleRetry() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.stopped() {
		return
	}
	if s.failures >= len(s.ladder) {
		s.logger.Warn().Int("failures", s.failures).Msg("Retry ladder exhausted, waiting for next scheduled refresh")
		return
	}
	delay := s.ladder[s.failures]
	s.failures++
	if s.retry != nil {
		s.retry.Stop()
	}
	s.retry = time.AfterFunc(delay, func() {
		if s.stopped() {
			return
		}
		s.Refresh(context.Background(), false)
	})
	s.logger.Info().Dur("delay", delay).Int("attempt", s.failures).Msg("Scheduled price refresh retry")
}

func (s *Service) isSupported(c currency.Currency) bool {
	return lo.Contains(s.supported, c)
}
