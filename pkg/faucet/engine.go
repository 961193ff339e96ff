package faucet

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Digital-Creators-Team/faucet-module/errors"
	"github.com/Digital-Creators-Team/faucet-module/logging"
	"github.com/Digital-Creators-Team/faucet-module/pkg/currency"
	"github.com/Digital-Creators-Team/faucet-module/pkg/prize"
	"github.com/Digital-Creators-Team/faucet-module/pkg/providers"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Engine pays faucet claims for one currency. Claims run one at a time on
// the engine's queue so no two sends from the faucet wallet overlap.
type Engine struct {
	currency     currency.Currency
	tiers        []decimal.Decimal
	claimTimeout time.Duration
	share        decimal.Decimal

	store    providers.AccountStore
	wallet   providers.WalletSender
	oracle   Converter
	events   providers.EventPublisher
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time

	queue     *Queue
	referrals *ReferralLedger
}

// NewEngine creates the engine and its referral ledger and starts both queues.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if !currency.IsSupported(cfg.Currency) {
		return nil, fmt.Errorf("unsupported currency %q", cfg.Currency)
	}
	if len(cfg.Tiers) == 0 {
		return nil, fmt.Errorf("no winnings configured for %s", cfg.Currency)
	}
	for _, t := range cfg.Tiers {
		if t.Sign() <= 0 {
			return nil, fmt.Errorf("winnings for %s must be positive, got %s", cfg.Currency, t)
		}
	}
	if cfg.Store == nil || cfg.Wallet == nil {
		return nil, fmt.Errorf("account store and wallet sender are required")
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = DefaultClaimTimeout
	}
	if cfg.ReferralShare.Sign() <= 0 {
		cfg.ReferralShare = DefaultReferralShare
	}
	if cfg.Events == nil {
		cfg.Events = providers.NoopPublisher{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := logging.WithCurrency(logging.WithComponent(cfg.Logger, "claim-engine"), cfg.Currency.String())
	tiers := make([]decimal.Decimal, len(cfg.Tiers))
	copy(tiers, cfg.Tiers)

	e := &Engine{
		currency:     cfg.Currency,
		tiers:        tiers,
		claimTimeout: cfg.ClaimTimeout,
		share:        cfg.ReferralShare,
		store:        cfg.Store,
		wallet:       cfg.Wallet,
		oracle:       cfg.Oracle,
		events:       cfg.Events,
		recorder:     cfg.Recorder,
		logger:       logger,
		now:          cfg.Now,
		queue:        NewQueue(cfg.Currency.Lower()+"-claims", cfg.QueueSize, logger),
	}
	e.referrals = newReferralLedger(cfg, NewQueue(cfg.Currency.Lower()+"-referrals", cfg.QueueSize, logger))
	return e, nil
}

// Currency returns the currency this engine pays.
func (e *Engine) Currency() currency.Currency { return e.currency }

// Referrals returns the engine's referral ledger.
func (e *Engine) Referrals() *ReferralLedger { return e.referrals }

// Winnings returns a copy of the configured payout tiers.
func (e *Engine) Winnings() []decimal.Decimal {
	out := make([]decimal.Decimal, len(e.tiers))
	copy(out, e.tiers)
	return out
}

// QueueDepth returns the number of claims waiting, per queue.
func (e *Engine) QueueDepth() (claims, referrals int) {
	return e.queue.Len(), e.referrals.queue.Len()
}

// Close drains both queues.
func (e *Engine) Close() {
	e.queue.Close()
	e.referrals.queue.Close()
}

// Claim pays a prize to address if its cooldown has elapsed. referrer is
// recorded as the referral owner when address is seen for the first time.
func (e *Engine) Claim(ctx context.Context, address, referrer string) (*ClaimResult, error) {
	start := time.Now()
	res, err := submit(ctx, e.queue, func(ctx context.Context) (*ClaimResult, error) {
		return e.processClaim(ctx, address, referrer)
	})
	e.recorder.ObserveClaim(e.currency.String(), claimOutcome(err), time.Since(start))
	return res, err
}

// TimeUntilNextClaim returns the whole seconds left on address's cooldown, 0 when it may claim.
func (e *Engine) TimeUntilNextClaim(ctx context.Context, address string) (int64, error) {
	acc, err := e.store.FindByAddress(ctx, address)
	if apperrors.Is(err, providers.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to load account")
	}
	return e.remaining(acc, e.now()), nil
}

func (e *Engine) remaining(acc *providers.Account, now time.Time) int64 {
	elapsed := (now.UnixMilli() - acc.LastClaimAt) / 1000
	left := int64(e.claimTimeout/time.Second) - elapsed
	if left < 0 {
		return 0
	}
	return left
}

func (e *Engine) processClaim(ctx context.Context, address, referrer string) (*ClaimResult, error) {
	logger := logging.WithTraceID(ctx, logging.WithAddress(e.logger, address))

	acc, err := e.findOrCreate(ctx, address, referrer)
	if err != nil {
		return nil, err
	}

	now := e.now()
	if left := e.remaining(acc, now); left > 0 {
		return nil, apperrors.NewWithDebug(apperrors.ErrTooSoon, "claim cooldown has not elapsed",
			fmt.Sprintf("%ds remaining", left))
	}

	amount := prize.Roll(e.tiers)

	// advance before sending so a crash mid-send cannot pay twice
	prevLastClaim := acc.LastClaimAt
	nowMs := now.UnixMilli()
	acc, err = e.store.Update(ctx, acc.ID, providers.AccountDelta{ClaimCountIncr: 1, LastClaimAt: &nowMs})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to record claim")
	}

	hash, err := e.wallet.Send(ctx, address, amount)
	if err != nil {
		logger.Error().Err(err).Str("prize", amount.String()).Msg("Send failed, rolling back claim")
		e.rollback(ctx, logger, acc.ID, prevLastClaim)
		return nil, apperrors.Wrap(err, apperrors.ErrSendFailure, "wallet send failed")
	}

	logger.Info().Str("prize", amount.String()).Str("hash", hash).Msg("Claim paid")
	e.recorder.AddPaid(e.currency.String(), "claim", amount)

	e.accrueReferral(ctx, logger, acc, amount)
	e.publishClaim(ctx, logger, acc, amount, hash)

	return &ClaimResult{TransactionHash: hash, Prize: amount, Winnings: e.Winnings()}, nil
}

// findOrCreate looks the account up, creating it at most once.
func (e *Engine) findOrCreate(ctx context.Context, address, referrer string) (*providers.Account, error) {
	for attempt := 0; attempt < 2; attempt++ {
		acc, err := e.store.FindByAddress(ctx, address)
		if err == nil {
			return acc, nil
		}
		if !apperrors.Is(err, providers.ErrAccountNotFound) {
			return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to load account")
		}
		if attempt > 0 {
			break
		}

		owner := e.linkReferrer(ctx, address, referrer)
		if _, err := e.store.Create(ctx, address, e.currency.String(), owner); err != nil {
			// another writer may have created it; the lookup below decides
			e.logger.Warn().Err(err).Str("address", address).Msg("Account create failed")
		}
	}
	return nil, apperrors.NewWithDebug(apperrors.ErrStoreError, "failed to create account", address)
}

// linkReferrer returns the referral owner to record for a new account, or ""
// when the referrer is unknown or its counter cannot be incremented.
func (e *Engine) linkReferrer(ctx context.Context, address, referrer string) string {
	if referrer == "" || referrer == address {
		return ""
	}
	ref, err := e.store.FindByAddress(ctx, referrer)
	if err != nil {
		e.logger.Debug().Err(err).Str("referrer", referrer).Msg("Referrer not linked")
		return ""
	}
	if _, err := e.store.Update(ctx, ref.ID, providers.AccountDelta{ReferredCountIncr: 1}); err != nil {
		e.logger.Warn().Err(err).Str("referrer", referrer).Msg("Failed to count referral, not linking")
		return ""
	}
	return ref.Address
}

func (e *Engine) rollback(ctx context.Context, logger zerolog.Logger, id string, prevLastClaim int64) {
	_, err := e.store.Update(ctx, id, providers.AccountDelta{ClaimCountIncr: -1, LastClaimAt: &prevLastClaim})
	if err != nil {
		logger.Error().Err(err).Int64("last_claim_at", prevLastClaim).Msg("Claim rollback failed")
	}
}

// accrueReferral credits the referrer's share. Failures never affect the claim.
func (e *Engine) accrueReferral(ctx context.Context, logger zerolog.Logger, acc *providers.Account, amount decimal.Decimal) {
	owner := acc.ReferralOwner
	if owner == "" {
		return
	}
	outcome := OutcomeError
	defer func() { e.recorder.ObserveAccrual(e.currency.String(), outcome) }()

	if e.oracle == nil || !e.oracle.Available() {
		outcome = OutcomeSkipped
		logger.Warn().Str("referrer", owner).Msg("Price oracle unavailable, referral bonus skipped")
		return
	}
	ownerCurrency, ok := currency.FromAddress(owner)
	if !ok {
		logger.Warn().Str("referrer", owner).Msg("Referrer has unknown currency prefix")
		return
	}
	converted, err := e.oracle.Convert(e.currency, ownerCurrency, amount)
	if err != nil {
		logger.Warn().Err(err).Str("referrer", owner).Msg("Referral conversion failed")
		return
	}
	bonus := converted.Mul(e.share)
	if bonus.Sign() <= 0 {
		outcome = OutcomeSkipped
		return
	}
	if err := e.referrals.Accrue(ctx, owner, bonus); err != nil {
		logger.Warn().Err(err).Str("referrer", owner).Str("bonus", bonus.String()).Msg("Referral accrual failed")
		return
	}
	outcome = OutcomeSuccess
	logger.Debug().Str("referrer", owner).Str("bonus", bonus.String()).Msg("Referral bonus accrued")
}

func (e *Engine) publishClaim(ctx context.Context, logger zerolog.Logger, acc *providers.Account, amount decimal.Decimal, hash string) {
	err := e.events.PublishClaim(ctx, &providers.ClaimEvent{
		EventID:         uuid.NewString(),
		Currency:        e.currency.String(),
		Address:         acc.Address,
		Prize:           amount,
		TransactionHash: hash,
		ReferralOwner:   acc.ReferralOwner,
		Timestamp:       e.now(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to publish claim event")
	}
}

func claimOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case apperrors.Is(err, apperrors.TooSoon):
		return OutcomeTooSoon
	case apperrors.Is(err, apperrors.SendFailure):
		return OutcomeSendFailure
	default:
		return OutcomeError
	}
}
