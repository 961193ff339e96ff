package faucet

import (
	"context"
	"time"

	apperrors "github.com/Digital-Creators-Team/faucet-module/errors"
	"github.com/Digital-Creators-Team/faucet-module/logging"
	"github.com/Digital-Creators-Team/faucet-module/pkg/currency"
	"github.com/Digital-Creators-Team/faucet-module/pkg/providers"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReferralLedger accrues referral bonuses and pays out claimable balances.
// Payouts are serialized on their own queue; the zeroing write is a
// compare-and-swap on the balance that was read.
type ReferralLedger struct {
	currency currency.Currency
	queue    *Queue
	store    providers.AccountStore
	wallet   providers.WalletSender
	events   providers.EventPublisher
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

func newReferralLedger(cfg EngineConfig, queue *Queue) *ReferralLedger {
	return &ReferralLedger{
		currency: cfg.Currency,
		queue:    queue,
		store:    cfg.Store,
		wallet:   cfg.Wallet,
		events:   cfg.Events,
		recorder: cfg.Recorder,
		logger:   logging.WithCurrency(logging.WithComponent(cfg.Logger, "referral-ledger"), cfg.Currency.String()),
		now:      cfg.Now,
	}
}

// Claim pays out the whole claimable referral balance of address.
func (l *ReferralLedger) Claim(ctx context.Context, address string) (*ReferralPayout, error) {
	res, err := submit(ctx, l.queue, func(ctx context.Context) (*ReferralPayout, error) {
		return l.processClaim(ctx, address)
	})
	l.recorder.ObserveReferralClaim(l.currency.String(), referralOutcome(err))
	return res, err
}

func (l *ReferralLedger) processClaim(ctx context.Context, address string) (*ReferralPayout, error) {
	logger := logging.WithTraceID(ctx, logging.WithAddress(l.logger, address))

	acc, err := l.store.FindByAddress(ctx, address)
	if apperrors.Is(err, providers.ErrAccountNotFound) {
		return nil, apperrors.NothingToClaim
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to load account")
	}
	if acc.ReferralClaimable.Sign() <= 0 {
		return nil, apperrors.NothingToClaim
	}

	amount := acc.ReferralClaimable
	zero := decimal.Zero
	_, err = l.store.ConditionalUpdate(ctx, acc.ID,
		providers.AccountMatch{ReferralClaimable: &amount},
		providers.AccountDelta{ReferralClaimable: &zero})
	if apperrors.Is(err, providers.ErrNoMatch) {
		logger.Info().Str("amount", amount.String()).Msg("Referral balance changed during claim")
		return nil, apperrors.ConcurrencyConflict
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to reserve referral balance")
	}

	hash, err := l.wallet.Send(ctx, address, amount)
	if err != nil {
		logger.Error().Err(err).Str("amount", amount.String()).Msg("Referral send failed, restoring balance")
		l.restore(ctx, logger, acc.ID, amount)
		return nil, apperrors.Wrap(err, apperrors.ErrSendFailure, "wallet send failed")
	}

	logger.Info().Str("amount", amount.String()).Str("hash", hash).Msg("Referral balance paid")
	l.recorder.AddPaid(l.currency.String(), "referral", amount)

	if err := l.events.PublishReferralPayout(ctx, &providers.ReferralPayoutEvent{
		EventID:         uuid.NewString(),
		Currency:        l.currency.String(),
		Address:         address,
		Amount:          amount,
		TransactionHash: hash,
		Timestamp:       l.now(),
	}); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish referral payout event")
	}

	return &ReferralPayout{TransactionHash: hash, Amount: amount}, nil
}

// restore puts amount back after a failed send. The guarded write only
// applies while the balance is still zero; if a bonus was accrued in the
// meantime the amount is added on top instead.
func (l *ReferralLedger) restore(ctx context.Context, logger zerolog.Logger, id string, amount decimal.Decimal) {
	zero := decimal.Zero
	_, err := l.store.ConditionalUpdate(ctx, id,
		providers.AccountMatch{ReferralClaimable: &zero},
		providers.AccountDelta{ReferralClaimable: &amount})
	if apperrors.Is(err, providers.ErrNoMatch) {
		_, err = l.store.Update(ctx, id, providers.AccountDelta{ReferralClaimableIncr: amount})
	}
	if err != nil {
		logger.Error().Err(err).Str("amount", amount.String()).Msg("Failed to restore referral balance")
	}
}

// Accrue credits amount to the referral balance of owner.
func (l *ReferralLedger) Accrue(ctx context.Context, owner string, amount decimal.Decimal) error {
	if !currency.ValidAddress(owner) {
		return apperrors.NewWithDebug(apperrors.ErrInvalidRequest, "invalid referrer address", owner)
	}
	if amount.Sign() <= 0 {
		return apperrors.NewWithDebug(apperrors.ErrInvalidRequest, "accrual must be positive", amount.String())
	}

	acc, err := l.store.FindByAddress(ctx, owner)
	if apperrors.Is(err, providers.ErrAccountNotFound) {
		return apperrors.Wrap(err, apperrors.ErrNotFound, "referrer not found")
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreError, "failed to load referrer")
	}

	_, err = l.store.Update(ctx, acc.ID, providers.AccountDelta{
		ReferralEarnedIncr:    amount,
		ReferralClaimableIncr: amount,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreError, "failed to accrue referral bonus")
	}
	return nil
}

// Stats returns the referral summary for address.
func (l *ReferralLedger) Stats(ctx context.Context, address string) (*ReferralStats, error) {
	acc, err := l.store.FindByAddress(ctx, address)
	if apperrors.Is(err, providers.ErrAccountNotFound) {
		return nil, apperrors.Wrap(err, apperrors.ErrNotFound, "wallet not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to load account")
	}
	return &ReferralStats{
		URL:              acc.ID,
		UsersReferred:    acc.ReferralReferredCount,
		TotalEarned:      acc.ReferralEarnedTotal,
		AvailableToClaim: acc.ReferralClaimable,
	}, nil
}

// Resolve maps a referral link id back to the owning address.
func (l *ReferralLedger) Resolve(ctx context.Context, id string) (string, error) {
	acc, err := l.store.FindByID(ctx, id)
	if apperrors.Is(err, providers.ErrAccountNotFound) {
		return "", apperrors.Wrap(err, apperrors.ErrNotFound, "referral link not found")
	}
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrStoreError, "failed to load account")
	}
	return acc.Address, nil
}

func referralOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case apperrors.Is(err, apperrors.NothingToClaim):
		return OutcomeNothing
	case apperrors.Is(err, apperrors.ConcurrencyConflict):
		return OutcomeConflict
	case apperrors.Is(err, apperrors.SendFailure):
		return OutcomeSendFailure
	default:
		return OutcomeError
	}
}
