package faucet

import (
	"time"

	"github.com/Digital-Creators-Team/faucet-module/pkg/currency"
	"github.com/Digital-Creators-Team/faucet-module/pkg/providers"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DefaultClaimTimeout = 45 * time.Minute
	DefaultQueueSize    = 1024
)

// DefaultReferralShare is the fraction of a converted prize credited to the referrer.
var DefaultReferralShare = decimal.NewFromFloat(0.2)

// Converter converts amounts between currencies. Implemented by oracle.Service.
type Converter interface {
	Available() bool
	Convert(from, to currency.Currency, amount decimal.Decimal) (decimal.Decimal, error)
}

// Recorder receives engine outcomes, e.g. for metrics.
type Recorder interface {
	ObserveClaim(currency, outcome string, elapsed time.Duration)
	ObserveReferralClaim(currency, outcome string)
	ObserveAccrual(currency, outcome string)
	AddPaid(currency, kind string, amount decimal.Decimal)
}

// Outcome labels passed to the Recorder.
const (
	OutcomeSuccess     = "success"
	OutcomeTooSoon     = "too_soon"
	OutcomeSendFailure = "send_failure"
	OutcomeConflict    = "conflict"
	OutcomeNothing     = "nothing_to_claim"
	OutcomeSkipped     = "skipped"
	OutcomeError       = "error"
)

// EngineConfig configures one per-currency Engine and its ReferralLedger.
type EngineConfig struct {
	Currency      currency.Currency
	Tiers         []decimal.Decimal
	ClaimTimeout  time.Duration
	ReferralShare decimal.Decimal
	QueueSize     int

	Store    providers.AccountStore
	Wallet   providers.WalletSender
	Oracle   Converter
	Events   providers.EventPublisher
	Recorder Recorder
	Logger   zerolog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// ClaimResult is returned by a successful faucet claim.
type ClaimResult struct {
	TransactionHash string            `json:"transactionHash"`
	Prize           decimal.Decimal   `json:"prize"`
	Winnings        []decimal.Decimal `json:"winnings"`
}

// ReferralPayout is returned by a successful referral balance claim.
type ReferralPayout struct {
	TransactionHash string          `json:"transactionHash"`
	Amount          decimal.Decimal `json:"amount"`
}

// ReferralStats summarizes an account's referral activity.
type ReferralStats struct {
	URL              string          `json:"url"`
	UsersReferred    int64           `json:"usersReferred"`
	TotalEarned      decimal.Decimal `json:"totalEarned"`
	AvailableToClaim decimal.Decimal `json:"availableToClaim"`
}

type nopRecorder struct{}

func (nopRecorder) ObserveClaim(string, string, time.Duration) {}
func (nopRecorder) ObserveReferralClaim(string, string) {}
func (nopRecorder) ObserveAccrual(string, string) {}
func (nopRecorder) AddPaid(string, string, decimal.Decimal) {}
