package providers

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound is returned by AccountStore lookups and writes for unknown accounts.
	ErrAccountNotFound = errors.New("account not found")
	// ErrNoMatch is returned by ConditionalUpdate when the match predicate does not hold.
	ErrNoMatch = errors.New("account did not match condition")
)

// Account is the persisted state of one claiming address.
type Account struct {
	ID                    string          `json:"id"`
	Address               string          `json:"address"`
	Currency              string          `json:"currency"`
	ClaimCount            int64           `json:"claimCount"`
	LastClaimAt           int64           `json:"lastClaimAt"` // epoch millis, 0 when never claimed
	ReferralOwner         string          `json:"referralOwner,omitempty"`
	ReferralReferredCount int64           `json:"referralReferredCount"`
	ReferralEarnedTotal   decimal.Decimal `json:"referralEarnedTotal"`
	ReferralClaimable     decimal.Decimal `json:"referralClaimable"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// AccountDelta describes a partial update. Incr fields are added to the stored
// values, pointer fields overwrite them when non-nil.
type AccountDelta struct {
	ClaimCountIncr        int64
	LastClaimAt           *int64
	ReferredCountIncr     int64
	ReferralEarnedIncr    decimal.Decimal
	ReferralClaimableIncr decimal.Decimal
	ReferralClaimable     *decimal.Decimal
}

// AccountMatch is the predicate for ConditionalUpdate. Nil fields are not checked.
type AccountMatch struct {
	ReferralClaimable *decimal.Decimal
}

// Matches reports whether acc satisfies the predicate.
func (m AccountMatch) Matches(acc *Account) bool {
	if m.ReferralClaimable != nil && !acc.ReferralClaimable.Equal(*m.ReferralClaimable) {
		return false
	}
	return true
}

// Apply mutates acc according to the delta.
func (d AccountDelta) Apply(acc *Account) {
	acc.ClaimCount += d.ClaimCountIncr
	if d.LastClaimAt != nil {
		acc.LastClaimAt = *d.LastClaimAt
	}
	acc.ReferralReferredCount += d.ReferredCountIncr
	acc.ReferralEarnedTotal = acc.ReferralEarnedTotal.Add(d.ReferralEarnedIncr)
	acc.ReferralClaimable = acc.ReferralClaimable.Add(d.ReferralClaimableIncr)
	if d.ReferralClaimable != nil {
		acc.ReferralClaimable = *d.ReferralClaimable
	}
}

// AccountStore persists faucet accounts.
type AccountStore interface {
	FindByAddress(ctx context.Context, address string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, address, currency, referrer string) (*Account, error)
	Update(ctx context.Context, id string, delta AccountDelta) (*Account, error)
	ConditionalUpdate(ctx context.Context, id string, match AccountMatch, delta AccountDelta) (*Account, error)
}

// WalletSender broadcasts an outgoing payment and returns its transaction hash.
type WalletSender interface {
	Send(ctx context.Context, address string, amount decimal.Decimal) (string, error)
}

// ClaimEvent is published after a successful faucet payout.
type ClaimEvent struct {
	EventID         string          `json:"eventId"`
	Currency        string          `json:"currency"`
	Address         string          `json:"address"`
	Prize           decimal.Decimal `json:"prize"`
	TransactionHash string          `json:"transactionHash"`
	ReferralOwner   string          `json:"referralOwner,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}

// ReferralPayoutEvent is published after a successful referral balance payout.
type ReferralPayoutEvent struct {
	EventID         string          `json:"eventId"`
	Currency        string          `json:"currency"`
	Address         string          `json:"address"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionHash string          `json:"transactionHash"`
	Timestamp       time.Time       `json:"timestamp"`
}

// EventPublisher emits payout events to downstream consumers.
type EventPublisher interface {
	PublishClaim(ctx context.Context, event *ClaimEvent) error
	PublishReferralPayout(ctx context.Context, event *ReferralPayoutEvent) error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) PublishClaim(context.Context, *ClaimEvent) error { return nil }

func (NoopPublisher) PublishReferralPayout(context.Context, *ReferralPayoutEvent) error { return nil }
