package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Digital-Creators-Team/faucet-module/pkg/providers"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxWriteAttempts bounds optimistic retries when the row version moved under us.
const maxWriteAttempts = 5

// accountRecord is the SQL row for a faucet account. Version is bumped on
// every write and guards read-modify-write updates.
type accountRecord struct {
	ID                    string          `gorm:"primaryKey;size:36"`
	Address               string          `gorm:"uniqueIndex;size:128;not null"`
	Currency              string          `gorm:"size:8;not null"`
	ClaimCount            int64           `gorm:"not null"`
	LastClaimAt           int64           `gorm:"not null"`
	ReferralOwner         string          `gorm:"size:128;index"`
	ReferralReferredCount int64           `gorm:"not null"`
	ReferralEarnedTotal   decimal.Decimal `gorm:"type:decimal(36,18);not null"`
	ReferralClaimable     decimal.Decimal `gorm:"type:decimal(36,18);not null"`
	Version               int64           `gorm:"not null"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (accountRecord) TableName() string { return "faucet_accounts" }

func (r *accountRecord) toAccount() *providers.Account {
	return &providers.Account{
		ID:                    r.ID,
		Address:               r.Address,
		Currency:              r.Currency,
		ClaimCount:            r.ClaimCount,
		LastClaimAt:           r.LastClaimAt,
		ReferralOwner:         r.ReferralOwner,
		ReferralReferredCount: r.ReferralReferredCount,
		ReferralEarnedTotal:   r.ReferralEarnedTotal,
		ReferralClaimable:     r.ReferralClaimable,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

// GormAccountStore persists accounts in a SQL database (postgres or sqlite).
type GormAccountStore struct {
	db *gorm.DB
}

// NewGormAccountStore migrates the accounts table and returns the store
func NewGormAccountStore(db *gorm.DB) (*GormAccountStore, error) {
	if err := db.AutoMigrate(&accountRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate accounts: %w", err)
	}
	return &GormAccountStore{db: db}, nil
}

func (s *GormAccountStore) FindByAddress(ctx context.Context, address string) (*providers.Account, error) {
	rec, err := s.take(ctx, "address = ?", address)
	if err != nil {
		return nil, err
	}
	return rec.toAccount(), nil
}

func (s *GormAccountStore) FindByID(ctx context.Context, id string) (*providers.Account, error) {
	rec, err := s.take(ctx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	return rec.toAccount(), nil
}

func (s *GormAccountStore) Create(ctx context.Context, address, currency, referrer string) (*providers.Account, error) {
	rec := &accountRecord{
		ID:                  uuid.NewString(),
		Address:             address,
		Currency:            currency,
		ReferralOwner:       referrer,
		ReferralEarnedTotal: decimal.Zero,
		ReferralClaimable:   decimal.Zero,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create account %s: %w", address, err)
	}
	return rec.toAccount(), nil
}

func (s *GormAccountStore) Update(ctx context.Context, id string, delta providers.AccountDelta) (*providers.Account, error) {
	return s.ConditionalUpdate(ctx, id, providers.AccountMatch{}, delta)
}

// ConditionalUpdate checks match against the current row and writes the
// delta only if the row version is unchanged since the read.
func (s *GormAccountStore) ConditionalUpdate(ctx context.Context, id string, match providers.AccountMatch, delta providers.AccountDelta) (*providers.Account, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		rec, err := s.take(ctx, "id = ?", id)
		if err != nil {
			return nil, err
		}
		acc := rec.toAccount()
		if !match.Matches(acc) {
			return nil, providers.ErrNoMatch
		}
		delta.Apply(acc)
		now := time.Now().UTC()

		tx := s.db.WithContext(ctx).
			Model(&accountRecord{}).
			Where("id = ? AND version = ?", id, rec.Version).
			Updates(map[string]any{
				"claim_count":             acc.ClaimCount,
				"last_claim_at":           acc.LastClaimAt,
				"referral_referred_count": acc.ReferralReferredCount,
				"referral_earned_total":   acc.ReferralEarnedTotal,
				"referral_claimable":      acc.ReferralClaimable,
				"version":                 rec.Version + 1,
				"updated_at":              now,
			})
		if tx.Error != nil {
			return nil, fmt.Errorf("failed to update account %s: %w", id, tx.Error)
		}
		if tx.RowsAffected == 1 {
			acc.UpdatedAt = now
			return acc, nil
		}
	}
	return nil, fmt.Errorf("account %s: too many concurrent writers", id)
}

func (s *GormAccountStore) take(ctx context.Context, query string, arg any) (*accountRecord, error) {
	var rec accountRecord
	err := s.db.WithContext(ctx).Where(query, arg).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, providers.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
