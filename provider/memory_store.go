package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Digital-Creators-Team/faucet-module/pkg/providers"
	"github.com/google/uuid"
)

// MemoryAccountStore keeps accounts in process memory. Used for development and tests.
type MemoryAccountStore struct {
	mu        sync.Mutex
	byID      map[string]*providers.Account
	byAddress map[string]string
}

// NewMemoryAccountStore creates an empty store
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		byID:      make(map[string]*providers.Account),
		byAddress: make(map[string]string),
	}
}

func (s *MemoryAccountStore) FindByAddress(_ context.Context, address string) (*providers.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byAddress[address]
	if !ok {
		return nil, providers.ErrAccountNotFound
	}
	acc := *s.byID[id]
	return &acc, nil
}

func (s *MemoryAccountStore) FindByID(_ context.Context, id string) (*providers.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[id]
	if !ok {
		return nil, providers.ErrAccountNotFound
	}
	out := *acc
	return &out, nil
}

func (s *MemoryAccountStore) Create(_ context.Context, address, currency, referrer string) (*providers.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byAddress[address]; ok {
		return nil, fmt.Errorf("account %s already exists", address)
	}
	now := time.Now().UTC()
	acc := &providers.Account{
		ID:            uuid.NewString(),
		Address:       address,
		Currency:      currency,
		ReferralOwner: referrer,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.byID[acc.ID] = acc
	s.byAddress[address] = acc.ID
	out := *acc
	return &out, nil
}

func (s *MemoryAccountStore) Update(ctx context.Context, id string, delta providers.AccountDelta) (*providers.Account, error) {
	return s.ConditionalUpdate(ctx, id, providers.AccountMatch{}, delta)
}

func (s *MemoryAccountStore) ConditionalUpdate(_ context.Context, id string, match providers.AccountMatch, delta providers.AccountDelta) (*providers.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[id]
	if !ok {
		return nil, providers.ErrAccountNotFound
	}
	if !match.Matches(acc) {
		return nil, providers.ErrNoMatch
	}
	delta.Apply(acc)
	acc.UpdatedAt = time.Now().UTC()
	out := *acc
	return &out, nil
}
