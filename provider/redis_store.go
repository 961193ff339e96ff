package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Digital-Creators-Team/faucet-module/pkg/providers"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	accountKeyPrefix = "faucet:account:"
	addressKeyPrefix = "faucet:address:"
)

// RedisAccountStore keeps accounts as JSON documents with an address index.
// Updates use WATCH/MULTI so a concurrent writer aborts and retries the transaction.
type RedisAccountStore struct {
	client *redis.Client
}

// NewRedisAccountStore creates a store on an existing client
func NewRedisAccountStore(client *redis.Client) *RedisAccountStore {
	return &RedisAccountStore{client: client}
}

func accountKey(id string) string { return accountKeyPrefix + id }
func addressKey(address string) string { return addressKeyPrefix + address }

func (s *RedisAccountStore) FindByAddress(ctx context.Context, address string) (*providers.Account, error) {
	id, err := s.client.Get(ctx, addressKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, providers.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address index %s: %w", address, err)
	}
	return s.FindByID(ctx, id)
}

func (s *RedisAccountStore) FindByID(ctx context.Context, id string) (*providers.Account, error) {
	return load(ctx, s.client, id)
}

func (s *RedisAccountStore) Create(ctx context.Context, address, currency, referrer string) (*providers.Account, error) {
	now := time.Now().UTC()
	acc := &providers.Account{
		ID:            uuid.NewString(),
		Address:       address,
		Currency:      currency,
		ReferralOwner: referrer,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	data, err := json.Marshal(acc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account: %w", err)
	}

	ok, err := s.client.SetNX(ctx, addressKey(address), acc.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve address %s: %w", address, err)
	}
	if !ok {
		return nil, fmt.Errorf("account %s already exists", address)
	}
	if err := s.client.Set(ctx, accountKey(acc.ID), data, 0).Err(); err != nil {
		_ = s.client.Del(ctx, addressKey(address)).Err()
		return nil, fmt.Errorf("failed to store account %s: %w", address, err)
	}
	return acc, nil
}

func (s *RedisAccountStore) Update(ctx context.Context, id string, delta providers.AccountDelta) (*providers.Account, error) {
	return s.ConditionalUpdate(ctx, id, providers.AccountMatch{}, delta)
}

func (s *RedisAccountStore) ConditionalUpdate(ctx context.Context, id string, match providers.AccountMatch, delta providers.AccountDelta) (*providers.Account, error) {
	key := accountKey(id)
	var updated *providers.Account

	txf := func(tx *redis.Tx) error {
		acc, err := load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !match.Matches(acc) {
			return providers.ErrNoMatch
		}
		delta.Apply(acc)
		acc.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(acc)
		if err != nil {
			return fmt.Errorf("failed to marshal account: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			updated = acc
		}
		return err
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("account %s: too many concurrent writers", id)
}

func load(ctx context.Context, c redis.Cmdable, id string) (*providers.Account, error) {
	raw, err := c.Get(ctx, accountKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, providers.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	var acc providers.Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account %s: %w", id, err)
	}
	return &acc, nil
}
