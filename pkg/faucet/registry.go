package faucet

import (
	"context"
	"sort"

	apperrors "github.com/Digital-Creators-Team/faucet-module/errors"
	"github.com/Digital-Creators-Team/faucet-module/pkg/currency"
	"github.com/samber/lo"
)

// Registry routes requests to the engine of the address's currency.
// It is built once at startup and handed to the transport layer.
type Registry struct {
	engines map[currency.Currency]*Engine
}

// NewRegistry indexes engines by currency. Later engines win on duplicates.
func NewRegistry(engines ...*Engine) *Registry {
	return &Registry{
		engines: lo.SliceToMap(engines, func(e *Engine) (currency.Currency, *Engine) {
			return e.Currency(), e
		}),
	}
}

// Currencies lists the configured currencies in alphabetical order.
func (r *Registry) Currencies() []currency.Currency {
	out := lo.Keys(r.engines)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Engine returns the engine for c.
func (r *Registry) Engine(c currency.Currency) (*Engine, error) {
	e, ok := r.engines[c]
	if !ok {
		return nil, apperrors.NewWithDebug(apperrors.ErrFaucetUnavailable, "faucet unavailable", c.String())
	}
	return e, nil
}

// Claim validates the request and queues it on the currency's engine.
// An invalid referrer is ignored rather than rejected.
func (r *Registry) Claim(ctx context.Context, c currency.Currency, address, referrer string) (*ClaimResult, error) {
	address = currency.Normalize(address)
	e, err := r.engineFor(c, address)
	if err != nil {
		return nil, err
	}
	referrer = currency.Normalize(referrer)
	if referrer != "" && !currency.ValidAddress(referrer) {
		referrer = ""
	}
	return e.Claim(ctx, address, referrer)
}

// TimeUntilNextClaim returns the seconds left on address's cooldown.
func (r *Registry) TimeUntilNextClaim(ctx context.Context, address string) (int64, error) {
	address = currency.Normalize(address)
	e, err := r.engineForAddress(address)
	if err != nil {
		return 0, err
	}
	return e.TimeUntilNextClaim(ctx, address)
}

// ReferralStats returns the referral summary of address.
func (r *Registry) ReferralStats(ctx context.Context, address string) (*ReferralStats, error) {
	address = currency.Normalize(address)
	e, err := r.engineForAddress(address)
	if err != nil {
		return nil, err
	}
	return e.Referrals().Stats(ctx, address)
}

// ClaimReferral pays out the referral balance of address in currency c.
func (r *Registry) ClaimReferral(ctx context.Context, c currency.Currency, address string) (*ReferralPayout, error) {
	address = currency.Normalize(address)
	e, err := r.engineFor(c, address)
	if err != nil {
		return nil, err
	}
	return e.Referrals().Claim(ctx, address)
}

// ResolveReferral returns the address behind a referral link id, as handed out in ReferralStats.URL.
func (r *Registry) ResolveReferral(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", apperrors.New(apperrors.ErrNotFound, "referral link not found")
	}
	var lastErr error
	for _, c := range r.Currencies() {
		address, err := r.engines[c].Referrals().Resolve(ctx, id)
		if err == nil {
			return address, nil
		}
		if !apperrors.Is(err, apperrors.NotFound) {
			return "", err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = apperrors.New(apperrors.ErrNotFound, "referral link not found")
	}
	return "", lastErr
}

// Close drains every engine.
func (r *Registry) Close() {
	for _, e := range r.engines {
		e.Close()
	}
}

func (r *Registry) engineFor(c currency.Currency, address string) (*Engine, error) {
	if !currency.ValidAddress(address) {
		return nil, apperrors.NewWithDebug(apperrors.ErrInvalidRequest, "invalid address", address)
	}
	if ac, _ := currency.FromAddress(address); ac != c {
		return nil, apperrors.NewWithDebug(apperrors.ErrInvalidRequest, "address does not match currency",
			c.String()+" "+address)
	}
	return r.Engine(c)
}

func (r *Registry) engineForAddress(address string) (*Engine, error) {
	if !currency.ValidAddress(address) {
		return nil, apperrors.NewWithDebug(apperrors.ErrInvalidRequest, "invalid address", address)
	}
	c, _ := currency.FromAddress(address)
	return r.Engine(c)
}
