package server

import (
	"strconv"

	apperrors "github.com/Digital-Creators-Team/faucet-module/errors"
	"github.com/Digital-Creators-Team/faucet-module/pkg/currency"
	"github.com/Digital-Creators-Team/faucet-module/pkg/faucet"
	"github.com/Digital-Creators-Team/faucet-module/pkg/oracle"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ReferrerHeader carries the referring address on a claim
const ReferrerHeader = "ref"

// RateSource exposes the cached exchange rates
type RateSource interface {
	Snapshot() oracle.Snapshot
}

// FaucetHandler serves the claim, cooldown, referral and rate endpoints
type FaucetHandler struct {
	registry *faucet.Registry
	rates    RateSource
	logger   zerolog.Logger
}

// NewFaucetHandler creates a handler over the engine registry
func NewFaucetHandler(registry *faucet.Registry, rates RateSource, logger zerolog.Logger) *FaucetHandler {
	return &FaucetHandler{
		registry: registry,
		rates:    rates,
		logger:   logger.With().Str("component", "faucet_handler").Logger(),
	}
}

// WhenResponse is the cooldown remaining for an address
type WhenResponse struct {
	Seconds int64 `json:"seconds"`
}

// ReferralLinkResponse is the referrer behind a referral link
type ReferralLinkResponse struct {
	Referrer string `json:"referrer"`
}

// RatesResponse lists cached rates against the quote currency
type RatesResponse struct {
	oracle.Snapshot
	Currencies []currency.Currency `json:"currencies"`
}

// Claim handles GET /api/faucet/:address.
// The optional currency query parameter must match the address prefix.
func (h *FaucetHandler) Claim(c *gin.Context) {
	address := c.Param("address")
	cur, ok := h.requestCurrency(c, address)
	if !ok {
		return
	}

	result, err := h.registry.Claim(c.Request.Context(), cur, address, c.GetHeader(ReferrerHeader))
	if err != nil {
		if apperrors.Is(err, apperrors.TooSoon) {
			if secs, werr := h.registry.TimeUntilNextClaim(c.Request.Context(), address); werr == nil && secs > 0 {
				c.Header("Retry-After", strconv.FormatInt(secs, 10))
			}
		}
		HandleAppError(c, err)
		return
	}
	OK(c, result)
}

// When handles GET /api/faucet/:address/when
func (h *FaucetHandler) When(c *gin.Context) {
	secs, err := h.registry.TimeUntilNextClaim(c.Request.Context(), c.Param("address"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, WhenResponse{Seconds: secs})
}

// ReferralStats handles GET /api/ref/:address
func (h *FaucetHandler) ReferralStats(c *gin.Context) {
	stats, err := h.registry.ReferralStats(c.Request.Context(), c.Param("address"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, stats)
}

// ClaimReferral handles POST /api/ref/:address/claim
func (h *FaucetHandler) ClaimReferral(c *gin.Context) {
	address := c.Param("address")
	cur, ok := h.requestCurrency(c, address)
	if !ok {
		return
	}

	payout, err := h.registry.ClaimReferral(c.Request.Context(), cur, address)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	OK(c, payout)
}

// ResolveReferral handles GET /api/r/:id.
// Clients store the returned address and send it in the ref header on their first claim.
func (h *FaucetHandler) ResolveReferral(c *gin.Context) {
	address, err := h.registry.ResolveReferral(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Debug().Err(err).Str("id", c.Param("id")).Msg("Referral link not resolved")
		HandleAppError(c, err)
		return
	}
	OK(c, ReferralLinkResponse{Referrer: address})
}

// Rates handles GET /api/rates
func (h *FaucetHandler) Rates(c *gin.Context) {
	OK(c, RatesResponse{Snapshot: h.rates.Snapshot(), Currencies: h.registry.Currencies()})
}

func (h *FaucetHandler) requestCurrency(c *gin.Context, address string) (currency.Currency, bool) {
	if q := c.Query("currency"); q != "" {
		cur, err := currency.Parse(q)
		if err != nil {
			HandleAppError(c, apperrors.Wrap(err, apperrors.ErrUnsupportedCurrency, "unsupported currency"))
			return "", false
		}
		return cur, true
	}
	cur, ok := currency.FromAddress(address)
	if !ok {
		BadRequest(c, "invalid address")
		return "", false
	}
	return cur, true
}
