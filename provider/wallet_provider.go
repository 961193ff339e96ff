package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/Digital-Creators-Team/faucet-module/config"
	"github.com/Digital-Creators-Team/faucet-module/httpclient"
	"github.com/Digital-Creators-Team/faucet-module/pkg/currency"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletProvider implements providers.WalletSender against the wallet
// service that signs and publishes send blocks for the faucet accounts.
type WalletProvider struct {
	client *httpclient.Client
	logger zerolog.Logger
}

type sendRequest struct {
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
}

type sendResponse struct {
	Data struct {
		Hash string `json:"hash"`
	} `json:"data"`
}

// NewWalletProvider creates a new wallet provider
func NewWalletProvider(cfg *config.Config, logger zerolog.Logger) *WalletProvider {
	svc := cfg.ExternalServices.WalletService
	return &WalletProvider{
		client: httpclient.New(httpclient.Config{
			BaseURL: strings.TrimRight(svc.BaseURL, "/"),
			Timeout: svc.Timeout,
			Logger:  logger,
		}),
		logger: logger.With().Str("component", "wallet_provider").Logger(),
	}
}

// Send transfers amount to address and returns the published block hash.
// The currency is derived from the address prefix.
func (p *WalletProvider) Send(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	cur, ok := currency.FromAddress(address)
	if !ok {
		return "", fmt.Errorf("unsupported destination %s", address)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("invalid send amount %s", amount)
	}

	var resp sendResponse
	err := p.client.PostJSON(ctx, "/wallet/send", sendRequest{
		Currency:    cur.String(),
		Destination: address,
		Amount:      amount.String(),
	}, nil, &resp)
	if err != nil {
		p.logger.Warn().Err(err).Str("address", address).Str("amount", amount.String()).Msg("Wallet send failed")
		return "", fmt.Errorf("failed to send %s %s: %w", amount, cur, err)
	}
	if resp.Data.Hash == "" {
		return "", fmt.Errorf("wallet service returned no block hash")
	}
	return resp.Data.Hash, nil
}
