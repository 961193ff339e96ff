package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Digital-Creators-Team/faucet-module/config"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWalletForTest(t *testing.T, handler http.HandlerFunc) *WalletProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.ExternalServices.WalletService.BaseURL = srv.URL + "/"
	cfg.ExternalServices.WalletService.Timeout = time.Second
	return NewWalletProvider(cfg, zerolog.Nop())
}

func TestWalletProviderSend(t *testing.T) {
	var got sendRequest
	wallet := newWalletForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wallet/send", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":{"hash":"ABC123"}}`))
	})

	hash, err := wallet.Send(context.Background(), addrB, decimal.RequireFromString("0.02"))
	require.NoError(t, err)
	assert.Equal(t, "ABC123", hash)
	assert.Equal(t, "BAN", got.Currency)
	assert.Equal(t, addrB, got.Destination)
	assert.Equal(t, "0.02", got.Amount)
}

func TestWalletProviderSendFailures(t *testing.T) {
	tests := []struct {
		name    string
		address string
		amount  decimal.Decimal
		status  int
		body    string
	}{
		{name: "upstream error", address: addrA, amount: decimal.NewFromInt(1), status: http.StatusBadGateway, body: `{"error":"node down"}`},
		{name: "missing hash", address: addrA, amount: decimal.NewFromInt(1), status: http.StatusOK, body: `{"data":{}}`},
		{name: "unknown prefix", address: "xrb_abc", amount: decimal.NewFromInt(1), status: http.StatusOK, body: `{"data":{"hash":"X"}}`},
		{name: "zero amount", address: addrA, amount: decimal.Zero, status: http.StatusOK, body: `{"data":{"hash":"X"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wallet := newWalletForTest(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			hash, err := wallet.Send(context.Background(), tt.address, tt.amount)
			assert.Error(t, err)
			assert.Empty(t, hash)
		})
	}
}
