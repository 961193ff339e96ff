package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Digital-Creators-Team/faucet-module/config"
	"github.com/Digital-Creators-Team/faucet-module/metrics"
	"github.com/Digital-Creators-Team/faucet-module/pkg/currency"
	"github.com/Digital-Creators-Team/faucet-module/pkg/faucet"
	"github.com/Digital-Creators-Team/faucet-module/pkg/oracle"
	"github.com/Digital-Creators-Team/faucet-module/provider"
	"github.com/Digital-Creators-Team/faucet-module/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddress(c currency.Currency, last byte) string {
	return c.Lower() + "_1" + strings.Repeat("1", 58) + string(last)
}

type stubWallet struct {
	mu    sync.Mutex
	fail  bool
	sends int
}

func (w *stubWallet) Send(context.Context, string, decimal.Decimal) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return "", errors.New("node unreachable")
	}
	w.sends++
	return "HASH" + string(rune('0'+w.sends)), nil
}

func (w *stubWallet) setFail(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fail = v
}

type stubRates struct{}

func (stubRates) Snapshot() oracle.Snapshot {
	return oracle.Snapshot{
		Rates:      map[string]decimal.Decimal{"NANO": decimal.NewFromInt(1), "BAN": decimal.RequireFromString("0.002")},
		LastUpdate: time.Unix(1_700_000_000, 0).UTC(),
		Available:  true,
	}
}

type testEnv struct {
	app    *App
	wallet *stubWallet
	now    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{wallet: &stubWallet{}, now: time.Unix(1_700_000_000, 0)}
	store := provider.NewMemoryAccountStore()
	m := metrics.New()

	engines := make([]*faucet.Engine, 0, 2)
	for _, c := range []currency.Currency{currency.NANO, currency.BAN} {
		e, err := faucet.NewEngine(faucet.EngineConfig{
			Currency: c,
			Tiers:    []decimal.Decimal{decimal.RequireFromString("0.01")},
			Store:    store,
			Wallet:   env.wallet,
			Recorder: m,
			Logger:   zerolog.Nop(),
			Now:      func() time.Time { return env.now },
		})
		require.NoError(t, err)
		engines = append(engines, e)
	}
	registry := faucet.NewRegistry(engines...)
	t.Cleanup(registry.Close)

	cfg := &config.Config{Environment: "test"}
	cfg.Server.EnableCORS = true
	env.app = New(Options{Config: cfg, Logger: zerolog.Nop(), Registry: registry, Rates: stubRates{}, Metrics: m.Handler()})
	env.app.UseCommonMiddlewares()
	env.app.RegisterHealthCheck()
	env.app.RegisterFaucetRoutes()
	return env
}

func (e *testEnv) do(method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	e.app.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorDetail {
	t.Helper()
	var body types.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.IsSuccess)
	return body.Error
}

func TestClaimFlow(t *testing.T) {
	env := newTestEnv(t)
	address := testAddress(currency.NANO, '3')

	rec := env.do(http.MethodGet, "/api/faucet/"+address, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var claim SuccessResponse[faucet.ClaimResult]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claim))
	assert.True(t, claim.IsSuccess)
	assert.Equal(t, "HASH1", claim.Data.TransactionHash)
	assert.True(t, claim.Data.Prize.Equal(decimal.RequireFromString("0.01")))
	require.Len(t, claim.Data.Winnings, 1)

	rec = env.do(http.MethodGet, "/api/faucet/"+address, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "TOO_SOON", decodeError(t, rec).Kind)
	assert.Equal(t, "2700", rec.Header().Get("Retry-After"))

	rec = env.do(http.MethodGet, "/api/faucet/"+address+"/when", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var when SuccessResponse[WhenResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &when))
	assert.Equal(t, int64(2700), when.Data.Seconds)
}

func TestClaimRejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		path   string
		status int
		kind   string
	}{
		{"malformed address", "/api/faucet/nano_xyz", http.StatusBadRequest, "INVALID_ADDRESS"},
		{"unknown prefix", "/api/faucet/btc_1abc", http.StatusBadRequest, "INVALID_ADDRESS"},
		{"currency mismatch", "/api/faucet/" + testAddress(currency.NANO, '4') + "?currency=ban", http.StatusBadRequest, "INVALID_ADDRESS"},
		{"unsupported currency", "/api/faucet/" + testAddress(currency.NANO, '4') + "?currency=doge", http.StatusBadRequest, "INVALID_ADDRESS"},
		{"unconfigured faucet", "/api/faucet/" + testAddress(currency.XDG, '4'), http.StatusInternalServerError, "FAUCET_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, tt.path, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decodeError(t, rec).Kind)
		})
	}
}

func TestClaimSendFailure(t *testing.T) {
	env := newTestEnv(t)
	env.wallet.setFail(true)
	address := testAddress(currency.BAN, '5')

	rec := env.do(http.MethodGet, "/api/faucet/"+address, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, "FAILED", detail.Kind)
	assert.NotContains(t, detail.ErrorMessage, "node unreachable")

	rec = env.do(http.MethodGet, "/api/faucet/"+address+"/when", nil)
	var when SuccessResponse[WhenResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &when))
	assert.Equal(t, int64(0), when.Data.Seconds, "cooldown rolled back")
}

func TestReferralEndpoints(t *testing.T) {
	env := newTestEnv(t)
	owner := testAddress(currency.NANO, '6')
	friend := testAddress(currency.NANO, '7')

	rec := env.do(http.MethodGet, "/api/ref/"+owner, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Kind)

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/faucet/"+owner, nil).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/faucet/"+friend, http.Header{ReferrerHeader: {owner}}).Code)

	rec = env.do(http.MethodGet, "/api/ref/"+owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats SuccessResponse[faucet.ReferralStats]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.NotEmpty(t, stats.Data.URL)
	assert.Equal(t, int64(1), stats.Data.UsersReferred)

	rec = env.do(http.MethodGet, "/api/r/"+stats.Data.URL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var link SuccessResponse[ReferralLinkResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
	assert.Equal(t, owner, link.Data.Referrer)

	rec = env.do(http.MethodGet, "/api/r/unknown-id", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Kind)

	// no oracle is wired, so the bonus is skipped and nothing accrues
	rec = env.do(http.MethodPost, "/api/ref/"+owner+"/claim", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NOTHING_TO_CLAIM", decodeError(t, rec).Kind)
}

func TestRatesHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/rates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rates SuccessResponse[RatesResponse]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rates))
	assert.True(t, rates.Data.Available)
	assert.True(t, rates.Data.Rates["BAN"].Equal(decimal.RequireFromString("0.002")))
	assert.Equal(t, []currency.Currency{currency.BAN, currency.NANO}, rates.Data.Currencies)

	rec = env.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rates_available":true`)

	env.do(http.MethodGet, "/api/faucet/"+testAddress(currency.NANO, '8'), nil)
	rec = env.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `faucet_claims_total{currency="NANO",outcome="success"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodOptions, "/api/faucet/"+testAddress(currency.NANO, '9'), http.Header{"Origin": {"https://faucet.example"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "ref")
}

func TestRunWithContextRunsShutdownHooks(t *testing.T) {
	env := newTestEnv(t)
	var hooks []string
	env.app.OnShutdown(func() { hooks = append(hooks, "store") })
	env.app.OnShutdown(func() { hooks = append(hooks, "oracle") })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, env.app.RunWithContext(ctx))
	assert.Equal(t, []string{"store", "oracle"}, hooks)
}
