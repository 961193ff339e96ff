package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) *HTTPSource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewHTTPSource(srv.URL, time.Second, zerolog.Nop())
}

func TestHTTPSourceParsesMarkets(t *testing.T) {
	src := serve(t, http.StatusOK, `[
		{"key": "BAN/NANO", "midPrice": 0.0071},
		{"pair": "xdg/nano", "midPrice": "0.00102"},
		{"key": "NANO/USDT", "midPrice": 0.82},
		{"key": "garbage", "midPrice": 1},
		{"key": "BAN/BTC"}
	]`)

	quotes, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 4)

	assert.Equal(t, "BAN", quotes[0].Base)
	assert.Equal(t, "NANO", quotes[0].Quote)
	assert.Equal(t, "0.0071", quotes[0].Price.String())
	assert.Equal(t, "XDG", quotes[1].Base)
	assert.Equal(t, "0.00102", quotes[1].Price.String())
	assert.True(t, quotes[3].Price.IsZero(), "missing midPrice is reported as zero")
}

func TestHTTPSourceRejectsBadShape(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "object instead of array", status: http.StatusOK, body: `{"markets": []}`},
		{name: "not json", status: http.StatusOK, body: `<html>`},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := serve(t, tt.status, tt.body).Fetch(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestHTTPSourceHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	src := NewHTTPSource(srv.URL, 5*time.Second, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := src.Fetch(ctx)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
