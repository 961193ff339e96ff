package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Digital-Creators-Team/faucet-module/logging"
	"github.com/Digital-Creators-Team/faucet-module/types"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path, remote string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if remote != "" {
		req.RemoteAddr = remote
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterPerClient(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewRateLimiter(1, 2)
	limiter.now = func() time.Time { return now }

	r := gin.New()
	r.GET("/claim", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/claim", "10.0.0.1:1000", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/claim", "10.0.0.1:1000", nil).Code)

	rec := serve(r, http.MethodGet, "/claim", "10.0.0.1:1000", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	var body types.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Kind)
	assert.False(t, body.IsSuccess)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/claim", "10.0.0.2:1000", nil).Code, "other clients have their own bucket")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/claim", "10.0.0.1:1000", nil).Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	r := gin.New()
	r.GET("/claim", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/claim", "10.0.0.1:1000", nil).Code)
	}
}

func TestCORSPreflightAllowsFaucetHeaders(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.GET("/api/faucet/:address", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, http.MethodOptions, "/api/faucet/x", "", http.Header{"Origin": {"https://faucet.example"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "captcha")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "ref")
}

func TestCORSRestrictedOrigins(t *testing.T) {
	r := gin.New()
	r.Use(CORSWithConfig(CORSConfig{AllowOrigins: []string{"https://ok.example"}}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serve(r, http.MethodGet, "/x", "", http.Header{"Origin": {"https://ok.example"}})
	assert.Equal(t, "https://ok.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(r, http.MethodGet, "/x", "", http.Header{"Origin": {"https://evil.example"}})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTraceIDPropagation(t *testing.T) {
	r := gin.New()
	r.Use(TraceID())
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = GetTraceID(c)
		c.Status(http.StatusOK)
	})

	rec := serve(r, http.MethodGet, "/x", "", http.Header{TraceIDHeader: {"abc"}})
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get(TraceIDHeader))

	rec = serve(r, http.MethodGet, "/x", "", nil)
	assert.NotEmpty(t, rec.Header().Get(TraceIDHeader))
	assert.Equal(t, seen, rec.Header().Get(TraceIDHeader))

	rec = serve(r, http.MethodGet, "/x", "", http.Header{TraceIDHeader: {"bad id\r\nx"}})
	assert.NotEqual(t, "bad id\r\nx", seen)
	assert.Equal(t, seen, rec.Header().Get(TraceIDHeader))
}

func TestTraceIDReachesRequestContext(t *testing.T) {
	r := gin.New()
	r.Use(TraceID())
	var fromCtx string
	r.GET("/x", func(c *gin.Context) {
		fromCtx = logging.TraceIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodGet, "/x", "", http.Header{TraceIDHeader: {"req-42"}})
	assert.Equal(t, "req-42", fromCtx)
}

func TestRecoveryReturnsFailed(t *testing.T) {
	r := gin.New()
	r.Use(TraceID(), Recovery(zerolog.Nop()), Logging(zerolog.Nop()))
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	rec := serve(r, http.MethodGet, "/boom", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body types.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FAILED", body.Error.Kind)
}
