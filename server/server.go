package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Digital-Creators-Team/faucet-module/config"
	"github.com/Digital-Creators-Team/faucet-module/middleware"
	"github.com/Digital-Creators-Team/faucet-module/pkg/currency"
	"github.com/Digital-Creators-Team/faucet-module/pkg/faucet"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// App is the faucet HTTP service
type App struct {
	engine     *gin.Engine
	config     *config.Config
	logger     zerolog.Logger
	registry   *faucet.Registry
	rates      RateSource
	metrics    http.Handler
	handler    *FaucetHandler
	limiter    *middleware.RateLimiter
	httpServer *http.Server
	onShutdown []func()
}

// Options holds server dependencies
type Options struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *faucet.Registry
	Rates    RateSource
	// Metrics serves /metrics when set
	Metrics http.Handler
}

// New creates the application and its handlers. Routes are added by the
// Register* methods.
func New(opts Options) *App {
	if opts.Config.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	app := &App{
		engine:   gin.New(),
		config:   opts.Config,
		logger:   opts.Logger,
		registry: opts.Registry,
		rates:    opts.Rates,
		metrics:  opts.Metrics,
		limiter:  middleware.NewRateLimiter(opts.Config.RateLimit.RequestsPerSecond, opts.Config.RateLimit.Burst),
	}
	app.handler = NewFaucetHandler(opts.Registry, opts.Rates, opts.Logger)
	return app
}

// UseCommonMiddlewares adds common middlewares to the application
func (a *App) UseCommonMiddlewares() {
	a.engine.Use(middleware.TraceID())
	a.engine.Use(middleware.Recovery(a.logger))
	a.engine.Use(middleware.Logging(a.logger))

	if a.config.Server.EnableCORS {
		a.engine.Use(middleware.CORS())
	}
}

// RegisterHealthCheck adds the health and metrics endpoints
func (a *App) RegisterHealthCheck() {
	a.engine.GET("/health", a.healthCheck)
	if a.metrics != nil {
		a.engine.GET("/metrics", gin.WrapH(a.metrics))
	}
}

func (a *App) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"timestamp":       time.Now(),
		"environment":     a.config.Environment,
		"currencies":      currencyCodes(a.registry),
		"rates_available": a.rates.Snapshot().Available,
	})
}

// RegisterFaucetRoutes registers the public API.
//
// Routes registered:
//   - GET  /api/faucet/:address       claim (rate limited; referrer in the "ref" header)
//   - GET  /api/faucet/:address/when  seconds until the next claim
//   - GET  /api/ref/:address          referral stats
//   - POST /api/ref/:address/claim    referral payout (rate limited)
//   - GET  /api/r/:id                 referral link id to referrer address
//   - GET  /api/rates                 cached exchange rates
func (a *App) RegisterFaucetRoutes() {
	limited := a.limiter.Middleware()

	api := a.engine.Group("/api")
	{
		api.GET("/faucet/:address", limited, a.handler.Claim)
		api.GET("/faucet/:address/when", a.handler.When)
		api.GET("/ref/:address", a.handler.ReferralStats)
		api.POST("/ref/:address/claim", limited, a.handler.ClaimReferral)
		api.GET("/r/:id", a.handler.ResolveReferral)
		api.GET("/rates", a.handler.Rates)
	}

	a.logger.Info().Strs("currencies", currencyCodes(a.registry)).Msg("Faucet routes registered")
}

// Router returns the Gin engine for custom route registration
func (a *App) Router() *gin.Engine {
	return a.engine
}

// OnShutdown registers a function to be called on shutdown, after the
// HTTP server stops accepting requests.
func (a *App) OnShutdown(fn func()) {
	a.onShutdown = append(a.onShutdown, fn)
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunWithContext(ctx)
}

// RunWithContext starts the HTTP server and shuts down when ctx is done
func (a *App) RunWithContext(ctx context.Context) error {
	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.engine,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info().
			Int("port", a.config.Server.Port).
			Str("environment", a.config.Environment).
			Msg("Starting HTTP server")

		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errChan:
		return err
	}
}

func (a *App) shutdown() error {
	a.logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := a.httpServer.Shutdown(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("Error during server shutdown")
	}

	for _, fn := range a.onShutdown {
		fn()
	}

	a.logger.Info().Msg("Server shutdown complete")
	return err
}

func currencyCodes(r *faucet.Registry) []string {
	return lo.Map(r.Currencies(), func(c currency.Currency, _ int) string { return c.String() })
}
