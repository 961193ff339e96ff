package wire

import (
	"context"
	"sort"

	"github.com/Digital-Creators-Team/faucet-module/config"
	"github.com/Digital-Creators-Team/faucet-module/db/database"
	"github.com/Digital-Creators-Team/faucet-module/db/redis"
	apperrors "github.com/Digital-Creators-Team/faucet-module/errors"
	"github.com/Digital-Creators-Team/faucet-module/events/kafka"
	"github.com/Digital-Creators-Team/faucet-module/logging"
	"github.com/Digital-Creators-Team/faucet-module/metrics"
	"github.com/Digital-Creators-Team/faucet-module/pkg/currency"
	"github.com/Digital-Creators-Team/faucet-module/pkg/faucet"
	"github.com/Digital-Creators-Team/faucet-module/pkg/oracle"
	"github.com/Digital-Creators-Team/faucet-module/pkg/providers"
	"github.com/Digital-Creators-Team/faucet-module/provider"
	"github.com/Digital-Creators-Team/faucet-module/server"
	"github.com/google/wire"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ProvideLogger provides a zerolog.Logger
func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Logging)
}

// ProvideMetrics provides the Prometheus collectors
func ProvideMetrics() *metrics.Metrics {
	return metrics.New()
}

// ProvideAccountStore opens the store selected by store.driver
func ProvideAccountStore(cfg *config.Config, logger zerolog.Logger) (providers.AccountStore, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn().Msg("Using in-memory account store, state is lost on restart")
		return provider.NewMemoryAccountStore(), func() {}, nil
	case "sqlite", "postgres":
		db, err := database.Open(cfg.Store, logger)
		if err != nil {
			return nil, nil, apperrors.WrapWithDebug(err, apperrors.ErrStoreError, "database unavailable", cfg.Store.Driver)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, apperrors.WrapWithDebug(err, apperrors.ErrStoreError, "database unavailable", cfg.Store.Driver)
		}
		cleanup := func() { _ = sqlDB.Close() }
		store, err := provider.NewGormAccountStore(db)
		if err != nil {
			cleanup()
			return nil, nil, apperrors.Wrap(err, apperrors.ErrStoreError, "failed to migrate accounts")
		}
		return store, cleanup, nil
	case "redis":
		client, err := redis.New(cfg.Redis)
		if err != nil {
			return nil, nil, apperrors.WrapWithDebug(err, apperrors.ErrRedisError, "redis unavailable", cfg.Redis.Addr)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connected")
		return provider.NewRedisAccountStore(client.GetClient()), func() { _ = client.Close() }, nil
	default:
		return nil, nil, apperrors.NewWithDebug(apperrors.ErrConfigError, "unknown store driver", cfg.Store.Driver)
	}
}

// ProvideKafkaProducer returns nil when no brokers are configured
func ProvideKafkaProducer(cfg *config.Config, logger zerolog.Logger) (*kafka.Producer, func()) {
	producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
	if producer == nil {
		return nil, func() {}
	}
	return producer, func() { _ = producer.Close() }
}

// ProvideEventPublisher publishes to Kafka, or discards events without a producer
func ProvideEventPublisher(cfg *config.Config, producer *kafka.Producer) providers.EventPublisher {
	if producer == nil {
		return providers.NoopPublisher{}
	}
	return provider.NewEventProvider(producer, cfg.Kafka)
}

// ProvideWalletSender provides the HTTP wallet client
func ProvideWalletSender(cfg *config.Config, logger zerolog.Logger) (providers.WalletSender, error) {
	if cfg.ExternalServices.WalletService.BaseURL == "" {
		return nil, apperrors.New(apperrors.ErrConfigError, "external_services.wallet_service.base_url is required")
	}
	return provider.NewWalletProvider(cfg, logger), nil
}

// OracleConfig translates configuration into oracle settings
func OracleConfig(cfg *config.Config, logger zerolog.Logger, observer oracle.Observer) (oracle.Config, error) {
	quote, err := currency.Parse(cfg.Oracle.QuoteCurrency)
	if err != nil {
		return oracle.Config{}, err
	}
	return oracle.Config{
		Supported:      currency.Supported,
		QuoteCurrency:  quote,
		TTL:            cfg.Oracle.TTL,
		MaxDeviation:   decimal.NewFromFloat(cfg.Oracle.MaxDeviation),
		RequestTimeout: cfg.Oracle.RequestTimeout,
		RetryLadder:    cfg.Oracle.RetryLadder,
		Logger:         logger,
		Observer:       observer,
	}, nil
}

// ProvideOracle creates the price oracle and performs the startup refresh
func ProvideOracle(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*oracle.Service, func(), error) {
	ocfg, err := OracleConfig(cfg, logger, m)
	if err != nil {
		return nil, nil, err
	}
	source := oracle.NewHTTPSource(cfg.Oracle.SourceURL, cfg.Oracle.RequestTimeout, logger)
	svc := oracle.NewService(source, ocfg)
	svc.Start(context.Background())
	return svc, svc.Stop, nil
}

// ProvideRegistry builds one engine per configured currency
func ProvideRegistry(
	cfg *config.Config,
	logger zerolog.Logger,
	store providers.AccountStore,
	wallet providers.WalletSender,
	rates *oracle.Service,
	events providers.EventPublisher,
	m *metrics.Metrics,
) (*faucet.Registry, func(), error) {
	codes := lo.Keys(cfg.Faucet.Currencies)
	sort.Strings(codes)

	engines := make([]*faucet.Engine, 0, len(codes))
	closeAll := func() {
		for _, e := range engines {
			e.Close()
		}
	}
	for _, code := range codes {
		cur, err := currency.Parse(code)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		tiers := lo.Map(cfg.Faucet.Currencies[code].Winnings, func(w float64, _ int) decimal.Decimal {
			return decimal.NewFromFloat(w)
		})
		e, err := faucet.NewEngine(faucet.EngineConfig{
			Currency:      cur,
			Tiers:         tiers,
			ClaimTimeout:  cfg.Faucet.ClaimTimeout,
			ReferralShare: decimal.NewFromFloat(cfg.Faucet.ReferralShare),
			QueueSize:     cfg.Faucet.QueueSize,
			Store:         store,
			Wallet:        wallet,
			Oracle:        rates,
			Events:        events,
			Recorder:      m,
			Logger:        logger,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		engines = append(engines, e)
		m.RegisterQueueDepth(cur.String(), "claims", func() int {
			claims, _ := e.QueueDepth()
			return claims
		})
		m.RegisterQueueDepth(cur.String(), "referrals", func() int {
			_, referrals := e.QueueDepth()
			return referrals
		})
	}

	registry := faucet.NewRegistry(engines...)
	return registry, registry.Close, nil
}

// ProvideServerOptions provides server options
func ProvideServerOptions(cfg *config.Config, logger zerolog.Logger, registry *faucet.Registry, rates *oracle.Service, m *metrics.Metrics) server.Options {
	return server.Options{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Rates:    rates,
		Metrics:  m.Handler(),
	}
}

// ProvideApp provides the application with middlewares and routes registered
func ProvideApp(opts server.Options) *server.App {
	app := server.New(opts)
	app.UseCommonMiddlewares()
	app.RegisterHealthCheck()
	app.RegisterFaucetRoutes()
	return app
}

// LoggingSet is the wire provider set for logging
var LoggingSet = wire.NewSet(
	ProvideLogger,
)

// StoreSet is the wire provider set for account persistence
var StoreSet = wire.NewSet(
	ProvideAccountStore,
)

// EventsSet is the wire provider set for Kafka publishing
var EventsSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideEventPublisher,
)

// FaucetSet is the wire provider set for the claim engines and their collaborators
var FaucetSet = wire.NewSet(
	ProvideMetrics,
	ProvideWalletSender,
	ProvideOracle,
	ProvideRegistry,
)

// ServerSet is the wire provider set for server
var ServerSet = wire.NewSet(
	ProvideServerOptions,
	ProvideApp,
)

// FullSet includes every provider needed to build the App from a Config
var FullSet = wire.NewSet(
	LoggingSet,
	StoreSet,
	EventsSet,
	FaucetSet,
	ServerSet,
)
