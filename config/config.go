package config

import (
	"strings"
	"time"

	apperrors "github.com/Digital-Creators-Team/faucet-module/errors"
	"github.com/Digital-Creators-Team/faucet-module/logging"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment      string                 `mapstructure:"environment"`
	Server           ServerConfig           `mapstructure:"server"`
	Store            StoreConfig            `mapstructure:"store"`
	Redis            RedisConfig            `mapstructure:"redis"`
	Kafka            KafkaConfig            `mapstructure:"kafka"`
	Logging          logging.Config         `mapstructure:"logging"`
	Faucet           FaucetConfig           `mapstructure:"faucet"`
	Oracle           OracleConfig           `mapstructure:"oracle"`
	RateLimit        RateLimitConfig        `mapstructure:"rate_limit"`
	ExternalServices ExternalServicesConfig `mapstructure:"external_services"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	EnableCORS   bool          `mapstructure:"enable_cors"`
}

// StoreConfig selects the account store backend.
// Driver is one of memory, sqlite, postgres, redis.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// KafkaConfig holds Kafka configuration. Publishing is disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string          `mapstructure:"brokers"`
	Topics  map[string]string `mapstructure:"topics"`
}

// FaucetConfig holds claim engine settings
type FaucetConfig struct {
	ClaimTimeout  time.Duration             `mapstructure:"claim_timeout"`
	ReferralShare float64                   `mapstructure:"referral_share"`
	QueueSize     int                       `mapstructure:"queue_size"`
	Currencies    map[string]CurrencyConfig `mapstructure:"currencies"`
}

// CurrencyConfig holds per-currency payout tiers
type CurrencyConfig struct {
	Winnings []float64 `mapstructure:"winnings"`
}

// OracleConfig holds price oracle settings
type OracleConfig struct {
	SourceURL      string          `mapstructure:"source_url"`
	QuoteCurrency  string          `mapstructure:"quote_currency"`
	TTL            time.Duration   `mapstructure:"ttl"`
	MaxDeviation   float64         `mapstructure:"max_deviation"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	RetryLadder    []time.Duration `mapstructure:"retry_ladder"`
}

// RateLimitConfig holds per-client limits for the claim routes
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ExternalServicesConfig holds external service configurations
type ExternalServicesConfig struct {
	WalletService ServiceConfig `mapstructure:"wallet_service"`
}

// ServiceConfig holds external service configuration
type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from a YAML file using Viper.
// An empty filename loads defaults and environment variables only.
func Load(filename string) (*Config, error) {
	v := newViper()

	if filename != "" {
		v.SetConfigFile(filename)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.WrapWithDebug(err, apperrors.ErrConfigError, "failed to read config file", filename)
		}
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigError, "failed to unmarshal config")
	}
	config.setDefaults()
	return &config, nil
}

// registerDefaults makes scalar keys known to viper so environment overrides
// (e.g. FAUCET_CLAIM_TIMEOUT=30m) apply without a config file.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dsn", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("faucet.claim_timeout", 45*time.Minute)
	v.SetDefault("faucet.referral_share", 0.2)
	v.SetDefault("faucet.queue_size", 1024)
	v.SetDefault("oracle.source_url", "https://data.nanswap.com/get-markets")
	v.SetDefault("oracle.quote_currency", "NANO")
	v.SetDefault("oracle.ttl", time.Hour)
	v.SetDefault("oracle.max_deviation", 0.10)
	v.SetDefault("oracle.request_timeout", 10*time.Second)
	v.SetDefault("rate_limit.requests_per_second", 1.0)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("external_services.wallet_service.base_url", "")
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 5
	}
	if c.Kafka.Topics == nil {
		c.Kafka.Topics = map[string]string{}
	}
	if c.Kafka.Topics["claims"] == "" {
		c.Kafka.Topics["claims"] = "faucet.claims"
	}
	if c.Kafka.Topics["referral_payouts"] == "" {
		c.Kafka.Topics["referral_payouts"] = "faucet.referral_payouts"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Faucet.ClaimTimeout == 0 {
		c.Faucet.ClaimTimeout = 45 * time.Minute
	}
	if c.Faucet.ReferralShare == 0 {
		c.Faucet.ReferralShare = 0.2
	}
	if c.Faucet.QueueSize == 0 {
		c.Faucet.QueueSize = 1024
	}
	if len(c.Faucet.Currencies) == 0 {
		c.Faucet.Currencies = map[string]CurrencyConfig{
			"nano": {Winnings: []float64{0.00007, 0.00008, 0.0001, 0.000155, 0.0002}},
			"xdg":  {Winnings: []float64{0.034, 0.04, 0.051, 0.072, 0.12}},
			"ban":  {Winnings: []float64{0.01, 0.02, 0.03}},
		}
	}
	if c.Oracle.TTL == 0 {
		c.Oracle.TTL = time.Hour
	}
	if c.Oracle.MaxDeviation == 0 {
		c.Oracle.MaxDeviation = 0.10
	}
	if c.Oracle.RequestTimeout == 0 {
		c.Oracle.RequestTimeout = 10 * time.Second
	}
	if len(c.Oracle.RetryLadder) == 0 {
		c.Oracle.RetryLadder = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}
	}
	if c.Oracle.QuoteCurrency == "" {
		c.Oracle.QuoteCurrency = "NANO"
	}
	if c.ExternalServices.WalletService.Timeout == 0 {
		c.ExternalServices.WalletService.Timeout = 30 * time.Second
	}
}

// IsDevelopment returns true if environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsProduction returns true if environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
