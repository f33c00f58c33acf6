// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/fd1az/oracle-resolver/internal/apperror"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Lock      LockConfig      `mapstructure:"lock"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	API       APIConfig       `mapstructure:"api"`
	Health    HealthConfig    `mapstructure:"health"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // set at runtime
}

// ChainConfig holds RPC, signer and contract settings.
type ChainConfig struct {
	RPCURL              string        `mapstructure:"rpc_url"`
	ChainID             uint64        `mapstructure:"chain_id"`
	PrivateKey          string        `mapstructure:"private_key"`
	KeyFile             string        `mapstructure:"key_file"`
	KeyPassword         string        `mapstructure:"key_password"`
	PredictionMarket    string        `mapstructure:"prediction_market"`
	OracleResolver      string        `mapstructure:"oracle_resolver"`
	SettlementToken     string        `mapstructure:"settlement_token"`
	TokenDecimals       uint8         `mapstructure:"token_decimals"`
	TokenSymbol         string        `mapstructure:"token_symbol"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	ConfirmTimeout      time.Duration `mapstructure:"confirm_timeout"`
	GasBufferPercent    int           `mapstructure:"gas_buffer_percent"`
	// Revert reason fragments meaning the market is already resolved.
	AlreadyResolvedMarkers []string `mapstructure:"already_resolved_markers"`
}

// PredictionMarketAddress returns the market contract address.
func (c *ChainConfig) PredictionMarketAddress() common.Address {
	return common.HexToAddress(c.PredictionMarket)
}

// OracleResolverAddress returns the oracle contract address.
func (c *ChainConfig) OracleResolverAddress() common.Address {
	return common.HexToAddress(c.OracleResolver)
}

// SettlementTokenAddress returns the ERC20 used for bets.
func (c *ChainConfig) SettlementTokenAddress() common.Address {
	return common.HexToAddress(c.SettlementToken)
}

// ChainIDBig returns the chain id for transaction signing.
func (c *ChainConfig) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(c.ChainID)
}

// HasSigner reports whether any key material is configured.
func (c *ChainConfig) HasSigner() bool {
	return c.PrivateKey != "" || c.KeyFile != ""
}

// FeedsConfig holds the feed registry.
type FeedsConfig struct {
	Timeout           time.Duration    `mapstructure:"timeout"`
	RequestsPerMinute int              `mapstructure:"requests_per_minute"`
	Definitions       []FeedDefinition `mapstructure:"definitions"`
}

// Feed kinds.
const (
	FeedKindHTTP   = "http"
	FeedKindRandom = "random"
	FeedKindStream = "stream"
	FeedKindStatic = "static"
)

// FeedDefinition describes one named feed.
type FeedDefinition struct {
	Name string `mapstructure:"name"`
	// Kind is one of http, random, stream, static.
	Kind string `mapstructure:"kind"`
	URL  string `mapstructure:"url"`
	// Extract is a CEL expression over the decoded response `body`.
	Extract string `mapstructure:"extract"`
	// Probability of a true reading for random feeds.
	Probability float64 `mapstructure:"probability"`
	// Subscribe is a raw JSON message sent after a stream connects.
	Subscribe string `mapstructure:"subscribe"`
	// MaxAge bounds how old a streamed value may be.
	MaxAge     time.Duration    `mapstructure:"max_age"`
	Confidence ConfidencePolicy `mapstructure:"confidence"`
	Fallback   ReadingConfig    `mapstructure:"fallback"`
	Static     ReadingConfig    `mapstructure:"static"`
}

// ConfidencePolicy yields High when the value exceeds Above, otherwise Base.
// A zero Above disables the step.
type ConfidencePolicy struct {
	Base  int     `mapstructure:"base"`
	High  int     `mapstructure:"high"`
	Above float64 `mapstructure:"above"`
}

// ReadingConfig is a fixed reading; exactly one of Number or Bool is set.
type ReadingConfig struct {
	Number     *float64 `mapstructure:"number"`
	Bool       *bool    `mapstructure:"bool"`
	Confidence int      `mapstructure:"confidence"`
}

// ResolverConfig holds loop settings.
type ResolverConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	Pacing              time.Duration `mapstructure:"pacing"`
	ConfidenceThreshold int           `mapstructure:"confidence_threshold"`
	Markets             []uint64      `mapstructure:"markets"`
	InitialMarkets      []uint64      `mapstructure:"initial_markets"`
	MaxCycles           int           `mapstructure:"max_cycles"`
	RulesFile           string        `mapstructure:"rules_file"`
	// ShutdownGrace bounds how long an in-flight submission keeps running
	// after shutdown starts. Zero waits for it indefinitely.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
	Journal       JournalConfig `mapstructure:"journal"`
}

// JournalConfig selects the commit journal backend.
type JournalConfig struct {
	Driver string `mapstructure:"driver"` // sqlite | memory
	Path   string `mapstructure:"path"`
}

// LockConfig configures the Redis single-writer lease.
type LockConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	RedisURL string        `mapstructure:"redis_url"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NotifyConfig configures Telegram notifications. Empty token disables them.
type NotifyConfig struct {
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID string `mapstructure:"telegram_chat_id"`
	TelegramURL    string `mapstructure:"telegram_url"`
}

// APIConfig configures the market view HTTP API.
type APIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Port     int           `mapstructure:"port"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// HealthConfig configures the health server.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	// TraceProvider is one of none, console, zipkin, otlp-grpc, otlp-http.
	TraceProvider  string            `mapstructure:"trace_provider"`
	TraceEndpoint  string            `mapstructure:"trace_endpoint"`
	OTLPEndpoint   string            `mapstructure:"otlp_endpoint"`
	OTLPHeaders    map[string]string `mapstructure:"otlp_headers"`
	Insecure       bool              `mapstructure:"insecure"`
	PrometheusPort int               `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Feeds.Definitions) == 0 {
		cfg.Feeds.Definitions = DefaultFeeds()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("app.log_level", "ORACLE_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("app.environment", "ORACLE_ENVIRONMENT", "ENVIRONMENT")

	_ = v.BindEnv("chain.rpc_url", "ORACLE_RPC_URL", "RPC_URL")
	_ = v.BindEnv("chain.private_key", "ORACLE_PRIVATE_KEY", "PRIVATE_KEY")
	_ = v.BindEnv("chain.key_file", "ORACLE_KEY_FILE", "KEY_FILE")
	_ = v.BindEnv("chain.key_password", "ORACLE_KEY_PASSWORD", "KEY_PASSWORD")

	_ = v.BindEnv("lock.redis_url", "ORACLE_REDIS_URL", "REDIS_URL")

	_ = v.BindEnv("notify.telegram_token", "ORACLE_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("notify.telegram_chat_id", "ORACLE_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")

	_ = v.BindEnv("telemetry.enabled", "ORACLE_OTEL_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.service_name", "ORACLE_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("telemetry.otlp_endpoint", "ORACLE_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("telemetry.trace_provider", "ORACLE_OTEL_TRACE_PROVIDER", "OTEL_TRACES_EXPORTER")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "oracle-resolver")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Arbitrum Sepolia reference deployment
	v.SetDefault("chain.rpc_url", "https://sepolia-rollup.arbitrum.io/rpc")
	v.SetDefault("chain.chain_id", 421614)
	v.SetDefault("chain.prediction_market", "0x759449068AD81E04FD223fe0F1Da790F17426204")
	v.SetDefault("chain.oracle_resolver", "0xfE1757e4E3C6050d592b54A3060ED3A47eaCA898")
	v.SetDefault("chain.settlement_token", "0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d")
	v.SetDefault("chain.token_decimals", 6)
	v.SetDefault("chain.token_symbol", "USDC")
	v.SetDefault("chain.receipt_poll_interval", "3s")
	v.SetDefault("chain.confirm_timeout", "0s")
	v.SetDefault("chain.gas_buffer_percent", 20)
	v.SetDefault("chain.already_resolved_markers", []string{"already resolved"})

	v.SetDefault("feeds.timeout", "10s")
	v.SetDefault("feeds.requests_per_minute", 30)

	v.SetDefault("resolver.interval", "30s")
	v.SetDefault("resolver.pacing", "2s")
	v.SetDefault("resolver.confidence_threshold", 80)
	v.SetDefault("resolver.markets", []uint64{0, 1, 2})
	v.SetDefault("resolver.initial_markets", []uint64{2})
	v.SetDefault("resolver.max_cycles", 0)
	v.SetDefault("resolver.shutdown_grace", "2m")
	v.SetDefault("resolver.journal.driver", "sqlite")
	v.SetDefault("resolver.journal.path", "oracle.db")

	v.SetDefault("lock.enabled", false)
	v.SetDefault("lock.redis_url", "redis://localhost:6379/0")
	v.SetDefault("lock.key", "oracle-resolver:signer")
	v.SetDefault("lock.ttl", "1m")

	v.SetDefault("notify.telegram_url", "https://api.telegram.org")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.port", 8090)
	v.SetDefault("api.cache_ttl", "5s")

	v.SetDefault("health.port", 8081)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "oracle-resolver")
	v.SetDefault("telemetry.trace_provider", "none")
	v.SetDefault("telemetry.prometheus_port", 9464)
}

// DefaultFeeds returns the reference bitcoin, weather and ethereum feeds.
func DefaultFeeds() []FeedDefinition {
	return []FeedDefinition{
		{
			Name:       "bitcoin",
			Kind:       FeedKindHTTP,
			URL:        "https://api.coindesk.com/v1/bpi/currentprice.json",
			Extract:    "body.bpi.USD.rate_float",
			Confidence: ConfidencePolicy{Base: 85, High: 95, Above: 50000},
			Fallback:   ReadingConfig{Number: ptr(67000.0), Confidence: 90},
		},
		{
			Name:        "weather",
			Kind:        FeedKindRandom,
			Probability: 0.4,
			Confidence:  ConfidencePolicy{Base: 85},
			Fallback:    ReadingConfig{Bool: ptr(false), Confidence: 85},
		},
		{
			Name:       "ethereum",
			Kind:       FeedKindHTTP,
			URL:        "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd",
			Extract:    "body.ethereum.usd",
			Confidence: ConfidencePolicy{Base: 92},
			Fallback:   ReadingConfig{Number: ptr(2800.0), Confidence: 88},
		},
	}
}

func ptr[T any](v T) *T {
	return &v
}

// Validate validates settings every binary needs.
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return missing("chain.rpc_url")
	}
	for key, addr := range map[string]string{
		"chain.prediction_market": c.Chain.PredictionMarket,
		"chain.oracle_resolver":   c.Chain.OracleResolver,
		"chain.settlement_token":  c.Chain.SettlementToken,
	} {
		if !common.IsHexAddress(addr) {
			return apperror.Validation(apperror.CodeConfigurationError,
				fmt.Sprintf("invalid %s: %q", key, addr))
		}
	}
	if c.Resolver.ConfidenceThreshold < 0 || c.Resolver.ConfidenceThreshold > 100 {
		return apperror.Validation(apperror.CodeConfigurationError,
			"resolver.confidence_threshold must be within 0..100")
	}
	switch d := c.Resolver.Journal.Driver; d {
	case "", "sqlite", "memory":
	default:
		return apperror.Validation(apperror.CodeConfigurationError,
			fmt.Sprintf("resolver.journal.driver: unknown driver %q", d))
	}
	if c.Resolver.Interval <= 0 {
		return apperror.Validation(apperror.CodeConfigurationError, "resolver.interval must be positive")
	}

	seen := make(map[string]bool, len(c.Feeds.Definitions))
	for _, f := range c.Feeds.Definitions {
		if f.Name == "" {
			return missing("feeds.definitions[].name")
		}
		if seen[f.Name] {
			return apperror.Validation(apperror.CodeConfigurationError, "duplicate feed "+f.Name)
		}
		seen[f.Name] = true
		switch f.Kind {
		case FeedKindHTTP, FeedKindStream:
			if f.URL == "" || f.Extract == "" {
				return missing("feeds." + f.Name + ".url/extract")
			}
		case FeedKindRandom:
			if f.Probability < 0 || f.Probability > 1 {
				return apperror.Validation(apperror.CodeConfigurationError, "feeds."+f.Name+".probability must be within 0..1")
			}
		case FeedKindStatic:
			if f.Static.Number == nil && f.Static.Bool == nil {
				return missing("feeds." + f.Name + ".static")
			}
		default:
			return apperror.Validation(apperror.CodeConfigurationError,
				fmt.Sprintf("feeds.%s: unknown kind %q", f.Name, f.Kind))
		}
		if f.Fallback.Number == nil && f.Fallback.Bool == nil {
			return missing("feeds." + f.Name + ".fallback")
		}
	}
	return nil
}

// ValidateSigner fails with ConfigurationMissing when no key material is set.
// Binaries that write to the chain call it before doing any work.
func (c *Config) ValidateSigner() error {
	if !c.Chain.HasSigner() {
		return missing("chain.private_key")
	}
	if c.Chain.KeyFile != "" && c.Chain.PrivateKey == "" && c.Chain.KeyPassword == "" {
		return missing("chain.key_password")
	}
	return nil
}

func missing(key string) error {
	return apperror.New(apperror.CodeConfigurationMissing, apperror.WithContext(key))
}
