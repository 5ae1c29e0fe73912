package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the frames data service
type Config struct {
	Chain         ChainConfig         `mapstructure:"chain"`
	Contracts     ContractsConfig     `mapstructure:"contracts"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Sponsorship   SponsorshipConfig   `mapstructure:"sponsorship"`
	Leaderboard   LeaderboardConfig   `mapstructure:"leaderboard"`
	Gas           GasConfig           `mapstructure:"gas"`
	Redis         RedisConfig         `mapstructure:"redis"`
	AWS           AWSConfig           `mapstructure:"aws"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	HTTP          HTTPConfig          `mapstructure:"http"`
}

// ChainConfig holds the JSON-RPC connection settings
type ChainConfig struct {
	RPCURL         string          `mapstructure:"rpc_url"`
	ChainID        int64           `mapstructure:"chain_id"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	BatchSize      int             `mapstructure:"batch_size"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	Breaker        BreakerConfig   `mapstructure:"breaker"`
	Retry          RetryConfig     `mapstructure:"retry"`
}

// RateLimitConfig holds RPC rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// BreakerConfig holds circuit breaker thresholds for the RPC endpoint
type BreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RetryConfig holds retry settings for transient RPC failures
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// CacheConfig holds per-dataset TTLs and in-process cache sizes
type CacheConfig struct {
	LeaderboardTTL  time.Duration `mapstructure:"leaderboard_ttl"`
	RiddleTTL       time.Duration `mapstructure:"riddle_ttl"`
	ProfileTTL      time.Duration `mapstructure:"profile_ttl"`
	ContractInfoTTL time.Duration `mapstructure:"contract_info_ttl"`
	EcosystemTTL    time.Duration `mapstructure:"ecosystem_ttl"`
	MemoryTTL       time.Duration `mapstructure:"memory_ttl"`
	MemoryMaxSize   int           `mapstructure:"memory_max_size"`
	MaxProfiles     int           `mapstructure:"max_profiles"`
	SingleFlight    bool          `mapstructure:"single_flight"`
	WarmupTimeout   time.Duration `mapstructure:"warmup_timeout"`
}

// SponsorshipConfig holds gas sponsorship limits
type SponsorshipConfig struct {
	MaxMintsPerUser int           `mapstructure:"max_mints_per_user"`
	Cooldown        time.Duration `mapstructure:"cooldown"`
	DailyCap        int           `mapstructure:"daily_cap"`
	Window          time.Duration `mapstructure:"window"`
}

// LeaderboardConfig holds the candidate address list
type LeaderboardConfig struct {
	Candidates []string `mapstructure:"candidates"`
}

// GasConfig holds gas estimation settings
type GasConfig struct {
	NativeSymbol  string        `mapstructure:"native_symbol"`
	NativeUSDRate float64       `mapstructure:"native_usd_rate"`
	PriceCacheTTL time.Duration `mapstructure:"price_cache_ttl"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AWSConfig holds AWS service configuration
type AWSConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Region      string `mapstructure:"region"`
	SNSTopicARN string `mapstructure:"sns_topic_arn"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Performance PerformanceConfig `mapstructure:"performance"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// TracingConfig holds tracing settings
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// PerformanceConfig holds the slow operation threshold
type PerformanceConfig struct {
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port          int           `mapstructure:"port"`
	StatsCacheTTL time.Duration `mapstructure:"stats_cache_ttl"`
	FrameDedupTTL time.Duration `mapstructure:"frame_dedup_ttl"`
}

// envBindings maps config keys to the environment variables the frames app
// has always been deployed with.
var envBindings = map[string][]string{
	"chain.rpc_url":          {"RPC_URL", "NEXT_PUBLIC_RPC_URL"},
	"contracts.rdln":         {"RDLN_TOKEN_ADDRESS", "NEXT_PUBLIC_RDLN_ADDRESS"},
	"contracts.ron":          {"RON_TOKEN_ADDRESS", "NEXT_PUBLIC_RON_ADDRESS"},
	"contracts.nft":          {"RIDDLE_NFT_ADDRESS", "NEXT_PUBLIC_NFT_ADDRESS"},
	"contracts.airdrop":      {"AIRDROP_ADDRESS", "NEXT_PUBLIC_AIRDROP_ADDRESS"},
	"redis.address":          {"REDIS_ADDRESS"},
	"aws.sns_topic_arn":      {"SNS_TOPIC_ARN"},
	"leaderboard.candidates": {"LEADERBOARD_CANDIDATES"},
}

// Load loads configuration from .env, file and environment variables
func Load(configPath string) (*Config, error) {
	// .env is optional; a missing file is the normal production case
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configPath == "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Chain defaults (Polygon Amoy testnet)
	v.SetDefault("chain.rpc_url", "https://rpc-amoy.polygon.technology")
	v.SetDefault("chain.chain_id", 80002)
	v.SetDefault("chain.request_timeout", "10s")
	v.SetDefault("chain.batch_size", 20)
	v.SetDefault("chain.rate_limit.requests_per_second", 25)
	v.SetDefault("chain.rate_limit.burst", 10)
	v.SetDefault("chain.breaker.max_failures", 5)
	v.SetDefault("chain.breaker.timeout", "30s")
	v.SetDefault("chain.retry.max_attempts", 3)
	v.SetDefault("chain.retry.initial_delay", "100ms")
	v.SetDefault("chain.retry.max_delay", "2s")

	v.SetDefault("contracts.burn_address", DefaultBurnAddress)

	// Dataset TTLs follow how often each dataset changes on chain
	v.SetDefault("cache.leaderboard_ttl", "30s")
	v.SetDefault("cache.riddle_ttl", "60s")
	v.SetDefault("cache.profile_ttl", "120s")
	v.SetDefault("cache.contract_info_ttl", "300s")
	v.SetDefault("cache.ecosystem_ttl", "120s")
	v.SetDefault("cache.memory_ttl", "5s")
	v.SetDefault("cache.memory_max_size", 1000)
	v.SetDefault("cache.max_profiles", 10000)
	v.SetDefault("cache.single_flight", true)
	v.SetDefault("cache.warmup_timeout", "20s")

	v.SetDefault("sponsorship.max_mints_per_user", 3)
	v.SetDefault("sponsorship.cooldown", "1h")
	v.SetDefault("sponsorship.daily_cap", 100)
	v.SetDefault("sponsorship.window", "24h")

	v.SetDefault("gas.native_symbol", "POL")
	v.SetDefault("gas.native_usd_rate", 0.50)
	v.SetDefault("gas.price_cache_ttl", "12s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.sns_topic_arn", "")

	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.otlp_endpoint", "")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.performance.slow_threshold", "500ms")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.stats_cache_ttl", "120s")
	v.SetDefault("http.frame_dedup_ttl", "5s")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain RPC URL is required (set RPC_URL)")
	}
	if !strings.HasPrefix(c.Chain.RPCURL, "http://") && !strings.HasPrefix(c.Chain.RPCURL, "https://") {
		return fmt.Errorf("chain RPC URL must be http(s): %s", c.Chain.RPCURL)
	}
	if c.Chain.RequestTimeout <= 0 {
		return fmt.Errorf("chain request timeout must be > 0")
	}
	if c.Chain.RateLimit.RequestsPerSecond <= 0 || c.Chain.RateLimit.Burst <= 0 {
		return fmt.Errorf("chain rate limit must be > 0")
	}

	if err := c.Contracts.Validate(); err != nil {
		return err
	}

	ttls := map[string]time.Duration{
		"leaderboard_ttl":   c.Cache.LeaderboardTTL,
		"riddle_ttl":        c.Cache.RiddleTTL,
		"profile_ttl":       c.Cache.ProfileTTL,
		"contract_info_ttl": c.Cache.ContractInfoTTL,
		"ecosystem_ttl":     c.Cache.EcosystemTTL,
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			return fmt.Errorf("cache %s must be > 0", name)
		}
	}

	if c.Sponsorship.MaxMintsPerUser <= 0 {
		return fmt.Errorf("sponsorship max mints per user must be > 0")
	}
	if c.Sponsorship.DailyCap <= 0 {
		return fmt.Errorf("sponsorship daily cap must be > 0")
	}
	if c.Sponsorship.Cooldown < 0 {
		return fmt.Errorf("sponsorship cooldown must be >= 0")
	}

	for _, addr := range c.Leaderboard.Candidates {
		if !IsAddress(addr) {
			return fmt.Errorf("invalid leaderboard candidate address: %s", addr)
		}
	}

	if c.Gas.NativeUSDRate < 0 {
		return fmt.Errorf("gas native USD rate must be >= 0")
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	if c.AWS.SNSTopicARN != "" && c.AWS.Region == "" {
		return fmt.Errorf("AWS region is required when an SNS topic is configured")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Observability.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Observability.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Observability.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Observability.Logging.Format)
	}

	return nil
}
