// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	RabbitMQ   RabbitMQConfig
	Auth       AuthConfig
	YouTube    YouTubeConfig
	PubSub     PubSubConfig
	Transcript TranscriptConfig
	Summary    SummaryConfig
	OpenAI     OpenAIConfig
	Compute    ComputeConfig
	Worker     WorkerConfig
	Logging    LoggingConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	RateLimit       int
	RateBurst       int
	AllowedOrigin   string
}

// DatabaseConfig contains database connection configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	URL            string
	MaxConnections int32
	MinConnections int32
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// RedisConfig points at the Redis instance used for the job queue and cache.
type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
}

// RabbitMQConfig contains RabbitMQ connection and exchange configuration.
// An empty URL disables event publishing.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// AuthConfig holds the Supabase JWT secret and the admin API keys.
type AuthConfig struct {
	JWTSecret string
	APIKeys   []string
}

// YouTubeConfig contains YouTube Data API configuration.
type YouTubeConfig struct {
	APIKey         string
	DailyQuota     int
	QuotaThreshold int
	MaxResults     int64
}

// PubSubConfig contains PubSubHubbub configuration.
type PubSubConfig struct {
	HubURL          string
	CallbackURL     string
	Secret          string
	LeaseSeconds    int
	RenewalInterval time.Duration
	RenewalBatch    int
}

// TranscriptConfig contains transcript provider configuration.
type TranscriptConfig struct {
	SupadataAPIKey  string
	SupadataBaseURL string
	MaxChars        int
	Timeout         time.Duration
}

// SummaryConfig selects the summarizer backend ("openai" or "compute").
type SummaryConfig struct {
	Provider string
	Language string
}

// OpenAIConfig contains OpenAI API configuration.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ComputeConfig contains the 0G compute network configuration.
type ComputeConfig struct {
	RPCURL        string
	PrivateKey    string
	ProviderURL   string
	Model         string
	MinBalanceWei string
	Timeout       time.Duration
}

// WorkerConfig contains background worker configuration.
type WorkerConfig struct {
	Concurrency int
	MaxRetry    int
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.SetEnvPrefix("VISPARK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Auth.APIKeys = ParseList(viper.GetString("auth.apikeys"))

	return &cfg, nil
}

// Validate checks the values every binary needs.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required (VISPARK_DATABASE_URL)")
	}
	switch c.Summary.Provider {
	case "openai", "compute":
	default:
		return fmt.Errorf("summary.provider must be openai or compute, got %q", c.Summary.Provider)
	}
	if c.YouTube.QuotaThreshold <= 0 || c.YouTube.QuotaThreshold > 100 {
		return fmt.Errorf("youtube.quotathreshold must be in (0, 100], got %d", c.YouTube.QuotaThreshold)
	}
	return nil
}

// ParseList splits a comma-separated value, dropping blanks.
func ParseList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)
	viper.SetDefault("server.ratelimit", 60)
	viper.SetDefault("server.rateburst", 20)
	viper.SetDefault("server.allowedorigin", "*")

	// Database
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.maxconnections", 25)
	viper.SetDefault("database.minconnections", 5)
	viper.SetDefault("database.maxidletime", 30*time.Minute)
	viper.SetDefault("database.maxlifetime", time.Hour)

	// Redis
	viper.SetDefault("redis.url", "")
	viper.SetDefault("redis.cachettl", 15*time.Minute)

	// RabbitMQ
	viper.SetDefault("rabbitmq.url", "")
	viper.SetDefault("rabbitmq.exchange", "vispark.events")
	viper.SetDefault("rabbitmq.routingkey", "notification.created")

	// Auth
	viper.SetDefault("auth.jwtsecret", "")
	viper.SetDefault("auth.apikeys", "")

	// YouTube
	viper.SetDefault("youtube.apikey", "")
	viper.SetDefault("youtube.dailyquota", 10000)
	viper.SetDefault("youtube.quotathreshold", 90)
	viper.SetDefault("youtube.maxresults", 10)

	// PubSubHubbub
	viper.SetDefault("pubsub.huburl", "https://pubsubhubbub.appspot.com/subscribe")
	viper.SetDefault("pubsub.callbackurl", "")
	viper.SetDefault("pubsub.secret", "")
	viper.SetDefault("pubsub.leaseseconds", 432000)
	viper.SetDefault("pubsub.renewalinterval", 6*time.Hour)
	viper.SetDefault("pubsub.renewalbatch", 100)

	// Transcript
	viper.SetDefault("transcript.supadataapikey", "")
	viper.SetDefault("transcript.supadatabaseurl", "https://api.supadata.ai/v1")
	viper.SetDefault("transcript.maxchars", 100000)
	viper.SetDefault("transcript.timeout", 30*time.Second)

	// Summary
	viper.SetDefault("summary.provider", "openai")
	viper.SetDefault("summary.language", "en")

	// OpenAI
	viper.SetDefault("openai.apikey", "")
	viper.SetDefault("openai.baseurl", "")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.timeout", 90*time.Second)

	// 0G compute
	viper.SetDefault("compute.rpcurl", "https://evmrpc-testnet.0g.ai")
	viper.SetDefault("compute.privatekey", "")
	viper.SetDefault("compute.providerurl", "")
	viper.SetDefault("compute.model", "llama-3.3-70b-instruct")
	viper.SetDefault("compute.minbalancewei", "0")
	viper.SetDefault("compute.timeout", 90*time.Second)

	// Worker
	viper.SetDefault("worker.concurrency", 2)
	viper.SetDefault("worker.maxretry", 3)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
