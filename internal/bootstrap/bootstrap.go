// Package bootstrap builds the collaborators shared by the server and worker
// binaries from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/cache"
	"github.com/vispark/vispark-api/internal/config"
	"github.com/vispark/vispark-api/internal/db"
	"github.com/vispark/vispark-api/internal/db/repository"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/internal/service"
	"github.com/vispark/vispark-api/internal/service/compute"
	"github.com/vispark/vispark-api/internal/service/quota"
	"github.com/vispark/vispark-api/internal/service/summary"
	"github.com/vispark/vispark-api/internal/service/transcript"
	"github.com/vispark/vispark-api/internal/service/youtube"
)

// Database opens and pings the connection pool.
func Database(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dbCfg := db.DefaultConfig(cfg.URL)
	if cfg.MaxConnections > 0 {
		dbCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		dbCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxLifetime > 0 {
		dbCfg.MaxConnLifetime = cfg.MaxLifetime
	}
	if cfg.MaxIdleTime > 0 {
		dbCfg.MaxConnIdleTime = cfg.MaxIdleTime
	}
	return db.NewPool(ctx, dbCfg)
}

// Cache returns a Redis cache when a Redis URL is configured, otherwise an
// in-process one. The returned close func is never nil.
func Cache(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (cache.Cache, func(), error) {
	if cfg.URL == "" {
		log.Info("redis not configured, using in-memory cache")
		return cache.NewMemoryCache(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return cache.NewRedisCache(client, "vispark:"), func() { _ = client.Close() }, nil
}

// Transcripts returns the transcript service: Supadata first when a key is
// set, then the public caption track.
func Transcripts(cfg config.TranscriptConfig, log *zap.Logger, m *metrics.Metrics) *transcript.Service {
	var sources []transcript.Source
	if cfg.SupadataAPIKey != "" {
		sources = append(sources, transcript.NewSupadata(cfg.SupadataBaseURL, cfg.SupadataAPIKey, nil, cfg.Timeout))
	} else {
		log.Warn("supadata api key not configured, using caption tracks only")
	}
	sources = append(sources, transcript.NewCaptions(nil))
	return transcript.NewService(sources, cfg.MaxChars, log, m)
}

// Summarizer returns the summarizer selected by summary.provider.
func Summarizer(ctx context.Context, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (summary.Summarizer, error) {
	switch cfg.Summary.Provider {
	case "compute":
		rpc, err := compute.Dial(ctx, cfg.Compute.RPCURL)
		if err != nil {
			return nil, err
		}
		svc, err := compute.New(compute.Config{
			PrivateKey:    cfg.Compute.PrivateKey,
			ProviderURL:   cfg.Compute.ProviderURL,
			Model:         cfg.Compute.Model,
			MinBalanceWei: cfg.Compute.MinBalanceWei,
			Timeout:       cfg.Compute.Timeout,
		}, rpc, log, m)
		if err != nil {
			return nil, err
		}
		log.Info("using 0G compute summarizer", zap.String("broker", svc.Address().Hex()))
		return svc, nil
	default:
		svc, err := summary.NewOpenAI(summary.Config{
			Provider: "openai",
			APIKey:   cfg.OpenAI.APIKey,
			BaseURL:  cfg.OpenAI.BaseURL,
			Model:    cfg.OpenAI.Model,
			Timeout:  cfg.OpenAI.Timeout,
		}, log, m)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
}

// YouTube returns a Data API client with quota accounting and caching, plus
// the quota manager it reports to.
func YouTube(ctx context.Context, cfg config.YouTubeConfig, pool *pgxpool.Pool, store cache.Cache, ttl time.Duration, log *zap.Logger, m *metrics.Metrics) (*youtube.Client, *quota.Manager, error) {
	quotas := quota.NewManager(repository.NewQuotaRepository(pool), cfg.DailyQuota, cfg.QuotaThreshold, log)

	yt, err := youtube.NewClient(ctx, cfg.APIKey, []youtube.Option{
		youtube.WithQuota(quotas),
		youtube.WithCache(store, ttl),
		youtube.WithMetrics(m),
		youtube.WithLogger(log),
	})
	if err != nil {
		return nil, quotas, err
	}
	return yt, quotas, nil
}

// HTTPClient is the client used for hub requests.
func HTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// Publisher connects to RabbitMQ when a URL is configured. Without one it
// returns service.NopPublisher and a nil *MessagePublisher.
func Publisher(cfg config.RabbitMQConfig, log *zap.Logger) (service.EventPublisher, *service.MessagePublisher, error) {
	if cfg.URL == "" {
		log.Info("rabbitmq not configured, events are dropped")
		return service.NopPublisher{}, nil, nil
	}
	mp, err := service.NewMessagePublisher(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	return mp, mp, nil
}
