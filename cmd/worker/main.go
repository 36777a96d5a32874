package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/bootstrap"
	"github.com/vispark/vispark-api/internal/config"
	"github.com/vispark/vispark-api/internal/db/repository"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/internal/queue"
	"github.com/vispark/vispark-api/internal/service"
	"github.com/vispark/vispark-api/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Log

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.Redis.URL == "" {
		log.Fatal("redis.url is required for the worker (VISPARK_REDIS_URL)")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("worker failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()
	m := metrics.New()

	log.Info("summary worker starting",
		zap.Int("concurrency", cfg.Worker.Concurrency),
		zap.Int("max_retry", cfg.Worker.MaxRetry),
		zap.String("provider", cfg.Summary.Provider),
	)

	pool, err := bootstrap.Database(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	summarizer, err := bootstrap.Summarizer(ctx, cfg, log, m)
	if err != nil {
		return fmt.Errorf("initialize summarizer: %w", err)
	}

	store, closeCache, err := bootstrap.Cache(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeCache()

	// Metadata is optional; rows are stored without it when YouTube is not configured.
	var videos service.VideoLookup
	yt, quotas, err := bootstrap.YouTube(ctx, cfg.YouTube, pool, store, cfg.Redis.CacheTTL, log, m)
	if err != nil {
		log.Warn("YouTube API client unavailable, summaries are stored without metadata", zap.Error(err))
	} else {
		videos = yt
		logQuota(ctx, quotas, log)
	}

	publisher, mp, err := bootstrap.Publisher(cfg.RabbitMQ, log)
	if err != nil {
		return err
	}
	if mp != nil {
		defer mp.Close()
	}

	visparks := service.NewVisparkService(
		repository.NewVisparkRepository(pool),
		repository.NewNotificationRepository(pool),
		bootstrap.Transcripts(cfg.Transcript, log, m),
		summarizer,
		videos,
		cfg.Summary.Language,
		log,
		m,
	)

	callbacks := queue.NewCallbackManager(log)
	callbacks.RegisterCallback(publishSummaryGenerated(publisher))

	server, err := queue.NewServer(cfg.Redis.URL, cfg.Worker.Concurrency, queue.NewSummaryHandler(visparks, callbacks, log, m), log)
	if err != nil {
		return fmt.Errorf("create queue server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	if err := server.Start(); err != nil {
		return fmt.Errorf("start queue server: %w", err)
	}
	log.Info("summary worker started successfully")

	sig := <-shutdown
	log.Info("shutdown signal received", zap.String("signal", sig.String()))
	server.Stop()
	log.Info("summary worker stopped gracefully")
	return nil
}

// publishSummaryGenerated announces finished background summaries.
func publishSummaryGenerated(pub service.EventPublisher) queue.SummaryCallback {
	return func(ctx context.Context, videoID, channelID, title string, written int) error {
		return pub.Publish(ctx, service.NewEvent(service.EventSummaryGenerated, channelID, videoID, title, written))
	}
}

type quotaInfo interface {
	IsQuotaExhausted(ctx context.Context) (bool, error)
}

func logQuota(ctx context.Context, q quotaInfo, log *zap.Logger) {
	exhausted, err := q.IsQuotaExhausted(ctx)
	if err != nil {
		log.Warn("failed to check quota status", zap.Error(err))
		return
	}
	if exhausted {
		// Keep running: transcripts and summaries do not need the Data API.
		log.Warn("daily quota threshold already reached, metadata lookups will be skipped")
	}
}
