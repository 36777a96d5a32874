package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/bootstrap"
	"github.com/vispark/vispark-api/internal/config"
	"github.com/vispark/vispark-api/internal/db/repository"
	"github.com/vispark/vispark-api/internal/handler"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/internal/middleware"
	"github.com/vispark/vispark-api/internal/queue"
	"github.com/vispark/vispark-api/internal/service"
	"github.com/vispark/vispark-api/internal/validation"
	"github.com/vispark/vispark-api/pkg/logger"
)

const maxPushPayload = 1 << 20

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

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()
	m := metrics.New()

	pool, err := bootstrap.Database(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer pool.Close()
	log.Info("database connection established", zap.Int32("max_conns", pool.Config().MaxConns))

	store, closeCache, err := bootstrap.Cache(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeCache()

	publisher, mp, err := bootstrap.Publisher(cfg.RabbitMQ, log)
	if err != nil {
		return err
	}
	var rabbitHealth handler.HealthReporter
	if mp != nil {
		defer mp.Close()
		rabbitHealth = mp
	}

	visparkRepo := repository.NewVisparkRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)
	channelSubRepo := repository.NewChannelSubscriptionRepository(pool)
	hubRepo := repository.NewHubSubscriptionRepository(pool)

	transcripts := bootstrap.Transcripts(cfg.Transcript, log, m)

	// The summarizer is optional at startup so the read-only routes stay up
	// when no LLM key is configured.
	var summarizeHandler *handler.SummaryHandler
	summarizer, err := bootstrap.Summarizer(ctx, cfg, log, m)
	if err != nil {
		log.Warn("summarizer unavailable, summary routes disabled", zap.Error(err))
	} else {
		summarizeHandler = handler.NewSummaryHandler(summarizer, cfg.Summary.Language, cfg.Transcript.MaxChars, log)
	}

	yt, quotas, err := bootstrap.YouTube(ctx, cfg.YouTube, pool, store, cfg.Redis.CacheTTL, log, m)
	var (
		channelHandler *handler.ChannelHandler
		videos         service.VideoLookup
	)
	if err != nil {
		log.Warn("YouTube API client unavailable, channel routes disabled", zap.Error(err))
	} else {
		channelHandler = handler.NewChannelHandler(yt, cfg.YouTube.MaxResults, log)
		videos = yt
	}

	hubs := service.NewHubManager(hubRepo, service.NewPubSubHubService(bootstrap.HTTPClient(), log, m), service.HubConfig{
		HubURL:       cfg.PubSub.HubURL,
		CallbackURL:  cfg.PubSub.CallbackURL,
		Secret:       cfg.PubSub.Secret,
		LeaseSeconds: cfg.PubSub.LeaseSeconds,
	}, log, m)
	if !hubs.Enabled() {
		log.Warn("pubsub.callbackurl not set, channel subscriptions will not receive pushes")
	}

	var enqueuer service.SummaryEnqueuer
	if cfg.Redis.URL != "" {
		qc, err := queue.NewClient(cfg.Redis.URL, cfg.Worker.MaxRetry, 0, log)
		if err != nil {
			log.Warn("failed to initialize queue client, pushed videos will not be summarized", zap.Error(err))
		} else {
			defer qc.Close()
			enqueuer = qc
			log.Info("queue client initialized, pushed videos will be summarized in the background")
		}
	}

	notifications := service.NewNotificationService(channelSubRepo, notificationRepo, hubs, enqueuer, publisher, cfg.Summary.Language, log, m)
	subscriptions := service.NewSubscriptionService(channelSubRepo, hubs, log)

	h := handler.Handlers{
		Transcript:    handler.NewTranscriptHandler(transcripts, log),
		Summary:       summarizeHandler,
		Channels:      channelHandler,
		Push:          handler.NewPushHandler(notifications, validation.New(maxPushPayload, true), cfg.PubSub.Secret, log, m),
		Subscriptions: handler.NewSubscriptionHandler(subscriptions, log),
		Notifications: handler.NewNotificationHandler(notifications, log),
		Health:        handler.NewHealthHandler(pool, rabbitHealth),
	}
	if summarizer != nil {
		visparks := service.NewVisparkService(visparkRepo, notificationRepo, transcripts, summarizer, videos, cfg.Summary.Language, log, m)
		h.Vispark = handler.NewVisparkHandler(visparks, log)
	}
	if quotas != nil {
		h.Admin = handler.NewAdminHandler(quotas, hubRepo, log)
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwtsecret not set, user routes will reject all requests")
	}
	if len(cfg.Auth.APIKeys) == 0 {
		log.Warn("no API keys configured, admin routes will reject all requests")
	}

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(handler.RouterConfig{
		Logger:        log,
		Metrics:       m,
		AllowedOrigin: cfg.Server.AllowedOrigin,
		RateLimiter:   middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, 10*time.Minute),
		JWT:           middleware.NewJWTAuth(cfg.Auth.JWTSecret, log),
		APIKeys:       middleware.NewAPIKeyAuth(cfg.Auth.APIKeys, log),
	}, h)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
			if err := server.Close(); err != nil {
				log.Error("failed to close server", zap.Error(err))
			}
			return err
		}

		log.Info("server stopped gracefully")
		return nil
	}
}
