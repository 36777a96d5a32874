package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/bootstrap"
	"github.com/vispark/vispark-api/internal/config"
	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/db/repository"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/internal/service"
	"github.com/vispark/vispark-api/pkg/logger"
)

// renewalWindow is how far ahead of expiry a lease is renewed.
const renewalWindow = 24 * time.Hour

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
	if cfg.PubSub.CallbackURL == "" {
		log.Fatal("pubsub.callbackurl is required for lease renewal (VISPARK_PUBSUB_CALLBACKURL)")
	}

	log.Info("subscription renewal service starting",
		zap.Duration("renewal_interval", cfg.PubSub.RenewalInterval),
		zap.Int("batch_size", cfg.PubSub.RenewalBatch),
	)

	ctx := context.Background()
	pool, err := bootstrap.Database(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer pool.Close()

	log.Info("database connection established")

	m := metrics.New()
	hubRepo := repository.NewHubSubscriptionRepository(pool)
	hubs := service.NewHubManager(hubRepo, service.NewPubSubHubService(bootstrap.HTTPClient(), log, m), service.HubConfig{
		HubURL:       cfg.PubSub.HubURL,
		CallbackURL:  cfg.PubSub.CallbackURL,
		Secret:       cfg.PubSub.Secret,
		LeaseSeconds: cfg.PubSub.LeaseSeconds,
	}, log, m)

	renewalService := &RenewalService{
		leases:       hubRepo,
		renewer:      hubs,
		logger:       log,
		batchSize:    cfg.PubSub.RenewalBatch,
		window:       renewalWindow,
		pendingAfter: service.PendingRetryAfter,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.PubSub.RenewalInterval)
	defer ticker.Stop()

	log.Info("running initial renewal check")
	if err := renewalService.RenewExpiring(ctx); err != nil {
		log.Error("initial renewal check failed", zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			log.Info("running scheduled renewal check")
			if err := renewalService.RenewExpiring(ctx); err != nil {
				log.Error("scheduled renewal check failed", zap.Error(err))
			}
		case sig := <-shutdown:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			log.Info("renewal service stopped gracefully")
			return
		}
	}
}

type renewableLister interface {
	GetRenewable(ctx context.Context, within, pendingAfter time.Duration, limit int) ([]*models.HubSubscription, error)
}

type leaseRenewer interface {
	Renew(ctx context.Context, sub *models.HubSubscription) error
}

// RenewalService renews hub leases before they lapse and retries leases the
// hub rejected or never verified. Unsubscribed leases are not touched.
type RenewalService struct {
	leases       renewableLister
	renewer      leaseRenewer
	logger       *zap.Logger
	batchSize    int
	window       time.Duration
	pendingAfter time.Duration
}

// RenewExpiring renews every renewable lease. Individual failures are logged
// and counted; only the listing error is returned.
func (s *RenewalService) RenewExpiring(ctx context.Context) error {
	subscriptions, err := s.leases.GetRenewable(ctx, s.window, s.pendingAfter, s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get renewable subscriptions: %w", err)
	}

	if len(subscriptions) == 0 {
		s.logger.Info("no subscriptions need renewal")
		return nil
	}

	s.logger.Info("found subscriptions to renew", zap.Int("count", len(subscriptions)))

	successCount := 0
	failureCount := 0

	for _, sub := range subscriptions {
		if err := s.renewer.Renew(ctx, sub); err != nil {
			s.logger.Error("failed to renew subscription",
				zap.Int64("subscription_id", sub.ID),
				zap.String("channel_id", sub.ChannelID),
				zap.String("status", sub.Status),
				zap.Error(err),
			)
			failureCount++
			continue
		}
		s.logger.Info("successfully renewed subscription",
			zap.Int64("subscription_id", sub.ID),
			zap.String("channel_id", sub.ChannelID),
			zap.String("status", sub.Status),
			zap.Time("new_expires_at", sub.ExpiresAt),
		)
		successCount++
	}

	s.logger.Info("renewal batch completed",
		zap.Int("total", len(subscriptions)),
		zap.Int("successful", successCount),
		zap.Int("failed", failureCount),
	)

	return nil
}
