package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/db"
	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/db/repository"
	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/pkg/logger"
)

// PendingRetryAfter is how long a pending lease waits for hub verification
// before it is subscribed again.
const PendingRetryAfter = time.Hour

// HubConfig holds the PubSubHubbub settings shared by every lease.
type HubConfig struct {
	HubURL       string
	CallbackURL  string
	Secret       string
	LeaseSeconds int
}

// HubManager keeps one PubSubHubbub lease per subscribed channel.
type HubManager struct {
	repo    repository.HubSubscriptionRepository
	hub     PubSubHub
	cfg     HubConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewHubManager creates a HubManager.
func NewHubManager(repo repository.HubSubscriptionRepository, hub PubSubHub, cfg HubConfig, log *zap.Logger, m *metrics.Metrics) *HubManager {
	if cfg.HubURL == "" {
		cfg.HubURL = models.DefaultHubURL
	}
	return &HubManager{
		repo:    repo,
		hub:     hub,
		cfg:     cfg,
		logger:  logger.OrNop(log),
		metrics: m,
	}
}

// Enabled reports whether a callback URL is configured.
func (m *HubManager) Enabled() bool {
	return m.cfg.CallbackURL != ""
}

// Ensure makes sure a lease exists for channelID, subscribing at the hub when
// there is none or the existing one lapsed. It returns nil, nil when push
// delivery is disabled.
func (m *HubManager) Ensure(ctx context.Context, channelID string) (*models.HubSubscription, error) {
	if !m.Enabled() {
		m.logger.Debug("push callback not configured, skipping hub subscribe", zap.String("channel_id", channelID))
		return nil, nil
	}

	sub, err := m.find(ctx, channelID)
	if err != nil {
		return nil, err
	}

	if sub != nil {
		switch {
		case sub.Status == models.StatusActive && !sub.IsExpired():
			return sub, nil
		case sub.Status == models.StatusPending && time.Since(sub.UpdatedAt) < PendingRetryAfter:
			return sub, nil
		}
	} else {
		sub = models.NewHubSubscription(channelID, m.cfg.CallbackURL, m.cfg.LeaseSeconds)
		sub.HubURL = m.cfg.HubURL
		if m.cfg.Secret != "" {
			secret := m.cfg.Secret
			sub.Secret = &secret
		}
		if err := m.repo.Create(ctx, sub); err != nil {
			return nil, fmt.Errorf("create hub subscription: %w", err)
		}
	}

	if err := m.subscribe(ctx, sub, false); err != nil {
		return sub, err
	}
	return sub, nil
}

// Release unsubscribes every lease for channelID and marks them expired so
// the renewer leaves them alone.
func (m *HubManager) Release(ctx context.Context, channelID string) error {
	subs, err := m.repo.GetByChannelID(ctx, channelID)
	if err != nil {
		return fmt.Errorf("get hub subscriptions: %w", err)
	}

	for _, sub := range subs {
		_, err := m.hub.Unsubscribe(ctx, m.request(sub))
		if err != nil {
			m.logger.Warn("hub unsubscribe failed",
				zap.Int64("subscription_id", sub.ID),
				zap.String("channel_id", channelID),
				zap.Error(err),
			)
			return err
		}
		sub.MarkExpired()
		if err := m.repo.Update(ctx, sub); err != nil {
			return fmt.Errorf("expire hub subscription: %w", err)
		}
		m.logger.Info("hub unsubscribe requested",
			zap.Int64("subscription_id", sub.ID),
			zap.String("channel_id", channelID),
		)
	}
	return nil
}

// Renew re-subscribes an existing lease. Active leases are extended on
// acceptance; failed and unverified ones go back to pending until the hub
// verifies them.
func (m *HubManager) Renew(ctx context.Context, sub *models.HubSubscription) error {
	err := m.subscribe(ctx, sub, sub.Status == models.StatusActive)
	m.metrics.Renewal(err)
	return err
}

// subscribe sends a subscribe request and persists the resulting status.
// Renewals are marked active on acceptance; first subscriptions stay
// pending until the hub verifies them.
func (m *HubManager) subscribe(ctx context.Context, sub *models.HubSubscription, renewal bool) error {
	resp, err := m.hub.Subscribe(ctx, m.request(sub))
	if err != nil {
		sub.MarkFailed()
		if updateErr := m.repo.Update(ctx, sub); updateErr != nil {
			m.logger.Error("failed to mark hub subscription as failed",
				zap.Int64("subscription_id", sub.ID),
				zap.Error(updateErr),
			)
		}
		return fmt.Errorf("hub subscription failed: %w", err)
	}

	switch {
	case !resp.Accepted:
		sub.MarkFailed()
	case renewal:
		sub.MarkActive()
		sub.UpdateExpiry(sub.LeaseSeconds)
	default:
		sub.Status = models.StatusPending
		sub.UpdatedAt = time.Now()
	}

	if err := m.repo.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to update hub subscription: %w", err)
	}
	return nil
}

// HandleVerification records a hub verification request for topic. It
// returns ErrNotFound when the topic is unknown so the caller can refuse it.
func (m *HubManager) HandleVerification(ctx context.Context, mode, topic string, leaseSeconds int) error {
	sub, err := m.repo.GetByTopic(ctx, topic)
	if err != nil {
		if db.IsNotFound(err) {
			return fmt.Errorf("%w: unknown topic %s", errs.ErrNotFound, topic)
		}
		return err
	}

	switch mode {
	case HubModeSubscribe:
		if leaseSeconds <= 0 {
			leaseSeconds = sub.LeaseSeconds
		}
		sub.MarkActive()
		sub.UpdateExpiry(leaseSeconds)
	case HubModeUnsubscribe:
		sub.MarkExpired()
	default:
		return fmt.Errorf("%w: unknown hub.mode %q", errs.ErrInvalidInput, mode)
	}

	if err := m.repo.Update(ctx, sub); err != nil {
		return fmt.Errorf("update hub subscription: %w", err)
	}

	m.logger.Info("hub verification recorded",
		zap.String("mode", mode),
		zap.String("channel_id", sub.ChannelID),
		zap.Int("lease_seconds", sub.LeaseSeconds),
	)
	return nil
}

func (m *HubManager) find(ctx context.Context, channelID string) (*models.HubSubscription, error) {
	subs, err := m.repo.GetByChannelID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("get hub subscriptions: %w", err)
	}
	for _, s := range subs {
		if s.CallbackURL == m.cfg.CallbackURL {
			return s, nil
		}
	}
	return nil, nil
}

func (m *HubManager) request(sub *models.HubSubscription) *SubscribeRequest {
	secret := sub.Secret
	if secret == nil && m.cfg.Secret != "" {
		s := m.cfg.Secret
		secret = &s
	}
	hubURL := sub.HubURL
	if hubURL == "" {
		hubURL = m.cfg.HubURL
	}
	return &SubscribeRequest{
		HubURL:       hubURL,
		TopicURL:     sub.TopicURL,
		CallbackURL:  sub.CallbackURL,
		LeaseSeconds: sub.LeaseSeconds,
		Secret:       secret,
	}
}
