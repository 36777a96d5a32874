package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/db"
	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/db/repository"
	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/validation"
	"github.com/vispark/vispark-api/pkg/logger"
)

// SubscribeChannelRequest is a user's request to follow a channel.
type SubscribeChannelRequest struct {
	ChannelID           string `json:"channelId"`
	ChannelTitle        string `json:"channelTitle"`
	ChannelThumbnailURL string `json:"channelThumbnailUrl"`
}

// HubLeases is the part of HubManager the subscription service needs.
type HubLeases interface {
	Ensure(ctx context.Context, channelID string) (*models.HubSubscription, error)
	Release(ctx context.Context, channelID string) error
}

// SubscriptionService manages users' channel subscriptions and keeps the
// PubSubHubbub lease in step: the first subscriber creates it, the last one
// to leave releases it.
type SubscriptionService struct {
	subs   repository.ChannelSubscriptionRepository
	leases HubLeases
	logger *zap.Logger
}

// NewSubscriptionService creates a SubscriptionService.
func NewSubscriptionService(subs repository.ChannelSubscriptionRepository, leases HubLeases, log *zap.Logger) *SubscriptionService {
	return &SubscriptionService{
		subs:   subs,
		leases: leases,
		logger: logger.OrNop(log),
	}
}

// Subscribe follows a channel for userID. A hub failure is logged but does
// not undo the subscription; the renewer retries failed leases.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID uuid.UUID, req SubscribeChannelRequest) (*models.ChannelSubscription, error) {
	channelID := strings.TrimSpace(req.ChannelID)
	if !validation.IsValidChannelID(channelID) {
		return nil, fmt.Errorf("%w: invalid channel id %q", errs.ErrInvalidInput, req.ChannelID)
	}

	sub := &models.ChannelSubscription{
		UserID:       userID,
		ChannelID:    channelID,
		ChannelTitle: strings.TrimSpace(req.ChannelTitle),
	}
	if thumb := strings.TrimSpace(req.ChannelThumbnailURL); thumb != "" {
		sub.ChannelThumbnailURL = &thumb
	}

	if err := s.subs.Create(ctx, sub); err != nil {
		if db.IsDuplicateKey(err) {
			return nil, fmt.Errorf("%w: already subscribed to %s", errs.ErrConflict, channelID)
		}
		return nil, err
	}

	if s.leases != nil {
		if _, err := s.leases.Ensure(ctx, channelID); err != nil {
			s.logger.Warn("hub subscribe failed",
				zap.String("channel_id", channelID),
				zap.Error(err),
			)
		}
	}

	return sub, nil
}

// Unsubscribe stops following a channel. When no subscriber is left the hub
// lease is released.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID uuid.UUID, channelID string) error {
	if !validation.IsValidChannelID(channelID) {
		return fmt.Errorf("%w: invalid channel id %q", errs.ErrInvalidInput, channelID)
	}

	if err := s.subs.Delete(ctx, userID, channelID); err != nil {
		return err
	}

	if s.leases == nil {
		return nil
	}

	remaining, err := s.subs.CountByChannel(ctx, channelID)
	if err != nil {
		s.logger.Warn("failed to count channel subscribers", zap.String("channel_id", channelID), zap.Error(err))
		return nil
	}
	if remaining == 0 {
		if err := s.leases.Release(ctx, channelID); err != nil {
			s.logger.Warn("hub unsubscribe failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	}
	return nil
}

// List returns the user's subscriptions, newest first.
func (s *SubscriptionService) List(ctx context.Context, userID uuid.UUID) ([]*models.ChannelSubscription, error) {
	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []*models.ChannelSubscription{}
	}
	return subs, nil
}
