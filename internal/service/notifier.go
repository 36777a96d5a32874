package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/db/repository"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/internal/parser"
	"github.com/vispark/vispark-api/internal/validation"
	"github.com/vispark/vispark-api/pkg/logger"
)

// Push results reported to metrics.
const (
	PushAccepted     = "accepted"
	PushDeleted      = "deleted"
	PushNoSubscriber = "no_subscribers"
	PushDuplicate    = "duplicate"
	PushInvalid      = "invalid"
	PushBadSignature = "bad_signature"
	PushFailed       = "failed"
)

// SummaryEnqueuer schedules a background summary for a pushed video.
// *queue.Client satisfies it.
type SummaryEnqueuer interface {
	EnqueueSummarize(ctx context.Context, videoID, channelID, title, language string) error
}

// Verifier records hub verification requests. *HubManager satisfies it.
type Verifier interface {
	HandleVerification(ctx context.Context, mode, topic string, leaseSeconds int) error
}

// PushResult describes what a push notification produced.
type PushResult struct {
	VideoID       string `json:"videoId"`
	ChannelID     string `json:"channelId"`
	Deleted       bool   `json:"deleted"`
	Notifications int    `json:"notifications"`
	Enqueued      bool   `json:"enqueued"`
}

// NotificationService turns PubSubHubbub pushes into per-user notifications.
type NotificationService struct {
	subs          repository.ChannelSubscriptionRepository
	notifications repository.NotificationRepository
	verifier      Verifier
	enqueuer      SummaryEnqueuer
	publisher     EventPublisher
	language      string
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// NewNotificationService creates a NotificationService. enqueuer and
// publisher may be nil.
func NewNotificationService(
	subs repository.ChannelSubscriptionRepository,
	notifications repository.NotificationRepository,
	verifier Verifier,
	enqueuer SummaryEnqueuer,
	publisher EventPublisher,
	language string,
	log *zap.Logger,
	m *metrics.Metrics,
) *NotificationService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &NotificationService{
		subs:          subs,
		notifications: notifications,
		verifier:      verifier,
		enqueuer:      enqueuer,
		publisher:     publisher,
		language:      language,
		logger:        logger.OrNop(log),
		metrics:       m,
	}
}

// HandlePush processes one Atom notification body.
func (s *NotificationService) HandlePush(ctx context.Context, body string) (*PushResult, error) {
	video, err := parser.ParseAtomFeed(body)
	if err != nil {
		s.metrics.Push(PushInvalid)
		return nil, err
	}

	res := &PushResult{VideoID: video.VideoID, ChannelID: video.ChannelID}

	if video.IsDeleted {
		s.logger.Info("video deleted notification",
			zap.String("video_id", video.VideoID),
			zap.String("channel_id", video.ChannelID),
		)
		s.metrics.Push(PushDeleted)
		res.Deleted = true
		return res, nil
	}

	userIDs, err := s.subs.ListUserIDsByChannel(ctx, video.ChannelID)
	if err != nil {
		s.metrics.Push(PushFailed)
		return nil, fmt.Errorf("list channel subscribers: %w", err)
	}
	if len(userIDs) == 0 {
		s.logger.Info("push for channel without subscribers",
			zap.String("channel_id", video.ChannelID),
			zap.String("video_id", video.VideoID),
		)
		s.metrics.Push(PushNoSubscriber)
		return res, nil
	}

	for _, userID := range userIDs {
		n := models.NewVideoNotification(userID, video.ChannelID, video.VideoID, video.Title, video.PublishedAt)
		created, err := s.notifications.CreateIfAbsent(ctx, n)
		if err != nil {
			s.metrics.Push(PushFailed)
			return nil, fmt.Errorf("create notification for %s: %w", userID, err)
		}
		if created {
			res.Notifications++
		}
	}

	// A re-delivered push creates nothing new. The summary is enqueued again
	// while notifications for the video are still unsummarized; the queue
	// drops duplicate tasks.
	if res.Notifications == 0 {
		if err := s.resumeSummary(ctx, video, res); err != nil {
			s.metrics.Push(PushFailed)
			return nil, err
		}
		s.logger.Debug("push already recorded",
			zap.String("video_id", video.VideoID),
			zap.Bool("enqueued", res.Enqueued),
		)
		s.metrics.Push(PushDuplicate)
		return res, nil
	}

	event := NewEvent(EventNotificationCreated, video.ChannelID, video.VideoID, video.Title, res.Notifications)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish notification event",
			zap.String("video_id", video.VideoID),
			zap.Error(err),
		)
	}

	// Failing the push makes the hub redeliver it, which lands in resumeSummary.
	if err := s.enqueue(ctx, video, res); err != nil {
		s.metrics.Push(PushFailed)
		return nil, err
	}

	s.metrics.Push(PushAccepted)
	s.logger.Info("push notification processed",
		zap.String("video_id", video.VideoID),
		zap.String("channel_id", video.ChannelID),
		zap.Int("notifications", res.Notifications),
		zap.Bool("enqueued", res.Enqueued),
	)
	return res, nil
}

func (s *NotificationService) resumeSummary(ctx context.Context, video *parser.VideoData, res *PushResult) error {
	if s.enqueuer == nil {
		return nil
	}
	pending, err := s.notifications.ListPendingByVideo(ctx, video.VideoID)
	if err != nil {
		return fmt.Errorf("list pending notifications: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	return s.enqueue(ctx, video, res)
}

func (s *NotificationService) enqueue(ctx context.Context, video *parser.VideoData, res *PushResult) error {
	if s.enqueuer == nil {
		return nil
	}
	if err := s.enqueuer.EnqueueSummarize(ctx, video.VideoID, video.ChannelID, video.Title, s.language); err != nil {
		s.logger.Error("failed to enqueue summary",
			zap.String("video_id", video.VideoID),
			zap.Error(err),
		)
		return fmt.Errorf("enqueue summary for %s: %w", video.VideoID, err)
	}
	res.Enqueued = true
	return nil
}

// Verify records a hub verification for topic. Without a verifier every
// topic is accepted.
func (s *NotificationService) Verify(ctx context.Context, mode, topic string, leaseSeconds int) error {
	if s.verifier == nil {
		return nil
	}
	return s.verifier.HandleVerification(ctx, mode, topic, leaseSeconds)
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unsummarizedOnly bool, limit, offset int) ([]*models.VideoNotification, error) {
	limit, offset = validation.Pagination(limit, offset)
	items, err := s.notifications.ListByUser(ctx, userID, unsummarizedOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.VideoNotification{}
	}
	return items, nil
}

// SetSummaryGenerated flips the summary flag on one of the user's notifications.
func (s *NotificationService) SetSummaryGenerated(ctx context.Context, userID uuid.UUID, id int64, generated bool) (*models.VideoNotification, error) {
	return s.notifications.SetSummaryGenerated(ctx, userID, id, generated)
}
