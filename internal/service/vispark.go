// Package service holds the business logic behind the HTTP functions and the
// background worker.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/db"
	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/db/repository"
	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/internal/pipeline"
	"github.com/vispark/vispark-api/internal/validation"
	"github.com/vispark/vispark-api/pkg/logger"
)

// VideoLookup fetches YouTube metadata for a video. *youtube.Client satisfies it.
type VideoLookup interface {
	VideoMetadata(ctx context.Context, videoID string) (*models.VideoMetadata, error)
}

// CreateVisparkRequest asks for a saved summary. Without Summaries the full
// transcript and summary pipeline runs server-side.
type CreateVisparkRequest struct {
	UserID    uuid.UUID
	VideoID   string
	Summaries []string
	Language  string
}

// VisparkList is one page of a user's saved summaries.
type VisparkList struct {
	Items  []*models.Vispark `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// VisparkService creates and reads saved summaries.
type VisparkService struct {
	visparks      repository.VisparkRepository
	notifications repository.NotificationRepository
	transcripts   pipeline.TranscriptFetcher
	summarizer    pipeline.SummaryStreamer
	videos        VideoLookup
	language      string
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// NewVisparkService creates a VisparkService. videos may be nil, in which
// case rows are stored without metadata.
func NewVisparkService(
	visparks repository.VisparkRepository,
	notifications repository.NotificationRepository,
	transcripts pipeline.TranscriptFetcher,
	summarizer pipeline.SummaryStreamer,
	videos VideoLookup,
	defaultLanguage string,
	log *zap.Logger,
	m *metrics.Metrics,
) *VisparkService {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &VisparkService{
		visparks:      visparks,
		notifications: notifications,
		transcripts:   transcripts,
		summarizer:    summarizer,
		videos:        videos,
		language:      defaultLanguage,
		logger:        logger.OrNop(log),
		metrics:       m,
	}
}

// Create stores a summary for the user. Given summaries are persisted as is;
// otherwise the video is summarized first.
func (s *VisparkService) Create(ctx context.Context, req CreateVisparkRequest) (*models.Vispark, error) {
	if req.UserID == uuid.Nil {
		return nil, errs.ErrUnauthenticated
	}
	if !validation.IsValidVideoID(req.VideoID) {
		return nil, fmt.Errorf("%w: invalid video id %q", errs.ErrInvalidInput, req.VideoID)
	}

	summaries := cleanSummaries(req.Summaries)
	if len(req.Summaries) > 0 && len(summaries) == 0 {
		return nil, fmt.Errorf("%w: summaries must not be blank", errs.ErrInvalidInput)
	}

	if len(summaries) > 0 {
		v := models.NewVispark(req.UserID, req.VideoID, summaries, s.metadata(ctx, req.VideoID))
		if err := s.save(ctx, v); err != nil {
			return nil, err
		}
		return v, nil
	}

	var saved *models.Vispark
	recorder := pipeline.RecorderFunc(func(ctx context.Context, res *pipeline.Result) error {
		v := models.NewVispark(req.UserID, res.VideoID, res.Summaries, s.metadata(ctx, res.VideoID))
		if err := s.save(ctx, v); err != nil {
			return err
		}
		saved = v
		return nil
	})

	p := pipeline.New(s.transcripts, s.summarizer, recorder, pipeline.WithLanguage(s.lang(req.Language)))
	if _, err := p.Run(ctx, req.VideoID); err != nil {
		s.logger.Warn("vispark pipeline failed",
			zap.String("video_id", req.VideoID),
			zap.String("user_id", req.UserID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	return saved, nil
}

// Get returns one of the user's saved summaries.
func (s *VisparkService) Get(ctx context.Context, userID, id uuid.UUID) (*models.Vispark, error) {
	return s.visparks.GetForUser(ctx, userID, id)
}

// List returns a page of the user's saved summaries, newest first.
func (s *VisparkService) List(ctx context.Context, userID uuid.UUID, limit, offset int) (*VisparkList, error) {
	limit, offset = validation.Pagination(limit, offset)

	items, total, err := s.visparks.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*models.Vispark{}
	}
	return &VisparkList{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Delete removes one of the user's saved summaries.
func (s *VisparkService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.visparks.DeleteForUser(ctx, userID, id)
}

// SummarizeForSubscribers runs the pipeline once for a pushed video and saves
// the result for every subscriber whose notification is still pending. It
// returns the number of rows written.
func (s *VisparkService) SummarizeForSubscribers(ctx context.Context, videoID, title, language string) (int, error) {
	pending, err := s.notifications.ListPendingByVideo(ctx, videoID)
	if err != nil {
		return 0, fmt.Errorf("list pending notifications: %w", err)
	}
	if len(pending) == 0 {
		s.logger.Debug("no pending notifications", zap.String("video_id", videoID))
		return 0, nil
	}

	p := pipeline.New(s.transcripts, s.summarizer, nil,
		pipeline.WithLanguage(s.lang(language)),
		pipeline.WithTitle(title),
	)
	res, err := p.Run(ctx, videoID)
	if err != nil {
		return 0, err
	}

	meta := s.metadata(ctx, videoID)

	written := 0
	for _, n := range pending {
		exists, err := s.visparks.ExistsForVideo(ctx, n.UserID, videoID)
		if err != nil {
			return written, err
		}
		if !exists {
			v := models.NewVispark(n.UserID, videoID, res.Summaries, meta)
			if err := s.visparks.Create(ctx, v); err != nil {
				return written, fmt.Errorf("save vispark for %s: %w", n.UserID, err)
			}
			written++
		}
		if err := s.notifications.MarkVideoSummarized(ctx, n.UserID, videoID); err != nil && !db.IsNotFound(err) {
			return written, err
		}
	}

	s.logger.Info("summarized pushed video",
		zap.String("video_id", videoID),
		zap.Int("subscribers", len(pending)),
		zap.Int("written", written),
	)
	return written, nil
}

func (s *VisparkService) save(ctx context.Context, v *models.Vispark) error {
	if err := s.visparks.Create(ctx, v); err != nil {
		return fmt.Errorf("save vispark: %w", err)
	}

	if s.notifications != nil {
		if err := s.notifications.MarkVideoSummarized(ctx, v.UserID, v.VideoID); err != nil && !db.IsNotFound(err) {
			s.logger.Warn("failed to flag notification as summarized",
				zap.String("video_id", v.VideoID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// metadata is best effort: a failed lookup stores the row without it.
func (s *VisparkService) metadata(ctx context.Context, videoID string) *models.VideoMetadata {
	if s.videos == nil {
		return nil
	}
	meta, err := s.videos.VideoMetadata(ctx, videoID)
	if err != nil {
		level := zap.WarnLevel
		if errors.Is(err, errs.ErrNotFound) {
			level = zap.InfoLevel
		}
		s.logger.Log(level, "video metadata unavailable", zap.String("video_id", videoID), zap.Error(err))
		return nil
	}
	return meta
}

func (s *VisparkService) lang(requested string) string {
	if requested != "" {
		return requested
	}
	return s.language
}

func cleanSummaries(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		if t := strings.TrimSpace(item); t != "" {
			out = append(out, t)
		}
	}
	return out
}
