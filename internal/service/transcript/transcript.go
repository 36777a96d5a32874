// Package transcript fetches video transcripts from Supadata with a fallback
// to the public YouTube caption track.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/pkg/logger"
)

// Transcript is the text of a video's captions.
type Transcript struct {
	VideoID  string `json:"videoId"`
	Language string `json:"language"`
	Text     string `json:"transcript"`
	Source   string `json:"source"`
}

// Source is one transcript backend.
type Source interface {
	Name() string
	Fetch(ctx context.Context, videoID, language string) (*Transcript, error)
}

// Service tries each source in order and returns the first non-empty transcript.
type Service struct {
	sources  []Source
	maxChars int
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewService builds a Service. maxChars <= 0 disables truncation.
func NewService(sources []Source, maxChars int, log *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		sources:  sources,
		maxChars: maxChars,
		logger:   logger.OrNop(log),
		metrics:  m,
	}
}

// Fetch returns the transcript of videoID, truncated to the configured maximum.
func (s *Service) Fetch(ctx context.Context, videoID, language string) (*Transcript, error) {
	if videoID == "" {
		return nil, fmt.Errorf("%w: video id is required", errs.ErrInvalidInput)
	}
	if len(s.sources) == 0 {
		return nil, fmt.Errorf("%w: no transcript source configured", errs.ErrMisconfigured)
	}

	var lastErr error
	for _, src := range s.sources {
		t, err := src.Fetch(ctx, videoID, language)
		s.metrics.Upstream(src.Name(), "transcript", err)
		if err == nil && strings.TrimSpace(t.Text) == "" {
			err = fmt.Errorf("%w: %s returned an empty transcript", errs.ErrNotFound, src.Name())
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("transcript source failed",
				zap.String("source", src.Name()),
				zap.String("video_id", videoID),
				zap.Error(err),
			)
			lastErr = err
			continue
		}

		t.VideoID = videoID
		t.Text = Truncate(strings.TrimSpace(t.Text), s.maxChars)
		t.Source = src.Name()
		s.logger.Debug("transcript fetched",
			zap.String("source", src.Name()),
			zap.String("video_id", videoID),
			zap.Int("chars", len(t.Text)),
		)
		return t, nil
	}

	return nil, lastErr
}

// FetchTranscript returns only the transcript text.
func (s *Service) FetchTranscript(ctx context.Context, videoID, language string) (string, error) {
	t, err := s.Fetch(ctx, videoID, language)
	if err != nil {
		return "", err
	}
	return t.Text, nil
}

// Truncate cuts text to at most maxChars runes, preferring a word boundary.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	runes := []rune(text)[:maxChars]
	cut := string(runes)
	if i := strings.LastIndexAny(cut, " \n\t"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

// IsNoTranscript reports whether err means the video has no usable captions.
func IsNoTranscript(err error) bool {
	return errors.Is(err, errs.ErrNotFound)
}
