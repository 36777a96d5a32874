package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/vispark/vispark-api/internal/errs"
)

// CaptionClient is the part of the kkdai/youtube client the caption source uses.
type CaptionClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetTranscriptCtx(ctx context.Context, video *youtube.Video, lang string) (youtube.VideoTranscript, error)
}

// Captions reads the public caption track of a video.
type Captions struct {
	client CaptionClient
}

// NewCaptions creates a caption source. A nil client uses the default kkdai client.
func NewCaptions(client CaptionClient) *Captions {
	if client == nil {
		client = &youtube.Client{}
	}
	return &Captions{client: client}
}

func (c *Captions) Name() string { return "youtube-captions" }

func (c *Captions) Fetch(ctx context.Context, videoID, language string) (*Transcript, error) {
	video, err := c.client.GetVideoContext(ctx, videoID)
	if err != nil {
		if errors.Is(err, youtube.ErrVideoPrivate) || errors.Is(err, youtube.ErrNotPlayableInEmbed) {
			return nil, fmt.Errorf("%w: video %s is not accessible", errs.ErrNotFound, videoID)
		}
		return nil, fmt.Errorf("%w: load video: %v", errs.ErrUpstream, err)
	}

	lang := language
	if lang == "" {
		lang = "en"
	}

	segments, err := c.client.GetTranscriptCtx(ctx, video, lang)
	if err != nil {
		if errors.Is(err, youtube.ErrTranscriptDisabled) {
			return nil, fmt.Errorf("%w: captions disabled for %s", errs.ErrNotFound, videoID)
		}
		return nil, fmt.Errorf("%w: load captions: %v", errs.ErrUpstream, err)
	}

	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return &Transcript{Language: lang, Text: strings.Join(parts, " ")}, nil
}
