// Package summary turns transcripts into bullet summaries with an
// OpenAI-compatible chat completions API.
package summary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/ssestream"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/internal/pipeline"
	"github.com/vispark/vispark-api/pkg/logger"
)

// Summary is a non-streamed result.
type Summary struct {
	Text      string   `json:"summary"`
	Summaries []string `json:"summaries"`
}

// Config configures an OpenAI summarizer.
type Config struct {
	// Provider labels metrics and logs ("openai", "compute").
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// Summarizer produces bullet summaries both in one shot and as a stream.
type Summarizer interface {
	pipeline.SummaryStreamer
	Summarize(ctx context.Context, req pipeline.SummaryRequest) (*Summary, error)
}

// OpenAI is a Summarizer backed by openai-go.
type OpenAI struct {
	client   openai.Client
	provider string
	model    string
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

var _ Summarizer = (*OpenAI)(nil)

// NewOpenAI creates a summarizer. Extra request options are appended after
// the ones derived from cfg.
func NewOpenAI(cfg Config, log *zap.Logger, m *metrics.Metrics, opts ...option.RequestOption) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s api key is not set", errs.ErrMisconfigured, providerName(cfg.Provider))
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: %s model is not set", errs.ErrMisconfigured, providerName(cfg.Provider))
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(1)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &OpenAI{
		client:   openai.NewClient(reqOpts...),
		provider: providerName(cfg.Provider),
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		logger:   logger.OrNop(log),
		metrics:  m,
	}, nil
}

func providerName(p string) string {
	if p == "" {
		return "openai"
	}
	return p
}

func (s *OpenAI) params(req pipeline.SummaryRequest) (openai.ChatCompletionNewParams, error) {
	if strings.TrimSpace(req.Transcript) == "" {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("%w: transcript is required", errs.ErrInvalidInput)
	}
	messages, err := BuildMessages(req)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(s.model),
		Messages:    messages,
		Temperature: openai.Float(0.3),
	}, nil
}

// Summarize requests a complete summary in one call.
func (s *OpenAI) Summarize(ctx context.Context, req pipeline.SummaryRequest) (*Summary, error) {
	params, err := s.params(req)
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = mapError(s.provider, err)
		s.metrics.Summary(s.provider, err)
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		err = fmt.Errorf("%w: %s returned no content", errs.ErrUpstream, s.provider)
		s.metrics.Summary(s.provider, err)
		return nil, err
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	s.metrics.Summary(s.provider, nil)
	s.logger.Info("summary generated",
		zap.String("provider", s.provider),
		zap.String("video_id", req.VideoID),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Summary{Text: text, Summaries: pipeline.ParseBullets(text)}, nil
}

// StreamSummary starts a streamed completion. The returned stream yields
// delta chunks followed by one done chunk carrying the parsed bullets.
func (s *OpenAI) StreamSummary(ctx context.Context, req pipeline.SummaryRequest) (pipeline.Stream, error) {
	params, err := s.params(req)
	if err != nil {
		return nil, err
	}

	var cancel context.CancelFunc = func() {}
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}

	stream := s.client.Chat.Completions.NewStreaming(ctx, params)
	return &chunkStream{
		src:      stream,
		cancel:   cancel,
		provider: s.provider,
		metrics:  s.metrics,
	}, nil
}

type chunkStream struct {
	src      *ssestream.Stream[openai.ChatCompletionChunk]
	cancel   context.CancelFunc
	provider string
	metrics  *metrics.Metrics

	text     strings.Builder
	cur      pipeline.Chunk
	err      error
	finished bool
}

func (c *chunkStream) Next() bool {
	if c.finished {
		return false
	}

	for c.src.Next() {
		chunk := c.src.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		c.text.WriteString(delta)
		c.cur = pipeline.Delta(delta)
		return true
	}

	c.finished = true
	if err := c.src.Err(); err != nil {
		c.err = mapError(c.provider, err)
		c.metrics.Summary(c.provider, c.err)
		return false
	}

	text := strings.TrimSpace(c.text.String())
	if text == "" {
		c.err = fmt.Errorf("%w: %s returned no content", errs.ErrUpstream, c.provider)
		c.metrics.Summary(c.provider, c.err)
		return false
	}

	c.metrics.Summary(c.provider, nil)
	c.cur = pipeline.Done(pipeline.ParseBullets(text))
	return true
}

func (c *chunkStream) Chunk() pipeline.Chunk { return c.cur }

func (c *chunkStream) Err() error { return c.err }

func (c *chunkStream) Close() error {
	defer c.cancel()
	return c.src.Close()
}

// mapError converts SDK errors into the shared sentinels.
func mapError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s timed out", errs.ErrUpstream, provider)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s rejected credentials", errs.ErrMisconfigured, provider)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s: %v", errs.ErrRateLimited, provider, apiErr.Message)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %s: %v", errs.ErrInvalidInput, provider, apiErr.Message)
		}
		return fmt.Errorf("%w: %s status %d: %v", errs.ErrUpstream, provider, apiErr.StatusCode, apiErr.Message)
	}

	return fmt.Errorf("%w: %s: %v", errs.ErrUpstream, provider, err)
}
