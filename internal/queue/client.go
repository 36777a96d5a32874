package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/pkg/logger"
)

// Enqueuer is the subset of *asynq.Client used by Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client wraps asynq client for enqueueing tasks
type Client struct {
	asynqClient Enqueuer
	maxRetry    int
	timeout     time.Duration
	logger      *zap.Logger
}

// NewClient creates a new queue client
func NewClient(redisAddr string, maxRetry int, timeout time.Duration, log *zap.Logger) (*Client, error) {
	// Parse Redis URL to extract connection details (host, password, db, TLS)
	redisOpt, err := ParseRedisURL(redisAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return NewClientWith(asynq.NewClient(redisOpt), maxRetry, timeout, log), nil
}

// NewClientWith wraps an existing Enqueuer.
func NewClientWith(enq Enqueuer, maxRetry int, timeout time.Duration, log *zap.Logger) *Client {
	if maxRetry < 0 {
		maxRetry = 0
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		asynqClient: enq,
		maxRetry:    maxRetry,
		timeout:     timeout,
		logger:      logger.OrNop(log),
	}
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.asynqClient.Close()
}

// EnqueueSummarize enqueues a background summary for a pushed video. A task
// already queued for the same video is not an error.
func (c *Client) EnqueueSummarize(ctx context.Context, videoID, channelID, title, language string) error {
	payload, err := NewSummarizeVideoTask(videoID, channelID, title, language)
	if err != nil {
		return fmt.Errorf("failed to create task payload: %w", err)
	}

	payloadBytes, err := payload.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	task := asynq.NewTask(TypeSummarizeVideo, payloadBytes)

	info, err := c.asynqClient.EnqueueContext(ctx, task,
		asynq.TaskID(taskID(videoID)),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(c.timeout),
		asynq.Queue(QueueDefault),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.logger.Debug("summary task already queued", zap.String("video_id", videoID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	c.logger.Info("enqueued summary task",
		zap.String("video_id", videoID),
		zap.String("channel_id", channelID),
		zap.String("task_id", info.ID),
	)
	return nil
}
