package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/internal/pipeline"
	"github.com/vispark/vispark-api/pkg/logger"
)

// SummaryRunner summarizes a pushed video for its pending subscribers.
// *service.VisparkService satisfies it.
type SummaryRunner interface {
	SummarizeForSubscribers(ctx context.Context, videoID, title, language string) (int, error)
}

// SummaryHandler handles background summary tasks
type SummaryHandler struct {
	runner    SummaryRunner
	callbacks *CallbackManager
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewSummaryHandler creates a new summary task handler. callbacks may be nil.
func NewSummaryHandler(runner SummaryRunner, callbacks *CallbackManager, log *zap.Logger, m *metrics.Metrics) *SummaryHandler {
	if callbacks == nil {
		callbacks = NewCallbackManager(log)
	}
	return &SummaryHandler{
		runner:    runner,
		callbacks: callbacks,
		logger:    logger.OrNop(log),
		metrics:   m,
	}
}

// ProcessTask implements asynq.Handler
func (h *SummaryHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := UnmarshalSummarizeVideoPayload(task.Payload())
	if err != nil {
		h.metrics.Job(TypeSummarizeVideo, err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(zap.String("video_id", payload.VideoID))
	log.Info("processing summary task")

	written, err := h.runner.SummarizeForSubscribers(ctx, payload.VideoID, payload.Title, payload.Language)
	h.metrics.Job(TypeSummarizeVideo, err)
	if err != nil {
		if permanent(err) {
			log.Warn("summary task failed permanently", zap.Error(err))
			return fmt.Errorf("summarize %s: %v: %w", payload.VideoID, err, asynq.SkipRetry)
		}
		log.Error("summary task failed", zap.Error(err))
		return fmt.Errorf("summarize %s: %w", payload.VideoID, err)
	}

	if written > 0 {
		h.callbacks.TriggerCallbacks(ctx, payload.VideoID, payload.ChannelID, payload.Title, written)
	}

	log.Info("summary task completed", zap.Int("written", written))
	return nil
}

// permanent reports errors that a retry cannot fix. A missing transcript is
// retried since captions often appear some time after upload.
func permanent(err error) bool {
	var phaseErr *pipeline.PhaseError
	if errors.As(err, &phaseErr) && phaseErr.Phase == pipeline.PhaseTranscript && errors.Is(err, errs.ErrNotFound) {
		return false
	}
	return errors.Is(err, errs.ErrNotFound) ||
		errors.Is(err, errs.ErrInvalidInput) ||
		errors.Is(err, errs.ErrMisconfigured) ||
		errors.Is(err, errs.ErrQuotaExceeded)
}

// Server wraps asynq server for processing tasks
type Server struct {
	asynqServer *asynq.Server
	mux         *asynq.ServeMux
	logger      *zap.Logger
}

// NewServer creates a new task processing server
func NewServer(redisAddr string, concurrency int, handler *SummaryHandler, log *zap.Logger) (*Server, error) {
	// Parse Redis URL to extract connection details (host, password, db, TLS)
	redisOpt, err := ParseRedisURL(redisAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	log = logger.OrNop(log)

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueDefault: 10,
			},
			Logger: log.Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Warn("task failed", zap.String("type", task.Type()), zap.Error(err))
			}),
		},
	)

	return &Server{
		asynqServer: srv,
		mux:         NewMux(handler),
		logger:      log,
	}, nil
}

// NewMux registers the task handlers.
func NewMux(handler *SummaryHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeSummarizeVideo, handler)
	return mux
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("starting task processing server")
	return s.asynqServer.Start(s.mux)
}

// Stop gracefully stops the server
func (s *Server) Stop() {
	s.logger.Info("shutting down task processing server")
	s.asynqServer.Shutdown()
}
