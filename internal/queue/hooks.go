package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vispark/vispark-api/pkg/logger"
)

// SummaryCallback is called after a background summary saved rows for
// written subscribers.
type SummaryCallback func(ctx context.Context, videoID, channelID, title string, written int) error

// CallbackManager manages summary callbacks
type CallbackManager struct {
	callbacks []SummaryCallback
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewCallbackManager creates a new callback manager
func NewCallbackManager(log *zap.Logger) *CallbackManager {
	return &CallbackManager{
		callbacks: make([]SummaryCallback, 0),
		logger:    logger.OrNop(log),
	}
}

// RegisterCallback registers a new callback to be called after a summary
func (m *CallbackManager) RegisterCallback(cb SummaryCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// TriggerCallbacks executes all registered callbacks in order. A failing
// callback is logged and does not stop the others.
func (m *CallbackManager) TriggerCallbacks(ctx context.Context, videoID, channelID, title string, written int) {
	m.mu.RLock()
	callbacks := make([]SummaryCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.RUnlock()

	for i, cb := range callbacks {
		if err := cb(ctx, videoID, channelID, title, written); err != nil {
			m.logger.Warn("summary callback failed",
				zap.Int("callback", i),
				zap.String("video_id", videoID),
				zap.Error(err),
			)
		}
	}
}

// CallbackCount returns the number of registered callbacks
func (m *CallbackManager) CallbackCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.callbacks)
}
