// Package quota tracks YouTube Data API unit consumption against the daily limit.
package quota

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/pkg/logger"
)

// YouTube Data API v3 unit costs.
const (
	CostSearchList        = 100
	CostChannelsList      = 1
	CostPlaylistItemsList = 1
	CostVideosList        = 1
)

// Store is the persistence the manager needs. repository.QuotaRepository satisfies it.
type Store interface {
	GetTodaysQuota(ctx context.Context) (*models.QuotaInfo, error)
	IncrementQuota(ctx context.Context, quotaCost int, operationType string) error
	GetQuotaHistory(ctx context.Context, days int) ([]*models.APIQuotaUsage, error)
}

// Manager handles YouTube API quota management
type Manager struct {
	repo             Store
	logger           *zap.Logger
	dailyLimit       int
	thresholdPercent int // Stop calling the API when this % of quota is used
}

// NewManager creates a new quota manager
func NewManager(repo Store, dailyLimit int, thresholdPercent int, log *zap.Logger) *Manager {
	if dailyLimit <= 0 {
		dailyLimit = 10000 // YouTube API v3 default
	}
	if thresholdPercent <= 0 || thresholdPercent > 100 {
		thresholdPercent = 90
	}

	return &Manager{
		repo:             repo,
		logger:           logger.OrNop(log),
		dailyLimit:       dailyLimit,
		thresholdPercent: thresholdPercent,
	}
}

func (m *Manager) threshold() int {
	return (m.dailyLimit * m.thresholdPercent) / 100
}

// CheckQuotaAvailable checks if there's enough quota to proceed
// Returns true if quota is available, false otherwise
func (m *Manager) CheckQuotaAvailable(ctx context.Context, requiredQuota int) (bool, *models.QuotaInfo, error) {
	info, err := m.repo.GetTodaysQuota(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("failed to get quota info: %w", err)
	}

	thresholdQuota := m.threshold()

	if info.QuotaUsed >= thresholdQuota {
		m.logger.Warn("quota threshold reached",
			zap.Int("used", info.QuotaUsed),
			zap.Int("limit", m.dailyLimit),
			zap.Int("threshold", thresholdQuota))
		return false, info, nil
	}

	if info.QuotaUsed+requiredQuota > thresholdQuota {
		m.logger.Warn("not enough quota for operation",
			zap.Int("required", requiredQuota),
			zap.Int("used", info.QuotaUsed),
			zap.Int("threshold", thresholdQuota))
		return false, info, nil
	}

	return true, info, nil
}

// Reserve returns errs.ErrQuotaExceeded when an operation costing
// requiredQuota would cross the threshold.
func (m *Manager) Reserve(ctx context.Context, requiredQuota int, operationType string) error {
	ok, _, err := m.CheckQuotaAvailable(ctx, requiredQuota)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s needs %d units", errs.ErrQuotaExceeded, operationType, requiredQuota)
	}
	return nil
}

// RecordQuotaUsage records API quota usage
func (m *Manager) RecordQuotaUsage(ctx context.Context, quotaCost int, operationType string) error {
	if err := m.repo.IncrementQuota(ctx, quotaCost, operationType); err != nil {
		return fmt.Errorf("failed to record quota usage: %w", err)
	}

	m.logger.Debug("quota used",
		zap.Int("cost", quotaCost),
		zap.String("operation", operationType))

	return nil
}

// Status summarizes today's usage for the admin API.
type Status struct {
	models.QuotaInfo
	DailyLimit       int                     `json:"daily_limit"`
	ThresholdPercent int                     `json:"threshold_percent"`
	UsagePercent     float64                 `json:"usage_percent"`
	BeforeThreshold  int                     `json:"remaining_before_threshold"`
	Exhausted        bool                    `json:"exhausted"`
	History          []*models.APIQuotaUsage `json:"history,omitempty"`
}

// GetStatus returns today's usage and the last days of history.
func (m *Manager) GetStatus(ctx context.Context, historyDays int) (*Status, error) {
	info, err := m.repo.GetTodaysQuota(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota info: %w", err)
	}

	st := &Status{
		QuotaInfo:        *info,
		DailyLimit:       m.dailyLimit,
		ThresholdPercent: m.thresholdPercent,
		UsagePercent:     float64(info.QuotaUsed) / float64(m.dailyLimit) * 100,
		BeforeThreshold:  m.remainingBeforeThreshold(info),
		Exhausted:        info.QuotaUsed >= m.threshold(),
	}

	if historyDays > 0 {
		history, err := m.repo.GetQuotaHistory(ctx, historyDays)
		if err != nil {
			return nil, fmt.Errorf("failed to get quota history: %w", err)
		}
		st.History = history
	}

	return st, nil
}

// IsQuotaExhausted checks if quota threshold has been reached
func (m *Manager) IsQuotaExhausted(ctx context.Context) (bool, error) {
	info, err := m.repo.GetTodaysQuota(ctx)
	if err != nil {
		return false, err
	}

	return info.QuotaUsed >= m.threshold(), nil
}

// remainingBeforeThreshold returns how many units may still be spent today.
func (m *Manager) remainingBeforeThreshold(info *models.QuotaInfo) int {
	return max(m.threshold()-info.QuotaUsed, 0)
}
