package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/service"
	"github.com/vispark/vispark-api/internal/service/quota"
	"github.com/vispark/vispark-api/internal/validation"
	"github.com/vispark/vispark-api/pkg/logger"
)

// ChannelSubscriptions manages a user's followed channels.
// *service.SubscriptionService satisfies it.
type ChannelSubscriptions interface {
	Subscribe(ctx context.Context, userID uuid.UUID, req service.SubscribeChannelRequest) (*models.ChannelSubscription, error)
	Unsubscribe(ctx context.Context, userID uuid.UUID, channelID string) error
	List(ctx context.Context, userID uuid.UUID) ([]*models.ChannelSubscription, error)
}

// SubscriptionHandler serves /api/v1/subscriptions.
type SubscriptionHandler struct {
	subs   ChannelSubscriptions
	logger *zap.Logger
}

// NewSubscriptionHandler creates a SubscriptionHandler.
func NewSubscriptionHandler(subs ChannelSubscriptions, log *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs, logger: logger.OrNop(log)}
}

// List handles GET /api/v1/subscriptions.
func (h *SubscriptionHandler) List(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	subs, err := h.subs.List(c.Request.Context(), userID)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscriptions": subs, "count": len(subs)})
}

// Create handles POST /api/v1/subscriptions.
func (h *SubscriptionHandler) Create(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	var req service.SubscribeChannelRequest
	if err := bindJSON(c, &req); err != nil {
		sendError(c, h.logger, err)
		return
	}

	sub, err := h.subs.Subscribe(c.Request.Context(), userID, req)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// Delete handles DELETE /api/v1/subscriptions/:channelId.
func (h *SubscriptionHandler) Delete(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	if err := h.subs.Unsubscribe(c.Request.Context(), userID, c.Param("channelId")); err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Notifications lists and updates a user's video notifications.
// *service.NotificationService satisfies it.
type Notifications interface {
	List(ctx context.Context, userID uuid.UUID, unsummarizedOnly bool, limit, offset int) ([]*models.VideoNotification, error)
	SetSummaryGenerated(ctx context.Context, userID uuid.UUID, id int64, generated bool) (*models.VideoNotification, error)
}

type updateNotificationRequest struct {
	SummaryGenerated *bool `json:"summaryGenerated"`
}

// NotificationHandler serves /api/v1/notifications.
type NotificationHandler struct {
	notifications Notifications
	logger        *zap.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(n Notifications, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: n, logger: logger.OrNop(log)}
}

// List handles GET /api/v1/notifications?unsummarized=bool.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}
	unsummarized, err := parseBool(c, "unsummarized")
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	limit, offset := validation.Pagination(queryInt(c, "limit", validation.DefaultLimit), queryInt(c, "offset", 0))
	items, err := h.notifications.List(c.Request.Context(), userID, unsummarized, limit, offset)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
		"pagination":    PaginatedResponse{Count: len(items), Limit: limit, Offset: offset},
	})
}

// Update handles PATCH /api/v1/notifications/:id.
func (h *NotificationHandler) Update(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		sendError(c, h.logger, fmt.Errorf("%w: invalid notification id", errs.ErrInvalidInput))
		return
	}

	var req updateNotificationRequest
	if err := bindJSON(c, &req); err != nil {
		sendError(c, h.logger, err)
		return
	}
	if req.SummaryGenerated == nil {
		sendError(c, h.logger, fmt.Errorf("%w: summaryGenerated is required", errs.ErrInvalidInput))
		return
	}

	n, err := h.notifications.SetSummaryGenerated(c.Request.Context(), userID, id, *req.SummaryGenerated)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, n)
}

// QuotaReporter reports YouTube API quota usage. *quota.Manager satisfies it.
type QuotaReporter interface {
	GetStatus(ctx context.Context, historyDays int) (*quota.Status, error)
}

// HubSubscriptionLister lists and looks up hub leases.
// repository.HubSubscriptionRepository satisfies it.
type HubSubscriptionLister interface {
	List(ctx context.Context, status string, limit, offset int) ([]*models.HubSubscription, error)
	GetByID(ctx context.Context, id int64) (*models.HubSubscription, error)
}

const maxHistoryDays = 90

// AdminHandler serves the API-key protected /api/v1/admin routes.
type AdminHandler struct {
	quota  QuotaReporter
	hubs   HubSubscriptionLister
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(q QuotaReporter, hubs HubSubscriptionLister, log *zap.Logger) *AdminHandler {
	return &AdminHandler{quota: q, hubs: hubs, logger: logger.OrNop(log)}
}

// Quota handles GET /api/v1/admin/quota?days=N.
func (h *AdminHandler) Quota(c *gin.Context) {
	days := queryInt(c, "days", 7)
	if days < 0 || days > maxHistoryDays {
		sendError(c, h.logger, fmt.Errorf("%w: days must be between 0 and %d", errs.ErrInvalidInput, maxHistoryDays))
		return
	}

	st, err := h.quota.GetStatus(c.Request.Context(), days)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, st)
}

// HubSubscriptions handles GET /api/v1/admin/hub-subscriptions?status=.
func (h *AdminHandler) HubSubscriptions(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", models.StatusPending, models.StatusActive, models.StatusExpired, models.StatusFailed:
	default:
		sendError(c, h.logger, fmt.Errorf("%w: unknown status %q", errs.ErrInvalidInput, status))
		return
	}

	limit, offset := validation.Pagination(queryInt(c, "limit", validation.DefaultLimit), queryInt(c, "offset", 0))
	subs, err := h.hubs.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}
	if subs == nil {
		subs = []*models.HubSubscription{}
	}

	c.JSON(http.StatusOK, gin.H{
		"subscriptions": subs,
		"pagination":    PaginatedResponse{Count: len(subs), Limit: limit, Offset: offset},
	})
}

// HubSubscription handles GET /api/v1/admin/hub-subscriptions/:id.
func (h *AdminHandler) HubSubscription(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		sendError(c, h.logger, fmt.Errorf("%w: invalid hub subscription id", errs.ErrInvalidInput))
		return
	}

	sub, err := h.hubs.GetByID(c.Request.Context(), id)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}
