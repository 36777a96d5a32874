package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/service"
	"github.com/vispark/vispark-api/internal/validation"
	"github.com/vispark/vispark-api/pkg/logger"
)

// VisparkStore is the part of service.VisparkService the handler uses.
type VisparkStore interface {
	Create(ctx context.Context, req service.CreateVisparkRequest) (*models.Vispark, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Vispark, error)
	List(ctx context.Context, userID uuid.UUID, limit, offset int) (*service.VisparkList, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type createVisparkRequest struct {
	VideoID   string   `json:"videoId"`
	URL       string   `json:"url"`
	Summaries []string `json:"summaries"`
	Language  string   `json:"language"`
}

// VisparkHandler serves the vispark function: saved summaries.
type VisparkHandler struct {
	visparks VisparkStore
	logger   *zap.Logger
}

// NewVisparkHandler creates a VisparkHandler.
func NewVisparkHandler(visparks VisparkStore, log *zap.Logger) *VisparkHandler {
	return &VisparkHandler{visparks: visparks, logger: logger.OrNop(log)}
}

// Create handles POST /functions/v1/vispark.
func (h *VisparkHandler) Create(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	var req createVisparkRequest
	if err := bindJSON(c, &req); err != nil {
		sendError(c, h.logger, err)
		return
	}

	ref := req.VideoID
	if ref == "" {
		ref = req.URL
	}
	videoID, err := validation.ExtractVideoID(ref)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	v, err := h.visparks.Create(c.Request.Context(), service.CreateVisparkRequest{
		UserID:    userID,
		VideoID:   videoID,
		Summaries: req.Summaries,
		Language:  req.Language,
	})
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, v)
}

// List handles GET /functions/v1/vispark.
func (h *VisparkHandler) List(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	page, err := h.visparks.List(c.Request.Context(), userID,
		queryInt(c, "limit", validation.DefaultLimit),
		queryInt(c, "offset", 0),
	)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// Get handles GET /functions/v1/vispark/:id.
func (h *VisparkHandler) Get(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	v, err := h.visparks.Get(c.Request.Context(), userID, id)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

// Delete handles DELETE /functions/v1/vispark/:id.
func (h *VisparkHandler) Delete(c *gin.Context) {
	userID, err := currentUser(c)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	if err := h.visparks.Delete(c.Request.Context(), userID, id); err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
