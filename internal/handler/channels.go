package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/service/youtube"
	"github.com/vispark/vispark-api/internal/validation"
	"github.com/vispark/vispark-api/pkg/logger"
)

const (
	maxSearchResults = 50
	maxChannelVideos = 50
	maxQueryLength   = 200
)

// ChannelLookup searches and describes YouTube channels. *youtube.Client
// satisfies it.
type ChannelLookup interface {
	SearchChannels(ctx context.Context, query string, maxResults int64) ([]youtube.ChannelResult, error)
	ChannelDetails(ctx context.Context, channelRef string, maxVideos int64) (*youtube.ChannelDetails, error)
}

type channelSearchRequest struct {
	Query      string `json:"query"`
	MaxResults int64  `json:"maxResults"`
}

type channelDetailsRequest struct {
	ChannelID string `json:"channelId"`
	MaxVideos int64  `json:"maxVideos"`
}

// ChannelHandler serves the youtube-channel-search and
// youtube-channel-details functions.
type ChannelHandler struct {
	youtube    ChannelLookup
	maxResults int64
	logger     *zap.Logger
}

// NewChannelHandler creates a ChannelHandler. defaultMax applies when the
// caller does not ask for a count.
func NewChannelHandler(yt ChannelLookup, defaultMax int64, log *zap.Logger) *ChannelHandler {
	if defaultMax <= 0 {
		defaultMax = 10
	}
	return &ChannelHandler{youtube: yt, maxResults: defaultMax, logger: logger.OrNop(log)}
}

// Search handles POST /functions/v1/youtube-channel-search.
func (h *ChannelHandler) Search(c *gin.Context) {
	var req channelSearchRequest
	if err := bindJSON(c, &req); err != nil {
		sendError(c, h.logger, err)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		sendError(c, h.logger, fmt.Errorf("%w: query is required", errs.ErrInvalidInput))
		return
	}
	if len(query) > maxQueryLength {
		sendError(c, h.logger, fmt.Errorf("%w: query is longer than %d characters", errs.ErrInvalidInput, maxQueryLength))
		return
	}

	channels, err := h.youtube.SearchChannels(c.Request.Context(), query, clamp(req.MaxResults, h.maxResults, maxSearchResults))
	if err != nil {
		sendError(c, h.logger, err)
		return
	}
	if channels == nil {
		channels = []youtube.ChannelResult{}
	}

	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// Details handles POST /functions/v1/youtube-channel-details. channelId may
// be a UC id or an @handle.
func (h *ChannelHandler) Details(c *gin.Context) {
	var req channelDetailsRequest
	if err := bindJSON(c, &req); err != nil {
		sendError(c, h.logger, err)
		return
	}

	ref := strings.TrimSpace(req.ChannelID)
	if !validation.IsValidChannelRef(ref) {
		sendError(c, h.logger, fmt.Errorf("%w: invalid channelId %q", errs.ErrInvalidInput, req.ChannelID))
		return
	}

	details, err := h.youtube.ChannelDetails(c.Request.Context(), ref, clamp(req.MaxVideos, h.maxResults, maxChannelVideos))
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, details)
}
