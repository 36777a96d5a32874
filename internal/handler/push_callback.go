package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/internal/service"
	"github.com/vispark/vispark-api/internal/validation"
	"github.com/vispark/vispark-api/pkg/logger"
)

const signatureHeader = "X-Hub-Signature"

var errBadSignature = errors.New("signature verification failed")

// PushProcessor handles hub verifications and notifications.
// *service.NotificationService satisfies it.
type PushProcessor interface {
	Verify(ctx context.Context, mode, topic string, leaseSeconds int) error
	HandlePush(ctx context.Context, body string) (*service.PushResult, error)
}

// PushHandler serves the youtube-push-callback function.
type PushHandler struct {
	processor PushProcessor
	validator *validation.Validator
	secret    string
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewPushHandler creates a PushHandler. With an empty secret notifications
// are accepted unsigned.
func NewPushHandler(processor PushProcessor, validator *validation.Validator, secret string, log *zap.Logger, m *metrics.Metrics) *PushHandler {
	if validator == nil {
		validator = validation.New(0, false)
	}
	return &PushHandler{
		processor: processor,
		validator: validator,
		secret:    secret,
		logger:    logger.OrNop(log),
		metrics:   m,
	}
}

// Verify handles the hub's GET verification request and echoes hub.challenge.
func (h *PushHandler) Verify(c *gin.Context) {
	challenge := c.Query("hub.challenge")
	if challenge == "" {
		h.logger.Warn("verification request missing hub.challenge parameter")
		sendError(c, h.logger, fmt.Errorf("%w: missing hub.challenge parameter", errs.ErrInvalidInput))
		return
	}

	mode := c.Query("hub.mode")
	topic := c.Query("hub.topic")
	lease, _ := strconv.Atoi(c.Query("hub.lease_seconds"))

	h.logger.Info("subscription verification request",
		zap.String("hub.mode", mode),
		zap.String("hub.topic", topic),
		zap.Int("hub.lease_seconds", lease),
	)

	if err := h.processor.Verify(c.Request.Context(), mode, topic, lease); err != nil {
		h.logger.Warn("verification refused", zap.String("hub.topic", topic), zap.Error(err))
		sendError(c, h.logger, err)
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(challenge))
}

// Receive handles a POSTed Atom notification.
func (h *PushHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read request body", zap.Error(err))
		sendError(c, h.logger, fmt.Errorf("%w: failed to read request body", errs.ErrInvalidInput))
		return
	}

	if err := h.validator.ValidatePushBody(body); err != nil {
		h.metrics.Push(service.PushInvalid)
		sendError(c, h.logger, err)
		return
	}

	if h.secret != "" {
		if err := verifySignature(h.secret, c.GetHeader(signatureHeader), body); err != nil {
			h.logger.Warn("signature verification failed", zap.Error(err))
			h.metrics.Push(service.PushBadSignature)
			sendError(c, h.logger, fmt.Errorf("%w: %v", errs.ErrUnauthenticated, err))
			return
		}
	}

	res, err := h.processor.HandlePush(c.Request.Context(), string(body))
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// verifySignature checks an X-Hub-Signature header of the form
// "sha1=<hex hmac of body>".
func verifySignature(secret, header string, body []byte) error {
	if header == "" {
		return fmt.Errorf("%w: missing %s header", errBadSignature, signatureHeader)
	}
	expected, ok := strings.CutPrefix(header, "sha1=")
	if !ok {
		return fmt.Errorf("%w: signature must start with sha1=", errBadSignature)
	}

	computed := Sign(secret, body)
	if !hmac.Equal([]byte(computed), []byte(strings.ToLower(expected))) {
		return fmt.Errorf("%w: signature mismatch", errBadSignature)
	}
	return nil
}

// Sign returns the hex HMAC-SHA1 of body under secret, as a hub computes it.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
