package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/pipeline"
	"github.com/vispark/vispark-api/internal/service/summary"
	"github.com/vispark/vispark-api/internal/service/transcript"
	"github.com/vispark/vispark-api/internal/validation"
	"github.com/vispark/vispark-api/pkg/logger"
)

// TranscriptService fetches a video transcript. *transcript.Service satisfies it.
type TranscriptService interface {
	Fetch(ctx context.Context, videoID, language string) (*transcript.Transcript, error)
}

// Summarizer produces bullet summaries, whole or streamed.
// *summary.OpenAI and *compute.Service satisfy it.
type Summarizer interface {
	Summarize(ctx context.Context, req pipeline.SummaryRequest) (*summary.Summary, error)
	StreamSummary(ctx context.Context, req pipeline.SummaryRequest) (pipeline.Stream, error)
}

type transcriptRequest struct {
	VideoID  string `json:"videoId"`
	URL      string `json:"url"`
	Language string `json:"language"`
}

// TranscriptHandler serves the transcript function.
type TranscriptHandler struct {
	transcripts TranscriptService
	logger      *zap.Logger
}

// NewTranscriptHandler creates a TranscriptHandler.
func NewTranscriptHandler(transcripts TranscriptService, log *zap.Logger) *TranscriptHandler {
	return &TranscriptHandler{transcripts: transcripts, logger: logger.OrNop(log)}
}

// Fetch handles POST /functions/v1/transcript.
func (h *TranscriptHandler) Fetch(c *gin.Context) {
	var req transcriptRequest
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
	if !validation.IsValidLanguage(req.Language) {
		sendError(c, h.logger, fmt.Errorf("%w: invalid language %q", errs.ErrInvalidInput, req.Language))
		return
	}

	t, err := h.transcripts.Fetch(c.Request.Context(), videoID, req.Language)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

type summaryRequest struct {
	Transcript string `json:"transcript"`
	Title      string `json:"title"`
	VideoID    string `json:"videoId"`
	Language   string `json:"language"`
	Stream     bool   `json:"stream"`
}

// SummaryHandler serves the summary function.
type SummaryHandler struct {
	summarizer Summarizer
	language   string
	maxChars   int
	logger     *zap.Logger
}

// NewSummaryHandler creates a SummaryHandler. Transcripts longer than
// maxChars are truncated before summarizing.
func NewSummaryHandler(s Summarizer, defaultLanguage string, maxChars int, log *zap.Logger) *SummaryHandler {
	return &SummaryHandler{
		summarizer: s,
		language:   defaultLanguage,
		maxChars:   maxChars,
		logger:     logger.OrNop(log),
	}
}

// Summarize handles POST /functions/v1/summary. With stream=true the reply is
// newline-delimited JSON chunks.
func (h *SummaryHandler) Summarize(c *gin.Context) {
	var req summaryRequest
	if err := bindJSON(c, &req); err != nil {
		sendError(c, h.logger, err)
		return
	}

	text := strings.TrimSpace(req.Transcript)
	if text == "" {
		sendError(c, h.logger, fmt.Errorf("%w: transcript is required", errs.ErrInvalidInput))
		return
	}
	if !validation.IsValidLanguage(req.Language) {
		sendError(c, h.logger, fmt.Errorf("%w: invalid language %q", errs.ErrInvalidInput, req.Language))
		return
	}

	sreq := pipeline.SummaryRequest{
		VideoID:    req.VideoID,
		Title:      strings.TrimSpace(req.Title),
		Transcript: transcript.Truncate(text, h.maxChars),
		Language:   req.Language,
	}
	if sreq.Language == "" {
		sreq.Language = h.language
	}

	if req.Stream {
		h.stream(c, sreq)
		return
	}

	s, err := h.summarizer.Summarize(c.Request.Context(), sreq)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *SummaryHandler) stream(c *gin.Context, req pipeline.SummaryRequest) {
	s, err := h.summarizer.StreamSummary(c.Request.Context(), req)
	if err != nil {
		sendError(c, h.logger, err)
		return
	}
	defer s.Close()

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	enc := pipeline.NewEncoder(c.Writer)
	for s.Next() {
		chunk := s.Chunk()
		if err := enc.Encode(chunk); err != nil {
			h.logger.Debug("summary stream client went away", zap.Error(err))
			return
		}
		if chunk.Type == pipeline.ChunkError {
			return
		}
	}

	if err := s.Err(); err != nil {
		h.logger.Warn("summary stream failed", zap.String("video_id", req.VideoID), zap.Error(err))
		_ = enc.Encode(pipeline.ErrorChunk(errs.Code(err), err.Error()))
	}
}
