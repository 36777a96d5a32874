// Package client calls the vispark HTTP API. It satisfies the pipeline's
// TranscriptFetcher and SummaryStreamer so the CLI can drive a run remotely.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/pipeline"
	"github.com/vispark/vispark-api/internal/service/youtube"
	"github.com/vispark/vispark-api/pkg/logger"
)

const functionsPath = "/functions/v1/"

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a vispark API client authenticated with a user access token.
type Client struct {
	baseURL string
	token   string
	apiKey  string
	timeout time.Duration
	http    HTTPClient
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) { cl.http = c }
}

// WithAPIKey sends the project's anon key in the apikey header.
func WithAPIKey(key string) Option {
	return func(cl *Client) { cl.apiKey = key }
}

// WithLogger sets the client logger.
func WithLogger(log *zap.Logger) Option {
	return func(cl *Client) { cl.logger = logger.OrNop(log) }
}

// New creates a Client for baseURL. timeout bounds each unary call and the
// wait for response headers; a summary stream may run past it once headers
// arrive and is bounded only by its context.
func New(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		http:    &http.Client{Transport: transport},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type transcriptResponse struct {
	VideoID    string `json:"videoId"`
	Language   string `json:"language"`
	Transcript string `json:"transcript"`
}

// FetchTranscript calls the transcript function.
func (c *Client) FetchTranscript(ctx context.Context, videoID, language string) (string, error) {
	var out transcriptResponse
	err := c.call(ctx, http.MethodPost, "transcript", map[string]string{
		"videoId":  videoID,
		"language": language,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Transcript, nil
}

// StreamSummary calls the summary function with stream=true and decodes the
// NDJSON reply.
func (c *Client) StreamSummary(ctx context.Context, req pipeline.SummaryRequest) (pipeline.Stream, error) {
	resp, err := c.do(ctx, http.MethodPost, "summary", map[string]any{
		"transcript": req.Transcript,
		"title":      req.Title,
		"videoId":    req.VideoID,
		"language":   req.Language,
		"stream":     true,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return pipeline.NewNDJSONStream(resp.Body), nil
}

// SearchChannels calls the youtube-channel-search function.
func (c *Client) SearchChannels(ctx context.Context, query string, maxResults int64) ([]youtube.ChannelResult, error) {
	var out struct {
		Channels []youtube.ChannelResult `json:"channels"`
	}
	err := c.call(ctx, http.MethodPost, "youtube-channel-search", map[string]any{
		"query":      query,
		"maxResults": maxResults,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Channels, nil
}

// ChannelDetails calls the youtube-channel-details function.
func (c *Client) ChannelDetails(ctx context.Context, channelRef string, maxVideos int64) (*youtube.ChannelDetails, error) {
	var out youtube.ChannelDetails
	err := c.call(ctx, http.MethodPost, "youtube-channel-details", map[string]any{
		"channelId": channelRef,
		"maxVideos": maxVideos,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveVispark stores summaries for a video through the vispark function.
func (c *Client) SaveVispark(ctx context.Context, videoID string, summaries []string) (*models.Vispark, error) {
	var out models.Vispark
	err := c.call(ctx, http.MethodPost, "vispark", map[string]any{
		"videoId":   videoID,
		"summaries": summaries,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, fn string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.do(ctx, method, fn, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", errs.ErrUpstream, fn, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, fn string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", fn, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+functionsPath+fn, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	c.logger.Debug("calling function", zap.String("function", fn), zap.String("method", method))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrUpstream, fn, err)
	}
	return resp, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// decodeError maps an error response back onto the shared sentinels.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var e errorBody
	if err := json.Unmarshal(raw, &e); err != nil || e.Error == "" {
		return fmt.Errorf("%w: status %d: %s", errs.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return fmt.Errorf("%w: %s", errs.FromCode(e.Error), e.Message)
}
