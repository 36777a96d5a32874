// Package youtube wraps the YouTube Data API v3 calls the edge functions need.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/vispark/vispark-api/internal/cache"
	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/internal/service/quota"
	"github.com/vispark/vispark-api/pkg/logger"
)

const (
	opSearch        = "search.list"
	opChannels      = "channels.list"
	opPlaylistItems = "playlistItems.list"
	opVideos        = "videos.list"
)

// QuotaGuard checks and records YouTube API unit usage. *quota.Manager satisfies it.
type QuotaGuard interface {
	Reserve(ctx context.Context, requiredQuota int, operationType string) error
	RecordQuotaUsage(ctx context.Context, quotaCost int, operationType string) error
}

// ChannelResult is one channel returned by a search.
type ChannelResult struct {
	ChannelID    string `json:"channelId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnailUrl"`
	PublishedAt  string `json:"publishedAt,omitempty"`
}

// Channel is the channel part of a details lookup.
type Channel struct {
	ChannelID         string `json:"channelId"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	CustomURL         string `json:"customUrl,omitempty"`
	ThumbnailURL      string `json:"thumbnailUrl"`
	SubscriberCount   uint64 `json:"subscriberCount"`
	VideoCount        uint64 `json:"videoCount"`
	ViewCount         uint64 `json:"viewCount"`
	UploadsPlaylistID string `json:"uploadsPlaylistId,omitempty"`
}

// Video is one upload listed in a details lookup.
type Video struct {
	VideoID         string `json:"videoId"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	ThumbnailURL    string `json:"thumbnailUrl"`
	PublishedAt     string `json:"publishedAt"`
	Duration        string `json:"duration,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// ChannelDetails is a channel and its most recent uploads.
type ChannelDetails struct {
	Channel Channel `json:"channel"`
	Videos  []Video `json:"videos"`
}

// Client wraps the YouTube Data API v3 client
type Client struct {
	service  *youtube.Service
	quota    QuotaGuard
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithQuota enables quota checks and accounting.
func WithQuota(q QuotaGuard) Option {
	return func(c *Client) { c.quota = q }
}

// WithCache caches search and channel lookups for ttl.
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

// WithMetrics records upstream call outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = logger.OrNop(l) }
}

// NewClient creates a new YouTube API client. clientOpts are passed to the
// generated service (tests use option.WithEndpoint).
func NewClient(ctx context.Context, apiKey string, opts []Option, clientOpts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: YouTube API key is required", errs.ErrMisconfigured)
	}

	clientOpts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, clientOpts...)
	service, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	c := &Client{
		service:  service,
		logger:   zap.NewNop(),
		cacheTTL: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// SearchChannels finds channels matching query.
func (c *Client) SearchChannels(ctx context.Context, query string, maxResults int64) ([]ChannelResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", errs.ErrInvalidInput)
	}
	maxResults = clamp(maxResults, 1, 50, 10)

	key := fmt.Sprintf("yt:search:%d:%s", maxResults, strings.ToLower(query))
	var cached []ChannelResult
	if c.fromCache(ctx, key, &cached, opSearch) {
		return cached, nil
	}

	if err := c.reserve(ctx, quota.CostSearchList, opSearch); err != nil {
		return nil, err
	}

	resp, err := c.service.Search.List([]string{"snippet"}).
		Q(query).
		Type("channel").
		MaxResults(maxResults).
		Context(ctx).
		Do()
	c.record(ctx, quota.CostSearchList, opSearch, err)
	if err != nil {
		return nil, mapError(err, opSearch)
	}

	results := make([]ChannelResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet == nil {
			continue
		}
		id := item.Snippet.ChannelId
		if item.Id != nil && item.Id.ChannelId != "" {
			id = item.Id.ChannelId
		}
		results = append(results, ChannelResult{
			ChannelID:    id,
			Title:        item.Snippet.Title,
			Description:  item.Snippet.Description,
			ThumbnailURL: bestThumbnail(item.Snippet.Thumbnails),
			PublishedAt:  item.Snippet.PublishedAt,
		})
	}

	c.toCache(ctx, key, results)
	return results, nil
}

// ChannelDetails fetches a channel by id (UC...) or handle (@name) together
// with up to maxVideos of its most recent uploads.
func (c *Client) ChannelDetails(ctx context.Context, channelRef string, maxVideos int64) (*ChannelDetails, error) {
	channelRef = strings.TrimSpace(channelRef)
	if channelRef == "" {
		return nil, fmt.Errorf("%w: channelId is required", errs.ErrInvalidInput)
	}
	maxVideos = clamp(maxVideos, 1, 50, 20)

	key := fmt.Sprintf("yt:channel:%d:%s", maxVideos, channelRef)
	var cached ChannelDetails
	if c.fromCache(ctx, key, &cached, opChannels) {
		return &cached, nil
	}

	channel, err := c.getChannel(ctx, channelRef)
	if err != nil {
		return nil, err
	}

	details := &ChannelDetails{Channel: *channel, Videos: []Video{}}
	if channel.UploadsPlaylistID != "" {
		videos, err := c.listUploads(ctx, channel.UploadsPlaylistID, maxVideos)
		if err != nil {
			return nil, err
		}
		details.Videos = videos
	}

	c.toCache(ctx, key, details)
	return details, nil
}

func (c *Client) getChannel(ctx context.Context, channelRef string) (*Channel, error) {
	if err := c.reserve(ctx, quota.CostChannelsList, opChannels); err != nil {
		return nil, err
	}

	call := c.service.Channels.List([]string{"snippet", "contentDetails", "statistics"})
	if strings.HasPrefix(channelRef, "@") {
		call = call.ForHandle(channelRef)
	} else {
		call = call.Id(channelRef)
	}

	resp, err := call.Context(ctx).Do()
	c.record(ctx, quota.CostChannelsList, opChannels, err)
	if err != nil {
		return nil, mapError(err, opChannels)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("%w: channel %s", errs.ErrNotFound, channelRef)
	}

	item := resp.Items[0]
	ch := &Channel{ChannelID: item.Id}
	if item.Snippet != nil {
		ch.Title = item.Snippet.Title
		ch.Description = item.Snippet.Description
		ch.CustomURL = item.Snippet.CustomUrl
		ch.ThumbnailURL = bestThumbnail(item.Snippet.Thumbnails)
	}
	if item.Statistics != nil {
		ch.SubscriberCount = item.Statistics.SubscriberCount
		ch.VideoCount = item.Statistics.VideoCount
		ch.ViewCount = item.Statistics.ViewCount
	}
	if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
		ch.UploadsPlaylistID = item.ContentDetails.RelatedPlaylists.Uploads
	}

	return ch, nil
}

func (c *Client) listUploads(ctx context.Context, playlistID string, maxVideos int64) ([]Video, error) {
	if err := c.reserve(ctx, quota.CostPlaylistItemsList, opPlaylistItems); err != nil {
		return nil, err
	}

	resp, err := c.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(maxVideos).
		Context(ctx).
		Do()
	c.record(ctx, quota.CostPlaylistItemsList, opPlaylistItems, err)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			// Channels without uploads have no uploads playlist.
			return []Video{}, nil
		}
		return nil, mapError(err, opPlaylistItems)
	}

	videos := make([]Video, 0, len(resp.Items))
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		v := Video{}
		if item.ContentDetails != nil {
			v.VideoID = item.ContentDetails.VideoId
			v.PublishedAt = item.ContentDetails.VideoPublishedAt
		}
		if item.Snippet != nil {
			if v.VideoID == "" && item.Snippet.ResourceId != nil {
				v.VideoID = item.Snippet.ResourceId.VideoId
			}
			v.Title = item.Snippet.Title
			v.Description = item.Snippet.Description
			v.ThumbnailURL = bestThumbnail(item.Snippet.Thumbnails)
			if v.PublishedAt == "" {
				v.PublishedAt = item.Snippet.PublishedAt
			}
		}
		if v.VideoID == "" {
			continue
		}
		videos = append(videos, v)
		ids = append(ids, v.VideoID)
	}

	durations, err := c.fetchDurations(ctx, ids)
	if err != nil {
		// Durations are decorative; the listing is still useful without them.
		c.logger.Warn("failed to fetch upload durations", zap.Error(err))
		return videos, nil
	}
	for i := range videos {
		if d, ok := durations[videos[i].VideoID]; ok {
			videos[i].Duration = d
			if secs, err := ParseVideoDuration(d); err == nil {
				videos[i].DurationSeconds = secs
			}
		}
	}

	return videos, nil
}

func (c *Client) fetchDurations(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, batch := range BatchVideoIDs(ids, 50) {
		videos, err := c.listVideos(ctx, batch, []string{"contentDetails"})
		if err != nil {
			return nil, err
		}
		for _, v := range videos {
			if v.ContentDetails != nil {
				out[v.Id] = v.ContentDetails.Duration
			}
		}
	}
	return out, nil
}

// VideoMetadata fetches the metadata stored alongside a summary.
func (c *Client) VideoMetadata(ctx context.Context, videoID string) (*models.VideoMetadata, error) {
	videos, err := c.listVideos(ctx, []string{videoID}, []string{"snippet", "contentDetails"})
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("%w: video %s", errs.ErrNotFound, videoID)
	}

	v := videos[0]
	meta := &models.VideoMetadata{VideoID: v.Id, Thumbnails: map[string]string{}}
	if v.Snippet != nil {
		meta.ChannelID = v.Snippet.ChannelId
		meta.Title = v.Snippet.Title
		meta.DefaultLanguage = v.Snippet.DefaultLanguage
		if meta.DefaultLanguage == "" {
			meta.DefaultLanguage = v.Snippet.DefaultAudioLanguage
		}
		if t, err := parseYouTubeTime(v.Snippet.PublishedAt); err == nil {
			meta.PublishedAt = &t
		}
		meta.Thumbnails = thumbnailMap(v.Snippet.Thumbnails)
	}
	if v.ContentDetails != nil {
		meta.Duration = v.ContentDetails.Duration
	}

	return meta, nil
}

func (c *Client) listVideos(ctx context.Context, ids []string, parts []string) ([]*youtube.Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > 50 {
		return nil, fmt.Errorf("%w: too many video IDs (max 50, got %d)", errs.ErrInvalidInput, len(ids))
	}

	if err := c.reserve(ctx, quota.CostVideosList, opVideos); err != nil {
		return nil, err
	}

	resp, err := c.service.Videos.List(parts).Id(ids...).Context(ctx).Do()
	c.record(ctx, quota.CostVideosList, opVideos, err)
	if err != nil {
		return nil, mapError(err, opVideos)
	}

	return resp.Items, nil
}

func (c *Client) reserve(ctx context.Context, cost int, op string) error {
	if c.quota == nil {
		return nil
	}
	return c.quota.Reserve(ctx, cost, op)
}

// record accounts for a call that reached YouTube. Quota is charged even for
// failed calls since the API bills them.
func (c *Client) record(ctx context.Context, cost int, op string, callErr error) {
	c.metrics.Upstream("youtube", op, callErr)
	c.metrics.Quota(op, cost)

	if c.quota == nil {
		return
	}
	if err := c.quota.RecordQuotaUsage(ctx, cost, op); err != nil {
		c.logger.Warn("failed to record quota usage", zap.String("operation", op), zap.Error(err))
	}
}

func (c *Client) fromCache(ctx context.Context, key string, dst any, op string) bool {
	if c.cache == nil {
		return false
	}
	hit, err := c.cache.Get(ctx, key, dst)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if hit {
		c.metrics.CacheHit("youtube", op)
	}
	return hit
}

func (c *Client) toCache(ctx context.Context, key string, value any) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, value, c.cacheTTL); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// mapError converts googleapi errors to the shared sentinels.
func mapError(err error, op string) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%w: youtube %s: %v", errs.ErrUpstream, op, err)
	}

	for _, item := range gerr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded":
			return fmt.Errorf("%w: youtube %s: %s", errs.ErrQuotaExceeded, op, item.Reason)
		case "keyInvalid":
			return fmt.Errorf("%w: youtube API key rejected", errs.ErrMisconfigured)
		}
	}

	switch gerr.Code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: youtube %s", errs.ErrNotFound, op)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: youtube %s: %s", errs.ErrInvalidInput, op, gerr.Message)
	default:
		return fmt.Errorf("%w: youtube %s returned %d: %s", errs.ErrUpstream, op, gerr.Code, gerr.Message)
	}
}

func bestThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

func thumbnailMap(t *youtube.ThumbnailDetails) map[string]string {
	out := map[string]string{}
	if t == nil {
		return out
	}
	add := func(name string, th *youtube.Thumbnail) {
		if th != nil && th.Url != "" {
			out[name] = th.Url
		}
	}
	add("default", t.Default)
	add("medium", t.Medium)
	add("high", t.High)
	add("standard", t.Standard)
	add("maxres", t.Maxres)
	return out
}

func clamp(v, lo, hi, def int64) int64 {
	if v <= 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseYouTubeTime parses RFC3339 timestamps from YouTube API
func parseYouTubeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// BatchVideoIDs splits a large list of video IDs into batches of 50
func BatchVideoIDs(videoIDs []string, batchSize int) [][]string {
	if batchSize <= 0 || batchSize > 50 {
		batchSize = 50
	}

	var batches [][]string
	for i := 0; i < len(videoIDs); i += batchSize {
		end := i + batchSize
		if end > len(videoIDs) {
			end = len(videoIDs)
		}
		batches = append(batches, videoIDs[i:end])
	}

	return batches
}

// ParseVideoDuration converts ISO 8601 duration to seconds
// Example: "PT4M13S" -> 253 seconds
func ParseVideoDuration(duration string) (int, error) {
	if !strings.HasPrefix(duration, "PT") {
		return 0, fmt.Errorf("invalid duration format: %s", duration)
	}

	duration = strings.TrimPrefix(duration, "PT")

	var hours, minutes, seconds int

	if hIdx := strings.Index(duration, "H"); hIdx != -1 {
		h, err := strconv.Atoi(duration[:hIdx])
		if err != nil {
			return 0, err
		}
		hours = h
		duration = duration[hIdx+1:]
	}

	if mIdx := strings.Index(duration, "M"); mIdx != -1 {
		m, err := strconv.Atoi(duration[:mIdx])
		if err != nil {
			return 0, err
		}
		minutes = m
		duration = duration[mIdx+1:]
	}

	if sIdx := strings.Index(duration, "S"); sIdx != -1 {
		s, err := strconv.Atoi(duration[:sIdx])
		if err != nil {
			return 0, err
		}
		seconds = s
	}

	return hours*3600 + minutes*60 + seconds, nil
}
