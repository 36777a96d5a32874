package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/vispark/vispark-api/internal/cache"
	"github.com/vispark/vispark-api/internal/errs"
)

type fakeQuota struct {
	mu       sync.Mutex
	denied   map[string]bool
	recorded map[string]int
}

func newFakeQuota() *fakeQuota {
	return &fakeQuota{denied: map[string]bool{}, recorded: map[string]int{}}
}

func (q *fakeQuota) Reserve(_ context.Context, cost int, op string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.denied[op] {
		return fmt.Errorf("%w: %s", errs.ErrQuotaExceeded, op)
	}
	return nil
}

func (q *fakeQuota) RecordQuotaUsage(_ context.Context, cost int, op string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.recorded[op] += cost
	return nil
}

type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int
	t     *testing.T
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	endpoint := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	f.calls[endpoint]++
	f.mu.Unlock()

	assert.Equal(f.t, "test-key", r.URL.Query().Get("key"))
	w.Header().Set("Content-Type", "application/json")

	switch endpoint {
	case "search":
		if r.URL.Query().Get("q") == "quota" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded","message":"quota"}]}}`)
			return
		}
		assert.Equal(f.t, "channel", r.URL.Query().Get("type"))
		fmt.Fprint(w, `{"items":[
			{"id":{"kind":"youtube#channel","channelId":"UCone"},"snippet":{"channelId":"UCone","title":"One","description":"first","thumbnails":{"default":{"url":"https://img/one-d.jpg"},"high":{"url":"https://img/one-h.jpg"}}}},
			{"id":{"kind":"youtube#channel","channelId":"UCtwo"},"snippet":{"channelId":"UCtwo","title":"Two","thumbnails":{"default":{"url":"https://img/two-d.jpg"}}}}
		]}`)
	case "channels":
		if r.URL.Query().Get("id") == "UCmissing" {
			fmt.Fprint(w, `{"items":[]}`)
			return
		}
		if h := r.URL.Query().Get("forHandle"); h != "" {
			assert.Equal(f.t, "@one", h)
		}
		fmt.Fprint(w, `{"items":[{"id":"UCone","snippet":{"title":"One","description":"first","customUrl":"@one","thumbnails":{"medium":{"url":"https://img/one-m.jpg"}}},
			"contentDetails":{"relatedPlaylists":{"uploads":"UUone"}},
			"statistics":{"subscriberCount":"1200","videoCount":"2","viewCount":"99000"}}]}`)
	case "playlistItems":
		assert.Equal(f.t, "UUone", r.URL.Query().Get("playlistId"))
		fmt.Fprint(w, `{"items":[
			{"snippet":{"title":"Latest","publishedAt":"2024-05-02T10:00:00Z","thumbnails":{"high":{"url":"https://img/v1.jpg"}},"resourceId":{"videoId":"vid00000001"}},"contentDetails":{"videoId":"vid00000001","videoPublishedAt":"2024-05-02T10:00:00Z"}},
			{"snippet":{"title":"Older","publishedAt":"2024-05-01T10:00:00Z","resourceId":{"videoId":"vid00000002"}}}
		]}`)
	case "videos":
		ids := r.URL.Query()["id"]
		if len(ids) == 1 && ids[0] == "notfound000" {
			fmt.Fprint(w, `{"items":[]}`)
			return
		}
		if len(ids) == 1 && ids[0] == "broken00000" {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"code":500,"message":"backend error"}}`)
			return
		}
		fmt.Fprint(w, `{"items":[
			{"id":"vid00000001","snippet":{"channelId":"UCone","title":"Latest","publishedAt":"2024-05-02T10:00:00Z","defaultAudioLanguage":"en","thumbnails":{"default":{"url":"https://img/v1-d.jpg"},"maxres":{"url":"https://img/v1-x.jpg"}}},"contentDetails":{"duration":"PT4M13S"}},
			{"id":"vid00000002","contentDetails":{"duration":"PT1H2S"}}
		]}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"not found"}}`)
	}
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *fakeAPI) {
	t.Helper()

	api := &fakeAPI{calls: map[string]int{}, t: t}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), "test-key", opts, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return c, api
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", nil)
	assert.ErrorIs(t, err, errs.ErrMisconfigured)
}

func TestClient_SearchChannels(t *testing.T) {
	q := newFakeQuota()
	c, api := newTestClient(t, WithQuota(q), WithCache(cache.NewMemoryCache(), 0))

	results, err := c.SearchChannels(context.Background(), "Golang", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "UCone", results[0].ChannelID)
	assert.Equal(t, "https://img/one-h.jpg", results[0].ThumbnailURL)
	assert.Equal(t, "https://img/two-d.jpg", results[1].ThumbnailURL)
	assert.Equal(t, 100, q.recorded["search.list"])

	// second lookup is served from cache
	_, err = c.SearchChannels(context.Background(), "golang", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls["search"])
	assert.Equal(t, 100, q.recorded["search.list"])
}

func TestClient_SearchChannels_Errors(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		c, api := newTestClient(t)
		_, err := c.SearchChannels(context.Background(), "  ", 5)
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
		assert.Zero(t, api.calls["search"])
	})

	t.Run("local quota threshold", func(t *testing.T) {
		q := newFakeQuota()
		q.denied["search.list"] = true
		c, api := newTestClient(t, WithQuota(q))

		_, err := c.SearchChannels(context.Background(), "golang", 5)
		assert.ErrorIs(t, err, errs.ErrQuotaExceeded)
		assert.Zero(t, api.calls["search"])
	})

	t.Run("youtube quota exceeded", func(t *testing.T) {
		c, _ := newTestClient(t)
		_, err := c.SearchChannels(context.Background(), "quota", 5)
		assert.ErrorIs(t, err, errs.ErrQuotaExceeded)
	})
}

func TestClient_ChannelDetails(t *testing.T) {
	q := newFakeQuota()
	c, api := newTestClient(t, WithQuota(q))

	details, err := c.ChannelDetails(context.Background(), "UCone", 10)
	require.NoError(t, err)

	assert.Equal(t, "UCone", details.Channel.ChannelID)
	assert.Equal(t, uint64(1200), details.Channel.SubscriberCount)
	assert.Equal(t, "UUone", details.Channel.UploadsPlaylistID)
	assert.Equal(t, "https://img/one-m.jpg", details.Channel.ThumbnailURL)

	require.Len(t, details.Videos, 2)
	assert.Equal(t, "vid00000001", details.Videos[0].VideoID)
	assert.Equal(t, 253, details.Videos[0].DurationSeconds)
	assert.Equal(t, "vid00000002", details.Videos[1].VideoID)
	assert.Equal(t, "2024-05-01T10:00:00Z", details.Videos[1].PublishedAt)
	assert.Equal(t, 3602, details.Videos[1].DurationSeconds)

	assert.Equal(t, 1, api.calls["channels"])
	assert.Equal(t, 1, api.calls["playlistItems"])
	assert.Equal(t, 1, api.calls["videos"])
	assert.Equal(t, 1, q.recorded["channels.list"])
	assert.Equal(t, 1, q.recorded["playlistItems.list"])
	assert.Equal(t, 1, q.recorded["videos.list"])
}

func TestClient_ChannelDetails_Handle(t *testing.T) {
	c, _ := newTestClient(t)

	details, err := c.ChannelDetails(context.Background(), "@one", 10)
	require.NoError(t, err)
	assert.Equal(t, "UCone", details.Channel.ChannelID)
}

func TestClient_ChannelDetails_NotFound(t *testing.T) {
	c, api := newTestClient(t)

	_, err := c.ChannelDetails(context.Background(), "UCmissing", 10)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Zero(t, api.calls["playlistItems"])
}

func TestClient_VideoMetadata(t *testing.T) {
	c, _ := newTestClient(t)

	meta, err := c.VideoMetadata(context.Background(), "vid00000001")
	require.NoError(t, err)
	assert.Equal(t, "UCone", meta.ChannelID)
	assert.Equal(t, "Latest", meta.Title)
	assert.Equal(t, "PT4M13S", meta.Duration)
	assert.Equal(t, "en", meta.DefaultLanguage)
	require.NotNil(t, meta.PublishedAt)
	assert.Equal(t, 2024, meta.PublishedAt.Year())
	assert.Equal(t, "https://img/v1-x.jpg", meta.Thumbnails["maxres"])

	_, err = c.VideoMetadata(context.Background(), "notfound000")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = c.VideoMetadata(context.Background(), "broken00000")
	assert.ErrorIs(t, err, errs.ErrUpstream)
}

func TestBatchVideoIDs(t *testing.T) {
	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("v%d", i)
	}

	batches := BatchVideoIDs(ids, 50)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 50)
	assert.Len(t, batches[2], 20)

	assert.Len(t, BatchVideoIDs(ids, 0), 3)
	assert.Nil(t, BatchVideoIDs(nil, 50))
}

func TestParseVideoDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "PT4M13S", want: 253},
		{in: "PT1H", want: 3600},
		{in: "PT1H2M3S", want: 3723},
		{in: "PT45S", want: 45},
		{in: "P1D", wantErr: true},
		{in: "PTxM", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseVideoDuration(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
