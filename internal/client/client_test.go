package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/pipeline"
)

const videoID = "dQw4w9WgXcQ"

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, "user-token", 5*time.Second, WithAPIKey("anon"))
}

func TestClient_FetchTranscript(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/transcript", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, videoID, in["videoId"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"videoId":"dQw4w9WgXcQ","language":"en","transcript":"never gonna"}`)
	})

	text, err := c.FetchTranscript(context.Background(), videoID, "en")
	require.NoError(t, err)
	assert.Equal(t, "never gonna", text)
}

func TestClient_ErrorsMapToSentinels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"error":"not_found","message":"no captions"}`, want: errs.ErrNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"unauthorized","message":"token expired"}`, want: errs.ErrUnauthenticated},
		{name: "quota", status: http.StatusTooManyRequests, body: `{"error":"quota_exceeded","message":"daily quota"}`, want: errs.ErrQuotaExceeded},
		{name: "not json", status: http.StatusBadGateway, body: `bad gateway`, want: errs.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := c.FetchTranscript(context.Background(), videoID, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_StreamSummary(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, true, in["stream"])

		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := pipeline.NewEncoder(w)
		_ = enc.Encode(pipeline.Delta("- one\n"))
		_ = enc.Encode(pipeline.Delta("- two"))
		_ = enc.Encode(pipeline.Done([]string{"one", "two"}))
	})

	s, err := c.StreamSummary(context.Background(), pipeline.SummaryRequest{VideoID: videoID, Transcript: "text"})
	require.NoError(t, err)

	text, bullets, err := pipeline.Collect(s, nil)
	require.NoError(t, err)
	assert.Equal(t, "- one\n- two", text)
	assert.Equal(t, []string{"one", "two"}, bullets)
}

func TestClient_StreamOutlastsTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", pipeline.ContentTypeNDJSON)
		enc := pipeline.NewEncoder(w)
		for i := 0; i < 4; i++ {
			_ = enc.Encode(pipeline.Delta("- part\n"))
			time.Sleep(100 * time.Millisecond)
		}
		_ = enc.Encode(pipeline.Done([]string{"part"}))
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "user-token", 150*time.Millisecond)

	s, err := c.StreamSummary(context.Background(), pipeline.SummaryRequest{VideoID: videoID, Transcript: "text"})
	require.NoError(t, err)

	text, bullets, err := pipeline.Collect(s, nil)
	require.NoError(t, err)
	assert.Equal(t, "- part\n- part\n- part\n- part\n", text)
	assert.Equal(t, []string{"part"}, bullets)
}

func TestClient_UnaryCallBoundedByTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		fmt.Fprint(w, `{"transcript":"late"}`)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "user-token", 100*time.Millisecond)

	start := time.Now()
	_, err := c.FetchTranscript(context.Background(), videoID, "en")
	assert.ErrorIs(t, err, errs.ErrUpstream)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_StreamSummaryRejected(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_request","message":"transcript is required"}`)
	})

	_, err := c.StreamSummary(context.Background(), pipeline.SummaryRequest{})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestClient_DrivesPipeline(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/functions/v1/transcript":
			fmt.Fprint(w, `{"transcript":"some transcript"}`)
		case "/functions/v1/summary":
			enc := pipeline.NewEncoder(w)
			_ = enc.Encode(pipeline.Delta("- first point\n- second point"))
			_ = enc.Encode(pipeline.Done(nil))
		default:
			http.NotFound(w, r)
		}
	})

	var saved *pipeline.Result
	p := pipeline.New(c, c, pipeline.RecorderFunc(func(_ context.Context, res *pipeline.Result) error {
		saved = res
		return nil
	}))

	res, err := p.Run(context.Background(), videoID)
	require.NoError(t, err)
	assert.Equal(t, []string{"first point", "second point"}, res.Summaries)
	assert.Same(t, res, saved)
	assert.Equal(t, pipeline.StatusComplete, p.Snapshot().Status)
}

func TestClient_SearchChannels(t *testing.T) {
	t.Parallel()

	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/functions/v1/youtube-channel-search", r.URL.Path)
		fmt.Fprint(w, `{"channels":[{"channelId":"UCuAXFkgsw1L7xaCfnd5JJOw","title":"Go"}]}`)
	})

	channels, err := c.SearchChannels(context.Background(), "go", 5)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "Go", channels[0].Title)
}
