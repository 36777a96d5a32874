package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/middleware"
	"github.com/vispark/vispark-api/internal/pipeline"
	"github.com/vispark/vispark-api/internal/service"
	"github.com/vispark/vispark-api/internal/service/quota"
	"github.com/vispark/vispark-api/internal/service/summary"
	"github.com/vispark/vispark-api/internal/service/transcript"
	"github.com/vispark/vispark-api/internal/service/youtube"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testVideoID = "dQw4w9WgXcQ"

var testUser = uuid.MustParse("6f1c2b7a-3d4e-4f50-8a9b-0c1d2e3f4a5b")

// newEngine returns an engine whose requests are authenticated as testUser.
func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetUserID(c, testUser)
		c.Next()
	})
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type mockTranscripts struct{ mock.Mock }

func (m *mockTranscripts) Fetch(ctx context.Context, videoID, language string) (*transcript.Transcript, error) {
	args := m.Called(ctx, videoID, language)
	t, _ := args.Get(0).(*transcript.Transcript)
	return t, args.Error(1)
}

type mockSummarizer struct{ mock.Mock }

func (m *mockSummarizer) Summarize(ctx context.Context, req pipeline.SummaryRequest) (*summary.Summary, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(*summary.Summary)
	return s, args.Error(1)
}

func (m *mockSummarizer) StreamSummary(ctx context.Context, req pipeline.SummaryRequest) (pipeline.Stream, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(pipeline.Stream)
	return s, args.Error(1)
}

type mockVisparks struct{ mock.Mock }

func (m *mockVisparks) Create(ctx context.Context, req service.CreateVisparkRequest) (*models.Vispark, error) {
	args := m.Called(ctx, req)
	v, _ := args.Get(0).(*models.Vispark)
	return v, args.Error(1)
}

func (m *mockVisparks) Get(ctx context.Context, userID, id uuid.UUID) (*models.Vispark, error) {
	args := m.Called(ctx, userID, id)
	v, _ := args.Get(0).(*models.Vispark)
	return v, args.Error(1)
}

func (m *mockVisparks) List(ctx context.Context, userID uuid.UUID, limit, offset int) (*service.VisparkList, error) {
	args := m.Called(ctx, userID, limit, offset)
	l, _ := args.Get(0).(*service.VisparkList)
	return l, args.Error(1)
}

func (m *mockVisparks) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return m.Called(ctx, userID, id).Error(0)
}

type mockChannels struct{ mock.Mock }

func (m *mockChannels) SearchChannels(ctx context.Context, query string, maxResults int64) ([]youtube.ChannelResult, error) {
	args := m.Called(ctx, query, maxResults)
	r, _ := args.Get(0).([]youtube.ChannelResult)
	return r, args.Error(1)
}

func (m *mockChannels) ChannelDetails(ctx context.Context, channelRef string, maxVideos int64) (*youtube.ChannelDetails, error) {
	args := m.Called(ctx, channelRef, maxVideos)
	d, _ := args.Get(0).(*youtube.ChannelDetails)
	return d, args.Error(1)
}

type mockPush struct{ mock.Mock }

func (m *mockPush) Verify(ctx context.Context, mode, topic string, leaseSeconds int) error {
	return m.Called(ctx, mode, topic, leaseSeconds).Error(0)
}

func (m *mockPush) HandlePush(ctx context.Context, body string) (*service.PushResult, error) {
	args := m.Called(ctx, body)
	r, _ := args.Get(0).(*service.PushResult)
	return r, args.Error(1)
}

type mockSubscriptions struct{ mock.Mock }

func (m *mockSubscriptions) Subscribe(ctx context.Context, userID uuid.UUID, req service.SubscribeChannelRequest) (*models.ChannelSubscription, error) {
	args := m.Called(ctx, userID, req)
	s, _ := args.Get(0).(*models.ChannelSubscription)
	return s, args.Error(1)
}

func (m *mockSubscriptions) Unsubscribe(ctx context.Context, userID uuid.UUID, channelID string) error {
	return m.Called(ctx, userID, channelID).Error(0)
}

func (m *mockSubscriptions) List(ctx context.Context, userID uuid.UUID) ([]*models.ChannelSubscription, error) {
	args := m.Called(ctx, userID)
	s, _ := args.Get(0).([]*models.ChannelSubscription)
	return s, args.Error(1)
}

type mockNotifications struct{ mock.Mock }

func (m *mockNotifications) List(ctx context.Context, userID uuid.UUID, unsummarizedOnly bool, limit, offset int) ([]*models.VideoNotification, error) {
	args := m.Called(ctx, userID, unsummarizedOnly, limit, offset)
	n, _ := args.Get(0).([]*models.VideoNotification)
	return n, args.Error(1)
}

func (m *mockNotifications) SetSummaryGenerated(ctx context.Context, userID uuid.UUID, id int64, generated bool) (*models.VideoNotification, error) {
	args := m.Called(ctx, userID, id, generated)
	n, _ := args.Get(0).(*models.VideoNotification)
	return n, args.Error(1)
}

type mockQuota struct{ mock.Mock }

func (m *mockQuota) GetStatus(ctx context.Context, historyDays int) (*quota.Status, error) {
	args := m.Called(ctx, historyDays)
	s, _ := args.Get(0).(*quota.Status)
	return s, args.Error(1)
}

type mockHubs struct{ mock.Mock }

func (m *mockHubs) List(ctx context.Context, status string, limit, offset int) ([]*models.HubSubscription, error) {
	args := m.Called(ctx, status, limit, offset)
	s, _ := args.Get(0).([]*models.HubSubscription)
	return s, args.Error(1)
}

func (m *mockHubs) GetByID(ctx context.Context, id int64) (*models.HubSubscription, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.HubSubscription)
	return s, args.Error(1)
}

// failingStream yields its chunks and then reports err.
type failingStream struct {
	*pipeline.SliceStream
	err error
}

func (s *failingStream) Err() error { return s.err }
