package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/pipeline"
)

// Mock repositories
type mockChannelSubRepo struct {
	mock.Mock
}

func (m *mockChannelSubRepo) Create(ctx context.Context, sub *models.ChannelSubscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockChannelSubRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.ChannelSubscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ChannelSubscription), args.Error(1)
}

func (m *mockChannelSubRepo) Delete(ctx context.Context, userID uuid.UUID, channelID string) error {
	args := m.Called(ctx, userID, channelID)
	return args.Error(0)
}

func (m *mockChannelSubRepo) ListUserIDsByChannel(ctx context.Context, channelID string) ([]uuid.UUID, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockChannelSubRepo) CountByChannel(ctx context.Context, channelID string) (int, error) {
	args := m.Called(ctx, channelID)
	return args.Int(0), args.Error(1)
}

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) CreateIfAbsent(ctx context.Context, n *models.VideoNotification) (bool, error) {
	args := m.Called(ctx, n)
	return args.Bool(0), args.Error(1)
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, unsummarizedOnly bool, limit, offset int) ([]*models.VideoNotification, error) {
	args := m.Called(ctx, userID, unsummarizedOnly, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VideoNotification), args.Error(1)
}

func (m *mockNotificationRepo) ListPendingByVideo(ctx context.Context, videoID string) ([]*models.VideoNotification, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VideoNotification), args.Error(1)
}

func (m *mockNotificationRepo) SetSummaryGenerated(ctx context.Context, userID uuid.UUID, id int64, generated bool) (*models.VideoNotification, error) {
	args := m.Called(ctx, userID, id, generated)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VideoNotification), args.Error(1)
}

func (m *mockNotificationRepo) MarkVideoSummarized(ctx context.Context, userID uuid.UUID, videoID string) error {
	args := m.Called(ctx, userID, videoID)
	return args.Error(0)
}

type mockVisparkRepo struct {
	mock.Mock
}

func (m *mockVisparkRepo) Create(ctx context.Context, v *models.Vispark) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *mockVisparkRepo) GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Vispark, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vispark), args.Error(1)
}

func (m *mockVisparkRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Vispark, int, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Vispark), args.Int(1), args.Error(2)
}

func (m *mockVisparkRepo) DeleteForUser(ctx context.Context, userID, id uuid.UUID) error {
	args := m.Called(ctx, userID, id)
	return args.Error(0)
}

func (m *mockVisparkRepo) ExistsForVideo(ctx context.Context, userID uuid.UUID, videoID string) (bool, error) {
	args := m.Called(ctx, userID, videoID)
	return args.Bool(0), args.Error(1)
}

type mockHubRepo struct {
	mock.Mock
}

func (m *mockHubRepo) Create(ctx context.Context, sub *models.HubSubscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockHubRepo) GetByID(ctx context.Context, id int64) (*models.HubSubscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HubSubscription), args.Error(1)
}

func (m *mockHubRepo) GetByChannelID(ctx context.Context, channelID string) ([]*models.HubSubscription, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HubSubscription), args.Error(1)
}

func (m *mockHubRepo) Update(ctx context.Context, sub *models.HubSubscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockHubRepo) GetRenewable(ctx context.Context, within, pendingAfter time.Duration, limit int) ([]*models.HubSubscription, error) {
	args := m.Called(ctx, within, pendingAfter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HubSubscription), args.Error(1)
}

func (m *mockHubRepo) GetByTopic(ctx context.Context, topicURL string) (*models.HubSubscription, error) {
	args := m.Called(ctx, topicURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HubSubscription), args.Error(1)
}

func (m *mockHubRepo) List(ctx context.Context, status string, limit, offset int) ([]*models.HubSubscription, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HubSubscription), args.Error(1)
}

// Mock collaborators
type mockPubSubHub struct {
	mock.Mock
}

func (m *mockPubSubHub) Subscribe(ctx context.Context, req *SubscribeRequest) (*SubscribeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubscribeResponse), args.Error(1)
}

func (m *mockPubSubHub) Unsubscribe(ctx context.Context, req *SubscribeRequest) (*SubscribeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubscribeResponse), args.Error(1)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueSummarize(ctx context.Context, videoID, channelID, title, language string) error {
	args := m.Called(ctx, videoID, channelID, title, language)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event *Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockLeases struct {
	mock.Mock
}

func (m *mockLeases) Ensure(ctx context.Context, channelID string) (*models.HubSubscription, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HubSubscription), args.Error(1)
}

func (m *mockLeases) Release(ctx context.Context, channelID string) error {
	args := m.Called(ctx, channelID)
	return args.Error(0)
}

type mockVideos struct {
	mock.Mock
}

func (m *mockVideos) VideoMetadata(ctx context.Context, videoID string) (*models.VideoMetadata, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VideoMetadata), args.Error(1)
}

// Pipeline fakes
type fakeTranscripts struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscripts) FetchTranscript(_ context.Context, _ string, _ string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeSummarizer struct {
	chunks []pipeline.Chunk
	err    error
	calls  int
}

func (f *fakeSummarizer) StreamSummary(_ context.Context, _ pipeline.SummaryRequest) (pipeline.Stream, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return pipeline.NewSliceStream(f.chunks...), nil
}
