package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/errs"
)

const testCallback = "https://api.vispark.test/functions/v1/youtube-push-callback"

func newTestHubManager(repo *mockHubRepo, hub *mockPubSubHub) *HubManager {
	return NewHubManager(repo, hub, HubConfig{
		CallbackURL:  testCallback,
		Secret:       "s3cret",
		LeaseSeconds: 432000,
	}, nil, nil)
}

func TestHubManager_Ensure_Disabled(t *testing.T) {
	t.Parallel()

	repo := new(mockHubRepo)
	m := NewHubManager(repo, new(mockPubSubHub), HubConfig{}, nil, nil)

	sub, err := m.Ensure(context.Background(), testChannelID)
	require.NoError(t, err)
	assert.Nil(t, sub)
	repo.AssertNotCalled(t, "GetByChannelID", mock.Anything, mock.Anything)
}

func TestHubManager_Ensure_CreatesAndSubscribes(t *testing.T) {
	t.Parallel()

	repo := new(mockHubRepo)
	hub := new(mockPubSubHub)

	repo.On("GetByChannelID", mock.Anything, testChannelID).Return([]*models.HubSubscription{}, nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(s *models.HubSubscription) bool {
		return s.ChannelID == testChannelID && s.CallbackURL == testCallback &&
			s.Secret != nil && *s.Secret == "s3cret" && s.HubURL == models.DefaultHubURL
	})).Return(nil)
	hub.On("Subscribe", mock.Anything, mock.MatchedBy(func(r *SubscribeRequest) bool {
		return r.TopicURL == models.TopicURL(testChannelID) && r.CallbackURL == testCallback && r.LeaseSeconds == 432000
	})).Return(&SubscribeResponse{Accepted: true, StatusCode: 202}, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	sub, err := newTestHubManager(repo, hub).Ensure(context.Background(), testChannelID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, models.StatusPending, sub.Status)

	repo.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestHubManager_Ensure_ReusesActiveLease(t *testing.T) {
	t.Parallel()

	existing := models.NewHubSubscription(testChannelID, testCallback, 432000)
	existing.MarkActive()

	repo := new(mockHubRepo)
	hub := new(mockPubSubHub)
	repo.On("GetByChannelID", mock.Anything, testChannelID).Return([]*models.HubSubscription{existing}, nil)

	sub, err := newTestHubManager(repo, hub).Ensure(context.Background(), testChannelID)
	require.NoError(t, err)
	assert.Same(t, existing, sub)
	hub.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
}

func TestHubManager_Ensure_ResubscribesExpiredLease(t *testing.T) {
	t.Parallel()

	existing := models.NewHubSubscription(testChannelID, testCallback, 432000)
	existing.MarkActive()
	existing.ExpiresAt = time.Now().Add(-time.Hour)

	repo := new(mockHubRepo)
	hub := new(mockPubSubHub)
	repo.On("GetByChannelID", mock.Anything, testChannelID).Return([]*models.HubSubscription{existing}, nil)
	hub.On("Subscribe", mock.Anything, mock.Anything).Return(&SubscribeResponse{Accepted: true}, nil)
	repo.On("Update", mock.Anything, existing).Return(nil)

	_, err := newTestHubManager(repo, hub).Ensure(context.Background(), testChannelID)
	require.NoError(t, err)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	hub.AssertExpectations(t)
}

func TestHubManager_Ensure_HubFailureMarksFailed(t *testing.T) {
	t.Parallel()

	repo := new(mockHubRepo)
	hub := new(mockPubSubHub)
	repo.On("GetByChannelID", mock.Anything, testChannelID).Return([]*models.HubSubscription{}, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	hub.On("Subscribe", mock.Anything, mock.Anything).Return(nil, errors.New("hub unreachable"))
	repo.On("Update", mock.Anything, mock.MatchedBy(func(s *models.HubSubscription) bool {
		return s.Status == models.StatusFailed
	})).Return(nil)

	sub, err := newTestHubManager(repo, hub).Ensure(context.Background(), testChannelID)
	require.Error(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, models.StatusFailed, sub.Status)
	repo.AssertExpectations(t)
}

func TestHubManager_Renew(t *testing.T) {
	t.Parallel()

	sub := models.NewHubSubscription(testChannelID, testCallback, 60)
	sub.MarkActive()
	sub.ExpiresAt = time.Now().Add(time.Minute)

	repo := new(mockHubRepo)
	hub := new(mockPubSubHub)
	hub.On("Subscribe", mock.Anything, mock.Anything).Return(&SubscribeResponse{Accepted: true}, nil)
	repo.On("Update", mock.Anything, sub).Return(nil)

	require.NoError(t, newTestHubManager(repo, hub).Renew(context.Background(), sub))
	assert.Equal(t, models.StatusActive, sub.Status)
	assert.True(t, sub.ExpiresAt.After(time.Now().Add(30*time.Second)))
}

func TestHubManager_Renew_FailedLeaseGoesPending(t *testing.T) {
	t.Parallel()

	sub := models.NewHubSubscription(testChannelID, testCallback, 60)
	sub.MarkFailed()

	repo := new(mockHubRepo)
	hub := new(mockPubSubHub)
	hub.On("Subscribe", mock.Anything, mock.Anything).Return(&SubscribeResponse{Accepted: true}, nil)
	repo.On("Update", mock.Anything, sub).Return(nil)

	require.NoError(t, newTestHubManager(repo, hub).Renew(context.Background(), sub))
	assert.Equal(t, models.StatusPending, sub.Status)
	hub.AssertExpectations(t)
}

func TestHubManager_Release(t *testing.T) {
	t.Parallel()

	sub := models.NewHubSubscription(testChannelID, testCallback, 60)

	repo := new(mockHubRepo)
	hub := new(mockPubSubHub)
	repo.On("GetByChannelID", mock.Anything, testChannelID).Return([]*models.HubSubscription{sub}, nil)
	hub.On("Unsubscribe", mock.Anything, mock.MatchedBy(func(r *SubscribeRequest) bool {
		return r.TopicURL == sub.TopicURL
	})).Return(&SubscribeResponse{Accepted: true}, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(s *models.HubSubscription) bool {
		return s.Status == models.StatusExpired
	})).Return(nil)

	require.NoError(t, newTestHubManager(repo, hub).Release(context.Background(), testChannelID))
	assert.Equal(t, models.StatusExpired, sub.Status)
	hub.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestHubManager_HandleVerification(t *testing.T) {
	t.Parallel()

	topic := models.TopicURL(testChannelID)

	t.Run("subscribe activates lease", func(t *testing.T) {
		t.Parallel()

		sub := models.NewHubSubscription(testChannelID, testCallback, 60)
		repo := new(mockHubRepo)
		repo.On("GetByTopic", mock.Anything, topic).Return(sub, nil)
		repo.On("Update", mock.Anything, sub).Return(nil)

		err := newTestHubManager(repo, new(mockPubSubHub)).HandleVerification(context.Background(), HubModeSubscribe, topic, 86400)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, sub.Status)
		assert.Equal(t, 86400, sub.LeaseSeconds)
		assert.NotNil(t, sub.LastVerifiedAt)
	})

	t.Run("unsubscribe expires lease", func(t *testing.T) {
		t.Parallel()

		sub := models.NewHubSubscription(testChannelID, testCallback, 60)
		repo := new(mockHubRepo)
		repo.On("GetByTopic", mock.Anything, topic).Return(sub, nil)
		repo.On("Update", mock.Anything, sub).Return(nil)

		err := newTestHubManager(repo, new(mockPubSubHub)).HandleVerification(context.Background(), HubModeUnsubscribe, topic, 0)
		require.NoError(t, err)
		assert.Equal(t, models.StatusExpired, sub.Status)
	})

	t.Run("unknown mode", func(t *testing.T) {
		t.Parallel()

		repo := new(mockHubRepo)
		repo.On("GetByTopic", mock.Anything, topic).Return(models.NewHubSubscription(testChannelID, testCallback, 60), nil)

		err := newTestHubManager(repo, new(mockPubSubHub)).HandleVerification(context.Background(), "denied", topic, 0)
		assert.ErrorIs(t, err, errs.ErrInvalidInput)
	})
}
