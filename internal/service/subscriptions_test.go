package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vispark/vispark-api/internal/db"
	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/errs"
)

func TestSubscriptionService_Subscribe(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	subs := new(mockChannelSubRepo)
	subs.On("Create", mock.Anything, mock.MatchedBy(func(s *models.ChannelSubscription) bool {
		return s.UserID == userID && s.ChannelID == testChannelID && s.ChannelTitle == "Rick" &&
			s.ChannelThumbnailURL != nil && *s.ChannelThumbnailURL == "https://img/1.jpg"
	})).Return(nil)

	leases := new(mockLeases)
	leases.On("Ensure", mock.Anything, testChannelID).Return(nil, nil)

	svc := NewSubscriptionService(subs, leases, nil)
	sub, err := svc.Subscribe(context.Background(), userID, SubscribeChannelRequest{
		ChannelID:           " " + testChannelID + " ",
		ChannelTitle:        "Rick",
		ChannelThumbnailURL: "https://img/1.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, testChannelID, sub.ChannelID)

	subs.AssertExpectations(t)
	leases.AssertExpectations(t)
}

func TestSubscriptionService_Subscribe_InvalidChannel(t *testing.T) {
	t.Parallel()

	subs := new(mockChannelSubRepo)
	svc := NewSubscriptionService(subs, nil, nil)

	_, err := svc.Subscribe(context.Background(), uuid.New(), SubscribeChannelRequest{ChannelID: "not-a-channel"})
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	subs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubscriptionService_Subscribe_Duplicate(t *testing.T) {
	t.Parallel()

	subs := new(mockChannelSubRepo)
	subs.On("Create", mock.Anything, mock.Anything).
		Return(fmt.Errorf("create channel subscription: %w", db.ErrDuplicateKey))

	svc := NewSubscriptionService(subs, new(mockLeases), nil)
	_, err := svc.Subscribe(context.Background(), uuid.New(), SubscribeChannelRequest{ChannelID: testChannelID})
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestSubscriptionService_Subscribe_HubFailureKeepsSubscription(t *testing.T) {
	t.Parallel()

	subs := new(mockChannelSubRepo)
	subs.On("Create", mock.Anything, mock.Anything).Return(nil)
	leases := new(mockLeases)
	leases.On("Ensure", mock.Anything, testChannelID).Return(nil, errors.New("hub down"))

	svc := NewSubscriptionService(subs, leases, nil)
	sub, err := svc.Subscribe(context.Background(), uuid.New(), SubscribeChannelRequest{ChannelID: testChannelID})
	require.NoError(t, err)
	assert.NotNil(t, sub)
}

func TestSubscriptionService_Unsubscribe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		remaining   int
		wantRelease bool
	}{
		{name: "last subscriber releases lease", remaining: 0, wantRelease: true},
		{name: "other subscribers keep lease", remaining: 2, wantRelease: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			userID := uuid.New()
			subs := new(mockChannelSubRepo)
			subs.On("Delete", mock.Anything, userID, testChannelID).Return(nil)
			subs.On("CountByChannel", mock.Anything, testChannelID).Return(tt.remaining, nil)

			leases := new(mockLeases)
			leases.On("Release", mock.Anything, testChannelID).Return(nil)

			svc := NewSubscriptionService(subs, leases, nil)
			require.NoError(t, svc.Unsubscribe(context.Background(), userID, testChannelID))

			if tt.wantRelease {
				leases.AssertCalled(t, "Release", mock.Anything, testChannelID)
			} else {
				leases.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestSubscriptionService_Unsubscribe_NotFound(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	subs := new(mockChannelSubRepo)
	subs.On("Delete", mock.Anything, userID, testChannelID).Return(errs.ErrNotFound)

	svc := NewSubscriptionService(subs, new(mockLeases), nil)
	err := svc.Unsubscribe(context.Background(), userID, testChannelID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSubscriptionService_List_EmptyIsNotNil(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	subs := new(mockChannelSubRepo)
	subs.On("ListByUser", mock.Anything, userID).Return(nil, nil)

	got, err := NewSubscriptionService(subs, nil, nil).List(context.Background(), userID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
