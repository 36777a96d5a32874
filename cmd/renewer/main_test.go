package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vispark/vispark-api/internal/db/models"
)

type mockLeases struct {
	mock.Mock
}

func (m *mockLeases) GetRenewable(ctx context.Context, within, pendingAfter time.Duration, limit int) ([]*models.HubSubscription, error) {
	args := m.Called(ctx, within, pendingAfter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HubSubscription), args.Error(1)
}

type mockRenewer struct {
	mock.Mock
}

func (m *mockRenewer) Renew(ctx context.Context, sub *models.HubSubscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func createTestSubscription(id int64, channelID string, expiresIn time.Duration) *models.HubSubscription {
	return &models.HubSubscription{
		ID:           id,
		ChannelID:    channelID,
		TopicURL:     models.TopicURL(channelID),
		HubURL:       models.DefaultHubURL,
		LeaseSeconds: 432000,
		ExpiresAt:    time.Now().Add(expiresIn),
		Status:       models.StatusActive,
	}
}

func newRenewalService(leases *mockLeases, renewer *mockRenewer, log *zap.Logger) *RenewalService {
	return &RenewalService{
		leases:       leases,
		renewer:      renewer,
		logger:       log,
		batchSize:    100,
		window:       renewalWindow,
		pendingAfter: time.Hour,
	}
}

func TestRenewalService_RenewExpiring_Success(t *testing.T) {
	t.Parallel()

	leases := new(mockLeases)
	renewer := new(mockRenewer)
	svc := newRenewalService(leases, renewer, zap.NewNop())

	subscriptions := []*models.HubSubscription{
		createTestSubscription(1, "UCtest1", 12*time.Hour),
		createTestSubscription(2, "UCtest2", 6*time.Hour),
		createTestSubscription(3, "UCtest3", time.Hour),
	}

	leases.On("GetRenewable", mock.Anything, 24*time.Hour, time.Hour, 100).Return(subscriptions, nil)
	renewer.On("Renew", mock.Anything, mock.Anything).Return(nil).Times(3)

	err := svc.RenewExpiring(context.Background())

	require.NoError(t, err)
	leases.AssertExpectations(t)
	renewer.AssertExpectations(t)
}

func TestRenewalService_RenewExpiring_NoSubscriptions(t *testing.T) {
	t.Parallel()

	leases := new(mockLeases)
	renewer := new(mockRenewer)
	svc := newRenewalService(leases, renewer, zap.NewNop())

	leases.On("GetRenewable", mock.Anything, 24*time.Hour, time.Hour, 100).Return([]*models.HubSubscription{}, nil)

	err := svc.RenewExpiring(context.Background())

	require.NoError(t, err)
	renewer.AssertNotCalled(t, "Renew")
}

func TestRenewalService_RenewExpiring_ListError(t *testing.T) {
	t.Parallel()

	leases := new(mockLeases)
	renewer := new(mockRenewer)
	svc := newRenewalService(leases, renewer, zap.NewNop())

	dbErr := errors.New("database connection failed")
	leases.On("GetRenewable", mock.Anything, 24*time.Hour, time.Hour, 100).Return(nil, dbErr)

	err := svc.RenewExpiring(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get renewable subscriptions")
	assert.ErrorIs(t, err, dbErr)
	renewer.AssertNotCalled(t, "Renew")
}

func TestRenewalService_RenewExpiring_PartialSuccess(t *testing.T) {
	t.Parallel()

	leases := new(mockLeases)
	renewer := new(mockRenewer)
	core, logs := observer.New(zap.InfoLevel)
	svc := newRenewalService(leases, renewer, zap.New(core))

	subscriptions := []*models.HubSubscription{
		createTestSubscription(1, "UCtest1", 12*time.Hour),
		createTestSubscription(2, "UCtest2", 6*time.Hour),
		createTestSubscription(3, "UCtest3", time.Hour),
	}
	leases.On("GetRenewable", mock.Anything, 24*time.Hour, time.Hour, 100).Return(subscriptions, nil)

	renewer.On("Renew", mock.Anything, subscriptions[0]).Return(nil).Once()
	renewer.On("Renew", mock.Anything, subscriptions[1]).Return(errors.New("hub connection failed")).Once()
	renewer.On("Renew", mock.Anything, subscriptions[2]).Return(nil).Once()

	// One failure does not stop the batch.
	err := svc.RenewExpiring(context.Background())

	require.NoError(t, err)
	renewer.AssertExpectations(t)

	completed := logs.FilterMessage("renewal batch completed").All()
	require.Len(t, completed, 1)
	fields := completed[0].ContextMap()
	assert.EqualValues(t, 2, fields["successful"])
	assert.EqualValues(t, 1, fields["failed"])
	assert.Equal(t, 1, logs.FilterMessage("failed to renew subscription").Len())
}
