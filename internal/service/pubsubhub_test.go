package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vispark/vispark-api/internal/db/models"
	"github.com/vispark/vispark-api/internal/errs"
)

const (
	testHubURL      = "https://pubsubhubbub.appspot.com/subscribe"
	testCallbackURL = "https://api.vispark.test/functions/v1/youtube-push-callback"
)

type mockHTTPClient struct {
	mock.Mock
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func hubResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(body))}
}

func channelRequest(channelID string, lease int, secret *string) *SubscribeRequest {
	return &SubscribeRequest{
		HubURL:       testHubURL,
		TopicURL:     models.TopicURL(channelID),
		CallbackURL:  testCallbackURL,
		LeaseSeconds: lease,
		Secret:       secret,
	}
}

func TestPubSubHubService_Accepted(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusAccepted, http.StatusNoContent} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			t.Parallel()

			client := new(mockHTTPClient)
			client.On("Do", mock.MatchedBy(func(r *http.Request) bool {
				return r.Method == http.MethodPost &&
					r.URL.String() == testHubURL &&
					r.Header.Get("Content-Type") == "application/x-www-form-urlencoded"
			})).Return(hubResponse(status, "OK"), nil)

			result, err := NewPubSubHubService(client, nil, nil).
				Subscribe(context.Background(), channelRequest("UCtest", 432000, nil))

			require.NoError(t, err)
			assert.True(t, result.Accepted)
			assert.Equal(t, status, result.StatusCode)
			assert.Equal(t, 432000, result.LeaseSeconds)
			client.AssertExpectations(t)
		})
	}
}

func TestPubSubHubService_Rejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		resp       *http.Response
		doErr      error
		wantErr    error
		wantStatus int
	}{
		{name: "bad callback", resp: hubResponse(http.StatusBadRequest, "Invalid callback URL"), wantErr: ErrSubscriptionFailed, wantStatus: http.StatusBadRequest},
		{name: "unknown topic", resp: hubResponse(http.StatusNotFound, "Topic not found"), wantErr: ErrSubscriptionFailed, wantStatus: http.StatusNotFound},
		{name: "hub error", resp: hubResponse(http.StatusInternalServerError, "oops"), wantErr: ErrInvalidHubResponse, wantStatus: http.StatusInternalServerError},
		{name: "network", doErr: errors.New("network timeout")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := new(mockHTTPClient)
			if tt.doErr != nil {
				client.On("Do", mock.Anything).Return(nil, tt.doErr)
			} else {
				client.On("Do", mock.Anything).Return(tt.resp, nil)
			}

			result, err := NewPubSubHubService(client, nil, nil).
				Subscribe(context.Background(), channelRequest("UCtest", 432000, nil))

			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrUpstream)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, result.Accepted)
				assert.Equal(t, tt.wantStatus, result.StatusCode)
			} else {
				assert.Nil(t, result)
			}
		})
	}
}

func TestPubSubHubService_FormFields(t *testing.T) {
	t.Parallel()

	secret := "hub-secret"
	tests := []struct {
		name        string
		unsubscribe bool
		req         *SubscribeRequest
		want        url.Values
		absent      []string
	}{
		{
			name: "subscribe with secret",
			req:  channelRequest("UCuAXFkgsw1L7xaCfnd5JJOw", 432000, &secret),
			want: url.Values{
				"hub.mode":          {HubModeSubscribe},
				"hub.topic":         {"https://www.youtube.com/xml/feeds/videos.xml?channel_id=UCuAXFkgsw1L7xaCfnd5JJOw"},
				"hub.callback":      {testCallbackURL},
				"hub.verify":        {"async"},
				"hub.lease_seconds": {"432000"},
				"hub.secret":        {"hub-secret"},
			},
		},
		{
			name:   "subscribe with hub default lease",
			req:    channelRequest("UCtest", 0, nil),
			want:   url.Values{"hub.mode": {HubModeSubscribe}},
			absent: []string{"hub.lease_seconds", "hub.secret"},
		},
		{
			name:        "unsubscribe",
			unsubscribe: true,
			req:         channelRequest("UCtest", 432000, &secret),
			want:        url.Values{"hub.mode": {HubModeUnsubscribe}, "hub.topic": {models.TopicURL("UCtest")}},
			absent:      []string{"hub.lease_seconds", "hub.secret"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var form url.Values
			client := new(mockHTTPClient)
			client.On("Do", mock.Anything).Run(func(args mock.Arguments) {
				r := args.Get(0).(*http.Request)
				require.NoError(t, r.ParseForm())
				form = r.PostForm
			}).Return(hubResponse(http.StatusAccepted, ""), nil)

			svc := NewPubSubHubService(client, nil, nil)
			var err error
			if tt.unsubscribe {
				_, err = svc.Unsubscribe(context.Background(), tt.req)
			} else {
				_, err = svc.Subscribe(context.Background(), tt.req)
			}
			require.NoError(t, err)

			for key, want := range tt.want {
				assert.Equal(t, want, form[key], key)
			}
			for _, key := range tt.absent {
				assert.NotContains(t, form, key)
			}
		})
	}
}

func TestPubSubHubService_ValidateRequest(t *testing.T) {
	t.Parallel()

	valid := func() *SubscribeRequest { return channelRequest("UCtest", 432000, nil) }

	tests := []struct {
		name   string
		mutate func(*SubscribeRequest) *SubscribeRequest
		errMsg string
	}{
		{name: "nil request", mutate: func(*SubscribeRequest) *SubscribeRequest { return nil }, errMsg: "request is nil"},
		{name: "missing hub URL", mutate: func(r *SubscribeRequest) *SubscribeRequest { r.HubURL = ""; return r }, errMsg: "hub URL is required"},
		{name: "missing topic URL", mutate: func(r *SubscribeRequest) *SubscribeRequest { r.TopicURL = ""; return r }, errMsg: "topic URL is required"},
		{name: "missing callback URL", mutate: func(r *SubscribeRequest) *SubscribeRequest { r.CallbackURL = ""; return r }, errMsg: "callback URL is required"},
		{name: "negative lease", mutate: func(r *SubscribeRequest) *SubscribeRequest { r.LeaseSeconds = -1; return r }, errMsg: "lease seconds must be non-negative"},
		{name: "invalid hub URL", mutate: func(r *SubscribeRequest) *SubscribeRequest { r.HubURL = "://invalid"; return r }, errMsg: "invalid hub URL"},
		{name: "non-http callback", mutate: func(r *SubscribeRequest) *SubscribeRequest { r.CallbackURL = "ftp://vispark.test/cb"; return r }, errMsg: "invalid callback URL"},
		{name: "valid", mutate: func(r *SubscribeRequest) *SubscribeRequest { return r }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := validateHubRequest(tt.mutate(valid()))
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	_, err := NewPubSubHubService(new(mockHTTPClient), nil, nil).Subscribe(context.Background(), nil)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

// recordingHub is an httptest hub that accepts every request and keeps the
// submitted forms.
type recordingHub struct {
	mu    sync.Mutex
	forms []url.Values
}

func (h *recordingHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.mu.Lock()
	h.forms = append(h.forms, r.PostForm)
	h.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

func (h *recordingHub) requests() []url.Values {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]url.Values(nil), h.forms...)
}

func TestHubManager_LeaseRoundTripAgainstHub(t *testing.T) {
	t.Parallel()

	hub := &recordingHub{}
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	const channelID = "UCuAXFkgsw1L7xaCfnd5JJOw"
	repo := new(mockHubRepo)
	repo.On("GetByChannelID", mock.Anything, channelID).Return([]*models.HubSubscription{}, nil).Once()
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.HubSubscription")).Return(nil)
	repo.On("Update", mock.Anything, mock.AnythingOfType("*models.HubSubscription")).Return(nil)

	manager := NewHubManager(repo, NewPubSubHubService(srv.Client(), nil, nil), HubConfig{
		HubURL:       srv.URL,
		CallbackURL:  testCallbackURL,
		Secret:       "hub-secret",
		LeaseSeconds: 432000,
	}, nil, nil)

	sub, err := manager.Ensure(context.Background(), channelID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, sub.Status)

	repo.On("GetByTopic", mock.Anything, sub.TopicURL).Return(sub, nil)
	require.NoError(t, manager.HandleVerification(context.Background(), HubModeSubscribe, sub.TopicURL, 86400))
	assert.Equal(t, models.StatusActive, sub.Status)
	assert.Equal(t, 86400, sub.LeaseSeconds)

	repo.On("GetByChannelID", mock.Anything, channelID).Return([]*models.HubSubscription{sub}, nil).Once()
	require.NoError(t, manager.Release(context.Background(), channelID))
	assert.Equal(t, models.StatusExpired, sub.Status)

	forms := hub.requests()
	require.Len(t, forms, 2)

	assert.Equal(t, HubModeSubscribe, forms[0].Get("hub.mode"))
	assert.Equal(t, models.TopicURL(channelID), forms[0].Get("hub.topic"))
	assert.Equal(t, testCallbackURL, forms[0].Get("hub.callback"))
	assert.Equal(t, "432000", forms[0].Get("hub.lease_seconds"))
	assert.Equal(t, "hub-secret", forms[0].Get("hub.secret"))

	assert.Equal(t, HubModeUnsubscribe, forms[1].Get("hub.mode"))
	assert.Equal(t, models.TopicURL(channelID), forms[1].Get("hub.topic"))
	assert.Empty(t, forms[1].Get("hub.secret"))
}
