package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/errs"
	"github.com/vispark/vispark-api/internal/metrics"
	"github.com/vispark/vispark-api/pkg/logger"
)

var (
	// ErrSubscriptionFailed is returned when the PubSubHubbub hub rejects the subscription.
	ErrSubscriptionFailed = errors.New("subscription request failed")

	// ErrInvalidHubResponse is returned when the hub returns an unexpected response.
	ErrInvalidHubResponse = errors.New("invalid hub response")
)

// Hub modes.
const (
	HubModeSubscribe   = "subscribe"
	HubModeUnsubscribe = "unsubscribe"
)

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PubSubHub defines the interface for interacting with PubSubHubbub hubs.
type PubSubHub interface {
	Subscribe(ctx context.Context, req *SubscribeRequest) (*SubscribeResponse, error)
	Unsubscribe(ctx context.Context, req *SubscribeRequest) (*SubscribeResponse, error)
}

// PubSubHubService handles interactions with the PubSubHubbub hub.
type PubSubHubService struct {
	client  HTTPClient
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewPubSubHubService creates a new PubSubHubService.
func NewPubSubHubService(client HTTPClient, log *zap.Logger, m *metrics.Metrics) *PubSubHubService {
	if client == nil {
		client = &http.Client{}
	}
	return &PubSubHubService{
		client:  client,
		logger:  logger.OrNop(log),
		metrics: m,
	}
}

// SubscribeRequest contains the parameters for subscribing to a topic.
type SubscribeRequest struct {
	HubURL       string
	TopicURL     string
	CallbackURL  string
	LeaseSeconds int
	Secret       *string
}

// SubscribeResponse contains the response from the hub.
type SubscribeResponse struct {
	Accepted     bool
	StatusCode   int
	ResponseBody string
	LeaseSeconds int
}

// Subscribe sends a subscription request to the PubSubHubbub hub.
// The hub should respond with 202 Accepted if the request is valid; the
// subscription is only confirmed once the hub calls back with a challenge.
func (s *PubSubHubService) Subscribe(ctx context.Context, req *SubscribeRequest) (*SubscribeResponse, error) {
	if err := validateHubRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}

	form := url.Values{}
	form.Set("hub.mode", HubModeSubscribe)
	form.Set("hub.topic", req.TopicURL)
	form.Set("hub.callback", req.CallbackURL)
	form.Set("hub.verify", "async")
	if req.LeaseSeconds > 0 {
		form.Set("hub.lease_seconds", strconv.Itoa(req.LeaseSeconds))
	}
	if req.Secret != nil && *req.Secret != "" {
		form.Set("hub.secret", *req.Secret)
	}

	resp, err := s.post(ctx, req, HubModeSubscribe, form)
	if resp != nil {
		resp.LeaseSeconds = req.LeaseSeconds
	}
	return resp, err
}

// Unsubscribe sends an unsubscription request to the PubSubHubbub hub.
func (s *PubSubHubService) Unsubscribe(ctx context.Context, req *SubscribeRequest) (*SubscribeResponse, error) {
	if err := validateHubRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidInput, err)
	}

	form := url.Values{}
	form.Set("hub.mode", HubModeUnsubscribe)
	form.Set("hub.topic", req.TopicURL)
	form.Set("hub.callback", req.CallbackURL)
	form.Set("hub.verify", "async")

	return s.post(ctx, req, HubModeUnsubscribe, form)
}

func (s *PubSubHubService) post(ctx context.Context, req *SubscribeRequest, mode string, form url.Values) (*SubscribeResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.HubURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	log := s.logger.With(
		zap.String("mode", mode),
		zap.String("hub_url", req.HubURL),
		zap.String("topic_url", req.TopicURL),
	)
	log.Info("sending request to hub", zap.String("callback_url", req.CallbackURL))

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.metrics.Upstream("pubsubhubbub", mode, err)
		return nil, fmt.Errorf("%w: send hub request: %v", errs.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		s.metrics.Upstream("pubsubhubbub", mode, err)
		return nil, fmt.Errorf("read response body: %w", err)
	}

	response := &SubscribeResponse{
		StatusCode:   resp.StatusCode,
		ResponseBody: string(body),
	}

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusNoContent:
		response.Accepted = true
		log.Info("hub accepted request", zap.Int("status_code", resp.StatusCode))
		s.metrics.Upstream("pubsubhubbub", mode, nil)
		return response, nil
	case http.StatusBadRequest, http.StatusNotFound:
		err = fmt.Errorf("%w: %s %d - %s", ErrSubscriptionFailed, mode, resp.StatusCode, string(body))
		log.Warn("hub rejected request", zap.Int("status_code", resp.StatusCode), zap.String("response_body", string(body)))
	default:
		err = fmt.Errorf("%w: unexpected status code %d - %s", ErrInvalidHubResponse, resp.StatusCode, string(body))
		log.Error("unexpected response from hub", zap.Int("status_code", resp.StatusCode), zap.String("response_body", string(body)))
	}

	s.metrics.Upstream("pubsubhubbub", mode, err)
	return response, fmt.Errorf("%w: %w", errs.ErrUpstream, err)
}

func validateHubRequest(req *SubscribeRequest) error {
	if req == nil {
		return errors.New("request is nil")
	}
	if req.HubURL == "" {
		return errors.New("hub URL is required")
	}
	if req.TopicURL == "" {
		return errors.New("topic URL is required")
	}
	if req.CallbackURL == "" {
		return errors.New("callback URL is required")
	}
	if req.LeaseSeconds < 0 {
		return errors.New("lease seconds must be non-negative")
	}

	for name, raw := range map[string]string{"hub": req.HubURL, "topic": req.TopicURL, "callback": req.CallbackURL} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s URL: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid %s URL: scheme must be http or https", name)
		}
	}

	return nil
}
