package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vispark/vispark-api/internal/errs"
)

// DefaultSupadataURL is the Supadata API base.
const DefaultSupadataURL = "https://api.supadata.ai/v1"

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Supadata fetches plain-text transcripts from the Supadata API.
type Supadata struct {
	baseURL string
	apiKey  string
	client  HTTPClient
}

// NewSupadata creates a Supadata source. A nil client gets a default with timeout.
func NewSupadata(baseURL, apiKey string, client HTTPClient, timeout time.Duration) *Supadata {
	if baseURL == "" {
		baseURL = DefaultSupadataURL
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Supadata{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (s *Supadata) Name() string { return "supadata" }

type supadataResponse struct {
	Content        string   `json:"content"`
	Lang           string   `json:"lang"`
	AvailableLangs []string `json:"availableLangs"`
}

type supadataError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (s *Supadata) Fetch(ctx context.Context, videoID, language string) (*Transcript, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("%w: supadata api key is not set", errs.ErrMisconfigured)
	}

	q := url.Values{}
	q.Set("videoId", videoID)
	q.Set("text", "true")
	if language != "" {
		q.Set("lang", language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/youtube/transcript?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: supadata request: %v", errs.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read supadata response: %v", errs.ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, supadataStatusError(resp.StatusCode, body)
	}

	var out supadataResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode supadata response: %v", errs.ErrUpstream, err)
	}

	lang := out.Lang
	if lang == "" {
		lang = language
	}
	return &Transcript{Language: lang, Text: out.Content}, nil
}

func supadataStatusError(status int, body []byte) error {
	var e supadataError
	_ = json.Unmarshal(body, &e)
	msg := e.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: supadata: %s", errs.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: supadata rejected api key", errs.ErrMisconfigured)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: supadata: %s", errs.ErrRateLimited, msg)
	case http.StatusAccepted:
		// Long videos are processed asynchronously and answered with a job id.
		return fmt.Errorf("%w: supadata transcript still processing", errs.ErrUpstream)
	default:
		return fmt.Errorf("%w: supadata status %d: %s", errs.ErrUpstream, status, msg)
	}
}
