// Package validation checks identifiers and payloads received from clients
// and from the PubSubHubbub hub.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/vispark/vispark-api/internal/errs"
)

var (
	videoIDRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	channelIDRegex = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)
	handleRegex    = regexp.MustCompile(`^@[a-zA-Z0-9._-]{3,30}$`)
	languageRegex  = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z]{2,4})?$`)
)

// Pagination bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Validator struct {
	maxPayloadSize    int64
	validationEnabled bool
}

func New(maxPayloadSize int64, enabled bool) *Validator {
	return &Validator{
		maxPayloadSize:    maxPayloadSize,
		validationEnabled: enabled,
	}
}

// ValidatePushBody checks the size and shape of a hub notification body.
func (v *Validator) ValidatePushBody(body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("%w: empty notification body", errs.ErrInvalidInput)
	}
	if !v.validationEnabled {
		return nil
	}
	if v.maxPayloadSize > 0 && int64(len(body)) > v.maxPayloadSize {
		return fmt.Errorf("%w: payload exceeds maximum size of %d bytes", errs.ErrInvalidInput, v.maxPayloadSize)
	}
	if !strings.Contains(string(body), "<feed") {
		return fmt.Errorf("%w: body is not an atom feed", errs.ErrInvalidInput)
	}
	return nil
}

// IsValidVideoID reports whether s is an 11 character YouTube video id.
func IsValidVideoID(s string) bool {
	return videoIDRegex.MatchString(s)
}

// IsValidChannelID reports whether s is a UC-prefixed channel id.
func IsValidChannelID(s string) bool {
	return channelIDRegex.MatchString(s)
}

// IsValidChannelRef accepts a channel id or an @handle.
func IsValidChannelRef(s string) bool {
	return channelIDRegex.MatchString(s) || handleRegex.MatchString(s)
}

// IsValidLanguage accepts an empty code or an ISO 639 code with optional region.
func IsValidLanguage(s string) bool {
	return s == "" || languageRegex.MatchString(s)
}

// ExtractVideoID returns the video id from a bare id or any common YouTube
// URL form (watch, youtu.be, shorts, embed, live).
func ExtractVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%w: videoId or url is required", errs.ErrInvalidInput)
	}
	if IsValidVideoID(input) {
		return input, nil
	}

	raw := input
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: unparseable url %q", errs.ErrInvalidInput, input)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	host = strings.TrimPrefix(host, "music.")

	var candidate string
	switch host {
	case "youtu.be":
		candidate = firstSegment(u.Path)
	case "youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			candidate = v
			break
		}
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segs) >= 2 {
			switch segs[0] {
			case "shorts", "embed", "live", "v", "e":
				candidate = segs[1]
			}
		}
	default:
		return "", fmt.Errorf("%w: not a youtube url: %q", errs.ErrInvalidInput, input)
	}

	if !IsValidVideoID(candidate) {
		return "", fmt.Errorf("%w: no video id in %q", errs.ErrInvalidInput, input)
	}
	return candidate, nil
}

func firstSegment(p string) string {
	p = strings.Trim(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// Pagination clamps limit and offset to sane values.
func Pagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
