package models

import (
	"fmt"
	"time"
)

// Hub subscription status constants
const (
	StatusPending = "pending"
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusFailed  = "failed"
)

// DefaultHubURL is Google's public PubSubHubbub hub.
const DefaultHubURL = "https://pubsubhubbub.appspot.com/subscribe"

// HubSubscription is the PubSubHubbub lease held for one YouTube channel.
// Users subscribe to channels through ChannelSubscription; the hub lease is
// shared by all of them.
type HubSubscription struct {
	ID             int64      `db:"id" json:"id"`
	ChannelID      string     `db:"channel_id" json:"channel_id"`
	TopicURL       string     `db:"topic_url" json:"topic_url"`
	CallbackURL    string     `db:"callback_url" json:"callback_url"`
	HubURL         string     `db:"hub_url" json:"hub_url"`
	LeaseSeconds   int        `db:"lease_seconds" json:"lease_seconds"`
	ExpiresAt      time.Time  `db:"expires_at" json:"expires_at"`
	Status         string     `db:"status" json:"status"`
	Secret         *string    `db:"secret" json:"-"`
	LastVerifiedAt *time.Time `db:"last_verified_at" json:"last_verified_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// TopicURL returns the YouTube feed topic for a channel.
func TopicURL(channelID string) string {
	return fmt.Sprintf("https://www.youtube.com/xml/feeds/videos.xml?channel_id=%s", channelID)
}

// NewHubSubscription creates a pending HubSubscription for a channel.
func NewHubSubscription(channelID, callbackURL string, leaseSeconds int) *HubSubscription {
	now := time.Now()

	return &HubSubscription{
		ChannelID:    channelID,
		TopicURL:     TopicURL(channelID),
		CallbackURL:  callbackURL,
		HubURL:       DefaultHubURL,
		LeaseSeconds: leaseSeconds,
		ExpiresAt:    now.Add(time.Duration(leaseSeconds) * time.Second),
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MarkActive marks the subscription as active and updates the verification timestamp.
func (s *HubSubscription) MarkActive() {
	s.Status = StatusActive
	now := time.Now()
	s.LastVerifiedAt = &now
	s.UpdatedAt = now
}

// MarkFailed marks the subscription as failed.
func (s *HubSubscription) MarkFailed() {
	s.Status = StatusFailed
	s.UpdatedAt = time.Now()
}

// MarkExpired marks the subscription as expired.
func (s *HubSubscription) MarkExpired() {
	s.Status = StatusExpired
	s.UpdatedAt = time.Now()
}

// IsExpired returns true if the subscription has expired.
func (s *HubSubscription) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// UpdateExpiry updates the expiry time based on the lease seconds.
func (s *HubSubscription) UpdateExpiry(leaseSeconds int) {
	s.LeaseSeconds = leaseSeconds
	s.ExpiresAt = time.Now().Add(time.Duration(leaseSeconds) * time.Second)
	s.UpdatedAt = time.Now()
}
