package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoNotification records a push-notified video for one subscribed user.
type VideoNotification struct {
	ID               int64     `db:"id" json:"id"`
	UserID           uuid.UUID `db:"user_id" json:"user_id"`
	ChannelID        string    `db:"channel_id" json:"channel_id"`
	VideoID          string    `db:"video_id" json:"video_id"`
	Title            string    `db:"title" json:"title"`
	PublishedAt      time.Time `db:"published_at" json:"published_at"`
	SummaryGenerated bool      `db:"summary_generated" json:"summary_generated"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// NewVideoNotification creates an unsummarized notification.
func NewVideoNotification(userID uuid.UUID, channelID, videoID, title string, publishedAt time.Time) *VideoNotification {
	return &VideoNotification{
		UserID:      userID,
		ChannelID:   channelID,
		VideoID:     videoID,
		Title:       title,
		PublishedAt: publishedAt,
		CreatedAt:   time.Now(),
	}
}
