package models

import (
	"time"

	"github.com/google/uuid"
)

// ChannelSubscription maps a user to a YouTube channel they follow.
type ChannelSubscription struct {
	ID                  int64     `db:"id" json:"id"`
	UserID              uuid.UUID `db:"user_id" json:"user_id"`
	ChannelID           string    `db:"channel_id" json:"channel_id"`
	ChannelTitle        string    `db:"channel_title" json:"channel_title"`
	ChannelThumbnailURL *string   `db:"channel_thumbnail_url" json:"channel_thumbnail_url,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}
