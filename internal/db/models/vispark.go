package models

import (
	"time"

	"github.com/google/uuid"
)

// Vispark is a saved video summary owned by one user.
// Video metadata is denormalized so listings never call YouTube.
type Vispark struct {
	ID                   uuid.UUID         `db:"id" json:"id"`
	UserID               uuid.UUID         `db:"user_id" json:"user_id"`
	VideoID              string            `db:"video_id" json:"video_id"`
	VideoChannelID       string            `db:"video_channel_id" json:"video_channel_id"`
	Summaries            []string          `db:"summaries" json:"summaries"`
	VideoTitle           *string           `db:"video_title" json:"video_title"`
	VideoThumbnails      map[string]string `db:"video_thumbnails" json:"video_thumbnails"`
	VideoPublishedAt     *time.Time        `db:"video_published_at" json:"video_published_at"`
	VideoDuration        *string           `db:"video_duration" json:"video_duration"`
	VideoDefaultLanguage *string           `db:"video_default_language" json:"video_default_language"`
	CreatedAt            time.Time         `db:"created_at" json:"created_at"`
}

// VideoMetadata is the YouTube metadata copied onto a Vispark.
type VideoMetadata struct {
	VideoID         string            `json:"video_id"`
	ChannelID       string            `json:"channel_id"`
	Title           string            `json:"title"`
	Thumbnails      map[string]string `json:"thumbnails"`
	PublishedAt     *time.Time        `json:"published_at,omitempty"`
	Duration        string            `json:"duration"`
	DefaultLanguage string            `json:"default_language"`
}

// NewVispark builds a Vispark for a user from summaries and optional metadata.
func NewVispark(userID uuid.UUID, videoID string, summaries []string, meta *VideoMetadata) *Vispark {
	v := &Vispark{
		UserID:          userID,
		VideoID:         videoID,
		Summaries:       summaries,
		VideoThumbnails: map[string]string{},
	}

	if meta == nil {
		return v
	}

	v.VideoChannelID = meta.ChannelID
	v.VideoTitle = optional(meta.Title)
	v.VideoPublishedAt = meta.PublishedAt
	v.VideoDuration = optional(meta.Duration)
	v.VideoDefaultLanguage = optional(meta.DefaultLanguage)
	for k, u := range meta.Thumbnails {
		v.VideoThumbnails[k] = u
	}

	return v
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
