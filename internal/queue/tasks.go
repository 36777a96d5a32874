package queue

import (
	"encoding/json"
	"fmt"
)

// Task types
const (
	TypeSummarizeVideo = "vispark:summarize"
)

// Queue names
const (
	QueueDefault = "default"
)

// SummarizeVideoPayload is the payload for background summary tasks.
type SummarizeVideoPayload struct {
	VideoID   string `json:"video_id"`
	ChannelID string `json:"channel_id"`
	Title     string `json:"title,omitempty"`
	Language  string `json:"language,omitempty"`
}

// NewSummarizeVideoTask creates a summary task payload.
func NewSummarizeVideoTask(videoID, channelID, title, language string) (*SummarizeVideoPayload, error) {
	if videoID == "" {
		return nil, fmt.Errorf("video ID is required")
	}

	return &SummarizeVideoPayload{
		VideoID:   videoID,
		ChannelID: channelID,
		Title:     title,
		Language:  language,
	}, nil
}

// Marshal serializes the payload to JSON
func (p *SummarizeVideoPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalSummarizeVideoPayload deserializes JSON to payload
func UnmarshalSummarizeVideoPayload(data []byte) (*SummarizeVideoPayload, error) {
	var payload SummarizeVideoPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if payload.VideoID == "" {
		return nil, fmt.Errorf("payload has no video ID")
	}
	return &payload, nil
}

// taskID dedupes summary tasks for the same video while one is queued.
func taskID(videoID string) string {
	return TypeSummarizeVideo + ":" + videoID
}
