package models

import "time"

// APIQuotaUsage tracks daily YouTube API quota consumption.
type APIQuotaUsage struct {
	ID                int64     `json:"id"`
	Date              time.Time `json:"date"`
	QuotaUsed         int       `json:"quota_used"`
	QuotaLimit        int       `json:"quota_limit"`
	OperationsCount   int       `json:"operations_count"`
	SearchCalls       int       `json:"search_calls"`
	ChannelsListCalls int       `json:"channels_list_calls"`
	PlaylistCalls     int       `json:"playlist_items_calls"`
	VideosListCalls   int       `json:"videos_list_calls"`
	OtherCalls        int       `json:"other_calls"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// QuotaInfo provides current quota status.
type QuotaInfo struct {
	QuotaUsed       int `json:"quota_used"`
	QuotaLimit      int `json:"quota_limit"`
	QuotaRemaining  int `json:"quota_remaining"`
	OperationsCount int `json:"operations_count"`
}
