package domain

import "time"

// StatsSample is one stream-quality report from a broadcaster, kept in a
// bounded per-room history for the stats endpoint.
type StatsSample struct {
	Timestamp time.Time      `json:"timestamp"`
	Stats     map[string]any `json:"stats"`
}
