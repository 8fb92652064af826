package dto

import "time"

// UpsertRecordRequest body for PUT /api/records/:collection/:id. Fields is
// the arbitrary domain payload; timestamps are managed by the sync engine.
type UpsertRecordRequest struct {
	CreatedAt *time.Time     `json:"created_at,omitempty"`
	Fields    map[string]any `json:"fields"`
}
