package entity

import "time"

// Queue actions.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// QueueItem is a local mutation not yet confirmed remote-side. Items live in
// a single FIFO queue; RetryCount and NextRetryAt implement per-item
// exponential backoff so one failing item cannot starve the rest.
type QueueItem struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Collection  string    `json:"collection"`
	Action      string    `json:"action"`
	Record      Record    `json:"record"` // full payload for upsert; only Record.ID matters for delete
	EnqueuedAt  time.Time `json:"enqueued_at"`
	RetryCount  int       `json:"retry_count"`
	NextRetryAt time.Time `json:"next_retry_at"`
}

// Due reports whether the item may be attempted at the given time.
func (q QueueItem) Due(now time.Time) bool {
	return !q.NextRetryAt.After(now)
}
