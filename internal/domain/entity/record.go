package entity

import "time"

// Collections synced between the local cache and the remote store.
const (
	CollectionInvoices  = "invoices"
	CollectionCustomers = "customers"
	CollectionQuotes    = "quotes"
	CollectionOrders    = "purchase_orders"
	CollectionMahnungen = "mahnungen"
)

// Record is a generic synced entity: a stable ID plus arbitrary domain
// fields. The ID is the sole join key between the local and remote copies.
type Record struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"` // tombstone: set instead of hard-deleting remotely
	Fields    map[string]any `json:"fields,omitempty"`
}

// IsTombstone reports whether the record marks a deletion.
func (r Record) IsTombstone() bool {
	return r.DeletedAt != nil
}

// lwwTime is the timestamp used for last-write-wins merging: UpdatedAt,
// falling back to CreatedAt for records that were never updated. A tombstone
// counts from its deletion time so that deletes compete with updates.
func (r Record) lwwTime() time.Time {
	if r.DeletedAt != nil && r.DeletedAt.After(r.UpdatedAt) {
		return *r.DeletedAt
	}
	if r.UpdatedAt.IsZero() {
		return r.CreatedAt
	}
	return r.UpdatedAt
}

// NewerThan reports whether r wins a last-write-wins merge against other.
// Strictly newer only: on a tie the other (remote) copy wins.
func (r Record) NewerThan(other Record) bool {
	return r.lwwTime().After(other.lwwTime())
}

// Clone returns a deep copy so cached records cannot be mutated through
// shared field maps.
func (r Record) Clone() Record {
	out := r
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		out.DeletedAt = &t
	}
	if r.Fields != nil {
		out.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// Field returns a string field value, or "" if absent or not a string.
func (r Record) Field(name string) string {
	s, _ := r.Fields[name].(string)
	return s
}
