package repository

import (
	"context"

	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
)

// RemoteStore is the authoritative CRUD port, scoped by owner. Failures are
// classified by wrapping: domain.ErrUnreachable for transient conditions
// (retry later), domain.ErrRejected for permanent refusals (drop and log).
type RemoteStore interface {
	// Select returns all records of the collection owned by ownerID,
	// including tombstones, so pulls can propagate deletions.
	Select(ctx context.Context, ownerID, collection string) ([]entity.Record, error)
	// Upsert inserts or replaces the record and returns the stored copy
	// with any server-assigned fields.
	Upsert(ctx context.Context, ownerID, collection string, rec entity.Record) (entity.Record, error)
	// Delete writes a tombstone for the record. Deleting an unknown id is
	// not an error.
	Delete(ctx context.Context, ownerID, collection, id string) error
}
