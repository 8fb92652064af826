package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/handwerkpro/handwerk-api/internal/domain"
	"github.com/handwerkpro/handwerk-api/internal/domain/entity"
	"github.com/handwerkpro/handwerk-api/internal/domain/repository"
)

var _ repository.RemoteStore = (*RemoteStore)(nil)

// RemoteStore authoritative record storage on the shared records table.
// Deletes are tombstones (deleted_at set, payload cleared) so offline
// instances learn about them on the next pull. The amount column mirrors
// the gross_amount field for SQL aggregation.
type RemoteStore struct {
	pool *pgxpool.Pool
}

// NewRemoteStore builds the adapter.
func NewRemoteStore(pool *pgxpool.Pool) *RemoteStore {
	return &RemoteStore{pool: pool}
}

// Migrate applies the remote schema. Safe to run on every startup.
func (s *RemoteStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			tenant     TEXT NOT NULL,
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			payload    JSONB NOT NULL DEFAULT '{}'::jsonb,
			amount     NUMERIC,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			deleted_at TIMESTAMPTZ,
			PRIMARY KEY (tenant, collection, id)
		)`)
	if err != nil {
		return fmt.Errorf("migrate records: %w", classify(err))
	}
	return nil
}

// Select returns every record of the collection, tombstones included,
// oldest first.
func (s *RemoteStore) Select(ctx context.Context, ownerID, collection string) ([]entity.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, payload, created_at, updated_at, deleted_at
		FROM records
		WHERE tenant = $1 AND collection = $2
		ORDER BY created_at, id`, ownerID, collection)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, classify(err))
	}
	defer rows.Close()

	var records []entity.Record
	for rows.Next() {
		var rec entity.Record
		var payload []byte
		var deletedAt *time.Time
		if err := rows.Scan(&rec.ID, &payload, &rec.CreatedAt, &rec.UpdatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", classify(err))
		}
		rec.DeletedAt = deletedAt
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &rec.Fields); err != nil {
				return nil, fmt.Errorf("decode payload %s/%s: %w", collection, rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, classify(err))
	}
	return records, nil
}

// Upsert inserts or replaces the record and returns the stored copy.
func (s *RemoteStore) Upsert(ctx context.Context, ownerID, collection string, rec entity.Record) (entity.Record, error) {
	payload, err := json.Marshal(rec.Fields)
	if err != nil {
		return entity.Record{}, fmt.Errorf("encode payload %s/%s: %w", collection, rec.ID, err)
	}
	amount := amountOf(rec)

	stored := entity.Record{ID: rec.ID, Fields: rec.Fields}
	var deletedAt *time.Time
	err = s.pool.QueryRow(ctx, `
		INSERT INTO records (tenant, collection, id, payload, amount, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
		ON CONFLICT (tenant, collection, id) DO UPDATE
		SET payload = excluded.payload,
		    amount = excluded.amount,
		    updated_at = excluded.updated_at,
		    deleted_at = NULL
		RETURNING created_at, updated_at, deleted_at`,
		ownerID, collection, rec.ID, payload, amount, rec.CreatedAt, rec.UpdatedAt).
		Scan(&stored.CreatedAt, &stored.UpdatedAt, &deletedAt)
	if err != nil {
		return entity.Record{}, fmt.Errorf("upsert %s/%s: %w", collection, rec.ID, classify(err))
	}
	stored.DeletedAt = deletedAt
	return stored, nil
}

// Delete tombstones the record. Unknown ids are written as fresh
// tombstones so the deletion still propagates to other instances.
func (s *RemoteStore) Delete(ctx context.Context, ownerID, collection, id string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO records (tenant, collection, id, payload, amount, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, '{}'::jsonb, NULL, $4, $4, $4)
		ON CONFLICT (tenant, collection, id) DO UPDATE
		SET payload = '{}'::jsonb,
		    amount = NULL,
		    updated_at = $4,
		    deleted_at = $4`,
		ownerID, collection, id, now)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, classify(err))
	}
	return nil
}

// ReceivablesTotal sums the gross amounts of the tenant's open invoices
// server-side. The amount column is NUMERIC and scans straight into a
// decimal thanks to the pool codec.
func (s *RemoteStore) ReceivablesTotal(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM records
		WHERE tenant = $1
		  AND collection = 'invoices'
		  AND deleted_at IS NULL
		  AND payload->>'status' NOT IN ('bezahlt', 'storniert')`, ownerID).
		Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("receivables total: %w", classify(err))
	}
	return total, nil
}

// amountOf extracts the gross amount for the NUMERIC mirror column.
// Records without one (customers, quotes) store NULL.
func amountOf(rec entity.Record) *decimal.Decimal {
	raw, ok := rec.Fields["gross_amount"]
	if !ok {
		return nil
	}
	var d decimal.Decimal
	var err error
	switch v := raw.(type) {
	case string:
		d, err = decimal.NewFromString(v)
	case float64:
		d = decimal.NewFromFloat(v)
	case decimal.Decimal:
		d = v
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return &d
}

// classify maps driver errors onto the sync error taxonomy. Server-side
// refusals that will never succeed on retry (bad data, constraint or SQL
// errors) are permanent; everything else, including timeouts and network
// failures, is transient.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "22"), // data exception
			strings.HasPrefix(pgErr.Code, "23"), // integrity constraint
			strings.HasPrefix(pgErr.Code, "42"): // syntax/access
			return fmt.Errorf("%w: %s", domain.ErrRejected, pgErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
}
