package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
)

// IdempotencyRepo implements ports.IdempotencyRepository. The keys table is
// the durable source of truth; Redis in front of it is only an accelerator.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Reserve claims a key within a database transaction. A second reservation
// of the same key fails with domain.ErrDuplicate.
func (r *IdempotencyRepo) Reserve(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	query := `INSERT INTO idempotency_keys (key, transaction_id, response, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := tx.Exec(ctx, query, rec.Key, rec.TransactionID, rec.Response, rec.CreatedAt)
	if err != nil {
		return translateUnique(err, "reserve idempotency key")
	}
	return nil
}

// Get fetches an idempotency record by key. Returns nil, nil when absent.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	query := `SELECT key, transaction_id, response, created_at FROM idempotency_keys WHERE key = $1`

	rec := &domain.IdempotencyRecord{}
	err := r.pool.QueryRow(ctx, query, key).Scan(&rec.Key, &rec.TransactionID, &rec.Response, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return rec, nil
}

// SetResponse attaches the final serialized transaction to a reserved key
// within a database transaction.
func (r *IdempotencyRepo) SetResponse(ctx context.Context, tx pgx.Tx, key string, response []byte) error {
	query := `UPDATE idempotency_keys SET response = $1 WHERE key = $2`

	tag, err := tx.Exec(ctx, query, response, key)
	if err != nil {
		return fmt.Errorf("set idempotency response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("idempotency key not found: %s", key)
	}
	return nil
}
