package postgres

import (
	"context"
	"fmt"
)

// SequenceRepo implements ports.SequenceRepository on a counters table.
// Allocation is one atomic statement: the first caller seeds the counter,
// every later caller bumps it. Two concurrent calls serialize on the row
// lock, so no value is ever handed out twice.
type SequenceRepo struct {
	pool Pool
	seed int64
}

// NewSequenceRepo creates a new SequenceRepo. seed is the first value the
// counter hands out.
func NewSequenceRepo(pool Pool, seed int64) *SequenceRepo {
	return &SequenceRepo{pool: pool, seed: seed}
}

// Next returns the next value of the named counter.
func (r *SequenceRepo) Next(ctx context.Context, name string) (int64, error) {
	query := `INSERT INTO counters (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value`

	var value int64
	if err := r.pool.QueryRow(ctx, query, name, r.seed).Scan(&value); err != nil {
		return 0, fmt.Errorf("next %s counter: %w", name, err)
	}
	return value, nil
}
