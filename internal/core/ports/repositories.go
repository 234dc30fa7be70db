package ports

import (
	"context"

	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories.go -package=mocks

// TransactionRepository defines persistence operations for transactions.
// Create and the mutators run inside a database transaction so cross-entity
// updates commit atomically. Uniqueness violations on code or num come back
// wrapped in domain.ErrDuplicate so callers can retry with a new candidate.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByCode(ctx context.Context, code string) (*domain.Transaction, error)
	Update(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	GetStats(ctx context.Context) (*TransferStats, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	Status   *domain.TransactionStatus
	Channel  *domain.ChannelKind
	Page     int
	PageSize int
}

// TransferStats holds aggregated counters for the reporting dashboard.
type TransferStats struct {
	TotalTransactions int64
	Pending           int64
	Sent              int64
	Done              int64
	Cancelled         int64
	TotalAmountSent   string // decimal string, platform currency
	TotalFees         string
}

// WithdrawalRepository defines persistence operations for withdrawals.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error
	GetByCode(ctx context.Context, code string) (*domain.Withdrawal, error)
	Update(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error
}

// SequenceRepository allocates monotonically increasing numeric ids.
// Next must be atomic: no two concurrent callers ever observe the same value.
type SequenceRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// IdempotencyRepository is the durable source of truth for idempotency keys.
type IdempotencyRepository interface {
	// Reserve claims a key inside the given database transaction. A second
	// reservation of the same key fails with domain.ErrDuplicate.
	Reserve(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	// SetResponse attaches the final serialized transaction to the key.
	SetResponse(ctx context.Context, tx pgx.Tx, key string, response []byte) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
