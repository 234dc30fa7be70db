package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
)

// TransactionRepo implements ports.TransactionRepository. Amounts are stored
// as NUMERIC and travel as decimal strings; they never pass through floats.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const txColumns = `id, num, code, sender_ref, recipient_phone, recipient_ref, recipient_name,
		amount_sent::text, amount_converted::text, amount_received::text, fees::text, fee_detail,
		send_currency, receive_currency, channel, status, gateway_ref, error_code, created_at, updated_at`

// Create inserts a new transaction within a database transaction. Unique
// violations on code or num come back as domain.ErrDuplicate.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, num, code, sender_ref, recipient_phone, recipient_ref, recipient_name,
		amount_sent, amount_converted, amount_received, fees, fee_detail,
		send_currency, receive_currency, channel, status, gateway_ref, error_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.Num, t.Code, t.SenderRef, t.RecipientPhone, t.RecipientRef, t.RecipientName,
		t.AmountSent.Amount().String(), t.AmountConverted.Amount().String(),
		t.AmountReceived.Amount().String(), t.Fees.Amount().String(), t.FeeDetail,
		t.SendCurrency, t.ReceiveCurrency, t.Channel, t.Status,
		t.GatewayRef, t.ErrorCode, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return translateUnique(err, "insert transaction")
	}
	return nil
}

// GetByID fetches a transaction by UUID. Returns nil, nil when absent.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1`, txColumns)
	return r.scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByCode fetches a transaction by its human-facing code.
func (r *TransactionRepo) GetByCode(ctx context.Context, code string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE code = $1`, txColumns)
	return r.scanTransaction(r.pool.QueryRow(ctx, query, code))
}

// Update rewrites the mutable fields of a transaction within a database
// transaction.
func (r *TransactionRepo) Update(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `UPDATE transactions
		SET recipient_ref = $1, recipient_name = $2, fees = $3, status = $4,
			gateway_ref = $5, error_code = $6, updated_at = $7
		WHERE id = $8`

	tag, err := tx.Exec(ctx, query,
		t.RecipientRef, t.RecipientName, t.Fees.Amount().String(), t.Status,
		t.GatewayRef, t.ErrorCode, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", t.ID)
	}
	return nil
}

// UpdateStatus updates only the lifecycle status within a database transaction.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	query := `UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// List fetches transactions with filtering and pagination.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Channel != nil {
		conditions = append(conditions, fmt.Sprintf("channel = $%d", argIdx))
		args = append(args, *params.Channel)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		txColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// GetStats aggregates the reporting counters in one query.
func (r *TransactionRepo) GetStats(ctx context.Context) (*ports.TransferStats, error) {
	query := `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'PENDING'),
		COUNT(*) FILTER (WHERE status = 'SENT'),
		COUNT(*) FILTER (WHERE status = 'DONE'),
		COUNT(*) FILTER (WHERE status = 'CANCELLED'),
		COALESCE(SUM(amount_sent) FILTER (WHERE status IN ('SENT', 'DONE')), 0)::text,
		COALESCE(SUM(fees) FILTER (WHERE status IN ('SENT', 'DONE')), 0)::text
		FROM transactions`

	stats := &ports.TransferStats{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.TotalTransactions, &stats.Pending, &stats.Sent,
		&stats.Done, &stats.Cancelled, &stats.TotalAmountSent, &stats.TotalFees,
	)
	if err != nil {
		return nil, fmt.Errorf("get transaction stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *TransactionRepo) scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func scanTransactionRow(row rowScanner) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var amountSent, amountConverted, amountReceived, fees string
	if err := row.Scan(
		&t.ID, &t.Num, &t.Code, &t.SenderRef, &t.RecipientPhone, &t.RecipientRef, &t.RecipientName,
		&amountSent, &amountConverted, &amountReceived, &fees, &t.FeeDetail,
		&t.SendCurrency, &t.ReceiveCurrency, &t.Channel, &t.Status,
		&t.GatewayRef, &t.ErrorCode, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if t.AmountSent, err = domain.MoneyFromString(amountSent, t.SendCurrency); err != nil {
		return nil, fmt.Errorf("parse amount_sent: %w", err)
	}
	if t.AmountConverted, err = domain.MoneyFromString(amountConverted, t.ReceiveCurrency); err != nil {
		return nil, fmt.Errorf("parse amount_converted: %w", err)
	}
	if t.AmountReceived, err = domain.MoneyFromString(amountReceived, t.ReceiveCurrency); err != nil {
		return nil, fmt.Errorf("parse amount_received: %w", err)
	}
	if t.Fees, err = domain.MoneyFromString(fees, t.SendCurrency); err != nil {
		return nil, fmt.Errorf("parse fees: %w", err)
	}
	return t, nil
}
