package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
)

// WithdrawalRepo implements ports.WithdrawalRepository.
type WithdrawalRepo struct {
	pool Pool
}

// NewWithdrawalRepo creates a new WithdrawalRepo.
func NewWithdrawalRepo(pool Pool) *WithdrawalRepo {
	return &WithdrawalRepo{pool: pool}
}

// Create inserts a withdrawal within a database transaction. A code
// collision comes back as domain.ErrDuplicate.
func (r *WithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	query := `INSERT INTO withdrawals (id, code, qr_code, transaction_id, agent_ref, beneficiary_ref,
		amount, commission, currency, status, id_document_checked, sms_code_checked, notes,
		latitude, longitude, requested_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.Code, w.QRCode, w.TransactionID, w.AgentRef, w.BeneficiaryRef,
		w.Amount.Amount().String(), w.Commission.Amount().String(), w.Amount.Currency(), w.Status,
		w.Verification.IDDocumentChecked, w.Verification.SMSCodeChecked, w.Verification.Notes,
		w.Verification.Latitude, w.Verification.Longitude,
		w.RequestedAt, w.CompletedAt, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return translateUnique(err, "insert withdrawal")
	}
	return nil
}

// GetByCode fetches a withdrawal by its code. Returns nil, nil when absent.
func (r *WithdrawalRepo) GetByCode(ctx context.Context, code string) (*domain.Withdrawal, error) {
	query := `SELECT id, code, qr_code, transaction_id, agent_ref, beneficiary_ref,
		amount::text, commission::text, currency, status, id_document_checked, sms_code_checked, notes,
		latitude, longitude, requested_at, completed_at, created_at, updated_at
		FROM withdrawals WHERE code = $1`

	w := &domain.Withdrawal{}
	var amount, commission, currency string
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&w.ID, &w.Code, &w.QRCode, &w.TransactionID, &w.AgentRef, &w.BeneficiaryRef,
		&amount, &commission, &currency, &w.Status,
		&w.Verification.IDDocumentChecked, &w.Verification.SMSCodeChecked, &w.Verification.Notes,
		&w.Verification.Latitude, &w.Verification.Longitude,
		&w.RequestedAt, &w.CompletedAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}

	if w.Amount, err = domain.MoneyFromString(amount, currency); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if w.Commission, err = domain.MoneyFromString(commission, currency); err != nil {
		return nil, fmt.Errorf("parse commission: %w", err)
	}
	return w, nil
}

// Update rewrites the mutable fields of a withdrawal within a database
// transaction.
func (r *WithdrawalRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	query := `UPDATE withdrawals
		SET status = $1, id_document_checked = $2, sms_code_checked = $3, notes = $4,
			latitude = $5, longitude = $6, completed_at = $7, updated_at = $8
		WHERE id = $9`

	tag, err := tx.Exec(ctx, query,
		w.Status, w.Verification.IDDocumentChecked, w.Verification.SMSCodeChecked, w.Verification.Notes,
		w.Verification.Latitude, w.Verification.Longitude, w.CompletedAt, w.UpdatedAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update withdrawal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal not found: %s", w.ID)
	}
	return nil
}
