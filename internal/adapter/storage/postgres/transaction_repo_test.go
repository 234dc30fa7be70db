package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
)

func strPtr(s string) *string { return &s }

func newTestTransaction(t *testing.T) *domain.Transaction {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	amount, err := domain.MoneyFromString("10000", "XOF")
	require.NoError(t, err)
	net, err := domain.MoneyFromString("9900", "XOF")
	require.NoError(t, err)
	fees, err := domain.MoneyFromString("100", "XOF")
	require.NoError(t, err)

	return &domain.Transaction{
		ID:              uuid.New(),
		Num:             100000001,
		Code:            "TXN2026123456",
		SenderRef:       "user-42",
		RecipientPhone:  "+221771234567",
		RecipientRef:    strPtr("user-77"),
		RecipientName:   strPtr("Awa Diop"),
		AmountSent:      amount,
		AmountConverted: net,
		AmountReceived:  net,
		Fees:            fees,
		FeeDetail:       "1% + 0, clamped to [25, 1500]",
		SendCurrency:    "XOF",
		ReceiveCurrency: "XOF",
		Channel:         domain.ChannelWave,
		Status:          domain.TransactionSent,
		GatewayRef:      strPtr("WAVE_20260115_AB12CD34"),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func txTestColumns() []string {
	return []string{"id", "num", "code", "sender_ref", "recipient_phone", "recipient_ref", "recipient_name",
		"amount_sent", "amount_converted", "amount_received", "fees", "fee_detail",
		"send_currency", "receive_currency", "channel", "status", "gateway_ref", "error_code",
		"created_at", "updated_at"}
}

func txRow(t *domain.Transaction) *pgxmock.Rows {
	return pgxmock.NewRows(txTestColumns()).AddRow(
		t.ID, t.Num, t.Code, t.SenderRef, t.RecipientPhone, t.RecipientRef, t.RecipientName,
		t.AmountSent.Amount().String(), t.AmountConverted.Amount().String(),
		t.AmountReceived.Amount().String(), t.Fees.Amount().String(), t.FeeDetail,
		t.SendCurrency, t.ReceiveCurrency, t.Channel, t.Status,
		t.GatewayRef, t.ErrorCode, t.CreatedAt, t.UpdatedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(
			txn.ID, txn.Num, txn.Code, txn.SenderRef, txn.RecipientPhone, txn.RecipientRef, txn.RecipientName,
			"10000", "9900", "9900", "100", txn.FeeDetail,
			txn.SendCurrency, txn.ReceiveCurrency, txn.Channel, txn.Status,
			txn.GatewayRef, txn.ErrorCode, txn.CreatedAt, txn.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Create_DuplicateCode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(
			txn.ID, txn.Num, txn.Code, txn.SenderRef, txn.RecipientPhone, txn.RecipientRef, txn.RecipientName,
			"10000", "9900", "9900", "100", txn.FeeDetail,
			txn.SendCurrency, txn.ReceiveCurrency, txn.Channel, txn.Status,
			txn.GatewayRef, txn.ErrorCode, txn.CreatedAt, txn.UpdatedAt,
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "transactions_code_key"})

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestTransactionRepo_GetByCode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(t)

	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE code").
		WithArgs(txn.Code).
		WillReturnRows(txRow(txn))

	got, err := repo.GetByCode(context.Background(), txn.Code)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, txn.ID, got.ID)
	assert.Equal(t, txn.Code, got.Code)
	assert.Equal(t, "10000.00 XOF", got.AmountSent.String())
	assert.Equal(t, "100.00 XOF", got.Fees.String())
	assert.Equal(t, domain.TransactionSent, got.Status)
	require.NotNil(t, got.GatewayRef)
	assert.Equal(t, *txn.GatewayRef, *got.GatewayRef)
}

func TestTransactionRepo_GetByCode_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE code").
		WithArgs("TXN0000000000").
		WillReturnRows(pgxmock.NewRows(txTestColumns()))

	got, err := repo.GetByCode(context.Background(), "TXN0000000000")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTransactionRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs(domain.TransactionDone, pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), dbTx, id, domain.TransactionDone)
	require.NoError(t, err)
}

func TestTransactionRepo_UpdateStatus_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs(domain.TransactionDone, pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), dbTx, id, domain.TransactionDone)
	assert.Error(t, err)
}

func TestTransactionRepo_List_WithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(t)
	status := domain.TransactionSent

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(status).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE status").
		WithArgs(status, 20, 0).
		WillReturnRows(txRow(txn))

	items, total, err := repo.List(context.Background(), ports.TransactionListParams{
		Status: &status, Page: 1, PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, txn.Code, items[0].Code)
}

func TestTransactionRepo_GetStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)

	mock.ExpectQuery("SELECT").
		WillReturnRows(pgxmock.NewRows([]string{"total", "pending", "sent", "done", "cancelled", "amount", "fees"}).
			AddRow(int64(10), int64(1), int64(3), int64(4), int64(2), "1250000.00", "12500.00"))

	stats, err := repo.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalTransactions)
	assert.Equal(t, int64(3), stats.Sent)
	assert.Equal(t, "1250000.00", stats.TotalAmountSent)
	assert.Equal(t, "12500.00", stats.TotalFees)
}
