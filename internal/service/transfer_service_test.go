package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mamadousy92i/Mobile-Money-Transfert/config"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports/mocks"
	"github.com/mamadousy92i/Mobile-Money-Transfert/pkg/apperror"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

type transferTestDeps struct {
	svc        *TransferServiceImpl
	txRepo     *mocks.MockTransactionRepository
	seqRepo    *mocks.MockSequenceRepository
	idempRepo  *mocks.MockIdempotencyRepository
	idempCache *mocks.MockIdempotencyCache
	registry   *mocks.MockGatewayRegistry
	gateway    *mocks.MockGateway
	identity   *mocks.MockIdentityResolver
	notifier   *mocks.MockNotifier
	transactor *mocks.MockDBTransactor
	ctrl       *gomock.Controller
}

func testRules(t *testing.T) TransferRules {
	t.Helper()
	rules, err := NewTransferRules(config.TransferConfig{
		Currency:     "XOF",
		MinAmount:    "100",
		MaxAmount:    "500000",
		PhonePattern: `^(\+221|221)?(77|78|70|76|75)\d{7}$`,
		CodeAttempts: 10,
		Rates:        map[string]string{"XOF/EUR": "0.00152"},
		RateMargin:   "2.0",
	})
	require.NoError(t, err)
	return rules
}

func waveChannel(t *testing.T) domain.Channel {
	t.Helper()
	fees, err := domain.NewFeeSchedule("1.0", "0", "25", "1500")
	require.NoError(t, err)
	return domain.Channel{
		Kind:     domain.ChannelWave,
		Name:     "Wave",
		Active:   true,
		Currency: "XOF",
		Fees:     fees,
	}
}

func xof(t *testing.T, s string) domain.Money {
	t.Helper()
	m, err := domain.MoneyFromString(s, "XOF")
	require.NoError(t, err)
	return m
}

func setupTransferService(t *testing.T) *transferTestDeps {
	ctrl := gomock.NewController(t)
	d := &transferTestDeps{
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		seqRepo:    mocks.NewMockSequenceRepository(ctrl),
		idempRepo:  mocks.NewMockIdempotencyRepository(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		registry:   mocks.NewMockGatewayRegistry(ctrl),
		gateway:    mocks.NewMockGateway(ctrl),
		identity:   mocks.NewMockIdentityResolver(ctrl),
		notifier:   mocks.NewMockNotifier(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewTransferService(
		d.txRepo, d.seqRepo, d.idempRepo, d.idempCache,
		d.registry, d.identity, d.notifier, d.transactor,
		testRules(t), zerolog.Nop(),
		WithTransferClock(func() time.Time { return time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC) }),
		WithTransferRand(func(n int) int { return 123456 }),
	)
	return d
}

func submitRequest(t *testing.T) ports.SubmitRequest {
	t.Helper()
	return ports.SubmitRequest{
		SenderRef:      "user-42",
		RecipientPhone: "+221771234567",
		Amount:         xof(t, "10000"),
		Channel:        domain.ChannelWave,
		IdempotencyKey: "key-1",
	}
}

func successOutcome(t *testing.T) domain.GatewayOutcome {
	t.Helper()
	ref := "WAVE_20260115_AB12CD34"
	return domain.GatewayOutcome{
		Success:    true,
		Status:     domain.OutcomeSuccess,
		GatewayRef: ref,
		Fee:        xof(t, "100"),
	}
}

// ==================== Submit Tests ====================

func TestTransferService_Submit_Success(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	req := submitRequest(t)

	d.idempCache.EXPECT().Get(ctx, "transfer:key-1").Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, "transfer:key-1").Return(nil, nil)
	d.registry.EXPECT().Resolve(domain.ChannelWave).Return(d.gateway, nil)
	d.gateway.EXPECT().Channel().Return(waveChannel(t))
	d.seqRepo.EXPECT().Next(ctx, "transactions").Return(int64(100000001), nil)
	d.identity.EXPECT().ResolveByPhone(ctx, "+221771234567").Return(nil, nil)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempRepo.EXPECT().Reserve(ctx, tx, gomock.Any()).Return(nil)

	d.registry.EXPECT().
		ProcessPayment(ctx, domain.ChannelWave, "+221771234567", req.Amount, "TXN2026123456").
		Return(successOutcome(t))

	d.txRepo.EXPECT().Update(ctx, tx, gomock.Any()).Return(nil)
	d.idempRepo.EXPECT().SetResponse(ctx, tx, "transfer:key-1", gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, "transfer:key-1", gomock.Any(), idempotencyTTL).Return(nil)

	txn, err := d.svc.Submit(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, txn)

	assert.Equal(t, domain.TransactionSent, txn.Status)
	assert.Equal(t, "TXN2026123456", txn.Code)
	assert.Equal(t, int64(100000001), txn.Num)
	require.NotNil(t, txn.GatewayRef)
	assert.Equal(t, "WAVE_20260115_AB12CD34", *txn.GatewayRef)
	assert.Equal(t, "100.00 XOF", txn.Fees.String())
	assert.Equal(t, "9900.00 XOF", txn.AmountReceived.String())
	assert.Nil(t, txn.ErrorCode)
}

func TestTransferService_Submit_GatewayDecline(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	req := submitRequest(t)
	req.IdempotencyKey = ""

	d.registry.EXPECT().Resolve(domain.ChannelWave).Return(d.gateway, nil)
	d.gateway.EXPECT().Channel().Return(waveChannel(t))
	d.seqRepo.EXPECT().Next(ctx, "transactions").Return(int64(100000002), nil)
	d.identity.EXPECT().ResolveByPhone(ctx, "+221771234567").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.registry.EXPECT().
		ProcessPayment(ctx, domain.ChannelWave, "+221771234567", req.Amount, "TXN2026123456").
		Return(domain.GatewayOutcome{
			Success:   false,
			Status:    domain.OutcomeFailed,
			ErrorCode: "INSUFFICIENT_FUNDS",
			Message:   "Insufficient Wave balance",
		})
	d.txRepo.EXPECT().Update(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.svc.Submit(ctx, req)
	require.NoError(t, err, "a declined transfer is a result, not an error")
	require.NotNil(t, txn)

	assert.Equal(t, domain.TransactionCancelled, txn.Status)
	require.NotNil(t, txn.ErrorCode)
	assert.Equal(t, "INSUFFICIENT_FUNDS", *txn.ErrorCode)
	assert.Nil(t, txn.GatewayRef)
	// The channel's own schedule prices the failed attempt.
	assert.Equal(t, "100.00 XOF", txn.Fees.String())
}

func TestTransferService_Submit_Timeout(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	req := submitRequest(t)
	req.IdempotencyKey = ""

	d.registry.EXPECT().Resolve(domain.ChannelWave).Return(d.gateway, nil)
	d.gateway.EXPECT().Channel().Return(waveChannel(t))
	d.seqRepo.EXPECT().Next(ctx, "transactions").Return(int64(100000003), nil)
	d.identity.EXPECT().ResolveByPhone(ctx, "+221771234567").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.registry.EXPECT().
		ProcessPayment(ctx, domain.ChannelWave, "+221771234567", req.Amount, "TXN2026123456").
		Return(domain.GatewayOutcome{
			Success:   false,
			Status:    domain.OutcomeTimeout,
			ErrorCode: "GATEWAY_TIMEOUT",
		})
	d.txRepo.EXPECT().Update(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCancelled, txn.Status)
	require.NotNil(t, txn.ErrorCode)
	assert.Equal(t, "GATEWAY_TIMEOUT", *txn.ErrorCode)
	assert.Nil(t, txn.GatewayRef, "a timed-out transfer must not carry an operator reference")
}

func TestTransferService_Submit_ValidationErrors(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	cases := []struct {
		name     string
		mutate   func(r *ports.SubmitRequest)
		wantCode string
	}{
		{"zero amount", func(r *ports.SubmitRequest) { r.Amount = xof(t, "0") }, "VAL_001"},
		{"below minimum", func(r *ports.SubmitRequest) { r.Amount = xof(t, "50") }, "VAL_002"},
		{"above maximum", func(r *ports.SubmitRequest) { r.Amount = xof(t, "600000") }, "VAL_002"},
		{"bad phone", func(r *ports.SubmitRequest) { r.RecipientPhone = "12345" }, "VAL_003"},
		{"foreign currency", func(r *ports.SubmitRequest) {
			m, err := domain.MoneyFromString("10000", "EUR")
			require.NoError(t, err)
			r.Amount = m
		}, "VAL_004"},
		{"missing sender", func(r *ports.SubmitRequest) { r.SenderRef = "" }, "VAL_005"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := submitRequest(t)
			req.IdempotencyKey = ""
			tc.mutate(&req)

			_, err := d.svc.Submit(ctx, req)
			require.Error(t, err)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tc.wantCode, appErr.Code)
		})
	}
}

func TestTransferService_Submit_ChannelNotAvailable(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	req := submitRequest(t)
	req.IdempotencyKey = ""
	d.registry.EXPECT().Resolve(domain.ChannelWave).Return(nil, apperror.ErrChannelNotAvailable("WAVE"))

	_, err := d.svc.Submit(ctx, req)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TRF_001", appErr.Code)
}

func TestTransferService_Submit_SequenceFailureAborts(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	req := submitRequest(t)
	req.IdempotencyKey = ""
	d.registry.EXPECT().Resolve(domain.ChannelWave).Return(d.gateway, nil)
	d.gateway.EXPECT().Channel().Return(waveChannel(t))
	d.seqRepo.EXPECT().Next(ctx, "transactions").Return(int64(0), errors.New("connection refused"))

	_, err := d.svc.Submit(ctx, req)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SYS_001", appErr.Code)
}

func TestTransferService_Submit_IdempotentReplayFromCache(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	orig := &domain.Transaction{
		ID:     uuid.New(),
		Code:   "TXN2026999999",
		Status: domain.TransactionSent,
	}
	cached, err := json.Marshal(orig)
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(ctx, "transfer:key-1").Return(cached, nil)

	txn, err := d.svc.Submit(ctx, submitRequest(t))
	require.NoError(t, err)
	assert.Equal(t, orig.Code, txn.Code)
	assert.Equal(t, orig.ID, txn.ID)
}

func TestTransferService_Submit_IdempotentReplayFromDB(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	orig := &domain.Transaction{ID: uuid.New(), Code: "TXN2026999999", Status: domain.TransactionCancelled}
	resp, err := json.Marshal(orig)
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(ctx, "transfer:key-1").Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, "transfer:key-1").Return(&domain.IdempotencyRecord{
		Key:           "transfer:key-1",
		TransactionID: orig.ID,
		Response:      resp,
	}, nil)

	txn, err := d.svc.Submit(ctx, submitRequest(t))
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCancelled, txn.Status, "replay returns the original outcome, even a failure")
}

func TestTransferService_Submit_InFlightDuplicate(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	d.idempCache.EXPECT().Get(ctx, "transfer:key-1").Return(nil, nil)
	// Key reserved but no response yet: the first submission is mid-gateway.
	d.idempRepo.EXPECT().Get(ctx, "transfer:key-1").Return(&domain.IdempotencyRecord{
		Key:           "transfer:key-1",
		TransactionID: uuid.New(),
	}, nil)

	_, err := d.svc.Submit(ctx, submitRequest(t))
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TRF_003", appErr.Code)
}

func TestTransferService_Submit_CodeCollisionRetries(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	req := submitRequest(t)
	req.IdempotencyKey = ""

	d.registry.EXPECT().Resolve(domain.ChannelWave).Return(d.gateway, nil)
	d.gateway.EXPECT().Channel().Return(waveChannel(t))
	d.seqRepo.EXPECT().Next(ctx, "transactions").Return(int64(100000004), nil)
	d.identity.EXPECT().ResolveByPhone(ctx, "+221771234567").Return(nil, nil)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(3)
	gomock.InOrder(
		d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(domain.ErrDuplicate),
		d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil),
	)
	d.registry.EXPECT().
		ProcessPayment(ctx, domain.ChannelWave, "+221771234567", req.Amount, gomock.Any()).
		Return(successOutcome(t))
	d.txRepo.EXPECT().Update(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionSent, txn.Status)
}

func TestTransferService_Submit_CurrencyConversion(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	req := submitRequest(t)
	req.IdempotencyKey = ""
	req.ReceiveCurrency = "EUR"
	req.Amount = xof(t, "100000")

	d.registry.EXPECT().Resolve(domain.ChannelWave).Return(d.gateway, nil)
	d.gateway.EXPECT().Channel().Return(waveChannel(t))
	d.seqRepo.EXPECT().Next(ctx, "transactions").Return(int64(100000005), nil)
	d.identity.EXPECT().ResolveByPhone(ctx, "+221771234567").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.registry.EXPECT().
		ProcessPayment(ctx, domain.ChannelWave, "+221771234567", req.Amount, gomock.Any()).
		Return(successOutcome(t))
	d.txRepo.EXPECT().Update(ctx, tx, gomock.Any()).Return(nil)

	txn, err := d.svc.Submit(ctx, req)
	require.NoError(t, err)

	// fee = 1% of 100000 clamped to 1500 max -> net 98500
	// rate 0.00152 less 2% margin -> 0.0014896; 98500 * 0.0014896 = 146.73
	assert.Equal(t, "EUR", txn.ReceiveCurrency)
	assert.Equal(t, "146.73 EUR", txn.AmountReceived.String())
}

func TestTransferService_Submit_MissingRate(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	req := submitRequest(t)
	req.IdempotencyKey = ""
	req.ReceiveCurrency = "GBP"

	d.registry.EXPECT().Resolve(domain.ChannelWave).Return(d.gateway, nil)
	d.gateway.EXPECT().Channel().Return(waveChannel(t))
	d.seqRepo.EXPECT().Next(ctx, "transactions").Return(int64(100000006), nil)

	_, err := d.svc.Submit(ctx, req)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VAL_005", appErr.Code)
}

func TestTransferService_Submit_KnownRecipientGetsNotified(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	req := submitRequest(t)
	req.IdempotencyKey = ""

	d.registry.EXPECT().Resolve(domain.ChannelWave).Return(d.gateway, nil)
	d.gateway.EXPECT().Channel().Return(waveChannel(t))
	d.seqRepo.EXPECT().Next(ctx, "transactions").Return(int64(100000007), nil)
	d.identity.EXPECT().ResolveByPhone(ctx, "+221771234567").Return(&ports.Identity{
		Ref:      "user-77",
		FullName: "Awa Diop",
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil).Times(2)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.registry.EXPECT().
		ProcessPayment(ctx, domain.ChannelWave, "+221771234567", req.Amount, gomock.Any()).
		Return(successOutcome(t))
	d.txRepo.EXPECT().Update(ctx, tx, gomock.Any()).Return(nil)
	d.notifier.EXPECT().Notify(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, n ports.Notification) error {
			assert.Equal(t, "user-77", n.RecipientRef)
			assert.Equal(t, "TRANSFER_SENT", n.Kind)
			return nil
		})

	txn, err := d.svc.Submit(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, txn.RecipientRef)
	assert.Equal(t, "user-77", *txn.RecipientRef)
	require.NotNil(t, txn.RecipientName)
	assert.Equal(t, "Awa Diop", *txn.RecipientName)
}

// ==================== UpdateStatus Tests ====================

func TestTransferService_UpdateStatus_SentToDone(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()
	tx := &mockTx{}

	id := uuid.New()
	d.txRepo.EXPECT().GetByCode(ctx, "TXN2026123456").Return(&domain.Transaction{
		ID: id, Code: "TXN2026123456", Status: domain.TransactionSent,
	}, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.txRepo.EXPECT().UpdateStatus(ctx, tx, id, domain.TransactionDone).Return(nil)

	txn, err := d.svc.UpdateStatus(ctx, "TXN2026123456", domain.TransactionDone)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionDone, txn.Status)
}

func TestTransferService_UpdateStatus_IllegalTransition(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	d.txRepo.EXPECT().GetByCode(ctx, "TXN2026123456").Return(&domain.Transaction{
		ID: uuid.New(), Code: "TXN2026123456", Status: domain.TransactionDone,
	}, nil)

	_, err := d.svc.UpdateStatus(ctx, "TXN2026123456", domain.TransactionPending)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TRF_002", appErr.Code)
}

func TestTransferService_GetByCode_NotFound(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	d.txRepo.EXPECT().GetByCode(ctx, "TXN0000000000").Return(nil, nil)

	_, err := d.svc.GetByCode(ctx, "TXN0000000000")
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TRF_004", appErr.Code)
}

func TestTransferService_List_DefaultsPagination(t *testing.T) {
	d := setupTransferService(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	d.txRepo.EXPECT().
		List(ctx, ports.TransactionListParams{Page: 1, PageSize: 20}).
		Return([]domain.Transaction{}, int64(0), nil)

	_, total, err := d.svc.List(ctx, ports.TransactionListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}
