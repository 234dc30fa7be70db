package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
	"github.com/mamadousy92i/Mobile-Money-Transfert/pkg/apperror"
)

// WithdrawalServiceImpl implements ports.WithdrawalService.
type WithdrawalServiceImpl struct {
	wdRepo     ports.WithdrawalRepository
	txRepo     ports.TransactionRepository
	notifier   ports.Notifier
	transactor ports.DBTransactor
	commission domain.FeeSchedule
	attempts   int
	log        zerolog.Logger

	now  func() time.Time
	intn func(n int) int
}

// WithdrawalOption customizes a WithdrawalServiceImpl, mainly for tests.
type WithdrawalOption func(*WithdrawalServiceImpl)

// WithWithdrawalClock replaces the wall clock.
func WithWithdrawalClock(now func() time.Time) WithdrawalOption {
	return func(s *WithdrawalServiceImpl) { s.now = now }
}

// WithWithdrawalRand replaces the code-generation randomness.
func WithWithdrawalRand(intn func(n int) int) WithdrawalOption {
	return func(s *WithdrawalServiceImpl) { s.intn = intn }
}

// NewWithdrawalService creates a new WithdrawalServiceImpl.
func NewWithdrawalService(
	wdRepo ports.WithdrawalRepository,
	txRepo ports.TransactionRepository,
	notifier ports.Notifier,
	transactor ports.DBTransactor,
	commission domain.FeeSchedule,
	codeAttempts int,
	log zerolog.Logger,
	opts ...WithdrawalOption,
) *WithdrawalServiceImpl {
	if codeAttempts <= 0 {
		codeAttempts = 10
	}
	s := &WithdrawalServiceImpl{
		wdRepo:     wdRepo,
		txRepo:     txRepo,
		notifier:   notifier,
		transactor: transactor,
		commission: commission,
		attempts:   codeAttempts,
		log:        log,
		now:        time.Now,
		intn:       rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a cash-out. When a transaction code is given the amount is
// the transaction's received amount and the transaction must be SENT;
// standalone withdrawals carry their own amount.
func (s *WithdrawalServiceImpl) Create(ctx context.Context, req ports.CreateWithdrawalRequest) (*domain.Withdrawal, error) {
	if req.AgentRef == "" {
		return nil, apperror.Validation("agent reference is required")
	}
	if req.BeneficiaryRef == "" {
		return nil, apperror.Validation("beneficiary reference is required")
	}

	amount := req.Amount
	var txnID *uuid.UUID
	if req.TransactionCode != nil {
		txn, err := s.txRepo.GetByCode(ctx, *req.TransactionCode)
		if err != nil {
			return nil, apperror.ErrStorage(fmt.Errorf("get transaction: %w", err))
		}
		if txn == nil {
			return nil, apperror.ErrNotFound("transaction")
		}
		if !txn.ReadyForCashOut() {
			return nil, apperror.ErrTransactionNotReady(txn.Code, string(txn.Status))
		}
		amount = txn.AmountReceived
		txnID = &txn.ID
	} else if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	now := s.now().UTC()
	wd := &domain.Withdrawal{
		ID:             uuid.New(),
		QRCode:         newQRToken(),
		TransactionID:  txnID,
		AgentRef:       req.AgentRef,
		BeneficiaryRef: req.BeneficiaryRef,
		Amount:         amount,
		Commission:     s.commission.ComputeFee(amount),
		Status:         domain.WithdrawalPending,
		RequestedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.createWithCode(ctx, wd); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("code", wd.Code).
		Str("agent", wd.AgentRef).
		Str("amount", wd.Amount.String()).
		Str("commission", wd.Commission.String()).
		Msg("withdrawal created")
	return wd, nil
}

// newQRToken builds the opaque token shown to the beneficiary as a QR code.
func newQRToken() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (s *WithdrawalServiceImpl) createWithCode(ctx context.Context, wd *domain.Withdrawal) error {
	for attempt := 0; attempt <= s.attempts; attempt++ {
		if attempt < s.attempts {
			wd.Code = NewCode(WithdrawalCodePrefix, s.now(), s.intn)
		} else {
			wd.Code = FallbackCode(WithdrawalCodePrefix, s.now())
		}

		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
		}
		err = s.wdRepo.Create(ctx, dbTx, wd)
		if err == nil {
			if err := dbTx.Commit(ctx); err != nil {
				return apperror.ErrStorage(fmt.Errorf("commit withdrawal: %w", err))
			}
			return nil
		}
		dbTx.Rollback(ctx) //nolint:errcheck
		if errors.Is(err, domain.ErrDuplicate) {
			continue
		}
		return apperror.ErrStorage(fmt.Errorf("create withdrawal: %w", err))
	}
	return apperror.ErrStorage(fmt.Errorf("exhausted withdrawal code candidates"))
}

// GetByCode returns one withdrawal by its code.
func (s *WithdrawalServiceImpl) GetByCode(ctx context.Context, code string) (*domain.Withdrawal, error) {
	wd, err := s.wdRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("get withdrawal: %w", err))
	}
	if wd == nil {
		return nil, apperror.ErrNotFound("withdrawal")
	}
	return wd, nil
}

// Accept moves a withdrawal to ACCEPTED. Only the assigned agent may accept.
func (s *WithdrawalServiceImpl) Accept(ctx context.Context, code, actorRef string) (*domain.Withdrawal, error) {
	wd, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if wd.AgentRef != actorRef {
		return nil, apperror.ErrUnauthorized()
	}

	from := wd.Status
	if err := wd.Advance(domain.WithdrawalAccepted); err != nil {
		return nil, apperror.ErrInvalidTransition(string(from), string(domain.WithdrawalAccepted))
	}
	wd.UpdatedAt = s.now().UTC()

	if err := s.update(ctx, wd); err != nil {
		return nil, err
	}

	s.log.Info().Str("code", wd.Code).Str("agent", actorRef).Msg("withdrawal accepted")
	return wd, nil
}

// Finalize completes the cash-out: verification data is recorded, the
// withdrawal goes to DONE and a linked transaction advances SENT -> DONE in
// the same database transaction. Either both rows move or neither does.
func (s *WithdrawalServiceImpl) Finalize(ctx context.Context, code, actorRef string, verification domain.VerificationData) (*domain.Withdrawal, error) {
	wd, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if wd.AgentRef != actorRef {
		return nil, apperror.ErrUnauthorized()
	}
	if !verification.IDDocumentChecked || !verification.SMSCodeChecked {
		return nil, apperror.Validation("identity document and SMS code must both be verified")
	}

	from := wd.Status
	if err := wd.Advance(domain.WithdrawalDone); err != nil {
		return nil, apperror.ErrInvalidTransition(string(from), string(domain.WithdrawalDone))
	}

	var txn *domain.Transaction
	if wd.TransactionID != nil {
		txn, err = s.txRepo.GetByID(ctx, *wd.TransactionID)
		if err != nil {
			return nil, apperror.ErrStorage(fmt.Errorf("get linked transaction: %w", err))
		}
		if txn == nil {
			return nil, apperror.ErrNotFound("linked transaction")
		}
		if err := txn.Advance(domain.TransactionDone); err != nil {
			return nil, apperror.ErrTransactionNotReady(txn.Code, string(txn.Status))
		}
	}

	now := s.now().UTC()
	wd.Verification = verification
	wd.CompletedAt = &now
	wd.UpdatedAt = now

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.wdRepo.Update(ctx, dbTx, wd); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("update withdrawal: %w", err))
	}
	if txn != nil {
		txn.UpdatedAt = now
		if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, txn.Status); err != nil {
			return nil, apperror.ErrStorage(fmt.Errorf("update linked transaction: %w", err))
		}
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("commit finalize: %w", err))
	}

	s.notifyDone(ctx, wd)

	s.log.Info().
		Str("code", wd.Code).
		Str("agent", actorRef).
		Str("amount", wd.Amount.String()).
		Msg("withdrawal finalized")
	return wd, nil
}

// Cancel aborts an in-progress withdrawal. The source transaction, if any,
// is left untouched: the money remains available for another cash-out.
func (s *WithdrawalServiceImpl) Cancel(ctx context.Context, code, reason string) (*domain.Withdrawal, error) {
	wd, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	from := wd.Status
	if err := wd.Advance(domain.WithdrawalCancelled); err != nil {
		return nil, apperror.ErrInvalidTransition(string(from), string(domain.WithdrawalCancelled))
	}
	if reason != "" {
		if wd.Verification.Notes != "" {
			wd.Verification.Notes += "; "
		}
		wd.Verification.Notes += "cancelled: " + reason
	}
	wd.UpdatedAt = s.now().UTC()

	if err := s.update(ctx, wd); err != nil {
		return nil, err
	}

	s.log.Info().Str("code", wd.Code).Str("reason", reason).Msg("withdrawal cancelled")
	return wd, nil
}

func (s *WithdrawalServiceImpl) update(ctx context.Context, wd *domain.Withdrawal) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.wdRepo.Update(ctx, dbTx, wd); err != nil {
		return apperror.ErrStorage(fmt.Errorf("update withdrawal: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.ErrStorage(fmt.Errorf("commit withdrawal update: %w", err))
	}
	return nil
}

func (s *WithdrawalServiceImpl) notifyDone(ctx context.Context, wd *domain.Withdrawal) {
	if err := s.notifier.Notify(ctx, ports.Notification{
		RecipientRef: wd.BeneficiaryRef,
		Title:        "Cash withdrawal",
		Message:      fmt.Sprintf("Withdrawal %s of %s completed", wd.Code, wd.Amount.String()),
		Kind:         "WITHDRAWAL_DONE",
	}); err != nil {
		s.log.Warn().Err(err).Str("code", wd.Code).Msg("notification failed")
	}
}
