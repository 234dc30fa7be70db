package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mamadousy92i/Mobile-Money-Transfert/config"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
	"github.com/mamadousy92i/Mobile-Money-Transfert/pkg/apperror"
)

const (
	idempotencyTTL   = 24 * time.Hour
	transferSequence = "transactions"
)

// TransferRules holds the platform-wide transfer policy, parsed once at
// startup so request handling never re-parses decimal strings.
type TransferRules struct {
	Currency     string
	MinAmount    domain.Money
	MaxAmount    domain.Money
	PhonePattern *regexp.Regexp
	CodeAttempts int
	Rates        map[string]decimal.Decimal // "XOF/EUR" -> operator rate
	RateMargin   decimal.Decimal            // percentage kept by the platform
}

// NewTransferRules parses the transfer section of the configuration.
func NewTransferRules(cfg config.TransferConfig) (TransferRules, error) {
	minAmount, err := domain.MoneyFromString(cfg.MinAmount, cfg.Currency)
	if err != nil {
		return TransferRules{}, fmt.Errorf("transfer min_amount: %w", err)
	}
	maxAmount, err := domain.MoneyFromString(cfg.MaxAmount, cfg.Currency)
	if err != nil {
		return TransferRules{}, fmt.Errorf("transfer max_amount: %w", err)
	}
	pattern, err := regexp.Compile(cfg.PhonePattern)
	if err != nil {
		return TransferRules{}, fmt.Errorf("transfer phone_pattern: %w", err)
	}
	margin, err := decimal.NewFromString(cfg.RateMargin)
	if err != nil {
		return TransferRules{}, fmt.Errorf("transfer rate_margin: %w", err)
	}
	rates := make(map[string]decimal.Decimal, len(cfg.Rates))
	for pair, raw := range cfg.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return TransferRules{}, fmt.Errorf("transfer rate %s: %w", pair, err)
		}
		rates[pair] = rate
	}
	attempts := cfg.CodeAttempts
	if attempts <= 0 {
		attempts = 10
	}
	return TransferRules{
		Currency:     cfg.Currency,
		MinAmount:    minAmount,
		MaxAmount:    maxAmount,
		PhonePattern: pattern,
		CodeAttempts: attempts,
		Rates:        rates,
		RateMargin:   margin,
	}, nil
}

// TransferServiceImpl implements ports.TransferService.
type TransferServiceImpl struct {
	txRepo     ports.TransactionRepository
	seqRepo    ports.SequenceRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	registry   ports.GatewayRegistry
	identity   ports.IdentityResolver
	notifier   ports.Notifier
	transactor ports.DBTransactor
	rules      TransferRules
	log        zerolog.Logger

	now  func() time.Time
	intn func(n int) int
}

// TransferOption customizes a TransferServiceImpl, mainly for tests.
type TransferOption func(*TransferServiceImpl)

// WithTransferClock replaces the wall clock.
func WithTransferClock(now func() time.Time) TransferOption {
	return func(s *TransferServiceImpl) { s.now = now }
}

// WithTransferRand replaces the code-generation randomness.
func WithTransferRand(intn func(n int) int) TransferOption {
	return func(s *TransferServiceImpl) { s.intn = intn }
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(
	txRepo ports.TransactionRepository,
	seqRepo ports.SequenceRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	registry ports.GatewayRegistry,
	identity ports.IdentityResolver,
	notifier ports.Notifier,
	transactor ports.DBTransactor,
	rules TransferRules,
	log zerolog.Logger,
	opts ...TransferOption,
) *TransferServiceImpl {
	s := &TransferServiceImpl{
		txRepo:     txRepo,
		seqRepo:    seqRepo,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		registry:   registry,
		identity:   identity,
		notifier:   notifier,
		transactor: transactor,
		rules:      rules,
		log:        log,
		now:        time.Now,
		intn:       rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit drives a transfer from request to its post-gateway state. Once
// validation passes, a transaction row always exists and is returned; the
// gateway outcome decides whether it lands in SENT or CANCELLED.
func (s *TransferServiceImpl) Submit(ctx context.Context, req ports.SubmitRequest) (*domain.Transaction, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	idempKey := ""
	if req.IdempotencyKey != "" {
		idempKey = "transfer:" + req.IdempotencyKey
		if txn, err := s.replayIdempotent(ctx, idempKey); txn != nil || err != nil {
			return txn, err
		}
	}

	gw, err := s.registry.Resolve(req.Channel)
	if err != nil {
		return nil, err
	}
	channel := gw.Channel()

	num, err := s.seqRepo.Next(ctx, transferSequence)
	if err != nil {
		// No row was written: a numbering failure aborts the submission
		// with nothing half-created.
		return nil, apperror.ErrStorage(fmt.Errorf("next transaction num: %w", err))
	}

	txn, err := s.buildTransaction(ctx, req, channel, num)
	if err != nil {
		return nil, err
	}

	if err := s.createPending(ctx, txn, idempKey); err != nil {
		return nil, err
	}

	// Gateway call happens outside any database transaction: a slow
	// operator must not hold locks.
	outcome := s.registry.ProcessPayment(ctx, req.Channel, txn.RecipientPhone, txn.AmountSent, txn.Code)

	if err := s.finalize(ctx, txn, outcome, idempKey); err != nil {
		return nil, err
	}

	s.notify(ctx, txn)
	return txn, nil
}

func (s *TransferServiceImpl) validate(req ports.SubmitRequest) error {
	if !req.Amount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}
	if req.Amount.Currency() != s.rules.Currency {
		return apperror.ErrCurrencyMismatch(s.rules.Currency, req.Amount.Currency())
	}
	below, err := req.Amount.Cmp(s.rules.MinAmount)
	if err != nil {
		return apperror.ErrCurrencyMismatch(s.rules.Currency, req.Amount.Currency())
	}
	above, _ := req.Amount.Cmp(s.rules.MaxAmount)
	if below < 0 || above > 0 {
		return apperror.ErrAmountOutOfRange(s.rules.MinAmount.String(), s.rules.MaxAmount.String())
	}
	phone := domain.NormalizePhone(req.RecipientPhone)
	if !s.rules.PhonePattern.MatchString(phone) {
		return apperror.ErrInvalidPhone(req.RecipientPhone)
	}
	if req.SenderRef == "" {
		return apperror.Validation("sender reference is required")
	}
	return nil
}

// replayIdempotent returns the original transaction for a key seen before.
// A reserved key with no stored response means the first submission is
// still in flight; the caller must not start a second one.
func (s *TransferServiceImpl) replayIdempotent(ctx context.Context, idempKey string) (*domain.Transaction, error) {
	cached, err := s.idempCache.Get(ctx, idempKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return s.unmarshalCachedTransaction(cached)
	}

	rec, err := s.idempRepo.Get(ctx, idempKey)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("db idempotency check: %w", err))
	}
	if rec == nil {
		return nil, nil
	}
	if rec.Response == nil {
		return nil, apperror.ErrDuplicateSubmission(idempKey)
	}
	return s.unmarshalCachedTransaction(rec.Response)
}

func (s *TransferServiceImpl) buildTransaction(ctx context.Context, req ports.SubmitRequest, channel domain.Channel, num int64) (*domain.Transaction, error) {
	fee := channel.Fees.ComputeFee(req.Amount)
	net, err := req.Amount.Sub(fee)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	receiveCurrency := req.ReceiveCurrency
	if receiveCurrency == "" {
		receiveCurrency = s.rules.Currency
	}

	converted := net
	if receiveCurrency != s.rules.Currency {
		rate, ok := s.rules.Rates[s.rules.Currency+"/"+receiveCurrency]
		if !ok {
			return nil, apperror.Validation("no exchange rate for " + s.rules.Currency + "/" + receiveCurrency)
		}
		// The platform keeps a margin on the operator rate.
		effective := rate.Mul(decimal.NewFromInt(1).Sub(s.rules.RateMargin.Div(decimal.NewFromInt(100))))
		converted = net.ConvertTo(receiveCurrency, effective)
	}

	now := s.now().UTC()
	txn := &domain.Transaction{
		ID:              uuid.New(),
		Num:             num,
		SenderRef:       req.SenderRef,
		RecipientPhone:  domain.NormalizePhone(req.RecipientPhone),
		RecipientName:   req.RecipientName,
		AmountSent:      req.Amount,
		AmountConverted: converted,
		AmountReceived:  converted,
		Fees:            fee,
		FeeDetail:       fmt.Sprintf("%s%% + %s, clamped to [%s, %s]", channel.Fees.Percentage, channel.Fees.Fixed, channel.Fees.Min, channel.Fees.Max),
		SendCurrency:    s.rules.Currency,
		ReceiveCurrency: receiveCurrency,
		Channel:         channel.Kind,
		Status:          domain.TransactionPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Recipient lookup is best-effort: an unreachable identity service
	// degrades the transfer to an unregistered recipient, nothing more.
	if ident, err := s.identity.ResolveByPhone(ctx, txn.RecipientPhone); err != nil {
		s.log.Warn().Err(err).Str("phone", txn.RecipientPhone).Msg("identity lookup failed")
	} else if ident != nil {
		txn.RecipientRef = &ident.Ref
		if txn.RecipientName == nil && ident.FullName != "" {
			txn.RecipientName = &ident.FullName
		}
	}

	return txn, nil
}

// createPending commits the PENDING row, retrying the human-facing code on
// collisions and reserving the idempotency key in the same transaction so
// concurrent duplicates cannot both get a row in.
func (s *TransferServiceImpl) createPending(ctx context.Context, txn *domain.Transaction, idempKey string) error {
	for attempt := 0; attempt <= s.rules.CodeAttempts; attempt++ {
		if attempt < s.rules.CodeAttempts {
			txn.Code = NewCode(TransferCodePrefix, s.now(), s.intn)
		} else {
			txn.Code = FallbackCode(TransferCodePrefix, s.now())
		}

		err := s.insertPending(ctx, txn, idempKey)
		if err == nil {
			return nil
		}
		// Only a code collision is retryable; a duplicate idempotency key
		// comes back as an AppError and falls through.
		if errors.Is(err, domain.ErrDuplicate) {
			s.log.Debug().Str("code", txn.Code).Int("attempt", attempt).Msg("code collision, retrying")
			continue
		}
		return err
	}
	return apperror.ErrStorage(fmt.Errorf("exhausted code candidates for num %d", txn.Num))
}

func (s *TransferServiceImpl) insertPending(ctx context.Context, txn *domain.Transaction, idempKey string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return err
	}

	if idempKey != "" {
		rec := &domain.IdempotencyRecord{
			Key:           idempKey,
			TransactionID: txn.ID,
			CreatedAt:     txn.CreatedAt,
		}
		if err := s.idempRepo.Reserve(ctx, dbTx, rec); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				// Another request with the same key won the race.
				return apperror.ErrDuplicateSubmission(idempKey)
			}
			return apperror.ErrStorage(fmt.Errorf("reserve idempotency key: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.ErrStorage(fmt.Errorf("commit pending: %w", err))
	}
	return nil
}

// finalize moves the committed PENDING row to its post-gateway state in one
// database transaction: SENT with the operator's reference and fee on
// success, CANCELLED with the operator's error code otherwise.
func (s *TransferServiceImpl) finalize(ctx context.Context, txn *domain.Transaction, outcome domain.GatewayOutcome, idempKey string) error {
	if outcome.Success {
		if err := txn.Advance(domain.TransactionAccepted); err != nil {
			return apperror.InternalError(err)
		}
		if err := txn.Advance(domain.TransactionSent); err != nil {
			return apperror.InternalError(err)
		}
		txn.GatewayRef = &outcome.GatewayRef
		txn.Fees = outcome.Fee
	} else {
		if err := txn.Advance(domain.TransactionCancelled); err != nil {
			return apperror.InternalError(err)
		}
		code := outcome.ErrorCode
		txn.ErrorCode = &code
	}
	txn.UpdatedAt = s.now().UTC()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.txRepo.Update(ctx, dbTx, txn); err != nil {
		return apperror.ErrStorage(fmt.Errorf("update transaction: %w", err))
	}

	respJSON, err := json.Marshal(txn)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	if idempKey != "" {
		if err := s.idempRepo.SetResponse(ctx, dbTx, idempKey, respJSON); err != nil {
			return apperror.ErrStorage(fmt.Errorf("save idempotency response: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.ErrStorage(fmt.Errorf("commit finalize: %w", err))
	}

	if idempKey != "" {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.log.Info().
		Str("code", txn.Code).
		Str("channel", string(txn.Channel)).
		Str("status", string(txn.Status)).
		Str("amount", txn.AmountSent.String()).
		Str("fees", txn.Fees.String()).
		Msg("transfer finalized")
	return nil
}

func (s *TransferServiceImpl) notify(ctx context.Context, txn *domain.Transaction) {
	if txn.RecipientRef == nil {
		return
	}
	kind := "TRANSFER_SENT"
	msg := fmt.Sprintf("You received a transfer of %s (code %s)", txn.AmountReceived.String(), txn.Code)
	if txn.Status == domain.TransactionCancelled {
		kind = "TRANSFER_CANCELLED"
		msg = fmt.Sprintf("Transfer %s could not be completed", txn.Code)
	}
	// Notification failures never affect the financial outcome.
	if err := s.notifier.Notify(ctx, ports.Notification{
		RecipientRef: *txn.RecipientRef,
		Title:        "Money transfer",
		Message:      msg,
		Kind:         kind,
	}); err != nil {
		s.log.Warn().Err(err).Str("code", txn.Code).Msg("notification failed")
	}
}

// GetByCode returns one transaction by its human-facing code.
func (s *TransferServiceImpl) GetByCode(ctx context.Context, code string) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	return txn, nil
}

// UpdateStatus applies one externally requested lifecycle transition, e.g.
// an operator callback confirming delivery (SENT -> DONE).
func (s *TransferServiceImpl) UpdateStatus(ctx context.Context, code string, next domain.TransactionStatus) (*domain.Transaction, error) {
	txn, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	from := txn.Status
	if err := txn.Advance(next); err != nil {
		return nil, apperror.ErrInvalidTransition(string(from), string(next))
	}
	txn.UpdatedAt = s.now().UTC()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, txn.Status); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("update status: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("commit status update: %w", err))
	}

	s.log.Info().
		Str("code", txn.Code).
		Str("from", string(from)).
		Str("to", string(next)).
		Msg("transaction status updated")
	return txn, nil
}

// List returns a filtered page of transactions with the total count.
func (s *TransferServiceImpl) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 || params.PageSize > 100 {
		params.PageSize = 20
	}
	items, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrStorage(fmt.Errorf("list transactions: %w", err))
	}
	return items, total, nil
}

// Stats returns the aggregate transfer counters.
func (s *TransferServiceImpl) Stats(ctx context.Context) (*ports.TransferStats, error) {
	stats, err := s.txRepo.GetStats(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("get stats: %w", err))
	}
	return stats, nil
}

func (s *TransferServiceImpl) unmarshalCachedTransaction(data []byte) (*domain.Transaction, error) {
	var txn domain.Transaction
	if err := json.Unmarshal(data, &txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached transaction: %w", err))
	}
	return &txn, nil
}
