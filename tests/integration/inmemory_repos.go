package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// The in-memory repos model the transactional behavior of the postgres
// layer: writes made through a memTx become visible only on Commit, and
// uniqueness reservations taken during the transaction are released on
// Rollback. That is what lets the tests observe atomicity, not just calls.

// --- In-Memory Transactor ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{}, nil
}

// memTx buffers repo mutations until Commit and unwinds uniqueness
// reservations on Rollback.
type memTx struct {
	mu     sync.Mutex
	apply  []func()
	undo   []func()
	closed bool
}

func (t *memTx) enqueue(apply, undo func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.apply = append(t.apply, apply)
	if undo != nil {
		t.undo = append(t.undo, undo)
	}
}

func (t *memTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	for _, f := range t.apply {
		f()
	}
	t.closed = true
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return pgx.ErrTxClosed
	}
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.closed = true
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]domain.Transaction
	// committed plus reserved-by-open-transaction identifiers
	codes map[string]struct{}
	nums  map[int64]struct{}

	failUpdateStatus bool // injects a storage fault on the next UpdateStatus
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{
		byID:  make(map[uuid.UUID]domain.Transaction),
		codes: make(map[string]struct{}),
		nums:  make(map[int64]struct{}),
	}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.codes[t.Code]; taken {
		return fmt.Errorf("transaction code %s: %w", t.Code, domain.ErrDuplicate)
	}
	if _, taken := r.nums[t.Num]; taken {
		return fmt.Errorf("transaction num %d: %w", t.Num, domain.ErrDuplicate)
	}
	r.codes[t.Code] = struct{}{}
	r.nums[t.Num] = struct{}{}

	row := *t
	if mt, ok := tx.(*memTx); ok {
		mt.enqueue(
			func() {
				r.mu.Lock()
				defer r.mu.Unlock()
				r.byID[row.ID] = row
			},
			func() {
				r.mu.Lock()
				defer r.mu.Unlock()
				delete(r.codes, row.Code)
				delete(r.nums, row.Num)
			},
		)
		return nil
	}
	r.byID[row.ID] = row
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	clone := t
	return &clone, nil
}

func (r *inMemoryTransactionRepo) GetByCode(ctx context.Context, code string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.byID {
		if t.Code == code {
			clone := t
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) Update(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[t.ID]; !ok {
		return errors.New("transaction not found")
	}
	row := *t
	if mt, ok := tx.(*memTx); ok {
		mt.enqueue(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.byID[row.ID] = row
		}, nil)
		return nil
	}
	r.byID[row.ID] = row
	return nil
}

func (r *inMemoryTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdateStatus {
		return errors.New("injected storage failure")
	}
	if _, ok := r.byID[id]; !ok {
		return errors.New("transaction not found")
	}
	if mt, ok := tx.(*memTx); ok {
		mt.enqueue(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			t := r.byID[id]
			t.Status = status
			r.byID[id] = t
		}, nil)
		return nil
	}
	t := r.byID[id]
	t.Status = status
	r.byID[id] = t
	return nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]domain.Transaction, 0, len(r.byID))
	for _, t := range r.byID {
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Channel != nil && t.Channel != *params.Channel {
			continue
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := (params.Page - 1) * params.PageSize
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *inMemoryTransactionRepo) GetStats(ctx context.Context) (*ports.TransferStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &ports.TransferStats{}
	amountSent := decimal.Zero
	fees := decimal.Zero
	for _, t := range r.byID {
		stats.TotalTransactions++
		switch t.Status {
		case domain.TransactionPending, domain.TransactionAccepted:
			stats.Pending++
		case domain.TransactionSent:
			stats.Sent++
		case domain.TransactionDone:
			stats.Done++
		case domain.TransactionCancelled:
			stats.Cancelled++
		}
		if t.Status == domain.TransactionSent || t.Status == domain.TransactionDone {
			amountSent = amountSent.Add(t.AmountSent.Amount())
			fees = fees.Add(t.Fees.Amount())
		}
	}
	stats.TotalAmountSent = amountSent.StringFixed(domain.MoneyScale)
	stats.TotalFees = fees.StringFixed(domain.MoneyScale)
	return stats, nil
}

// --- In-Memory Withdrawal Repo ---

type inMemoryWithdrawalRepo struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]domain.Withdrawal
	codes map[string]struct{}
}

func newInMemoryWithdrawalRepo() *inMemoryWithdrawalRepo {
	return &inMemoryWithdrawalRepo{
		byID:  make(map[uuid.UUID]domain.Withdrawal),
		codes: make(map[string]struct{}),
	}
}

func (r *inMemoryWithdrawalRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.codes[w.Code]; taken {
		return fmt.Errorf("withdrawal code %s: %w", w.Code, domain.ErrDuplicate)
	}
	r.codes[w.Code] = struct{}{}

	row := *w
	if mt, ok := tx.(*memTx); ok {
		mt.enqueue(
			func() {
				r.mu.Lock()
				defer r.mu.Unlock()
				r.byID[row.ID] = row
			},
			func() {
				r.mu.Lock()
				defer r.mu.Unlock()
				delete(r.codes, row.Code)
			},
		)
		return nil
	}
	r.byID[row.ID] = row
	return nil
}

func (r *inMemoryWithdrawalRepo) GetByCode(ctx context.Context, code string) (*domain.Withdrawal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.byID {
		if w.Code == code {
			clone := w
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWithdrawalRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[w.ID]; !ok {
		return errors.New("withdrawal not found")
	}
	row := *w
	if mt, ok := tx.(*memTx); ok {
		mt.enqueue(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.byID[row.ID] = row
		}, nil)
		return nil
	}
	r.byID[row.ID] = row
	return nil
}

// --- In-Memory Sequence Repo ---

type inMemorySequenceRepo struct {
	mu     sync.Mutex
	seed   int64
	values map[string]int64
}

func newInMemorySequenceRepo(seed int64) *inMemorySequenceRepo {
	return &inMemorySequenceRepo{seed: seed, values: make(map[string]int64)}
}

func (r *inMemorySequenceRepo) Next(ctx context.Context, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[name]
	if !ok {
		r.values[name] = r.seed
		return r.seed, nil
	}
	v++
	r.values[name] = v
	return v, nil
}

// --- In-Memory Idempotency Repo ---

type inMemoryIdempotencyRepo struct {
	mu      sync.RWMutex
	records map[string]domain.IdempotencyRecord
}

func newInMemoryIdempotencyRepo() *inMemoryIdempotencyRepo {
	return &inMemoryIdempotencyRepo{records: make(map[string]domain.IdempotencyRecord)}
}

func (r *inMemoryIdempotencyRepo) Reserve(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.records[rec.Key]; taken {
		return fmt.Errorf("idempotency key %s: %w", rec.Key, domain.ErrDuplicate)
	}
	row := *rec
	r.records[row.Key] = row

	if mt, ok := tx.(*memTx); ok {
		mt.enqueue(nil2noop, func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.records, row.Key)
		})
	}
	return nil
}

func (r *inMemoryIdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	clone := rec
	return &clone, nil
}

func (r *inMemoryIdempotencyRepo) SetResponse(ctx context.Context, tx pgx.Tx, key string, response []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return errors.New("idempotency key not found")
	}
	rec.Response = append([]byte(nil), response...)

	if mt, ok := tx.(*memTx); ok {
		mt.enqueue(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.records[key] = rec
		}, nil)
		return nil
	}
	r.records[key] = rec
	return nil
}

// nil2noop is a no-op commit action for reservations that take effect
// immediately but must be released on rollback.
func nil2noop() {}

// --- Collaborator stand-ins ---

// noIdentity treats every recipient as unknown.
type noIdentity struct{}

func (noIdentity) ResolveByPhone(ctx context.Context, phone string) (*ports.Identity, error) {
	return nil, nil
}

// noNotify drops notifications.
type noNotify struct{}

func (noNotify) Notify(ctx context.Context, n ports.Notification) error { return nil }
