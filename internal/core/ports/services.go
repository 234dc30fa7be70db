package ports

import (
	"context"
	"time"

	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
)

//go:generate mockgen -source=services.go -destination=mocks/services.go -package=mocks

// Gateway is the executable simulator for one payment channel.
type Gateway interface {
	Channel() domain.Channel
	ValidatePhone(phone string) bool
	// ProcessPayment always returns an outcome, never an error: once a
	// payment attempt starts, the result is communicated as data.
	ProcessPayment(ctx context.Context, phone string, amount domain.Money, reference string) domain.GatewayOutcome
	// CheckStatus probes the operator for the state of an earlier payment.
	CheckStatus(ctx context.Context, gatewayRef string) domain.GatewayOutcome
}

// GatewayRegistry dispatches payment calls to the gateway of a channel.
// It is injected into the lifecycle engine at construction; there is no
// process-wide registry instance.
type GatewayRegistry interface {
	Resolve(kind domain.ChannelKind) (Gateway, error)
	// ProcessPayment wraps Resolve + invocation; any panic from a simulated
	// gateway is converted into a TECHNICAL_ERROR outcome, never propagated.
	ProcessPayment(ctx context.Context, kind domain.ChannelKind, phone string, amount domain.Money, reference string) domain.GatewayOutcome
	Info(kind domain.ChannelKind) (*GatewayInfo, error)
	Kinds() []domain.ChannelKind
}

// GatewayInfo is the read-only channel introspection surface for admin and
// reporting callers.
type GatewayInfo struct {
	Kind        domain.ChannelKind `json:"kind"`
	Name        string             `json:"name"`
	Active      bool               `json:"active"`
	SuccessRate float64            `json:"success_rate"`
	Fees        domain.FeeSchedule `json:"fees"`
	MinAmount   string             `json:"min_amount"`
	MaxAmount   string             `json:"max_amount"`
}

// --- Service Ports (Business Logic) ---

// TransferService is the transaction lifecycle engine.
type TransferService interface {
	// Submit drives a transfer from request to a terminal-or-ready state.
	// After validation passes it always returns a transaction (possibly
	// CANCELLED); the caller inspects Status and ErrorCode.
	Submit(ctx context.Context, req SubmitRequest) (*domain.Transaction, error)
	GetByCode(ctx context.Context, code string) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, code string, next domain.TransactionStatus) (*domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	Stats(ctx context.Context) (*TransferStats, error)
}

// SubmitRequest holds validated input for a transfer submission. The amount
// is already parsed into Money: raw floats never enter the core.
type SubmitRequest struct {
	SenderRef       string
	RecipientPhone  string
	RecipientName   *string
	Amount          domain.Money
	ReceiveCurrency string // empty = same as sending currency
	Channel         domain.ChannelKind
	IdempotencyKey  string // optional; empty disables idempotency handling
}

// WithdrawalService is the cash-out engine.
type WithdrawalService interface {
	Create(ctx context.Context, req CreateWithdrawalRequest) (*domain.Withdrawal, error)
	GetByCode(ctx context.Context, code string) (*domain.Withdrawal, error)
	// Accept requires the actor to be the assigned agent and the withdrawal
	// to be PENDING.
	Accept(ctx context.Context, code, actorRef string) (*domain.Withdrawal, error)
	// Finalize records verification data, completes the withdrawal and
	// atomically advances a linked transaction SENT -> DONE.
	Finalize(ctx context.Context, code, actorRef string, verification domain.VerificationData) (*domain.Withdrawal, error)
	Cancel(ctx context.Context, code, reason string) (*domain.Withdrawal, error)
}

// CreateWithdrawalRequest holds validated input for creating a withdrawal.
type CreateWithdrawalRequest struct {
	TransactionCode *string // nil = standalone cash-out
	AgentRef        string
	BeneficiaryRef  string
	Amount          domain.Money
}

// --- Collaborator Ports (out-of-scope systems behind narrow interfaces) ---

// Identity is the minimal projection of a platform user the core needs.
type Identity struct {
	Ref      string
	FullName string
	Phone    string
}

// IdentityResolver looks up whether a phone number belongs to a known user.
// A nil Identity with a nil error means the recipient is unknown.
type IdentityResolver interface {
	ResolveByPhone(ctx context.Context, phone string) (*Identity, error)
}

// Notification is one message to a platform user.
type Notification struct {
	RecipientRef string `json:"recipient_ref"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	Kind         string `json:"kind"` // TRANSFER_CREATED, TRANSFER_SENT, TRANSFER_DONE, TRANSFER_CANCELLED, WITHDRAWAL_*
}

// Notifier delivers lifecycle notifications. Failures are non-fatal by
// contract: they must never block or roll back a financial state transition.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// TokenService issues and validates bearer tokens for cash-out agents.
type TokenService interface {
	Generate(agentRef string) (string, time.Time, error)
	Validate(tokenString string) (string, error) // returns the agent ref
}
