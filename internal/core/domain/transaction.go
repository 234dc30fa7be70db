package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the lifecycle state of a money transfer.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionAccepted  TransactionStatus = "ACCEPTED"
	TransactionSent      TransactionStatus = "SENT" // gateway succeeded, ready for cash-out
	TransactionDone      TransactionStatus = "DONE"
	TransactionCancelled TransactionStatus = "CANCELLED"
)

// transactionTransitions is the only legal movement through the lifecycle.
// SENT never reverts; DONE and CANCELLED are terminal.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionPending:   {TransactionAccepted, TransactionCancelled},
	TransactionAccepted:  {TransactionSent, TransactionCancelled},
	TransactionSent:      {TransactionDone},
	TransactionDone:      {},
	TransactionCancelled: {},
}

// CanTransitionTo reports whether s -> next is in the transition table.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s TransactionStatus) IsTerminal() bool {
	return len(transactionTransitions[s]) == 0
}

// ParseTransactionStatus validates an external status string.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch TransactionStatus(s) {
	case TransactionPending, TransactionAccepted, TransactionSent, TransactionDone, TransactionCancelled:
		return TransactionStatus(s), nil
	default:
		return "", fmt.Errorf("unknown transaction status %q", s)
	}
}

// Transaction is the primary money-movement record, sender to recipient.
// Rows are never deleted: cancellation is a terminal status, not a removal.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	Num             int64             `json:"num"`  // monotonically assigned, never reused
	Code            string            `json:"code"` // TXN<year><6 digits>, globally unique
	SenderRef       string            `json:"sender_ref"`
	RecipientPhone  string            `json:"recipient_phone"`
	RecipientRef    *string           `json:"recipient_ref,omitempty"` // set when the recipient is a known identity
	RecipientName   *string           `json:"recipient_name,omitempty"`
	AmountSent      Money             `json:"amount_sent"`
	AmountConverted Money             `json:"amount_converted"` // after fees
	AmountReceived  Money             `json:"amount_received"`  // what the beneficiary gets
	Fees            Money             `json:"fees"`
	FeeDetail       string            `json:"fee_detail"` // human-readable, e.g. "150.00 XOF"
	SendCurrency    string            `json:"send_currency"`
	ReceiveCurrency string            `json:"receive_currency"`
	Channel         ChannelKind       `json:"channel"`
	Status          TransactionStatus `json:"status"`
	GatewayRef      *string           `json:"gateway_ref,omitempty"`
	ErrorCode       *string           `json:"error_code,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Advance moves the transaction to next, enforcing the transition table.
// On failure the status is left unchanged.
func (t *Transaction) Advance(next TransactionStatus) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	return nil
}

// ReadyForCashOut reports whether a withdrawal may consume this transaction.
func (t *Transaction) ReadyForCashOut() bool {
	return t.Status == TransactionSent
}
