package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the lifecycle state of a cash-out.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "PENDING"
	WithdrawalAccepted  WithdrawalStatus = "ACCEPTED"
	WithdrawalDone      WithdrawalStatus = "DONE"
	WithdrawalCancelled WithdrawalStatus = "CANCELLED"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:   {WithdrawalAccepted, WithdrawalCancelled},
	WithdrawalAccepted:  {WithdrawalDone, WithdrawalCancelled},
	WithdrawalDone:      {},
	WithdrawalCancelled: {},
}

// CanTransitionTo reports whether s -> next is a legal move.
func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// VerificationData holds what the agent checked before handing out cash.
type VerificationData struct {
	IDDocumentChecked bool             `json:"id_document_checked"`
	SMSCodeChecked    bool             `json:"sms_code_checked"`
	Notes             string           `json:"notes"`
	Latitude          *decimal.Decimal `json:"latitude,omitempty"`
	Longitude         *decimal.Decimal `json:"longitude,omitempty"`
}

// Withdrawal finalizes a transaction's money into the recipient's hands via
// an intermediary agent. It owns its verification metadata and holds a
// non-owning reference to the originating transaction.
type Withdrawal struct {
	ID             uuid.UUID        `json:"id"`
	Code           string           `json:"code"`    // WTH<year><6 digits>, globally unique
	QRCode         string           `json:"qr_code"` // opaque validation token
	TransactionID  *uuid.UUID       `json:"transaction_id,omitempty"` // nil for standalone cash-outs
	AgentRef       string           `json:"agent_ref"`
	BeneficiaryRef string           `json:"beneficiary_ref"`
	Amount         Money            `json:"amount"`
	Commission     Money            `json:"commission"`
	Status         WithdrawalStatus `json:"status"`
	Verification   VerificationData `json:"verification"`
	RequestedAt    time.Time        `json:"requested_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Advance moves the withdrawal to next, enforcing the transition table.
func (w *Withdrawal) Advance(next WithdrawalStatus) error {
	if !w.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, w.Status, next)
	}
	w.Status = next
	return nil
}

// InProgress reports whether the withdrawal may still be cancelled.
func (w *Withdrawal) InProgress() bool {
	return w.Status == WithdrawalPending || w.Status == WithdrawalAccepted
}
