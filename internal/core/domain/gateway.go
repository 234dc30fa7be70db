package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeStatus is the simulated operator-side result of a payment call.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "SUCCESS"
	OutcomeFailed  OutcomeStatus = "FAILED"
	OutcomeTimeout OutcomeStatus = "TIMEOUT"
)

// Cross-channel error codes produced by the registry itself rather than by
// an operator simulator.
const (
	CodeTechnicalError      = "TECHNICAL_ERROR"
	CodeChannelNotAvailable = "GATEWAY_NOT_AVAILABLE"
)

// GatewayOutcome is the transient result of one gateway invocation. It is
// consumed immediately by the lifecycle engine, which copies the relevant
// fields into the transaction, then discarded. It is never persisted as-is.
type GatewayOutcome struct {
	Success    bool
	Status     OutcomeStatus
	Reference  string // the caller's transaction code
	GatewayRef string // operator-side reference, empty on timeout
	Amount     Money
	Fee        Money
	Message    string
	ErrorCode  string
	Data       map[string]string // free-form diagnostic payload
}

// IdempotencyRecord pins an idempotency key to the transaction it produced,
// with the serialized response to replay on duplicates.
type IdempotencyRecord struct {
	Key           string    `json:"key"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Response      []byte    `json:"response,omitempty"` // nil while the submission is in flight
	CreatedAt     time.Time `json:"created_at"`
}
