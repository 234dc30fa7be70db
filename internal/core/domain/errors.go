package domain

import "errors"

var (
	// ErrCurrencyMismatch is returned when two Money values with different
	// currency codes are combined or compared.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInvalidTransition is returned on any status change outside the
	// transition tables. The stored status is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicate is returned by repositories on a uniqueness violation
	// (code, num or idempotency key). Callers retry with a new candidate.
	ErrDuplicate = errors.New("duplicate value")

	// ErrUnknownChannel is returned when a channel identifier does not map
	// to a known channel kind.
	ErrUnknownChannel = errors.New("unknown payment channel")
)
