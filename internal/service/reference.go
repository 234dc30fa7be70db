package service

import (
	"fmt"
	"time"
)

// Human-facing reference codes: PREFIX + year + 6 digits, e.g. TXN2026123456.
// The 6 digits are random, so collisions are possible; callers retry with a
// fresh candidate on a uniqueness violation and fall back to a timestamp
// suffix when the retry budget runs out.
const (
	TransferCodePrefix   = "TXN"
	WithdrawalCodePrefix = "WTH"
)

// NewCode builds one candidate reference code. intn must behave like
// rand.Intn; it is passed in so tests can force collisions.
func NewCode(prefix string, now time.Time, intn func(n int) int) string {
	return fmt.Sprintf("%s%d%06d", prefix, now.Year(), intn(1000000))
}

// FallbackCode builds a collision-proof code from the current time, used
// after the random-code retry budget is exhausted.
func FallbackCode(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%d", prefix, now.UnixNano()/int64(time.Millisecond))
}
