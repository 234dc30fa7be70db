package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
)

// Simulator emulates one mobile-money operator API. Each call validates the
// request the way the real operator would, waits a realistic latency, then
// draws an outcome from the channel's probability windows:
//
//	[0, SuccessRate)              -> success
//	[SuccessRate, DeclineCeiling) -> business decline from the operator's taxonomy
//	[DeclineCeiling, 1)           -> timeout, no operator reference
//
// The randomness and clock are injected so tests can force every branch.
type Simulator struct {
	channel domain.Channel
	logger  zerolog.Logger

	randFloat func() float64
	randIntn  func(n int) int
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// SimulatorOption customizes a Simulator, mainly for tests.
type SimulatorOption func(*Simulator)

// WithRand replaces the outcome and latency randomness sources.
func WithRand(randFloat func() float64, randIntn func(n int) int) SimulatorOption {
	return func(s *Simulator) {
		s.randFloat = randFloat
		s.randIntn = randIntn
	}
}

// WithClock replaces the wall clock used for operator references.
func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) { s.now = now }
}

// WithSleep replaces the latency wait. Tests pass a no-op.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) SimulatorOption {
	return func(s *Simulator) { s.sleep = sleep }
}

// NewSimulator builds a simulator for one channel.
func NewSimulator(channel domain.Channel, logger zerolog.Logger, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		channel:   channel,
		logger:    logger.With().Str("gateway", string(channel.Kind)).Logger(),
		randFloat: rand.Float64,
		randIntn:  rand.Intn,
		now:       time.Now,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Channel returns the simulated operator's configuration.
func (s *Simulator) Channel() domain.Channel { return s.channel }

// ValidatePhone reports whether the operator would accept this number.
func (s *Simulator) ValidatePhone(phone string) bool {
	return s.channel.ValidatePhone(phone)
}

// ProcessPayment runs one simulated payment attempt. It always returns an
// outcome; rejections and timeouts are data, not errors.
func (s *Simulator) ProcessPayment(ctx context.Context, phone string, amount domain.Money, reference string) domain.GatewayOutcome {
	if !s.channel.ValidatePhone(phone) {
		return s.failure(reference, amount, s.channel.Errors.InvalidPhone,
			fmt.Sprintf("invalid phone number for %s: %s", s.channel.Name, phone))
	}
	if out, ok := s.checkAmount(reference, amount); !ok {
		return out
	}

	latency := s.latency()
	if err := s.sleep(ctx, latency); err != nil {
		// Caller gave up waiting; report it the way the operator's client
		// library would, as a timeout.
		return s.timeout(reference, amount, latency)
	}

	draw := s.randFloat()
	switch {
	case draw < s.channel.SuccessRate:
		return s.success(reference, amount, latency)
	case draw < s.channel.DeclineCeiling:
		return s.decline(reference, amount)
	default:
		return s.timeout(reference, amount, latency)
	}
}

// CheckStatus simulates the operator's status-lookup endpoint. References
// issued by this operator resolve as completed; anything else is unknown.
func (s *Simulator) CheckStatus(ctx context.Context, gatewayRef string) domain.GatewayOutcome {
	if !strings.HasPrefix(gatewayRef, s.channel.RefPrefix+"_") {
		return domain.GatewayOutcome{
			Success:    false,
			Status:     domain.OutcomeFailed,
			GatewayRef: gatewayRef,
			ErrorCode:  domain.CodeTechnicalError,
			Message:    fmt.Sprintf("unknown reference for %s: %s", s.channel.Name, gatewayRef),
		}
	}
	return domain.GatewayOutcome{
		Success:    true,
		Status:     domain.OutcomeSuccess,
		GatewayRef: gatewayRef,
		Message:    "transaction completed",
	}
}

func (s *Simulator) checkAmount(reference string, amount domain.Money) (domain.GatewayOutcome, bool) {
	below, err := amount.Cmp(s.channel.MinAmount)
	if err != nil {
		return s.failure(reference, amount, s.channel.Errors.OutOfRange,
			fmt.Sprintf("%s only handles %s amounts", s.channel.Name, s.channel.Currency)), false
	}
	above, _ := amount.Cmp(s.channel.MaxAmount)
	if below < 0 || above > 0 {
		return s.failure(reference, amount, s.channel.Errors.OutOfRange,
			fmt.Sprintf("amount must be between %s and %s",
				s.channel.MinAmount.String(), s.channel.MaxAmount.String())), false
	}
	return domain.GatewayOutcome{}, true
}

func (s *Simulator) latency() time.Duration {
	window := s.channel.MaxLatency - s.channel.MinLatency
	if window <= 0 {
		return s.channel.MinLatency
	}
	return s.channel.MinLatency + time.Duration(s.randFloat()*float64(window))
}

// newRef builds an operator-side reference: PREFIX_YYYYMMDD_8HEX.
func (s *Simulator) newRef() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("%s_%s_%s", s.channel.RefPrefix, s.now().Format("20060102"), suffix)
}

func (s *Simulator) success(reference string, amount domain.Money, latency time.Duration) domain.GatewayOutcome {
	ref := s.newRef()
	fee := s.channel.Fees.ComputeFee(amount)
	s.logger.Info().
		Str("reference", reference).
		Str("gateway_ref", ref).
		Str("amount", amount.String()).
		Str("fee", fee.String()).
		Dur("latency", latency).
		Msg("payment accepted")
	return domain.GatewayOutcome{
		Success:    true,
		Status:     domain.OutcomeSuccess,
		Reference:  reference,
		GatewayRef: ref,
		Amount:     amount,
		Fee:        fee,
		Message:    fmt.Sprintf("transfer accepted by %s", s.channel.Name),
	}
}

func (s *Simulator) decline(reference string, amount domain.Money) domain.GatewayOutcome {
	declines := s.channel.Errors.Declines
	d := declines[s.randIntn(len(declines))]
	s.logger.Warn().
		Str("reference", reference).
		Str("error_code", d.Code).
		Msg("payment declined")
	return domain.GatewayOutcome{
		Success:   false,
		Status:    domain.OutcomeFailed,
		Reference: reference,
		Amount:    amount,
		ErrorCode: d.Code,
		Message:   d.Message,
	}
}

func (s *Simulator) timeout(reference string, amount domain.Money, latency time.Duration) domain.GatewayOutcome {
	s.logger.Warn().
		Str("reference", reference).
		Dur("latency", latency).
		Msg("payment timed out")
	return domain.GatewayOutcome{
		Success:   false,
		Status:    domain.OutcomeTimeout,
		Reference: reference,
		Amount:    amount,
		ErrorCode: s.channel.Errors.Timeout,
		Message:   fmt.Sprintf("no response from %s", s.channel.Name),
	}
}

func (s *Simulator) failure(reference string, amount domain.Money, code, message string) domain.GatewayOutcome {
	s.logger.Warn().
		Str("reference", reference).
		Str("error_code", code).
		Msg("payment rejected")
	return domain.GatewayOutcome{
		Success:   false,
		Status:    domain.OutcomeFailed,
		Reference: reference,
		Amount:    amount,
		ErrorCode: code,
		Message:   message,
	}
}
