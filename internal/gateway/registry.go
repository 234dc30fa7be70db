package gateway

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
	"github.com/mamadousy92i/Mobile-Money-Transfert/pkg/apperror"
)

// Registry dispatches payment calls to per-channel gateways. The map is
// built once at startup and read-only afterwards, so lookups need no lock.
type Registry struct {
	gateways map[domain.ChannelKind]ports.Gateway
	logger   zerolog.Logger
}

// NewRegistry builds a registry over the given gateways.
func NewRegistry(logger zerolog.Logger, gateways ...ports.Gateway) *Registry {
	m := make(map[domain.ChannelKind]ports.Gateway, len(gateways))
	for _, g := range gateways {
		m[g.Channel().Kind] = g
	}
	return &Registry{gateways: m, logger: logger.With().Str("component", "gateway_registry").Logger()}
}

// NewRegistryFromChannels builds a simulator per channel and registers them.
func NewRegistryFromChannels(channels map[domain.ChannelKind]domain.Channel, logger zerolog.Logger, opts ...SimulatorOption) *Registry {
	gws := make([]ports.Gateway, 0, len(channels))
	for _, ch := range channels {
		gws = append(gws, NewSimulator(ch, logger, opts...))
	}
	return NewRegistry(logger, gws...)
}

// Resolve returns the gateway for a channel kind. Unknown or inactive
// channels are indistinguishable to callers: both are unavailable.
func (r *Registry) Resolve(kind domain.ChannelKind) (ports.Gateway, error) {
	g, ok := r.gateways[kind]
	if !ok || !g.Channel().Active {
		return nil, apperror.ErrChannelNotAvailable(string(kind))
	}
	return g, nil
}

// ProcessPayment resolves the channel and runs the payment. A gateway that
// panics is reported as a TECHNICAL_ERROR outcome; the panic never reaches
// the caller, so a broken simulator cannot take down a submission.
func (r *Registry) ProcessPayment(ctx context.Context, kind domain.ChannelKind, phone string, amount domain.Money, reference string) (out domain.GatewayOutcome) {
	g, err := r.Resolve(kind)
	if err != nil {
		return domain.GatewayOutcome{
			Success:   false,
			Status:    domain.OutcomeFailed,
			Reference: reference,
			Amount:    amount,
			ErrorCode: domain.CodeChannelNotAvailable,
			Message:   "channel not available: " + string(kind),
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("channel", string(kind)).
				Str("reference", reference).
				Interface("panic", rec).
				Msg("gateway panicked")
			out = domain.GatewayOutcome{
				Success:   false,
				Status:    domain.OutcomeFailed,
				Reference: reference,
				Amount:    amount,
				ErrorCode: domain.CodeTechnicalError,
				Message:   "technical error while contacting operator",
			}
		}
	}()

	return g.ProcessPayment(ctx, phone, amount, reference)
}

// Info returns the public description of one channel.
func (r *Registry) Info(kind domain.ChannelKind) (*ports.GatewayInfo, error) {
	g, ok := r.gateways[kind]
	if !ok {
		return nil, apperror.ErrChannelNotAvailable(string(kind))
	}
	ch := g.Channel()
	return &ports.GatewayInfo{
		Kind:        ch.Kind,
		Name:        ch.Name,
		Active:      ch.Active,
		SuccessRate: ch.SuccessRate,
		Fees:        ch.Fees,
		MinAmount:   ch.MinAmount.String(),
		MaxAmount:   ch.MaxAmount.String(),
	}, nil
}

// Kinds lists registered channel kinds, active or not.
func (r *Registry) Kinds() []domain.ChannelKind {
	kinds := make([]domain.ChannelKind, 0, len(r.gateways))
	for _, k := range domain.ChannelKinds() {
		if _, ok := r.gateways[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
