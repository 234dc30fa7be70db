package gateway

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mamadousy92i/Mobile-Money-Transfert/config"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
)

// BuildChannel turns one operator config block into a domain channel,
// attaching the operator's error taxonomy and validating the schedule and
// probability windows up front so a bad config fails at startup.
func BuildChannel(kind domain.ChannelKind, currency string, cfg config.ChannelConfig) (domain.Channel, error) {
	fees, err := domain.NewFeeSchedule(cfg.Fees.Percentage, cfg.Fees.Fixed, cfg.Fees.Min, cfg.Fees.Max)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("channel %s: fees: %w", kind, err)
	}

	minAmount, err := domain.MoneyFromString(cfg.MinAmount, currency)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("channel %s: min_amount: %w", kind, err)
	}
	maxAmount, err := domain.MoneyFromString(cfg.MaxAmount, currency)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("channel %s: max_amount: %w", kind, err)
	}

	pattern, err := regexp.Compile(cfg.PhonePattern)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("channel %s: phone_pattern: %w", kind, err)
	}

	if cfg.SuccessRate < 0 || cfg.SuccessRate > 1 {
		return domain.Channel{}, fmt.Errorf("channel %s: success_rate %v outside [0,1]", kind, cfg.SuccessRate)
	}
	if cfg.DeclineCeiling < cfg.SuccessRate || cfg.DeclineCeiling > 1 {
		return domain.Channel{}, fmt.Errorf("channel %s: decline_ceiling %v outside [success_rate,1]", kind, cfg.DeclineCeiling)
	}
	if cfg.MinLatency < 0 || cfg.MaxLatency < cfg.MinLatency {
		return domain.Channel{}, fmt.Errorf("channel %s: latency window [%v,%v] invalid", kind, cfg.MinLatency, cfg.MaxLatency)
	}

	return domain.Channel{
		Kind:           kind,
		Name:           cfg.Name,
		Active:         cfg.Active,
		Currency:       currency,
		Fees:           fees,
		PhonePattern:   pattern,
		MinAmount:      minAmount,
		MaxAmount:      maxAmount,
		SuccessRate:    cfg.SuccessRate,
		DeclineCeiling: cfg.DeclineCeiling,
		MinLatency:     cfg.MinLatency,
		MaxLatency:     cfg.MaxLatency,
		RefPrefix:      cfg.RefPrefix,
		Errors:         domain.TaxonomyFor(kind),
	}, nil
}

// BuildChannels maps the channels section of the configuration onto domain
// channels. The config key is the lower-cased channel kind.
func BuildChannels(currency string, cfgs map[string]config.ChannelConfig) (map[domain.ChannelKind]domain.Channel, error) {
	out := make(map[domain.ChannelKind]domain.Channel, len(cfgs))
	for key, cfg := range cfgs {
		kind, err := domain.ParseChannelKind(strings.ToUpper(key))
		if err != nil {
			return nil, err
		}
		ch, err := BuildChannel(kind, currency, cfg)
		if err != nil {
			return nil, err
		}
		out[kind] = ch
	}
	return out, nil
}
