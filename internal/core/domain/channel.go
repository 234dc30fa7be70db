package domain

import (
	"fmt"
	"regexp"
	"time"
)

// ChannelKind is the closed set of supported payment channels. Dispatch is
// typed over this enum, never over raw strings from the outside.
type ChannelKind string

const (
	ChannelWave        ChannelKind = "WAVE"
	ChannelOrangeMoney ChannelKind = "ORANGE_MONEY"
)

// ChannelKinds lists every supported kind.
func ChannelKinds() []ChannelKind {
	return []ChannelKind{ChannelWave, ChannelOrangeMoney}
}

// ParseChannelKind maps an external identifier onto the closed enum.
func ParseChannelKind(s string) (ChannelKind, error) {
	switch ChannelKind(s) {
	case ChannelWave:
		return ChannelWave, nil
	case ChannelOrangeMoney:
		return ChannelOrangeMoney, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
	}
}

// DeclineCode is one business-decline outcome an operator can report.
type DeclineCode struct {
	Code    string
	Message string
}

// ErrorTaxonomy holds the operator-specific error vocabulary of a channel.
type ErrorTaxonomy struct {
	InvalidPhone string
	OutOfRange   string
	Timeout      string
	Declines     []DeclineCode
}

// taxonomies mirrors the error vocabularies of the real operator APIs.
var taxonomies = map[ChannelKind]ErrorTaxonomy{
	ChannelWave: {
		InvalidPhone: "INVALID_PHONE_NUMBER",
		OutOfRange:   "AMOUNT_OUT_OF_RANGE",
		Timeout:      "GATEWAY_TIMEOUT",
		Declines: []DeclineCode{
			{"INSUFFICIENT_FUNDS", "Insufficient Wave balance"},
			{"ACCOUNT_SUSPENDED", "Wave account temporarily suspended"},
			{"DAILY_LIMIT_EXCEEDED", "Wave daily limit exceeded"},
			{"INVALID_PIN", "Incorrect Wave PIN code"},
			{"NETWORK_ERROR", "Wave network error"},
		},
	},
	ChannelOrangeMoney: {
		InvalidPhone: "INVALID_MSISDN",
		OutOfRange:   "AMOUNT_NOT_ALLOWED",
		Timeout:      "REQUEST_TIMEOUT",
		Declines: []DeclineCode{
			{"INSUFFICIENT_BALANCE", "Insufficient Orange Money balance"},
			{"SUBSCRIBER_NOT_FOUND", "Orange Money account not found"},
			{"TRANSACTION_LIMIT_EXCEEDED", "Orange Money transaction limit exceeded"},
			{"SERVICE_TEMPORARILY_UNAVAILABLE", "Orange Money service temporarily unavailable"},
			{"AUTHENTICATION_FAILED", "Orange Money authentication failed"},
			{"ACCOUNT_BLOCKED", "Orange Money account blocked"},
		},
	},
}

// TaxonomyFor returns the error vocabulary of a channel kind.
func TaxonomyFor(kind ChannelKind) ErrorTaxonomy {
	return taxonomies[kind]
}

// Channel is the full configuration of one simulated mobile-money operator.
// Created and administered out of core scope; the core only reads it.
type Channel struct {
	Kind           ChannelKind
	Name           string
	Active         bool
	Currency       string
	Fees           FeeSchedule
	PhonePattern   *regexp.Regexp
	MinAmount      Money
	MaxAmount      Money
	SuccessRate    float64 // probability of success in [0,1]
	DeclineCeiling float64 // (SuccessRate, DeclineCeiling] -> business decline, above -> timeout
	MinLatency     time.Duration
	MaxLatency     time.Duration
	RefPrefix      string
	Errors         ErrorTaxonomy
}

// ValidatePhone checks a phone number against the channel's pattern after
// stripping spaces and dashes.
func (c Channel) ValidatePhone(phone string) bool {
	return c.PhonePattern.MatchString(NormalizePhone(phone))
}

var phoneSeparators = regexp.MustCompile(`[ -]`)

// NormalizePhone strips spaces and dashes from a phone number.
func NormalizePhone(phone string) string {
	return phoneSeparators.ReplaceAllString(phone, "")
}
