package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DepositMode string

const (
	ModeAlways           DepositMode = "always"
	ModeFirstTimeOnly    DepositMode = "first_time_only"
	ModeUntilVisitCount  DepositMode = "until_visit_count"
	ModeUntilSpendAmount DepositMode = "until_spend_amount"
)

type DepositType string

const (
	TypePercentage DepositType = "percentage"
	TypeFixed      DepositType = "fixed"
)

type RefundPolicy string

const (
	RefundNone        RefundPolicy = "non_refundable"
	RefundBeforeHours RefundPolicy = "refundable_before_hours"
)

// DepositPolicy is a tenant's deposit configuration. One row per tenant.
type DepositPolicy struct {
	TenantID             string
	Enabled              bool
	Mode                 DepositMode
	Type                 DepositType
	Value                decimal.Decimal
	MinAmount            *decimal.Decimal
	MaxAmount            *decimal.Decimal
	ExemptAfterVisits    *int
	ExemptAfterSpend     *decimal.Decimal
	RefundPolicy         RefundPolicy
	RefundHoursBefore    int
	PaymentDeadlineHours int
	UpdatedAt            time.Time
}

// CustomerHistory is a read-only snapshot of a customer's record with the
// tenant, taken before the booking under evaluation.
type CustomerHistory struct {
	VisitCount     int
	LifetimeSpend  decimal.Decimal
	IsFirstBooking bool
}

type DepositDecision struct {
	Required bool
	Amount   decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// Validate checks the configuration before it is persisted. A disabled policy
// only needs to be structurally sound; mode parameters are required once the
// policy is enabled.
func (p DepositPolicy) Validate() error {
	if p.MinAmount != nil && p.MinAmount.IsNegative() {
		return fmt.Errorf("%w: min_amount must not be negative", ErrInvalidPolicyConfiguration)
	}
	if p.MaxAmount != nil && !p.MaxAmount.IsPositive() {
		return fmt.Errorf("%w: max_amount must be positive", ErrInvalidPolicyConfiguration)
	}
	if p.MinAmount != nil && p.MaxAmount != nil && p.MinAmount.GreaterThan(*p.MaxAmount) {
		return fmt.Errorf("%w: min_amount exceeds max_amount", ErrInvalidPolicyConfiguration)
	}
	if !p.Enabled {
		return nil
	}

	switch p.Type {
	case TypePercentage:
		if !p.Value.IsPositive() || p.Value.GreaterThan(oneHundred) {
			return fmt.Errorf("%w: percentage value must be in (0, 100]", ErrInvalidPolicyConfiguration)
		}
	case TypeFixed:
		if !p.Value.IsPositive() {
			return fmt.Errorf("%w: fixed value must be positive", ErrInvalidPolicyConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown deposit type %q", ErrInvalidPolicyConfiguration, p.Type)
	}

	switch p.Mode {
	case ModeAlways, ModeFirstTimeOnly:
	case ModeUntilVisitCount:
		if p.ExemptAfterVisits == nil || *p.ExemptAfterVisits <= 0 {
			return fmt.Errorf("%w: until_visit_count requires exempt_after_visits > 0", ErrInvalidPolicyConfiguration)
		}
	case ModeUntilSpendAmount:
		if p.ExemptAfterSpend == nil || !p.ExemptAfterSpend.IsPositive() {
			return fmt.Errorf("%w: until_spend_amount requires exempt_after_spend > 0", ErrInvalidPolicyConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown deposit mode %q", ErrInvalidPolicyConfiguration, p.Mode)
	}

	switch p.RefundPolicy {
	case RefundNone:
	case RefundBeforeHours:
		if p.RefundHoursBefore <= 0 {
			return fmt.Errorf("%w: refundable_before_hours requires refund_hours_before > 0", ErrInvalidPolicyConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown refund policy %q", ErrInvalidPolicyConfiguration, p.RefundPolicy)
	}

	if p.PaymentDeadlineHours <= 0 {
		return fmt.Errorf("%w: payment_deadline_hours must be positive", ErrInvalidPolicyConfiguration)
	}
	return nil
}

// Calculate decides whether a booking at basePrice requires a deposit and how
// much. Malformed configuration fails closed: the caller gets
// ErrInvalidPolicyConfiguration, never a silent "no deposit".
func (p DepositPolicy) Calculate(history CustomerHistory, basePrice decimal.Decimal) (DepositDecision, error) {
	if !p.Enabled {
		return DepositDecision{Required: false, Amount: decimal.Zero}, nil
	}

	exempt, err := p.exempts(history)
	if err != nil {
		return DepositDecision{}, err
	}
	if exempt {
		return DepositDecision{Required: false, Amount: decimal.Zero}, nil
	}

	var raw decimal.Decimal
	switch p.Type {
	case TypePercentage:
		if !p.Value.IsPositive() || p.Value.GreaterThan(oneHundred) {
			return DepositDecision{}, fmt.Errorf("%w: percentage value must be in (0, 100]", ErrInvalidPolicyConfiguration)
		}
		raw = basePrice.Mul(p.Value).Div(oneHundred)
	case TypeFixed:
		if !p.Value.IsPositive() {
			return DepositDecision{}, fmt.Errorf("%w: fixed value must be positive", ErrInvalidPolicyConfiguration)
		}
		raw = p.Value
	default:
		return DepositDecision{}, fmt.Errorf("%w: unknown deposit type %q", ErrInvalidPolicyConfiguration, p.Type)
	}

	amount := raw
	if p.MinAmount != nil && amount.LessThan(*p.MinAmount) {
		amount = *p.MinAmount
	}
	if p.MaxAmount != nil && amount.GreaterThan(*p.MaxAmount) {
		amount = *p.MaxAmount
	}

	// Round half-up to the currency minor unit. A non-positive result means
	// there is nothing to collect, so the booking is exempt.
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return DepositDecision{Required: false, Amount: decimal.Zero}, nil
	}
	return DepositDecision{Required: true, Amount: amount}, nil
}

func (p DepositPolicy) exempts(history CustomerHistory) (bool, error) {
	switch p.Mode {
	case ModeAlways:
		return false, nil
	case ModeFirstTimeOnly:
		// Deposit applies only to a customer's first booking.
		return !history.IsFirstBooking, nil
	case ModeUntilVisitCount:
		if p.ExemptAfterVisits == nil || *p.ExemptAfterVisits <= 0 {
			return false, fmt.Errorf("%w: until_visit_count requires exempt_after_visits > 0", ErrInvalidPolicyConfiguration)
		}
		return history.VisitCount >= *p.ExemptAfterVisits, nil
	case ModeUntilSpendAmount:
		if p.ExemptAfterSpend == nil || !p.ExemptAfterSpend.IsPositive() {
			return false, fmt.Errorf("%w: until_spend_amount requires exempt_after_spend > 0", ErrInvalidPolicyConfiguration)
		}
		return history.LifetimeSpend.GreaterThanOrEqual(*p.ExemptAfterSpend), nil
	default:
		return false, fmt.Errorf("%w: unknown deposit mode %q", ErrInvalidPolicyConfiguration, p.Mode)
	}
}

// Refundable reports whether a deposit cancelled at cancelledAt keeps refund
// eligibility for an appointment starting at startAt. The threshold is
// inclusive: cancelling exactly refund_hours_before the start still refunds.
func (p DepositPolicy) Refundable(startAt, cancelledAt time.Time) (bool, error) {
	switch p.RefundPolicy {
	case RefundNone:
		return false, nil
	case RefundBeforeHours:
		if p.RefundHoursBefore <= 0 {
			return false, fmt.Errorf("%w: refundable_before_hours requires refund_hours_before > 0", ErrInvalidPolicyConfiguration)
		}
		lead := startAt.Sub(cancelledAt)
		return lead >= time.Duration(p.RefundHoursBefore)*time.Hour, nil
	default:
		return false, fmt.Errorf("%w: unknown refund policy %q", ErrInvalidPolicyConfiguration, p.RefundPolicy)
	}
}
