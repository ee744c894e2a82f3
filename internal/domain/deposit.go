package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DepositState string

const (
	DepositStateExempt               DepositState = "exempt"
	DepositStateRequired             DepositState = "required"
	DepositStateAwaitingPayment      DepositState = "awaiting_payment"
	DepositStatePaid                 DepositState = "paid"
	DepositStateExpired              DepositState = "expired"
	DepositStateCancelledRefunded    DepositState = "cancelled_refunded"
	DepositStateCancelledNotRefunded DepositState = "cancelled_not_refunded"
)

type RefundDecision string

const (
	RefundNotApplicable RefundDecision = "not_applicable"
	RefundRefunded      RefundDecision = "refunded"
	RefundNotRefunded   RefundDecision = "not_refunded"
)

// Deposit tracks the prepayment lifecycle of a single booking. Rows are never
// deleted; resolved deposits remain as the audit trail of the booking.
//
// RefundPolicy and RefundHoursBefore are snapshotted from the tenant policy at
// creation time, so later policy edits never change the refund terms a
// customer agreed to.
type Deposit struct {
	ID             string
	BookingID      string
	TenantID       string
	CustomerID     string
	RequiredAmount decimal.Decimal
	State          DepositState

	CreatedAt  time.Time
	DeadlineAt time.Time
	PaidAt     *time.Time
	ResolvedAt *time.Time

	RefundDecision    *RefundDecision
	RefundPolicy      RefundPolicy
	RefundHoursBefore int

	AppointmentStartAt time.Time
	ExpiryNotified     bool
}

var depositTransitions = map[DepositState][]DepositState{
	DepositStateRequired: {
		DepositStateAwaitingPayment,
		DepositStateCancelledNotRefunded,
	},
	DepositStateAwaitingPayment: {
		DepositStatePaid,
		DepositStateExpired,
		DepositStateCancelledRefunded,
		DepositStateCancelledNotRefunded,
	},
	DepositStatePaid: {
		DepositStateCancelledRefunded,
		DepositStateCancelledNotRefunded,
	},
}

// CanTransitionTo reports whether the state machine allows s -> to.
func (s DepositState) CanTransitionTo(to DepositState) bool {
	for _, next := range depositTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Resolved reports whether the payment lifecycle has reached an outcome.
// A paid deposit is resolved even though cancellation may still re-label it.
func (s DepositState) Resolved() bool {
	switch s {
	case DepositStateRequired, DepositStateAwaitingPayment:
		return false
	default:
		return true
	}
}

// RefundableAt evaluates the refund snapshot carried on the deposit.
func (d Deposit) RefundableAt(cancelledAt time.Time) (bool, error) {
	p := DepositPolicy{
		RefundPolicy:      d.RefundPolicy,
		RefundHoursBefore: d.RefundHoursBefore,
	}
	return p.Refundable(d.AppointmentStartAt, cancelledAt)
}
