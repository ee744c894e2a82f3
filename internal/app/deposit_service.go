package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/clock"
	"github.com/hubert-samek05/rezerwacja24-sub006/internal/domain"
	"github.com/hubert-samek05/rezerwacja24-sub006/internal/notify"
)

type DepositRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateDeposit(ctx context.Context, d domain.Deposit) error
	GetDeposit(ctx context.Context, id string) (domain.Deposit, error)
	GetDepositByBookingID(ctx context.Context, bookingID string) (domain.Deposit, error)
	MarkAwaitingPayment(ctx context.Context, id string) (bool, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
	MarkExpired(ctx context.Context, id string, resolvedAt time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id string, from, to domain.DepositState, decision domain.RefundDecision, resolvedAt time.Time) (bool, error)
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]domain.Deposit, error)
	ListUnnotifiedExpired(ctx context.Context, limit int) ([]domain.Deposit, error)
	MarkExpiryNotified(ctx context.Context, id string) error
}

// PolicyProvider resolves the effective deposit policy for a tenant.
type PolicyProvider interface {
	PolicyForTenant(ctx context.Context, tenantID string) (domain.DepositPolicy, error)
}

// CustomerHistoryProvider returns the customer's record before the booking
// identified by excludeBookingID.
type CustomerHistoryProvider interface {
	CustomerHistory(ctx context.Context, tenantID, customerID, excludeBookingID string) (domain.CustomerHistory, error)
}

// DepositService owns the deposit record and is its only mutator. Every state
// change goes through a conditional update at the storage boundary, so a
// payment confirmation racing an expiry sweep resolves to exactly one outcome.
type DepositService struct {
	deposits  DepositRepository
	policies  PolicyProvider
	history   CustomerHistoryProvider
	canceller notify.BookingCanceller
	clock     clock.Clock
	sweepSize int
}

const defaultSweepBatchSize = 500

func NewDepositService(
	deposits DepositRepository,
	policies PolicyProvider,
	history CustomerHistoryProvider,
	canceller notify.BookingCanceller,
	clk clock.Clock,
	opts ...DepositServiceOption,
) *DepositService {
	svc := &DepositService{
		deposits:  deposits,
		policies:  policies,
		history:   history,
		canceller: canceller,
		clock:     clk,
		sweepSize: defaultSweepBatchSize,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type DepositServiceOption func(*DepositService)

// WithSweepBatchSize overrides how many deposits a single sweep pass handles.
func WithSweepBatchSize(n int) DepositServiceOption {
	return func(s *DepositService) {
		if n > 0 {
			s.sweepSize = n
		}
	}
}

type BookingCreatedInput struct {
	BookingID          string
	TenantID           string
	CustomerID         string
	BasePrice          decimal.Decimal
	AppointmentStartAt time.Time
}

// OnBookingCreated evaluates the tenant policy against the customer's history
// and records the deposit decision. A malformed policy fails the booking
// (fail closed); a missing policy means deposits are not configured and the
// booking proceeds with an exempt audit record.
func (s *DepositService) OnBookingCreated(ctx context.Context, in BookingCreatedInput) (domain.Deposit, error) {
	if in.BookingID == "" || in.TenantID == "" || in.CustomerID == "" {
		return domain.Deposit{}, domain.ErrInvalidID
	}
	if in.BasePrice.IsNegative() {
		return domain.Deposit{}, domain.ErrInvalidAmount
	}

	policy, err := s.policies.PolicyForTenant(ctx, in.TenantID)
	if err != nil {
		if errors.Is(err, domain.ErrPolicyNotFound) {
			policy = domain.DepositPolicy{TenantID: in.TenantID, Enabled: false}
		} else {
			return domain.Deposit{}, fmt.Errorf("load deposit policy: %w", err)
		}
	}

	now := s.clock.Now()
	var deposit domain.Deposit

	// The history snapshot and the deposit record commit together, so the
	// persisted decision always matches the history it was derived from.
	err = s.deposits.WithTx(ctx, func(txCtx context.Context) error {
		var history domain.CustomerHistory
		if policy.Enabled {
			h, err := s.history.CustomerHistory(txCtx, in.TenantID, in.CustomerID, in.BookingID)
			if err != nil {
				return fmt.Errorf("load customer history: %w", err)
			}
			history = h
		}

		decision, err := policy.Calculate(history, in.BasePrice)
		if err != nil {
			return err
		}

		deposit = domain.Deposit{
			ID:                 uuid.NewString(),
			BookingID:          in.BookingID,
			TenantID:           in.TenantID,
			CustomerID:         in.CustomerID,
			RequiredAmount:     decision.Amount,
			CreatedAt:          now,
			DeadlineAt:         now,
			AppointmentStartAt: in.AppointmentStartAt,
			RefundPolicy:       policy.RefundPolicy,
			RefundHoursBefore:  policy.RefundHoursBefore,
		}
		if policy.RefundPolicy == "" {
			deposit.RefundPolicy = domain.RefundNone
		}

		if decision.Required {
			deposit.State = domain.DepositStateRequired
			deposit.DeadlineAt = now.Add(time.Duration(policy.PaymentDeadlineHours) * time.Hour)
		} else {
			deposit.State = domain.DepositStateExempt
			deposit.ResolvedAt = &now
		}

		return s.deposits.CreateDeposit(txCtx, deposit)
	})
	if err != nil {
		// A booking has at most one deposit; a duplicate signal returns the
		// existing record so retries stay idempotent.
		if errors.Is(err, domain.ErrDepositExists) {
			return s.deposits.GetDepositByBookingID(ctx, in.BookingID)
		}
		return domain.Deposit{}, err
	}
	return deposit, nil
}

// RequestPayment moves a required deposit into awaiting_payment, starting the
// deadline clock for the sweeper. Re-requesting an already pending deposit is
// a no-op.
func (s *DepositService) RequestPayment(ctx context.Context, depositID string) (domain.Deposit, error) {
	ok, err := s.deposits.MarkAwaitingPayment(ctx, depositID)
	if err != nil {
		return domain.Deposit{}, err
	}

	d, getErr := s.deposits.GetDeposit(ctx, depositID)
	if getErr != nil {
		return domain.Deposit{}, getErr
	}
	if ok || d.State == domain.DepositStateAwaitingPayment {
		return d, nil
	}
	// An exempt deposit never entered the payment lifecycle.
	if d.State == domain.DepositStateExempt {
		return d, domain.ErrInvalidTransition
	}
	if d.State.Resolved() {
		return d, domain.ErrAlreadyResolved
	}
	return d, domain.ErrInvalidTransition
}

// ConfirmPayment applies a confirmed payment. The conditional update only
// wins while the deposit is still awaiting payment; if the sweeper expired it
// first, the caller gets ErrAlreadyResolved and must treat it as benign.
func (s *DepositService) ConfirmPayment(ctx context.Context, depositID string, paidAt time.Time) (domain.Deposit, error) {
	ok, err := s.deposits.MarkPaid(ctx, depositID, paidAt.UTC())
	if err != nil {
		return domain.Deposit{}, err
	}

	d, getErr := s.deposits.GetDeposit(ctx, depositID)
	if getErr != nil {
		return domain.Deposit{}, getErr
	}
	if ok {
		return d, nil
	}
	if d.State == domain.DepositStateExempt {
		return d, domain.ErrInvalidTransition
	}
	if d.State.Resolved() {
		return d, domain.ErrAlreadyResolved
	}
	return d, domain.ErrInvalidTransition
}

// RequestCancellation records the cancellation outcome for the booking's
// deposit. The current state is re-read immediately before each transition
// attempt; losing a race against a concurrent payment or sweep retries once
// from the state that won.
func (s *DepositService) RequestCancellation(ctx context.Context, bookingID string, cancelledAt time.Time) (domain.RefundDecision, error) {
	cancelledAt = cancelledAt.UTC()
	now := s.clock.Now()

	for attempt := 0; attempt < 3; attempt++ {
		d, err := s.deposits.GetDepositByBookingID(ctx, bookingID)
		if err != nil {
			return "", err
		}

		switch d.State {
		case domain.DepositStateExempt:
			return domain.RefundNotApplicable, nil

		case domain.DepositStateExpired,
			domain.DepositStateCancelledRefunded,
			domain.DepositStateCancelledNotRefunded:
			if d.RefundDecision != nil {
				return *d.RefundDecision, domain.ErrAlreadyResolved
			}
			return domain.RefundNotApplicable, domain.ErrAlreadyResolved

		case domain.DepositStateRequired:
			// Nothing was requested or paid; nothing to refund.
			ok, err := s.deposits.MarkCancelled(ctx, d.ID,
				domain.DepositStateRequired, domain.DepositStateCancelledNotRefunded,
				domain.RefundNotApplicable, now)
			if err != nil {
				return "", err
			}
			if ok {
				return domain.RefundNotApplicable, nil
			}

		case domain.DepositStateAwaitingPayment, domain.DepositStatePaid:
			refundable, err := d.RefundableAt(cancelledAt)
			if err != nil {
				return "", err
			}
			decision := domain.RefundNotRefunded
			target := domain.DepositStateCancelledNotRefunded
			if refundable {
				decision = domain.RefundRefunded
				target = domain.DepositStateCancelledRefunded
			}
			ok, err := s.deposits.MarkCancelled(ctx, d.ID, d.State, target, decision, now)
			if err != nil {
				return "", err
			}
			if ok {
				return decision, nil
			}

		default:
			return "", domain.ErrInvalidTransition
		}
		// Conditional update lost a race; re-read and decide from the new state.
	}
	return "", domain.ErrInvalidTransition
}

// SweepExpired expires every awaiting deposit whose deadline has passed and
// returns how many transitions were applied. Each deposit is handled
// independently; one failure never aborts the pass. Re-running a sweep is
// idempotent because the conditional update refuses already-resolved rows.
func (s *DepositService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	due, err := s.deposits.ListExpirable(ctx, now, s.sweepSize)
	if err != nil {
		return 0, fmt.Errorf("list expirable deposits: %w", err)
	}

	expired := 0
	for _, d := range due {
		ok, err := s.deposits.MarkExpired(ctx, d.ID, now)
		if err != nil {
			log.Error().Err(err).Str("deposit_id", d.ID).Msg("expire deposit")
			continue
		}
		if ok {
			expired++
		}
	}

	s.notifyExpired(ctx)
	return expired, nil
}

// notifyExpired delivers the booking-cancel signal for expired deposits that
// have not been announced yet. Delivery failures are retried on later sweeps.
func (s *DepositService) notifyExpired(ctx context.Context) {
	pending, err := s.deposits.ListUnnotifiedExpired(ctx, s.sweepSize)
	if err != nil {
		log.Error().Err(err).Msg("list unnotified expired deposits")
		return
	}

	for _, d := range pending {
		if err := s.canceller.CancelBooking(ctx, d.BookingID, "deposit payment deadline passed"); err != nil {
			log.Warn().Err(err).
				Str("deposit_id", d.ID).
				Str("booking_id", d.BookingID).
				Msg("booking cancel notification failed, will retry")
			continue
		}
		if err := s.deposits.MarkExpiryNotified(ctx, d.ID); err != nil {
			log.Error().Err(err).Str("deposit_id", d.ID).Msg("mark expiry notified")
		}
	}
}

// SweepNow runs one sweep pass against the current clock, for the manual
// operational trigger.
func (s *DepositService) SweepNow(ctx context.Context) (int, error) {
	return s.SweepExpired(ctx, s.clock.Now())
}

// GetDeposit exposes a single deposit for operational reads.
func (s *DepositService) GetDeposit(ctx context.Context, depositID string) (domain.Deposit, error) {
	if depositID == "" {
		return domain.Deposit{}, domain.ErrInvalidID
	}
	return s.deposits.GetDeposit(ctx, depositID)
}
