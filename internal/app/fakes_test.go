package app

import (
	"context"
	"sync"
	"time"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/domain"
)

// fakeDepositRepo mirrors the conditional-update discipline of the Postgres
// repository: every transition checks the current state under a lock.
type fakeDepositRepo struct {
	mu        sync.Mutex
	deposits  map[string]*domain.Deposit
	byBooking map[string]string

	expireErr map[string]error
	txCalls   int
}

func newFakeDepositRepo(seed ...domain.Deposit) *fakeDepositRepo {
	r := &fakeDepositRepo{
		deposits:  make(map[string]*domain.Deposit),
		byBooking: make(map[string]string),
		expireErr: make(map[string]error),
	}
	for _, d := range seed {
		copied := d
		r.deposits[d.ID] = &copied
		r.byBooking[d.BookingID] = d.ID
	}
	return r
}

func (r *fakeDepositRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	r.txCalls++
	r.mu.Unlock()
	return fn(ctx)
}

func (r *fakeDepositRepo) CreateDeposit(_ context.Context, d domain.Deposit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byBooking[d.BookingID]; ok {
		return domain.ErrDepositExists
	}
	copied := d
	r.deposits[d.ID] = &copied
	r.byBooking[d.BookingID] = d.ID
	return nil
}

func (r *fakeDepositRepo) GetDeposit(_ context.Context, id string) (domain.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deposits[id]
	if !ok {
		return domain.Deposit{}, domain.ErrDepositNotFound
	}
	return *d, nil
}

func (r *fakeDepositRepo) GetDepositByBookingID(_ context.Context, bookingID string) (domain.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byBooking[bookingID]
	if !ok {
		return domain.Deposit{}, domain.ErrDepositNotFound
	}
	return *r.deposits[id], nil
}

func (r *fakeDepositRepo) MarkAwaitingPayment(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deposits[id]
	if !ok || d.State != domain.DepositStateRequired {
		return false, nil
	}
	d.State = domain.DepositStateAwaitingPayment
	return true, nil
}

func (r *fakeDepositRepo) MarkPaid(_ context.Context, id string, paidAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deposits[id]
	if !ok || d.State != domain.DepositStateAwaitingPayment {
		return false, nil
	}
	d.State = domain.DepositStatePaid
	d.PaidAt = &paidAt
	d.ResolvedAt = &paidAt
	return true, nil
}

func (r *fakeDepositRepo) MarkExpired(_ context.Context, id string, resolvedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.expireErr[id]; err != nil {
		return false, err
	}
	d, ok := r.deposits[id]
	if !ok || d.State != domain.DepositStateAwaitingPayment || d.DeadlineAt.After(resolvedAt) {
		return false, nil
	}
	d.State = domain.DepositStateExpired
	d.ResolvedAt = &resolvedAt
	return true, nil
}

func (r *fakeDepositRepo) MarkCancelled(_ context.Context, id string, from, to domain.DepositState, decision domain.RefundDecision, resolvedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deposits[id]
	if !ok || d.State != from {
		return false, nil
	}
	d.State = to
	d.RefundDecision = &decision
	d.ResolvedAt = &resolvedAt
	return true, nil
}

func (r *fakeDepositRepo) ListExpirable(_ context.Context, now time.Time, limit int) ([]domain.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Deposit
	for _, d := range r.deposits {
		if len(out) >= limit {
			break
		}
		if d.State == domain.DepositStateAwaitingPayment && !d.DeadlineAt.After(now) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeDepositRepo) ListUnnotifiedExpired(_ context.Context, limit int) ([]domain.Deposit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Deposit
	for _, d := range r.deposits {
		if len(out) >= limit {
			break
		}
		if d.State == domain.DepositStateExpired && !d.ExpiryNotified {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *fakeDepositRepo) MarkExpiryNotified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deposits[id]
	if !ok {
		return domain.ErrDepositNotFound
	}
	d.ExpiryNotified = true
	return nil
}

func (r *fakeDepositRepo) state(id string) domain.DepositState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deposits[id].State
}

type fakePolicyProvider struct {
	policy domain.DepositPolicy
	err    error
}

func (p *fakePolicyProvider) PolicyForTenant(context.Context, string) (domain.DepositPolicy, error) {
	if p.err != nil {
		return domain.DepositPolicy{}, p.err
	}
	return p.policy, nil
}

type fakeHistoryProvider struct {
	history domain.CustomerHistory
	err     error
}

func (h *fakeHistoryProvider) CustomerHistory(context.Context, string, string, string) (domain.CustomerHistory, error) {
	if h.err != nil {
		return domain.CustomerHistory{}, h.err
	}
	return h.history, nil
}

// fakeCanceller records cancellation signals and can fail the first N
// attempts per booking.
type fakeCanceller struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]int
}

func newFakeCanceller() *fakeCanceller {
	return &fakeCanceller{failures: make(map[string]int)}
}

func (c *fakeCanceller) CancelBooking(_ context.Context, bookingID, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures[bookingID] > 0 {
		c.failures[bookingID]--
		return context.DeadlineExceeded
	}
	c.calls = append(c.calls, bookingID)
	return nil
}

func (c *fakeCanceller) callCount(bookingID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, id := range c.calls {
		if id == bookingID {
			n++
		}
	}
	return n
}
