package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/domain"
)

type DepositRepository struct {
	pool *pgxpool.Pool
}

func NewDepositRepository(pool *pgxpool.Pool) *DepositRepository {
	return &DepositRepository{pool: pool}
}

func (r *DepositRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const depositColumns = `
id, booking_id, tenant_id, customer_id, required_amount, state,
created_at, deadline_at, paid_at, resolved_at,
refund_decision, refund_policy, refund_hours_before,
appointment_start_at, expiry_notified`

func (r *DepositRepository) CreateDeposit(ctx context.Context, d domain.Deposit) error {
	const stmt = `
INSERT INTO deposits (
	id, booking_id, tenant_id, customer_id, required_amount, state,
	created_at, deadline_at, paid_at, resolved_at,
	refund_decision, refund_policy, refund_hours_before,
	appointment_start_at, expiry_notified
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.exec(ctx, stmt,
		d.ID,
		d.BookingID,
		d.TenantID,
		d.CustomerID,
		d.RequiredAmount,
		d.State,
		d.CreatedAt,
		d.DeadlineAt,
		d.PaidAt,
		d.ResolvedAt,
		d.RefundDecision,
		d.RefundPolicy,
		d.RefundHoursBefore,
		d.AppointmentStartAt,
		d.ExpiryNotified,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDepositExists
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create deposit: %w", err)
	}
	return nil
}

func (r *DepositRepository) GetDeposit(ctx context.Context, id string) (domain.Deposit, error) {
	query := `SELECT` + depositColumns + ` FROM deposits WHERE id = $1`
	return r.scanDeposit(r.queryRow(ctx, query, id))
}

func (r *DepositRepository) GetDepositByBookingID(ctx context.Context, bookingID string) (domain.Deposit, error) {
	query := `SELECT` + depositColumns + ` FROM deposits WHERE booking_id = $1`
	return r.scanDeposit(r.queryRow(ctx, query, bookingID))
}

// MarkAwaitingPayment transitions required -> awaiting_payment. Returns false
// when the deposit was not in the required state.
func (r *DepositRepository) MarkAwaitingPayment(ctx context.Context, id string) (bool, error) {
	const stmt = `
UPDATE deposits SET state = $2
WHERE id = $1 AND state = $3`

	tag, err := r.exec(ctx, stmt, id, domain.DepositStateAwaitingPayment, domain.DepositStateRequired)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark awaiting payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPaid is the payment side of the payment-vs-expiry race: a single
// conditional update that only wins while the deposit is still awaiting
// payment. Returns false when some other transition already won.
func (r *DepositRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	const stmt = `
UPDATE deposits SET state = $2, paid_at = $3, resolved_at = $3
WHERE id = $1 AND state = $4`

	tag, err := r.exec(ctx, stmt, id, domain.DepositStatePaid, paidAt, domain.DepositStateAwaitingPayment)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkExpired is the sweep side of the race; same conditional-update shape.
func (r *DepositRepository) MarkExpired(ctx context.Context, id string, resolvedAt time.Time) (bool, error) {
	const stmt = `
UPDATE deposits SET state = $2, resolved_at = $3
WHERE id = $1 AND state = $4 AND deadline_at <= $3`

	tag, err := r.exec(ctx, stmt, id, domain.DepositStateExpired, resolvedAt, domain.DepositStateAwaitingPayment)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark expired: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCancelled transitions from the observed state into a cancellation
// outcome. The caller re-reads state first; the conditional update keeps the
// transition atomic if a payment or sweep slips in between.
func (r *DepositRepository) MarkCancelled(
	ctx context.Context,
	id string,
	from, to domain.DepositState,
	decision domain.RefundDecision,
	resolvedAt time.Time,
) (bool, error) {
	const stmt = `
UPDATE deposits SET state = $2, refund_decision = $3, resolved_at = $4
WHERE id = $1 AND state = $5`

	tag, err := r.exec(ctx, stmt, id, to, decision, resolvedAt, from)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark cancelled: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DepositRepository) ListExpirable(ctx context.Context, now time.Time, limit int) ([]domain.Deposit, error) {
	query := `SELECT` + depositColumns + `
FROM deposits
WHERE state = $1 AND deadline_at <= $2
ORDER BY deadline_at ASC
LIMIT $3`

	rows, err := r.query(ctx, query, domain.DepositStateAwaitingPayment, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expirable deposits: %w", err)
	}
	return r.collectDeposits(rows)
}

func (r *DepositRepository) ListUnnotifiedExpired(ctx context.Context, limit int) ([]domain.Deposit, error) {
	query := `SELECT` + depositColumns + `
FROM deposits
WHERE state = $1 AND expiry_notified = FALSE
ORDER BY resolved_at ASC
LIMIT $2`

	rows, err := r.query(ctx, query, domain.DepositStateExpired, limit)
	if err != nil {
		return nil, fmt.Errorf("list unnotified expired deposits: %w", err)
	}
	return r.collectDeposits(rows)
}

func (r *DepositRepository) MarkExpiryNotified(ctx context.Context, id string) error {
	const stmt = `UPDATE deposits SET expiry_notified = TRUE WHERE id = $1`

	tag, err := r.exec(ctx, stmt, id)
	if err != nil {
		return fmt.Errorf("mark expiry notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDepositNotFound
	}
	return nil
}

func (r *DepositRepository) scanDeposit(row pgx.Row) (domain.Deposit, error) {
	var d domain.Deposit
	err := row.Scan(
		&d.ID,
		&d.BookingID,
		&d.TenantID,
		&d.CustomerID,
		&d.RequiredAmount,
		&d.State,
		&d.CreatedAt,
		&d.DeadlineAt,
		&d.PaidAt,
		&d.ResolvedAt,
		&d.RefundDecision,
		&d.RefundPolicy,
		&d.RefundHoursBefore,
		&d.AppointmentStartAt,
		&d.ExpiryNotified,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Deposit{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Deposit{}, domain.ErrDepositNotFound
		}
		return domain.Deposit{}, fmt.Errorf("get deposit: %w", err)
	}
	return d, nil
}

func (r *DepositRepository) collectDeposits(rows pgx.Rows) ([]domain.Deposit, error) {
	defer rows.Close()

	var deposits []domain.Deposit
	for rows.Next() {
		d, err := r.scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate deposits: %w", rows.Err())
	}
	return deposits, nil
}

func (r *DepositRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *DepositRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *DepositRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
