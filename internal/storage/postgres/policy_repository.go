package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/domain"
)

type PolicyRepository struct {
	pool *pgxpool.Pool
}

func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

func (r *PolicyRepository) GetPolicy(ctx context.Context, tenantID string) (domain.DepositPolicy, error) {
	const query = `
SELECT tenant_id, enabled, mode, deposit_type, deposit_value,
       min_amount, max_amount, exempt_after_visits, exempt_after_spend,
       refund_policy, refund_hours_before, payment_deadline_hours, updated_at
FROM deposit_policies
WHERE tenant_id = $1`

	var (
		p          domain.DepositPolicy
		minAmount  decimal.NullDecimal
		maxAmount  decimal.NullDecimal
		spendLimit decimal.NullDecimal
	)
	err := r.pool.QueryRow(ctx, query, tenantID).Scan(
		&p.TenantID,
		&p.Enabled,
		&p.Mode,
		&p.Type,
		&p.Value,
		&minAmount,
		&maxAmount,
		&p.ExemptAfterVisits,
		&spendLimit,
		&p.RefundPolicy,
		&p.RefundHoursBefore,
		&p.PaymentDeadlineHours,
		&p.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.DepositPolicy{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.DepositPolicy{}, domain.ErrPolicyNotFound
		}
		return domain.DepositPolicy{}, fmt.Errorf("get deposit policy: %w", err)
	}

	if minAmount.Valid {
		p.MinAmount = &minAmount.Decimal
	}
	if maxAmount.Valid {
		p.MaxAmount = &maxAmount.Decimal
	}
	if spendLimit.Valid {
		p.ExemptAfterSpend = &spendLimit.Decimal
	}
	return p, nil
}

func (r *PolicyRepository) UpsertPolicy(ctx context.Context, p domain.DepositPolicy) error {
	const stmt = `
INSERT INTO deposit_policies (
	tenant_id, enabled, mode, deposit_type, deposit_value,
	min_amount, max_amount, exempt_after_visits, exempt_after_spend,
	refund_policy, refund_hours_before, payment_deadline_hours, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (tenant_id) DO UPDATE SET
	enabled = EXCLUDED.enabled,
	mode = EXCLUDED.mode,
	deposit_type = EXCLUDED.deposit_type,
	deposit_value = EXCLUDED.deposit_value,
	min_amount = EXCLUDED.min_amount,
	max_amount = EXCLUDED.max_amount,
	exempt_after_visits = EXCLUDED.exempt_after_visits,
	exempt_after_spend = EXCLUDED.exempt_after_spend,
	refund_policy = EXCLUDED.refund_policy,
	refund_hours_before = EXCLUDED.refund_hours_before,
	payment_deadline_hours = EXCLUDED.payment_deadline_hours,
	updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, stmt,
		p.TenantID,
		p.Enabled,
		p.Mode,
		p.Type,
		p.Value,
		p.MinAmount,
		p.MaxAmount,
		p.ExemptAfterVisits,
		p.ExemptAfterSpend,
		p.RefundPolicy,
		p.RefundHoursBefore,
		p.PaymentDeadlineHours,
		p.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("upsert deposit policy: %w", err)
	}
	return nil
}
