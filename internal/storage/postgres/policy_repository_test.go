package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/domain"
	"github.com/hubert-samek05/rezerwacja24-sub006/internal/testutil"
)

func TestPolicyRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewPolicyRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("upsert and get round-trip", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		minAmount := decimal.RequireFromString("20")
		maxAmount := decimal.RequireFromString("200")
		visits := 5
		p := domain.DepositPolicy{
			TenantID:             uuid.NewString(),
			Enabled:              true,
			Mode:                 domain.ModeUntilVisitCount,
			Type:                 domain.TypePercentage,
			Value:                decimal.RequireFromString("30"),
			MinAmount:            &minAmount,
			MaxAmount:            &maxAmount,
			ExemptAfterVisits:    &visits,
			RefundPolicy:         domain.RefundBeforeHours,
			RefundHoursBefore:    24,
			PaymentDeadlineHours: 48,
			UpdatedAt:            time.Now().UTC().Truncate(time.Microsecond),
		}

		if err := repo.UpsertPolicy(ctx, p); err != nil {
			t.Fatalf("upsert policy: %v", err)
		}

		got, err := repo.GetPolicy(ctx, p.TenantID)
		if err != nil {
			t.Fatalf("get policy: %v", err)
		}
		if got.Mode != domain.ModeUntilVisitCount || got.Type != domain.TypePercentage {
			t.Fatalf("unexpected policy: %+v", got)
		}
		if !got.Value.Equal(p.Value) {
			t.Fatalf("expected value %s, got %s", p.Value, got.Value)
		}
		if got.MinAmount == nil || !got.MinAmount.Equal(minAmount) {
			t.Fatalf("expected min_amount %s, got %v", minAmount, got.MinAmount)
		}
		if got.MaxAmount == nil || !got.MaxAmount.Equal(maxAmount) {
			t.Fatalf("expected max_amount %s, got %v", maxAmount, got.MaxAmount)
		}
		if got.ExemptAfterVisits == nil || *got.ExemptAfterVisits != visits {
			t.Fatalf("expected exempt_after_visits %d, got %v", visits, got.ExemptAfterVisits)
		}
		if got.ExemptAfterSpend != nil {
			t.Fatalf("expected nil exempt_after_spend, got %v", got.ExemptAfterSpend)
		}
	})

	t.Run("upsert replaces the existing row", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		tenantID := uuid.NewString()
		p := domain.DepositPolicy{
			TenantID:             tenantID,
			Enabled:              true,
			Mode:                 domain.ModeAlways,
			Type:                 domain.TypeFixed,
			Value:                decimal.RequireFromString("50"),
			RefundPolicy:         domain.RefundNone,
			PaymentDeadlineHours: 24,
			UpdatedAt:            time.Now().UTC(),
		}
		if err := repo.UpsertPolicy(ctx, p); err != nil {
			t.Fatalf("first upsert: %v", err)
		}

		p.Enabled = false
		p.Value = decimal.RequireFromString("75")
		if err := repo.UpsertPolicy(ctx, p); err != nil {
			t.Fatalf("second upsert: %v", err)
		}

		got, err := repo.GetPolicy(ctx, tenantID)
		if err != nil {
			t.Fatalf("get policy: %v", err)
		}
		if got.Enabled {
			t.Fatalf("expected policy disabled after update")
		}
		if !got.Value.Equal(p.Value) {
			t.Fatalf("expected value %s, got %s", p.Value, got.Value)
		}

		var count int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM deposit_policies WHERE tenant_id = $1`, tenantID).Scan(&count); err != nil {
			t.Fatalf("count rows: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected a single row per tenant, got %d", count)
		}
	})

	t.Run("missing tenant", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		_, err := repo.GetPolicy(ctx, uuid.NewString())
		if !errors.Is(err, domain.ErrPolicyNotFound) {
			t.Fatalf("expected ErrPolicyNotFound, got %v", err)
		}
		_, err = repo.GetPolicy(ctx, "not-a-uuid")
		if !errors.Is(err, domain.ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})
}
