package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/testutil"
)

func TestHistoryRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewHistoryRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("counts non-cancelled visits and lifetime spend", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		tenantID := uuid.NewString()
		customerID := uuid.NewString()
		startsAt := time.Now().UTC().Add(24 * time.Hour)

		testutil.InsertBooking(t, ctx, pool, tenantID, customerID, decimal.RequireFromString("100"), "completed", startsAt)
		testutil.InsertBooking(t, ctx, pool, tenantID, customerID, decimal.RequireFromString("150.50"), "scheduled", startsAt)
		testutil.InsertBooking(t, ctx, pool, tenantID, customerID, decimal.RequireFromString("999"), "cancelled", startsAt)
		testutil.InsertBooking(t, ctx, pool, tenantID, uuid.NewString(), decimal.RequireFromString("500"), "completed", startsAt)

		h, err := repo.CustomerHistory(ctx, tenantID, customerID, uuid.NewString())
		if err != nil {
			t.Fatalf("customer history: %v", err)
		}
		if h.VisitCount != 2 {
			t.Fatalf("expected 2 visits, got %d", h.VisitCount)
		}
		if !h.LifetimeSpend.Equal(decimal.RequireFromString("250.50")) {
			t.Fatalf("expected spend 250.50, got %s", h.LifetimeSpend)
		}
		if h.IsFirstBooking {
			t.Fatalf("customer has prior bookings")
		}
	})

	t.Run("reads through the caller's transaction", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		tenantID := uuid.NewString()
		customerID := uuid.NewString()
		sentinel := errors.New("abort")

		err := withTx(ctx, pool, func(txCtx context.Context) error {
			tx := txFromContext(txCtx)
			_, err := tx.Exec(txCtx, `
INSERT INTO bookings (tenant_id, customer_id, price, status, starts_at)
VALUES ($1, $2, 75, 'completed', NOW())`, tenantID, customerID)
			if err != nil {
				t.Fatalf("insert in tx: %v", err)
			}

			h, err := repo.CustomerHistory(txCtx, tenantID, customerID, uuid.NewString())
			if err != nil {
				t.Fatalf("history in tx: %v", err)
			}
			if h.VisitCount != 1 {
				t.Fatalf("expected uncommitted booking visible inside tx, got %d visits", h.VisitCount)
			}
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected sentinel error, got %v", err)
		}

		h, err := repo.CustomerHistory(ctx, tenantID, customerID, uuid.NewString())
		if err != nil {
			t.Fatalf("history after rollback: %v", err)
		}
		if h.VisitCount != 0 {
			t.Fatalf("expected rollback to discard the booking, got %d visits", h.VisitCount)
		}
	})

	t.Run("excludes the booking under evaluation", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		tenantID := uuid.NewString()
		customerID := uuid.NewString()
		startsAt := time.Now().UTC().Add(24 * time.Hour)

		bookingID := testutil.InsertBooking(t, ctx, pool, tenantID, customerID, decimal.RequireFromString("80"), "scheduled", startsAt)

		h, err := repo.CustomerHistory(ctx, tenantID, customerID, bookingID)
		if err != nil {
			t.Fatalf("customer history: %v", err)
		}
		if h.VisitCount != 0 || !h.IsFirstBooking {
			t.Fatalf("expected first booking snapshot, got %+v", h)
		}
		if !h.LifetimeSpend.IsZero() {
			t.Fatalf("expected zero spend, got %s", h.LifetimeSpend)
		}
	})
}
