package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/domain"
)

// HistoryRepository reads the customer's record from the bookings table owned
// by the booking module.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// CustomerHistory returns the visit count and lifetime spend of a customer
// with the tenant, excluding the booking currently being evaluated so the
// snapshot reflects state before it. Runs on the caller's transaction when
// one is in the context.
func (r *HistoryRepository) CustomerHistory(ctx context.Context, tenantID, customerID, excludeBookingID string) (domain.CustomerHistory, error) {
	const query = `
SELECT COUNT(*), COALESCE(SUM(price), 0)
FROM bookings
WHERE tenant_id = $1 AND customer_id = $2 AND id <> $3 AND status <> 'cancelled'`

	var row pgx.Row
	if tx := txFromContext(ctx); tx != nil {
		row = tx.QueryRow(ctx, query, tenantID, customerID, excludeBookingID)
	} else {
		row = r.pool.QueryRow(ctx, query, tenantID, customerID, excludeBookingID)
	}

	var h domain.CustomerHistory
	err := row.Scan(&h.VisitCount, &h.LifetimeSpend)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.CustomerHistory{}, domain.ErrInvalidID
		}
		return domain.CustomerHistory{}, fmt.Errorf("customer history: %w", err)
	}
	h.IsFirstBooking = h.VisitCount == 0
	return h, nil
}
