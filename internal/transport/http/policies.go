package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/domain"
)

// PolicyReader reads a tenant's stored deposit policy.
type PolicyReader interface {
	Get(ctx context.Context, tenantID string) (domain.DepositPolicy, error)
}

// PolicyWriter validates and persists a tenant's deposit policy.
type PolicyWriter interface {
	Upsert(ctx context.Context, p domain.DepositPolicy) error
}

type policyPayload struct {
	Enabled              bool             `json:"enabled"`
	Mode                 string           `json:"mode" validate:"required"`
	Type                 string           `json:"type" validate:"required"`
	Value                decimal.Decimal  `json:"value"`
	MinAmount            *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount            *decimal.Decimal `json:"max_amount,omitempty"`
	ExemptAfterVisits    *int             `json:"exempt_after_visits,omitempty"`
	ExemptAfterSpend     *decimal.Decimal `json:"exempt_after_spend,omitempty"`
	RefundPolicy         string           `json:"refund_policy" validate:"required"`
	RefundHoursBefore    int              `json:"refund_hours_before"`
	PaymentDeadlineHours int              `json:"payment_deadline_hours"`
	UpdatedAt            *time.Time       `json:"updated_at,omitempty"`
}

func toPolicyPayload(p domain.DepositPolicy) policyPayload {
	updatedAt := p.UpdatedAt
	return policyPayload{
		Enabled:              p.Enabled,
		Mode:                 string(p.Mode),
		Type:                 string(p.Type),
		Value:                p.Value,
		MinAmount:            p.MinAmount,
		MaxAmount:            p.MaxAmount,
		ExemptAfterVisits:    p.ExemptAfterVisits,
		ExemptAfterSpend:     p.ExemptAfterSpend,
		RefundPolicy:         string(p.RefundPolicy),
		RefundHoursBefore:    p.RefundHoursBefore,
		PaymentDeadlineHours: p.PaymentDeadlineHours,
		UpdatedAt:            &updatedAt,
	}
}

// HandleGetPolicy returns the tenant's deposit policy.
func HandleGetPolicy(svc PolicyReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		policy, err := svc.Get(r.Context(), chi.URLParam(r, "tenantID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPolicyPayload(policy))
	}
}

// HandleUpsertPolicy validates and stores the tenant's deposit policy.
func HandleUpsertPolicy(svc PolicyWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req policyPayload
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, err.Error())
			return
		}

		policy := domain.DepositPolicy{
			TenantID:             chi.URLParam(r, "tenantID"),
			Enabled:              req.Enabled,
			Mode:                 domain.DepositMode(req.Mode),
			Type:                 domain.DepositType(req.Type),
			Value:                req.Value,
			MinAmount:            req.MinAmount,
			MaxAmount:            req.MaxAmount,
			ExemptAfterVisits:    req.ExemptAfterVisits,
			ExemptAfterSpend:     req.ExemptAfterSpend,
			RefundPolicy:         domain.RefundPolicy(req.RefundPolicy),
			RefundHoursBefore:    req.RefundHoursBefore,
			PaymentDeadlineHours: req.PaymentDeadlineHours,
		}

		if err := svc.Upsert(r.Context(), policy); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPolicyPayload(policy))
	}
}
