package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/domain"
)

// DepositReader is the minimal interface for operational deposit reads.
type DepositReader interface {
	GetDeposit(ctx context.Context, depositID string) (domain.Deposit, error)
}

// PaymentRequester issues the payment request that starts the deadline clock.
type PaymentRequester interface {
	RequestPayment(ctx context.Context, depositID string) (domain.Deposit, error)
}

// PaymentConfirmer applies a confirmed payment to a deposit.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, depositID string, paidAt time.Time) (domain.Deposit, error)
}

type depositResponse struct {
	ID                 string          `json:"id"`
	BookingID          string          `json:"booking_id"`
	TenantID           string          `json:"tenant_id"`
	CustomerID         string          `json:"customer_id"`
	RequiredAmount     decimal.Decimal `json:"required_amount"`
	State              string          `json:"state"`
	CreatedAt          time.Time       `json:"created_at"`
	DeadlineAt         time.Time       `json:"deadline_at"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	ResolvedAt         *time.Time      `json:"resolved_at,omitempty"`
	RefundDecision     *string         `json:"refund_decision,omitempty"`
	AppointmentStartAt time.Time       `json:"appointment_start_at"`
	AlreadyResolved    bool            `json:"already_resolved,omitempty"`
}

func toDepositResponse(d domain.Deposit) depositResponse {
	resp := depositResponse{
		ID:                 d.ID,
		BookingID:          d.BookingID,
		TenantID:           d.TenantID,
		CustomerID:         d.CustomerID,
		RequiredAmount:     d.RequiredAmount,
		State:              string(d.State),
		CreatedAt:          d.CreatedAt,
		DeadlineAt:         d.DeadlineAt,
		PaidAt:             d.PaidAt,
		ResolvedAt:         d.ResolvedAt,
		AppointmentStartAt: d.AppointmentStartAt,
	}
	if d.RefundDecision != nil {
		decision := string(*d.RefundDecision)
		resp.RefundDecision = &decision
	}
	return resp
}

// HandleGetDeposit returns a single deposit record.
func HandleGetDeposit(svc DepositReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deposit, err := svc.GetDeposit(r.Context(), chi.URLParam(r, "depositID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDepositResponse(deposit))
	}
}

// HandleRequestPayment moves a required deposit to awaiting_payment.
func HandleRequestPayment(svc PaymentRequester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deposit, err := svc.RequestPayment(r.Context(), chi.URLParam(r, "depositID"))
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyResolved) {
				resp := toDepositResponse(deposit)
				resp.AlreadyResolved = true
				writeJSON(w, http.StatusOK, resp)
				return
			}
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDepositResponse(deposit))
	}
}

type confirmPaymentRequest struct {
	PaidAt time.Time `json:"paid_at" validate:"required"`
}

// HandleConfirmPayment applies a payment confirmation. When the sweeper
// already expired the deposit, the response reports the standing state with
// 200 rather than an error: the caller must not surface the lost race.
func HandleConfirmPayment(svc PaymentConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req confirmPaymentRequest
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

		deposit, err := svc.ConfirmPayment(r.Context(), chi.URLParam(r, "depositID"), req.PaidAt)
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyResolved) {
				resp := toDepositResponse(deposit)
				resp.AlreadyResolved = true
				writeJSON(w, http.StatusOK, resp)
				return
			}
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDepositResponse(deposit))
	}
}
