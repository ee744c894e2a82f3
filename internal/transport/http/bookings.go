package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/app"
	"github.com/hubert-samek05/rezerwacja24-sub006/internal/domain"
)

var validate = validator.New()

// BookingIntake is the minimal interface needed to evaluate a new booking.
type BookingIntake interface {
	OnBookingCreated(ctx context.Context, in app.BookingCreatedInput) (domain.Deposit, error)
}

// CancellationRequester is the minimal interface needed to cancel a booking's
// deposit.
type CancellationRequester interface {
	RequestCancellation(ctx context.Context, bookingID string, cancelledAt time.Time) (domain.RefundDecision, error)
}

type createBookingRequest struct {
	BookingID          string          `json:"booking_id" validate:"required,uuid"`
	TenantID           string          `json:"tenant_id" validate:"required,uuid"`
	CustomerID         string          `json:"customer_id" validate:"required,uuid"`
	BasePrice          decimal.Decimal `json:"base_price"`
	AppointmentStartAt time.Time       `json:"appointment_start_at" validate:"required"`
}

// HandleCreateBooking evaluates the deposit requirement for a freshly created
// booking.
func HandleCreateBooking(svc BookingIntake) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBookingRequest
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

		deposit, err := svc.OnBookingCreated(r.Context(), app.BookingCreatedInput{
			BookingID:          req.BookingID,
			TenantID:           req.TenantID,
			CustomerID:         req.CustomerID,
			BasePrice:          req.BasePrice,
			AppointmentStartAt: req.AppointmentStartAt.UTC(),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toDepositResponse(deposit))
	}
}

type cancelBookingRequest struct {
	CancelledAt time.Time `json:"cancelled_at" validate:"required"`
}

type cancelBookingResponse struct {
	RefundDecision  string `json:"refund_decision"`
	AlreadyResolved bool   `json:"already_resolved,omitempty"`
}

// HandleCancelBooking records the cancellation outcome of the booking's
// deposit and returns the refund decision.
func HandleCancelBooking(svc CancellationRequester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID := chi.URLParam(r, "bookingID")

		var req cancelBookingRequest
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

		decision, err := svc.RequestCancellation(r.Context(), bookingID, req.CancelledAt)
		if err != nil {
			// The losing side of a race is success-equivalent: report the
			// decision that already stands.
			if errors.Is(err, domain.ErrAlreadyResolved) {
				writeJSON(w, http.StatusOK, cancelBookingResponse{
					RefundDecision:  string(decision),
					AlreadyResolved: true,
				})
				return
			}
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, cancelBookingResponse{RefundDecision: string(decision)})
	}
}
