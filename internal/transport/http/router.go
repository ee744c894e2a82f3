package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/app"
)

// NewRouter wires every handler onto the chi mux.
func NewRouter(
	deposits *app.DepositService,
	policies *app.PolicyService,
	corsOrigins []string,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", HealthHandler)

	r.Post("/bookings", HandleCreateBooking(deposits))
	r.Post("/bookings/{bookingID}/cancellation", HandleCancelBooking(deposits))

	r.Get("/deposits/{depositID}", HandleGetDeposit(deposits))
	r.Post("/deposits/{depositID}/payment-request", HandleRequestPayment(deposits))
	r.Post("/deposits/{depositID}/payment", HandleConfirmPayment(deposits))

	r.Get("/tenants/{tenantID}/deposit-policy", HandleGetPolicy(policies))
	r.Put("/tenants/{tenantID}/deposit-policy", HandleUpsertPolicy(policies))

	r.Post("/sweep", HandleSweepNow(deposits))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})

	return r
}
