package http

import (
	"context"
	"net/http"
)

// SweepTrigger runs one sweep pass on demand, same semantics as the periodic
// worker.
type SweepTrigger interface {
	SweepNow(ctx context.Context) (int, error)
}

type sweepResponse struct {
	Expired int `json:"expired"`
}

// HandleSweepNow triggers a manual sweep and reports how many deposits
// expired.
func HandleSweepNow(svc SweepTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expired, err := svc.SweepNow(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sweepResponse{Expired: expired})
	}
}
