package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/domain"
)

const (
	codeNotFound            = "not_found"
	codeInvalidRequestBody  = "invalid_request_body"
	codeInvalidID           = "invalid_id"
	codeInvalidAmount       = "invalid_amount"
	codeInvalidPolicyConfig = "invalid_policy_configuration"
	codePolicyNotFound      = "policy_not_found"
	codeDepositNotFound     = "deposit_not_found"
	codeDepositExists       = "deposit_already_exists"
	codeInvalidTransition   = "invalid_transition"
	codeInternalError       = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps domain errors onto HTTP statuses. ErrAlreadyResolved
// is success-equivalent and must be handled by the caller before this point.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPolicyConfiguration):
		writeError(w, http.StatusUnprocessableEntity, codeInvalidPolicyConfig, err.Error())
	case errors.Is(err, domain.ErrPolicyNotFound):
		writeError(w, http.StatusNotFound, codePolicyNotFound, err.Error())
	case errors.Is(err, domain.ErrDepositNotFound):
		writeError(w, http.StatusNotFound, codeDepositNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, codeInvalidAmount, err.Error())
	case errors.Is(err, domain.ErrDepositExists):
		writeError(w, http.StatusConflict, codeDepositExists, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
