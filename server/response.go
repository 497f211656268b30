package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"tpay/bank"
	"tpay/billing"
	"tpay/gateway"
	"tpay/models"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Flow  string `json:"flow,omitempty"`
	Step  string `json:"step,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeOutcome returns the gateway body for code "0"; any other code returns
// only the gateway response header with 400
func writeOutcome(w http.ResponseWriter, outcome models.Outcome) {
	if models.Succeeded(outcome) {
		writeJSON(w, http.StatusOK, outcome)
		return
	}
	header := models.ResponseHeader{}
	if outcome != nil {
		header = outcome.Header()
	}
	writeJSON(w, http.StatusBadRequest, header)
}

func writePage(w http.ResponseWriter, page *bank.Page) {
	w.Header().Set("Content-Type", page.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page.Body)
}

// writeError maps failures to statuses; internal failures never expose details
// and always carry kind, which keeps them apart from gateway payloads
func writeError(w http.ResponseWriter, err error) {
	var stepErr *billing.StepError
	var declinedErr *gateway.DeclinedError
	var validationErr *gateway.ValidationError

	switch {
	case errors.Is(err, billing.ErrFlowAborted):
		body := errorResponse{Error: err.Error()}
		if errors.As(err, &stepErr) {
			body.Error = stepErr.Err.Error()
			body.Flow = string(stepErr.Flow)
			body.Step = stepErr.Step
		}
		writeJSON(w, http.StatusConflict, body)
	case errors.As(err, &declinedErr):
		writeJSON(w, http.StatusBadRequest, declinedErr.Header)
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Error()})
	case errors.Is(err, bank.ErrCallbackSignature), errors.Is(err, bank.ErrCallbackExpired):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: gateway.Kind(err)})
	}
}
