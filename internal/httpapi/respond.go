package httpapi

import (
	"encoding/json"
	"net/http"

	"solana-dca-engine/internal/apperr"
)

var errUnauthorized = apperr.Auth("missing or invalid bearer token")

// errorEnvelope is the uniform failure body.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps an error's kind to an HTTP status and emits the
// envelope. Retryable kinds surface as 409 so clients re-sign rather
// than treating the batch as dead.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindAuth:
		status = http.StatusUnauthorized
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindExpired, apperr.KindSlippage:
		status = http.StatusConflict
	case apperr.KindNoRoute:
		status = http.StatusUnprocessableEntity
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in logs, not on the wire.
		msg = "internal error"
	}
	// A terminal slippage error shares the exhausted-ladder 409 with
	// the retryable case; the flag tells clients which one they got.
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:      string(kind),
		Message:   msg,
		Retryable: apperr.IsRetryable(err),
	}})
}

// decodeBody parses a JSON request body into dst, rejecting unknown
// fields so typos fail loudly.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}
