package http

import (
	"encoding/json"
	"net/http"

	"github.com/cuetime/reservations/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeMissingRequiredField = "missing_required_field"
	codeInvalidEmail         = "invalid_email"
	codeInvalidDate          = "invalid_date"
	codeInvalidField         = "invalid_field"
	codeForbidden            = "forbidden"
	codeUnavailable          = "unavailable"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorDetails(w, status, code, msg, "")
}

// writeErrorDetails is writeError with a diagnostic string, which callers
// only pass in development.
func writeErrorDetails(w http.ResponseWriter, status int, code, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error:   msg,
		Code:    code,
		Details: details,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func validationCode(v *domain.ValidationError) string {
	switch v.Rule {
	case domain.RuleRequired:
		return codeMissingRequiredField
	case domain.RuleEmail:
		return codeInvalidEmail
	case domain.RuleDate:
		return codeInvalidDate
	default:
		return codeInvalidField
	}
}
