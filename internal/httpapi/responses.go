package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"thinkflow/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDomainError maps err onto the error envelope. Validation failures carry
// their per-field messages.
func WriteDomainError(w http.ResponseWriter, err error) {
	status, body := domainErrorBody(err)
	WriteJSON(w, status, errorEnvelope{Error: body})
}

func domainErrorBody(err error) (int, apiError) {
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrMalformedImport):
		e := apiError{Code: "malformed_import", Message: "import file is not a valid thought archive"}
		if errors.As(err, &ve) {
			e.Fields = ve.Fields
		}
		return http.StatusBadRequest, e
	case errors.As(err, &ve):
		return http.StatusBadRequest, apiError{Code: "validation_error", Message: "invalid request", Fields: ve.Fields}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, apiError{Code: "validation_error", Message: "invalid request"}
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict, apiError{Code: "username_taken", Message: "username already taken"}
	case errors.Is(err, domain.ErrExternalAccountExists):
		return http.StatusConflict, apiError{Code: "account_exists", Message: "account already exists"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, apiError{Code: "invalid_credentials", Message: "invalid username or password"}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, apiError{Code: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, apiError{Code: "forbidden", Message: "forbidden"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, apiError{Code: "not_found", Message: "not found"}
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, apiError{Code: "store_unavailable", Message: "storage is unavailable, try again"}
	default:
		return http.StatusInternalServerError, apiError{Code: "internal_error", Message: "internal server error"}
	}
}
