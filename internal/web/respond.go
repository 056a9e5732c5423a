package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"parkalot/internal/auth"
	appLog "parkalot/internal/log"
	"parkalot/internal/reservation"
	"parkalot/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

type fieldErrorResponse struct {
	Error  string                  `json:"error"`
	Errors reservation.FieldErrors `json:"errors"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var fe reservation.FieldErrors
	switch {
	case errors.As(err, &fe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reservation.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, reservation.ErrNotCancellable),
		errors.Is(err, reservation.ErrNotActive),
		errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeAPIError reports err as JSON. Unexpected errors are logged and
// hidden from the client.
func writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	var fe reservation.FieldErrors
	if errors.As(err, &fe) {
		writeJSON(w, http.StatusUnprocessableEntity, fieldErrorResponse{Error: "validation failed", Errors: fe})
		return
	}

	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		appLog.Error("request failed", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
		)
		msg = "internal error"
	}
	writeError(w, status, msg)
}
