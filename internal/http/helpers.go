package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"splitledger/internal/auth"
	"splitledger/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	// Write errors here mean the client went away; nothing to do.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes and emits a
// JSON error body.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrExpenseNotFound), errors.Is(err, core.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrEmailExists), errors.Is(err, core.ErrNameExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyPayer),
		errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// parseYear extracts the year query parameter, defaulting to the
// current year when absent or unparseable.
func parseYear(r *http.Request) int {
	year := time.Now().Year()
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	return year
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
