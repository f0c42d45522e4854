package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/iho/coinledger/internal/adapter/http/dto"
	"github.com/iho/coinledger/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError maps err to a status and writes it.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, mapDomainError(err), message, err.Error())
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrRoundNotFound),
		errors.Is(err, domain.ErrEntryNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrRoundNotOpen),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNoEntries),
		errors.Is(err, domain.ErrInvalidWinner),
		errors.Is(err, domain.ErrDuplicateEntry):
		return http.StatusConflict

	case errors.Is(err, domain.ErrInvalidCount),
		errors.Is(err, domain.ErrInvalidSpec),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidReason),
		errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, domain.ErrInvalidRoundID),
		errors.Is(err, domain.ErrNoteTooLong),
		errors.Is(err, domain.ErrEventOutOfWindow),
		errors.Is(err, domain.ErrMissingExternalID),
		errors.Is(err, dto.ErrInvalidCursor):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrExpiredToken):
		return http.StatusUnauthorized

	case errors.Is(err, domain.ErrInsufficientRole):
		return http.StatusForbidden

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes an optional JSON body; an empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// authorize checks the authenticated caller, if any. Without authentication every request passes.
func authorize(r *http.Request, allowed func(*domain.User) bool) error {
	user, ok := domain.UserFromContext(r.Context())
	if !ok {
		return nil
	}
	if !allowed(user) {
		return domain.ErrInsufficientRole
	}
	return nil
}

func actsFor(userID string) func(*domain.User) bool {
	return func(u *domain.User) bool { return u.CanActFor(userID) }
}

func operatesRounds(u *domain.User) bool { return u.Role.CanOperateRounds() }

func adjusts(u *domain.User) bool { return u.Role.CanAdjust() }

func recordsEarnings(u *domain.User) bool { return u.Role.CanRecordEarnings() }
