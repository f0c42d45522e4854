package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/iho/coinledger/internal/adapter/http/dto"
	"github.com/iho/coinledger/internal/domain"
)

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/rounds?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/rounds?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"round not found", domain.ErrRoundNotFound, http.StatusNotFound},
		{"entry not found", domain.ErrEntryNotFound, http.StatusNotFound},
		{"insufficient balance", domain.ErrInsufficientBalance, http.StatusConflict},
		{"round not open", domain.ErrRoundNotOpen, http.StatusConflict},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusConflict},
		{"no entries", domain.ErrNoEntries, http.StatusConflict},
		{"invalid winner", domain.ErrInvalidWinner, http.StatusConflict},
		{"invalid count", domain.ErrInvalidCount, http.StatusBadRequest},
		{"invalid spec", fmt.Errorf("%w: zero cost", domain.ErrInvalidSpec), http.StatusBadRequest},
		{"invalid cursor", dto.ErrInvalidCursor, http.StatusBadRequest},
		{"event out of window", fmt.Errorf("%w: login at 2100-01-01", domain.ErrEventOutOfWindow), http.StatusBadRequest},
		{"missing external id", domain.ErrMissingExternalID, http.StatusBadRequest},
		{"expired token", domain.ErrExpiredToken, http.StatusUnauthorized},
		{"insufficient role", domain.ErrInsufficientRole, http.StatusForbidden},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(tt.err); got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()

	writeJSON(rr, http.StatusCreated, map[string]string{"status": "ok"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}

	var decoded map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if decoded["status"] != "ok" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()

	writeError(rr, http.StatusBadRequest, "bad request", "detail")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Error != "bad request" || resp.Message != "detail" {
		t.Fatalf("unexpected error response %+v", resp)
	}
}

func TestAuthorize(t *testing.T) {
	player := &domain.User{ID: "alice", Role: domain.RolePlayer}
	operator := &domain.User{ID: "ops", Role: domain.RoleOperator}
	service := &domain.User{ID: "sessions", Role: domain.RoleService}

	tests := []struct {
		name    string
		user    *domain.User
		allowed func(*domain.User) bool
		wantErr bool
	}{
		{name: "anonymous passes", allowed: adjusts},
		{name: "player acts for self", user: player, allowed: actsFor("alice")},
		{name: "player acts for other", user: player, allowed: actsFor("bob"), wantErr: true},
		{name: "operator acts for other", user: operator, allowed: actsFor("bob")},
		{name: "player opens round", user: player, allowed: operatesRounds, wantErr: true},
		{name: "operator adjusts", user: operator, allowed: adjusts, wantErr: true},
		{name: "player reports own login", user: player, allowed: recordsEarnings, wantErr: true},
		{name: "operator reports login", user: operator, allowed: recordsEarnings, wantErr: true},
		{name: "service reports login", user: service, allowed: recordsEarnings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				req = req.WithContext(domain.ContextWithUser(req.Context(), tt.user))
			}

			err := authorize(req, tt.allowed)
			if tt.wantErr && !errors.Is(err, domain.ErrInsufficientRole) {
				t.Fatalf("expected ErrInsufficientRole, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func setChiURLParam(r *http.Request, key, value string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, &chi.Context{
		URLParams: chi.RouteParams{
			Keys:   []string{key},
			Values: []string{value},
		},
	}))
}
