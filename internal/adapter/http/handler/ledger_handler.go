package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/coinledger/internal/adapter/http/dto"
	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/usecase"
)

// LedgerService defines the ledger behavior needed by LedgerHandler.
type LedgerService interface {
	BalanceOf(ctx context.Context, userID string) (int64, error)
	ListEntriesPage(ctx context.Context, userID string, filter domain.EntryFilter, after *domain.EntryCursor, limit int) ([]*domain.LedgerEntry, error)
	Adjust(ctx context.Context, userID string, amount int64, note string) (*domain.LedgerEntry, error)
}

// EarningService turns login and saving events into credits.
type EarningService interface {
	RecordLogin(ctx context.Context, userID string, at time.Time) (*usecase.CreditResult, error)
	RecordSaving(ctx context.Context, event usecase.SavingEvent) (*usecase.CreditResult, error)
}

// ReconciliationService checks wallets and rounds against the ledger.
type ReconciliationService interface {
	ReconcileUser(ctx context.Context, userID string) (*usecase.UserReconciliation, error)
	ReconcileRound(ctx context.Context, roundID string) (*usecase.RoundReconciliation, error)
	GenerateReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// LedgerHandler handles balance, earning and ledger requests.
type LedgerHandler struct {
	ledger  LedgerService
	earning EarningService
	recon   ReconciliationService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger LedgerService, earning EarningService, recon ReconciliationService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, earning: earning, recon: recon}
}

// Balance returns a user's coin balance.
func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := authorize(r, actsFor(userID)); err != nil {
		writeDomainError(w, "forbidden", err)
		return
	}

	balance, err := h.ledger.BalanceOf(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{UserID: userID, Balance: balance})
}

// ListEntries returns one page of a user's ledger, oldest first.
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := authorize(r, actsFor(userID)); err != nil {
		writeDomainError(w, "forbidden", err)
		return
	}

	q := r.URL.Query()
	filter := domain.EntryFilter{
		Reason:  domain.Reason(q.Get("reason")),
		RoundID: q.Get("round_id"),
	}
	if filter.Reason != "" && !filter.Reason.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid reason", string(filter.Reason))
		return
	}

	after, err := dto.DecodeCursor(q.Get("cursor"))
	if err != nil {
		writeDomainError(w, "invalid cursor", err)
		return
	}

	limit, _ := domain.ValidatePagination(parseIntQuery(r, "limit", domain.DefaultPageSize), 0)
	entries, err := h.ledger.ListEntriesPage(r.Context(), userID, filter, after, limit)
	if err != nil {
		writeDomainError(w, "failed to list entries", err)
		return
	}

	resp := dto.EntryPageResponse{Entries: dto.EntriesFromDomain(entries)}
	if len(entries) == limit {
		last := entries[len(entries)-1]
		resp.NextCursor = dto.EncodeCursor(&domain.EntryCursor{OccurredAt: last.OccurredAt, ID: last.ID})
	}

	writeJSON(w, http.StatusOK, resp)
}

// RecordLogin credits the login reward, once per local day. Only the session service reports logins.
func (h *LedgerHandler) RecordLogin(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := authorize(r, recordsEarnings); err != nil {
		writeDomainError(w, "forbidden", err)
		return
	}

	var req dto.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	var at time.Time
	if req.At != nil {
		at = *req.At
	}

	result, err := h.earning.RecordLogin(r.Context(), userID, at)
	if err != nil {
		writeDomainError(w, "failed to record login", err)
		return
	}

	writeJSON(w, creditStatus(result), dto.CreditFromUseCase(result))
}

// RecordSaving credits coins for a saving reported by the ingestion service.
func (h *LedgerHandler) RecordSaving(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := authorize(r, recordsEarnings); err != nil {
		writeDomainError(w, "forbidden", err)
		return
	}

	var req dto.SavingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.earning.RecordSaving(r.Context(), req.ToUseCaseInput(userID))
	if err != nil {
		writeDomainError(w, "failed to record saving", err)
		return
	}

	writeJSON(w, creditStatus(result), dto.CreditFromUseCase(result))
}

// Adjust posts a compensating adjustment.
func (h *LedgerHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	if err := authorize(r, adjusts); err != nil {
		writeDomainError(w, "forbidden", err)
		return
	}

	var req dto.AdjustmentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.ledger.Adjust(r.Context(), chi.URLParam(r, "userID"), req.Amount, req.Note)
	if err != nil {
		writeDomainError(w, "failed to post adjustment", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// ReconcileUser compares one wallet with its ledger sum.
func (h *LedgerHandler) ReconcileUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := authorize(r, operatesRounds); err != nil {
		writeDomainError(w, "forbidden", err)
		return
	}

	result, err := h.recon.ReconcileUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "failed to reconcile user", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UserReconciliationFromUseCase(result))
}

// ReconcileLedger checks every wallet against the ledger.
func (h *LedgerHandler) ReconcileLedger(w http.ResponseWriter, r *http.Request) {
	if err := authorize(r, operatesRounds); err != nil {
		writeDomainError(w, "forbidden", err)
		return
	}

	report, err := h.recon.GenerateReport(r.Context())
	if err != nil {
		writeDomainError(w, "failed to reconcile ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportFromUseCase(report))
}

// creditStatus is 201 for a new credit and 200 for a duplicate event.
func creditStatus(result *usecase.CreditResult) int {
	if result.Credited {
		return http.StatusCreated
	}
	return http.StatusOK
}
