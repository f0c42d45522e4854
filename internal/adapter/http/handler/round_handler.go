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

// RoundService defines the lottery catalog behavior needed by RoundHandler.
type RoundService interface {
	OpenRound(ctx context.Context, spec domain.RoundSpec) (*domain.LotteryRound, error)
	CloseExpiredRounds(ctx context.Context, now time.Time) ([]string, error)
	GetRound(ctx context.Context, roundID string) (*domain.LotteryRound, error)
	ListRounds(ctx context.Context, status domain.RoundStatus, limit, offset int) ([]*domain.LotteryRound, error)
	EntryRecords(ctx context.Context, roundID string) ([]domain.EntryRecord, error)
}

// PurchaseService buys lottery entries.
type PurchaseService interface {
	PurchaseEntries(ctx context.Context, userID, roundID string, count int64) (*usecase.PurchaseResult, error)
}

// DrawService draws closed rounds.
type DrawService interface {
	Draw(ctx context.Context, roundID string) (*domain.DrawResult, error)
}

// RoundHandler handles lottery round requests.
type RoundHandler struct {
	rounds   RoundService
	purchase PurchaseService
	draw     DrawService
	recon    ReconciliationService
	now      func() time.Time
}

// NewRoundHandler creates a new RoundHandler.
func NewRoundHandler(rounds RoundService, purchase PurchaseService, draw DrawService, recon ReconciliationService) *RoundHandler {
	return &RoundHandler{
		rounds:   rounds,
		purchase: purchase,
		draw:     draw,
		recon:    recon,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for request defaults.
func (h *RoundHandler) WithClock(now func() time.Time) *RoundHandler {
	h.now = now
	return h
}

// Open opens a new round.
func (h *RoundHandler) Open(w http.ResponseWriter, r *http.Request) {
	if err := authorize(r, operatesRounds); err != nil {
		writeDomainError(w, "forbidden", err)
		return
	}

	var req dto.OpenRoundRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	round, err := h.rounds.OpenRound(r.Context(), req.ToDomain(h.now()))
	if err != nil {
		writeDomainError(w, "failed to open round", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RoundFromDomain(round))
}

// List lists rounds, optionally by status.
func (h *RoundHandler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.RoundStatus(r.URL.Query().Get("status"))
	limit := parseIntQuery(r, "limit", domain.DefaultPageSize)
	offset := parseIntQuery(r, "offset", 0)

	rounds, err := h.rounds.ListRounds(r.Context(), status, limit, offset)
	if err != nil {
		writeDomainError(w, "failed to list rounds", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RoundsFromDomain(rounds))
}

// Get returns one round.
func (h *RoundHandler) Get(w http.ResponseWriter, r *http.Request) {
	round, err := h.rounds.GetRound(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get round", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RoundFromDomain(round))
}

// CloseExpired closes every open round past its close time.
func (h *RoundHandler) CloseExpired(w http.ResponseWriter, r *http.Request) {
	if err := authorize(r, operatesRounds); err != nil {
		writeDomainError(w, "forbidden", err)
		return
	}

	var req dto.CloseExpiredRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	at := h.now()
	if req.At != nil {
		at = *req.At
	}

	closed, err := h.rounds.CloseExpiredRounds(r.Context(), at)
	if err != nil {
		writeDomainError(w, "failed to close rounds", err)
		return
	}
	if closed == nil {
		closed = []string{}
	}

	writeJSON(w, http.StatusOK, dto.CloseExpiredResponse{Closed: closed})
}

// Entries lists entry counts per participant.
func (h *RoundHandler) Entries(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "id")

	records, err := h.rounds.EntryRecords(r.Context(), roundID)
	if err != nil {
		writeDomainError(w, "failed to list round entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RoundEntriesFromDomain(roundID, records))
}

// Purchase buys entries for a user.
func (h *RoundHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req dto.PurchaseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if req.UserID == "" {
		if user, ok := domain.UserFromContext(r.Context()); ok {
			req.UserID = user.ID
		}
	}
	if err := authorize(r, actsFor(req.UserID)); err != nil {
		writeDomainError(w, "forbidden", err)
		return
	}

	result, err := h.purchase.PurchaseEntries(r.Context(), req.UserID, chi.URLParam(r, "id"), req.Count)
	if err != nil {
		writeDomainError(w, "failed to purchase entries", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PurchaseFromUseCase(result))
}

// Draw selects the winner of a closed round and pays the prize.
func (h *RoundHandler) Draw(w http.ResponseWriter, r *http.Request) {
	if err := authorize(r, operatesRounds); err != nil {
		writeDomainError(w, "forbidden", err)
		return
	}

	result, err := h.draw.Draw(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to draw round", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DrawFromDomain(result))
}

// Reconcile checks a round's entries against its ledger debits.
func (h *RoundHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if err := authorize(r, operatesRounds); err != nil {
		writeDomainError(w, "forbidden", err)
		return
	}

	result, err := h.recon.ReconcileRound(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to reconcile round", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RoundReconciliationFromUseCase(result))
}
