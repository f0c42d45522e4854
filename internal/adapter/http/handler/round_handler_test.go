package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/coinledger/internal/adapter/http/dto"
	"github.com/iho/coinledger/internal/adapter/repository/memory"
	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/usecase"
)

type sequenceIDs struct {
	n atomic.Int64
}

func (g *sequenceIDs) Generate() string {
	return fmt.Sprintf("round-%d", g.n.Add(1))
}

type roundFixture struct {
	router http.Handler
	ledger *usecase.LedgerUseCase
	now    time.Time
}

func newRoundFixture(t *testing.T) *roundFixture {
	t.Helper()

	store := memory.NewStore()
	txm := memory.NewTxManager(store)
	wallets := memory.NewWalletRepository(store)
	entries := memory.NewLedgerEntryRepository(store)
	rounds := memory.NewRoundRepository(store)
	outbox := memory.NewOutboxRepository(store)
	ids := &sequenceIDs{}
	logger := zerolog.Nop()

	ledger := usecase.NewLedgerUseCase(txm, wallets, entries, outbox, ids, nil, nil, logger)
	earning := usecase.NewEarningUseCase(ledger, domain.NewEarningRules(5, decimal.RequireFromString("0.1")), nil, time.UTC, nil, logger)
	lottery := usecase.NewLotteryUseCase(txm, rounds, entries, outbox, ids, nil, nil, logger)
	purchase := usecase.NewEntryUseCase(txm, rounds, ledger, nil, nil, logger)
	draw := usecase.NewDrawUseCase(txm, rounds, lottery, ledger, nil, usecase.NewSeededRandSource(1), nil, nil, logger)
	recon := usecase.NewReconciliationUseCase(wallets, entries, rounds, nil, logger)

	lh := NewLedgerHandler(ledger, earning, recon)
	rh := NewRoundHandler(lottery, purchase, draw, recon)

	r := chi.NewRouter()
	r.Get("/users/{userID}/balance", lh.Balance)
	r.Get("/ledger/reconciliation", lh.ReconcileLedger)
	r.Post("/rounds", rh.Open)
	r.Get("/rounds", rh.List)
	r.Post("/rounds/close-expired", rh.CloseExpired)
	r.Get("/rounds/{id}", rh.Get)
	r.Get("/rounds/{id}/entries", rh.Entries)
	r.Post("/rounds/{id}/purchases", rh.Purchase)
	r.Post("/rounds/{id}/draw", rh.Draw)
	r.Get("/rounds/{id}/reconciliation", rh.Reconcile)

	return &roundFixture{router: r, ledger: ledger, now: time.Now().UTC()}
}

func (f *roundFixture) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec.Code
}

func (f *roundFixture) credit(t *testing.T, userID string, amount int64) {
	t.Helper()
	if _, err := f.ledger.Append(context.Background(), usecase.AppendInput{UserID: userID, Amount: amount, Reason: domain.ReasonAdjustment}); err != nil {
		t.Fatalf("credit %s: %v", userID, err)
	}
}

func TestRoundHandler_Lifecycle(t *testing.T) {
	f := newRoundFixture(t)

	var round dto.RoundResponse
	code := f.do(t, http.MethodPost, "/rounds", dto.OpenRoundRequest{
		Name:         "weekly",
		CostPerEntry: 3,
		PrizeCoins:   20,
		ClosesAt:     f.now.Add(time.Hour),
	}, &round)
	if code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d", code)
	}
	if round.Status != string(domain.RoundStatusOpen) {
		t.Fatalf("expected open round, got %+v", round)
	}

	f.credit(t, "alice", 10)
	f.credit(t, "bob", 10)

	var purchase dto.PurchaseResponse
	if code := f.do(t, http.MethodPost, "/rounds/"+round.ID+"/purchases", dto.PurchaseRequest{UserID: "alice", Count: 2}, &purchase); code != http.StatusCreated {
		t.Fatalf("purchase: expected 201, got %d", code)
	}
	if purchase.Cost != 6 || purchase.Entry.BalanceAfter != 4 {
		t.Fatalf("unexpected purchase %+v", purchase)
	}

	if code := f.do(t, http.MethodPost, "/rounds/"+round.ID+"/purchases", dto.PurchaseRequest{UserID: "bob", Count: 4}, nil); code != http.StatusConflict {
		t.Fatalf("overdraw: expected 409, got %d", code)
	}
	if code := f.do(t, http.MethodPost, "/rounds/"+round.ID+"/purchases", dto.PurchaseRequest{UserID: "bob", Count: 0}, nil); code != http.StatusBadRequest {
		t.Fatalf("zero count: expected 400, got %d", code)
	}
	if code := f.do(t, http.MethodPost, "/rounds/"+round.ID+"/purchases", dto.PurchaseRequest{UserID: "bob", Count: 1}, nil); code != http.StatusCreated {
		t.Fatalf("purchase bob: expected 201, got %d", code)
	}

	var entries dto.RoundEntriesResponse
	if code := f.do(t, http.MethodGet, "/rounds/"+round.ID+"/entries", nil, &entries); code != http.StatusOK {
		t.Fatalf("entries: expected 200, got %d", code)
	}
	if entries.TotalEntries != 3 || len(entries.Entries) != 2 {
		t.Fatalf("unexpected entries %+v", entries)
	}

	if code := f.do(t, http.MethodPost, "/rounds/"+round.ID+"/draw", nil, nil); code != http.StatusConflict {
		t.Fatalf("draw open round: expected 409, got %d", code)
	}

	at := f.now.Add(2 * time.Hour)
	var closed dto.CloseExpiredResponse
	if code := f.do(t, http.MethodPost, "/rounds/close-expired", dto.CloseExpiredRequest{At: &at}, &closed); code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d", code)
	}
	if len(closed.Closed) != 1 || closed.Closed[0] != round.ID {
		t.Fatalf("expected %s closed, got %v", round.ID, closed.Closed)
	}

	var draw dto.DrawResponse
	if code := f.do(t, http.MethodPost, "/rounds/"+round.ID+"/draw", nil, &draw); code != http.StatusOK {
		t.Fatalf("draw: expected 200, got %d", code)
	}
	if draw.WinnerUserID == nil || draw.TotalEntries != 3 || draw.Replayed {
		t.Fatalf("unexpected draw %+v", draw)
	}

	var replay dto.DrawResponse
	f.do(t, http.MethodPost, "/rounds/"+round.ID+"/draw", nil, &replay)
	if !replay.Replayed || *replay.WinnerUserID != *draw.WinnerUserID {
		t.Fatalf("expected replay of %s, got %+v", *draw.WinnerUserID, replay)
	}

	var balance dto.BalanceResponse
	f.do(t, http.MethodGet, "/users/"+*draw.WinnerUserID+"/balance", nil, &balance)
	spent := map[string]int64{"alice": 6, "bob": 3}
	if balance.Balance != 10-spent[*draw.WinnerUserID]+20 {
		t.Fatalf("unexpected winner balance %d", balance.Balance)
	}

	var check dto.RoundReconciliationResponse
	if code := f.do(t, http.MethodGet, "/rounds/"+round.ID+"/reconciliation", nil, &check); code != http.StatusOK || !check.IsReconciled {
		t.Fatalf("expected reconciled round, got %d %+v", code, check)
	}

	var report dto.ReconciliationReportResponse
	if code := f.do(t, http.MethodGet, "/ledger/reconciliation", nil, &report); code != http.StatusOK || !report.LedgerConsistent {
		t.Fatalf("expected consistent ledger, got %d %+v", code, report)
	}
}

func TestRoundHandler_OpenAndList(t *testing.T) {
	f := newRoundFixture(t)

	if code := f.do(t, http.MethodPost, "/rounds", dto.OpenRoundRequest{Name: "bad", CostPerEntry: 0, ClosesAt: f.now.Add(time.Hour)}, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero cost, got %d", code)
	}

	for range 2 {
		if code := f.do(t, http.MethodPost, "/rounds", dto.OpenRoundRequest{Name: "daily", CostPerEntry: 1, ClosesAt: f.now.Add(time.Hour)}, nil); code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", code)
		}
	}

	var rounds []dto.RoundResponse
	if code := f.do(t, http.MethodGet, "/rounds?status=open", nil, &rounds); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(rounds))
	}

	if code := f.do(t, http.MethodGet, "/rounds?status=paused", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", code)
	}
	if code := f.do(t, http.MethodGet, "/rounds/missing", nil, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestRoundHandler_PlayerCannotOperateRounds(t *testing.T) {
	f := newRoundFixture(t)
	player := &domain.User{ID: "alice", Role: domain.RolePlayer}

	body, _ := json.Marshal(dto.OpenRoundRequest{Name: "weekly", CostPerEntry: 1, ClosesAt: f.now.Add(time.Hour)})
	req := httptest.NewRequest(http.MethodPost, "/rounds", bytes.NewReader(body))
	req = req.WithContext(domain.ContextWithUser(req.Context(), player))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRoundHandler_PurchaseDefaultsToCaller(t *testing.T) {
	f := newRoundFixture(t)

	var round dto.RoundResponse
	f.do(t, http.MethodPost, "/rounds", dto.OpenRoundRequest{Name: "weekly", CostPerEntry: 2, ClosesAt: f.now.Add(time.Hour)}, &round)
	f.credit(t, "alice", 10)

	player := &domain.User{ID: "alice", Role: domain.RolePlayer}

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/rounds/"+round.ID+"/purchases", bytes.NewBufferString(body))
		req = req.WithContext(domain.ContextWithUser(req.Context(), player))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec
	}

	rec := send(`{"count":1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.PurchaseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Entry.UserID != "alice" {
		t.Fatalf("expected purchase for alice, got %s", resp.Entry.UserID)
	}

	if rec := send(`{"user_id":"bob","count":1}`); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 buying for another user, got %d", rec.Code)
	}
}
