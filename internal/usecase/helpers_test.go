package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/coinledger/internal/adapter/repository/memory"
	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/usecase"
)

type sequenceIDs struct {
	n atomic.Int64
}

func (g *sequenceIDs) Generate() string {
	return fmt.Sprintf("id-%06d", g.n.Add(1))
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	store     *memory.Store
	txManager usecase.TransactionManager
	wallets   *memory.WalletRepository
	entries   *memory.LedgerEntryRepository
	rounds    *memory.RoundRepository
	outbox    *memory.OutboxRepository
	clock     *testClock

	ledger   *usecase.LedgerUseCase
	earning  *usecase.EarningUseCase
	lottery  *usecase.LotteryUseCase
	purchase *usecase.EntryUseCase
	draw     *usecase.DrawUseCase
	recon    *usecase.ReconciliationUseCase
}

var epoch = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithTxManager(t, nil)
}

// newEnvWithTxManager builds the use cases on the memory store; wrap, if set, decorates the tx manager.
func newEnvWithTxManager(t *testing.T, wrap func(usecase.TransactionManager) usecase.TransactionManager) *env {
	t.Helper()

	store := memory.NewStore()
	var txm usecase.TransactionManager = memory.NewTxManager(store)
	if wrap != nil {
		txm = wrap(txm)
	}

	e := &env{
		store:     store,
		txManager: txm,
		wallets:   memory.NewWalletRepository(store),
		entries:   memory.NewLedgerEntryRepository(store),
		rounds:    memory.NewRoundRepository(store),
		outbox:    memory.NewOutboxRepository(store),
		clock:     newTestClock(epoch),
	}

	ids := &sequenceIDs{}
	logger := zerolog.Nop()

	e.ledger = usecase.NewLedgerUseCase(txm, e.wallets, e.entries, e.outbox, ids, nil, nil, logger).WithClock(e.clock.Now)
	e.earning = usecase.NewEarningUseCase(e.ledger, domain.NewEarningRules(5, decimal.RequireFromString("0.1")), nil, time.UTC, nil, logger).WithClock(e.clock.Now)
	e.lottery = usecase.NewLotteryUseCase(txm, e.rounds, e.entries, e.outbox, ids, nil, nil, logger).WithClock(e.clock.Now)
	e.purchase = usecase.NewEntryUseCase(txm, e.rounds, e.ledger, nil, nil, logger).WithClock(e.clock.Now)
	e.draw = usecase.NewDrawUseCase(txm, e.rounds, e.lottery, e.ledger, nil, usecase.NewSeededRandSource(42), nil, nil, logger)
	e.recon = usecase.NewReconciliationUseCase(e.wallets, e.entries, e.rounds, nil, logger)

	return e
}

func (e *env) credit(t *testing.T, userID string, amount int64) {
	t.Helper()
	if _, err := e.ledger.Append(context.Background(), usecase.AppendInput{
		UserID: userID,
		Amount: amount,
		Reason: domain.ReasonAdjustment,
	}); err != nil {
		t.Fatalf("credit %s: %v", userID, err)
	}
}

func (e *env) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := e.ledger.BalanceOf(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance %s: %v", userID, err)
	}
	return b
}

// openRound opens a round that accepts entries now and closes in an hour.
func (e *env) openRound(t *testing.T, cost, prize int64) *domain.LotteryRound {
	t.Helper()
	now := e.clock.Now()
	round, err := e.lottery.OpenRound(context.Background(), domain.RoundSpec{
		Name:         "weekly",
		Category:     "savings",
		CostPerEntry: cost,
		PrizeCoins:   prize,
		OpensAt:      now.Add(-time.Minute),
		ClosesAt:     now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("open round: %v", err)
	}
	return round
}

func (e *env) buy(t *testing.T, userID, roundID string, count int64) {
	t.Helper()
	if _, err := e.purchase.PurchaseEntries(context.Background(), userID, roundID, count); err != nil {
		t.Fatalf("purchase %s x%d: %v", userID, count, err)
	}
}

// closeAll advances past every round's close time and sweeps.
func (e *env) closeAll(t *testing.T) {
	t.Helper()
	e.clock.Advance(2 * time.Hour)
	if _, err := e.lottery.CloseExpiredRounds(context.Background(), e.clock.Now()); err != nil {
		t.Fatalf("close rounds: %v", err)
	}
}
