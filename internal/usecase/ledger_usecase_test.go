package usecase_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/usecase"
	"github.com/iho/coinledger/internal/usecase/mocks"
)

func TestLedgerUseCase_BalanceOfUnknownUserIsZero(t *testing.T) {
	e := newEnv(t)

	if got := e.balance(t, "nobody"); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestLedgerUseCase_Append(t *testing.T) {
	tests := []struct {
		name        string
		input       usecase.AppendInput
		expectError error
	}{
		{
			name:  "credit",
			input: usecase.AppendInput{UserID: "alice", Amount: 5, Reason: domain.ReasonLogin},
		},
		{
			name:        "zero amount",
			input:       usecase.AppendInput{UserID: "alice", Amount: 0, Reason: domain.ReasonLogin},
			expectError: domain.ErrInvalidAmount,
		},
		{
			name:        "negative amount",
			input:       usecase.AppendInput{UserID: "alice", Amount: -5, Reason: domain.ReasonAdjustment},
			expectError: domain.ErrInvalidAmount,
		},
		{
			name:        "unknown reason",
			input:       usecase.AppendInput{UserID: "alice", Amount: 5, Reason: "gift"},
			expectError: domain.ErrInvalidReason,
		},
		{
			name:        "invalid user",
			input:       usecase.AppendInput{UserID: "", Amount: 5, Reason: domain.ReasonLogin},
			expectError: domain.ErrInvalidUserID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)

			entry, err := e.ledger.Append(context.Background(), tt.input)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected %v, got %v", tt.expectError, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if entry.ID == 0 {
				t.Error("expected store-assigned entry ID")
			}
			if entry.BalanceBefore != 0 || entry.BalanceAfter != tt.input.Amount {
				t.Errorf("unexpected balance snapshot %d -> %d", entry.BalanceBefore, entry.BalanceAfter)
			}
			if got := e.balance(t, tt.input.UserID); got != tt.input.Amount {
				t.Errorf("expected balance %d, got %d", tt.input.Amount, got)
			}
		})
	}
}

func TestLedgerUseCase_DebitIfAfforded(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.credit(t, "alice", 10)

	_, err := e.ledger.DebitIfAfforded(ctx, usecase.DebitInput{UserID: "alice", Amount: 11, Reason: domain.ReasonLotteryEntry})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	entry, err := e.ledger.DebitIfAfforded(ctx, usecase.DebitInput{UserID: "alice", Amount: 10, Reason: domain.ReasonLotteryEntry})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Amount != -10 || entry.BalanceAfter != 0 {
		t.Fatalf("unexpected debit entry %+v", entry)
	}

	if got := e.balance(t, "alice"); got != 0 {
		t.Fatalf("expected balance 0, got %d", got)
	}
}

func TestLedgerUseCase_TwoConcurrentDebitsOnlyOneSucceeds(t *testing.T) {
	e := newEnv(t)
	e.credit(t, "alice", 100)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ledger.DebitIfAfforded(context.Background(), usecase.DebitInput{UserID: "alice", Amount: 60, Reason: domain.ReasonLotteryEntry})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one debit to succeed, got %d", succeeded)
	}
	if got := e.balance(t, "alice"); got != 40 {
		t.Fatalf("expected balance 40, got %d", got)
	}
}

func TestLedgerUseCase_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		e := newEnv(t)
		const start = int64(100)
		e.credit(t, "alice", start)
		e.credit(t, "bob", 7)

		rng := rand.New(rand.NewPCG(seed, seed))
		amounts := make([]int64, 24)
		for i := range amounts {
			amounts[i] = 1 + rng.Int64N(30)
		}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			spent   int64
			refused []int64
		)
		for _, amount := range amounts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := e.ledger.DebitIfAfforded(context.Background(), usecase.DebitInput{UserID: "alice", Amount: amount, Reason: domain.ReasonLotteryEntry})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					spent += amount
				case errors.Is(err, domain.ErrInsufficientBalance):
					refused = append(refused, amount)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		final := e.balance(t, "alice")
		if final < 0 {
			t.Fatalf("seed %d: balance went negative: %d", seed, final)
		}
		if final != start-spent {
			t.Fatalf("seed %d: expected balance %d, got %d", seed, start-spent, final)
		}
		for _, amount := range refused {
			if amount <= final {
				t.Fatalf("seed %d: debit of %d refused while final balance %d could afford it", seed, amount, final)
			}
		}

		wallet, err := e.ledger.GetWallet(context.Background(), "alice")
		if err != nil {
			t.Fatalf("get wallet: %v", err)
		}
		if wallet.Balance != final {
			t.Fatalf("seed %d: wallet %d drifted from ledger %d", seed, wallet.Balance, final)
		}

		if got := e.balance(t, "bob"); got != 7 {
			t.Fatalf("seed %d: unrelated user balance changed to %d", seed, got)
		}

		var running int64
		for entry, err := range e.ledger.ListEntries(context.Background(), "alice", domain.EntryFilter{}) {
			if err != nil {
				t.Fatalf("list entries: %v", err)
			}
			running += entry.Amount
			if running < 0 {
				t.Fatalf("seed %d: running balance negative after entry %d", seed, entry.ID)
			}
		}
	}
}

func TestLedgerUseCase_ListEntriesIsLazyAndRestartable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	const total = 450
	for range total {
		e.credit(t, "alice", 1)
	}
	e.credit(t, "bob", 1)

	seq := e.ledger.ListEntries(ctx, "alice", domain.EntryFilter{})

	for pass := range 2 {
		count := 0
		var lastID int64
		for entry, err := range seq {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if entry.UserID != "alice" {
				t.Fatalf("unexpected user %s", entry.UserID)
			}
			if entry.ID <= lastID {
				t.Fatalf("entries out of order: %d after %d", entry.ID, lastID)
			}
			lastID = entry.ID
			count++
		}
		if count != total {
			t.Fatalf("pass %d: expected %d entries, got %d", pass, total, count)
		}
	}

	seen := 0
	for range seq {
		seen++
		if seen == 3 {
			break
		}
	}
	if seen != 3 {
		t.Fatalf("expected early break after 3, got %d", seen)
	}
}

func TestLedgerUseCase_ListEntriesFilter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.credit(t, "alice", 20)
	if _, err := e.ledger.DebitIfAfforded(ctx, usecase.DebitInput{UserID: "alice", Amount: 3, Reason: domain.ReasonLotteryEntry}); err != nil {
		t.Fatalf("debit: %v", err)
	}

	count := 0
	for entry, err := range e.ledger.ListEntries(ctx, "alice", domain.EntryFilter{Reason: domain.ReasonLotteryEntry}) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry.Reason != domain.ReasonLotteryEntry {
			t.Fatalf("filter leaked reason %s", entry.Reason)
		}
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 entry, got %d", count)
	}
}

func TestLedgerUseCase_Adjust(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.ledger.Adjust(ctx, "alice", 8, "support credit"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := e.ledger.Adjust(ctx, "alice", -9, "clawback"); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	entry, err := e.ledger.Adjust(ctx, "alice", -8, "clawback")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Reason != domain.ReasonAdjustment || entry.Note != "clawback" {
		t.Fatalf("unexpected adjustment entry %+v", entry)
	}

	if got := e.balance(t, "alice"); got != 0 {
		t.Fatalf("expected balance 0, got %d", got)
	}
}

func TestLedgerUseCase_WritesOutboxEvents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.credit(t, "alice", 10)
	if _, err := e.ledger.DebitIfAfforded(ctx, usecase.DebitInput{UserID: "alice", Amount: 4, Reason: domain.ReasonLotteryEntry}); err != nil {
		t.Fatalf("debit: %v", err)
	}

	events, err := e.outbox.GetByAggregate(ctx, domain.AggregateTypeWallet, "alice", 10, 0)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].EventType != domain.EventTypeCoinsCredited || events[1].EventType != domain.EventTypeCoinsDebited {
		t.Fatalf("unexpected event types %s, %s", events[0].EventType, events[1].EventType)
	}
}

func TestLedgerUseCase_RollsBackOnEntryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)

	txManager := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	walletRepo := mocks.NewMockWalletRepository(ctrl)
	entryRepo := mocks.NewMockLedgerEntryRepository(ctrl)
	outboxRepo := mocks.NewMockOutboxRepository(ctrl)
	idGen := mocks.NewMockIDGenerator(ctrl)

	storeErr := errors.New("connection reset")

	txManager.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	walletRepo.EXPECT().GetForUpdate(gomock.Any(), tx, "alice").Return(&domain.Wallet{UserID: "alice", Balance: 50}, nil)
	entryRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(storeErr)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	uc := usecase.NewLedgerUseCase(txManager, walletRepo, entryRepo, outboxRepo, idGen, nil, nil, zerolog.Nop())

	_, err := uc.DebitIfAfforded(context.Background(), usecase.DebitInput{UserID: "alice", Amount: 10, Reason: domain.ReasonLotteryEntry})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestLedgerUseCase_UsesRetrier(t *testing.T) {
	ctrl := gomock.NewController(t)

	txManager := mocks.NewMockTransactionManager(ctrl)
	tx := mocks.NewMockTransaction(ctrl)
	walletRepo := mocks.NewMockWalletRepository(ctrl)
	entryRepo := mocks.NewMockLedgerEntryRepository(ctrl)
	outboxRepo := mocks.NewMockOutboxRepository(ctrl)
	idGen := mocks.NewMockIDGenerator(ctrl)
	retrier := mocks.NewMockRetrier(ctrl)

	retrier.EXPECT().Retry(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, op func() error) error {
		return op()
	})
	txManager.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	walletRepo.EXPECT().GetForUpdate(gomock.Any(), tx, "alice").Return(&domain.Wallet{UserID: "alice"}, nil)
	entryRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(func(ctx context.Context, _ usecase.Transaction, entry *domain.LedgerEntry) error {
		entry.ID = 1
		return nil
	})
	walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, "alice", int64(5), gomock.Any()).Return(nil)
	idGen.EXPECT().Generate().Return("evt-1")
	outboxRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	tx.EXPECT().Commit(gomock.Any()).Return(nil)
	tx.EXPECT().Rollback(gomock.Any()).Return(nil)

	uc := usecase.NewLedgerUseCase(txManager, walletRepo, entryRepo, outboxRepo, idGen, retrier, nil, zerolog.Nop())

	entry, err := uc.Append(context.Background(), usecase.AppendInput{UserID: "alice", Amount: 5, Reason: domain.ReasonLogin})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ID != 1 || entry.BalanceAfter != 5 {
		t.Fatalf("unexpected entry %+v", entry)
	}
}
