package usecase

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/infrastructure/metrics"
)

// LedgerUseCase is the coin ledger: balances, credits, and the atomic conditional debit.
type LedgerUseCase struct {
	txManager  TransactionManager
	walletRepo WalletRepository
	entryRepo  LedgerEntryRepository
	outboxRepo OutboxRepository
	idGen      IDGenerator
	retrier    Retrier
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	txManager TransactionManager,
	walletRepo WalletRepository,
	entryRepo LedgerEntryRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	retrier Retrier,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *LedgerUseCase {
	return &LedgerUseCase{
		txManager:  txManager,
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		outboxRepo: outboxRepo,
		idGen:      idGen,
		retrier:    retrier,
		metrics:    metrics,
		logger:     logger,
		now:        systemClock,
	}
}

// WithClock replaces the clock used to stamp entries.
func (uc *LedgerUseCase) WithClock(now func() time.Time) *LedgerUseCase {
	uc.now = now
	return uc
}

// AppendInput describes a credit.
type AppendInput struct {
	OccurredAt     *time.Time
	RoundID        *string
	IdempotencyKey *string
	UserID         string
	Reason         domain.Reason
	Note           string
	Amount         int64
}

// DebitInput describes a conditional debit. Amount is the positive number of coins to take.
type DebitInput struct {
	RoundID        *string
	IdempotencyKey *string
	UserID         string
	Reason         domain.Reason
	Note           string
	Amount         int64
}

// BalanceOf returns the sum of all the user's entries. Users without entries have balance 0.
func (uc *LedgerUseCase) BalanceOf(ctx context.Context, userID string) (int64, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return 0, err
	}

	return uc.entryRepo.SumByUser(ctx, userID)
}

// GetWallet returns the user's wallet row.
func (uc *LedgerUseCase) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	return uc.walletRepo.GetByUserID(ctx, userID)
}

// Append records a credit in its own transaction.
// Negative movements are not accepted here; they go through DebitIfAfforded.
func (uc *LedgerUseCase) Append(ctx context.Context, input AppendInput) (*domain.LedgerEntry, error) {
	start := time.Now()

	var entry *domain.LedgerEntry
	err := runWithRetry(ctx, uc.retrier, func() error {
		var err error
		entry, err = uc.inTx(ctx, func(txCtx context.Context, tx Transaction) (*domain.LedgerEntry, error) {
			return uc.AppendTx(txCtx, tx, input)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.observe("append", start, entry)
	return entry, nil
}

// DebitIfAfforded atomically checks the balance and appends a negative entry.
// Debits for the same user serialize on the wallet row; other users are unaffected.
func (uc *LedgerUseCase) DebitIfAfforded(ctx context.Context, input DebitInput) (*domain.LedgerEntry, error) {
	start := time.Now()

	var entry *domain.LedgerEntry
	err := runWithRetry(ctx, uc.retrier, func() error {
		var err error
		entry, err = uc.inTx(ctx, func(txCtx context.Context, tx Transaction) (*domain.LedgerEntry, error) {
			return uc.DebitIfAffordedTx(txCtx, tx, input)
		})
		return err
	})
	if err != nil {
		uc.observeRejection(err)
		return nil, err
	}

	uc.observe("debit", start, entry)
	return entry, nil
}

// Adjust writes a compensating adjustment. Negative adjustments may not overdraw the user.
func (uc *LedgerUseCase) Adjust(ctx context.Context, userID string, amount int64, note string) (*domain.LedgerEntry, error) {
	if err := domain.ValidateNote(note); err != nil {
		return nil, err
	}

	if amount < 0 {
		return uc.DebitIfAfforded(ctx, DebitInput{
			UserID: userID,
			Amount: -amount,
			Reason: domain.ReasonAdjustment,
			Note:   note,
		})
	}

	return uc.Append(ctx, AppendInput{
		UserID: userID,
		Amount: amount,
		Reason: domain.ReasonAdjustment,
		Note:   note,
	})
}

// AppendTx records a credit inside the caller's transaction.
func (uc *LedgerUseCase) AppendTx(ctx context.Context, tx Transaction, input AppendInput) (*domain.LedgerEntry, error) {
	if err := validateMovement(input.UserID, input.Amount, input.Reason); err != nil {
		return nil, err
	}

	wallet, err := uc.walletRepo.GetForUpdate(ctx, tx, input.UserID)
	if err != nil {
		return nil, err
	}

	occurredAt := uc.now()
	if input.OccurredAt != nil {
		occurredAt = input.OccurredAt.UTC()
	}

	return uc.write(ctx, tx, wallet, &domain.LedgerEntry{
		UserID:         input.UserID,
		Amount:         input.Amount,
		Reason:         input.Reason,
		RoundID:        input.RoundID,
		IdempotencyKey: input.IdempotencyKey,
		Note:           input.Note,
		OccurredAt:     occurredAt,
	})
}

// DebitIfAffordedTx performs the conditional debit inside the caller's transaction.
func (uc *LedgerUseCase) DebitIfAffordedTx(ctx context.Context, tx Transaction, input DebitInput) (*domain.LedgerEntry, error) {
	if err := validateMovement(input.UserID, input.Amount, input.Reason); err != nil {
		return nil, err
	}

	// Lock the wallet row; concurrent debits for this user wait here.
	wallet, err := uc.walletRepo.GetForUpdate(ctx, tx, input.UserID)
	if err != nil {
		return nil, err
	}

	if !wallet.CanAfford(input.Amount) {
		return nil, fmt.Errorf("%w: balance %d, requested %d", domain.ErrInsufficientBalance, wallet.Balance, input.Amount)
	}

	return uc.write(ctx, tx, wallet, &domain.LedgerEntry{
		UserID:         input.UserID,
		Amount:         -input.Amount,
		Reason:         input.Reason,
		RoundID:        input.RoundID,
		IdempotencyKey: input.IdempotencyKey,
		Note:           input.Note,
		OccurredAt:     uc.now(),
	})
}

// ListEntries lazily iterates the user's entries ordered by (occurred_at, id).
// Each range over the returned sequence starts again from the first entry.
func (uc *LedgerUseCase) ListEntries(ctx context.Context, userID string, filter domain.EntryFilter) iter.Seq2[*domain.LedgerEntry, error] {
	return func(yield func(*domain.LedgerEntry, error) bool) {
		if err := domain.ValidateUserID(userID); err != nil {
			yield(nil, err)
			return
		}

		var cursor *domain.EntryCursor
		for {
			page, err := uc.entryRepo.ListByUser(ctx, userID, filter, cursor, listPageSize)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, entry := range page {
				if !yield(entry, nil) {
					return
				}
			}

			if len(page) < listPageSize {
				return
			}

			last := page[len(page)-1]
			cursor = &domain.EntryCursor{OccurredAt: last.OccurredAt, ID: last.ID}
		}
	}
}

// ListEntriesPage returns one page of entries after the cursor.
func (uc *LedgerUseCase) ListEntriesPage(ctx context.Context, userID string, filter domain.EntryFilter, after *domain.EntryCursor, limit int) ([]*domain.LedgerEntry, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	limit, _ = domain.ValidatePagination(limit, 0)
	return uc.entryRepo.ListByUser(ctx, userID, filter, after, limit)
}

// GetByIdempotencyKey returns the entry recorded under key.
func (uc *LedgerUseCase) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	return uc.entryRepo.GetByIdempotencyKey(ctx, key)
}

func (uc *LedgerUseCase) write(ctx context.Context, tx Transaction, wallet *domain.Wallet, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	entry.BalanceBefore = wallet.Balance
	entry.BalanceAfter = wallet.Apply(entry.Amount)

	if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := uc.walletRepo.UpdateBalance(ctx, tx, wallet.UserID, entry.BalanceAfter, entry.OccurredAt); err != nil {
		return nil, err
	}

	eventType := domain.EventTypeCoinsCredited
	if !entry.IsCredit() {
		eventType = domain.EventTypeCoinsDebited
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   entry.UserID,
		AggregateType: domain.AggregateTypeWallet,
		EventType:     eventType,
		Payload:       domain.LedgerEntryPayload(entry),
		CreatedAt:     entry.OccurredAt,
	}
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	return entry, nil
}

func (uc *LedgerUseCase) inTx(ctx context.Context, fn func(context.Context, Transaction) (*domain.LedgerEntry, error)) (*domain.LedgerEntry, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	entry, err := fn(txCtx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return entry, nil
}

// observe records metrics for a committed entry.
func (uc *LedgerUseCase) observe(operation string, start time.Time, entry *domain.LedgerEntry) {
	if uc.metrics == nil || entry == nil {
		return
	}

	reason := string(entry.Reason)
	uc.metrics.LedgerEntries.WithLabelValues(reason).Inc()
	if entry.IsCredit() {
		uc.metrics.CoinsCredited.WithLabelValues(reason).Add(float64(entry.Amount))
	} else {
		uc.metrics.CoinsDebited.WithLabelValues(reason).Add(float64(-entry.Amount))
	}
	uc.metrics.LedgerOpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (uc *LedgerUseCase) observeRejection(err error) {
	if uc.metrics != nil && isInsufficientBalance(err) {
		uc.metrics.InsufficientBalance.Inc()
	}
}

func validateMovement(userID string, amount int64, reason domain.Reason) error {
	if err := domain.ValidateUserID(userID); err != nil {
		return err
	}

	if !reason.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidReason, reason)
	}

	if amount <= 0 {
		return domain.ErrInvalidAmount
	}

	if amount > domain.MaxCoinAmount {
		return fmt.Errorf("%w: exceeds %d coins", domain.ErrInvalidAmount, domain.MaxCoinAmount)
	}

	return nil
}
