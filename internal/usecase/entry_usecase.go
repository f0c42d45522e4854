package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/infrastructure/metrics"
)

// EntryUseCase sells lottery entries for coins.
type EntryUseCase struct {
	txManager TransactionManager
	roundRepo RoundRepository
	ledger    *LedgerUseCase
	retrier   Retrier
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// NewEntryUseCase creates a new EntryUseCase.
func NewEntryUseCase(
	txManager TransactionManager,
	roundRepo RoundRepository,
	ledger *LedgerUseCase,
	retrier Retrier,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *EntryUseCase {
	return &EntryUseCase{
		txManager: txManager,
		roundRepo: roundRepo,
		ledger:    ledger,
		retrier:   retrier,
		metrics:   metrics,
		logger:    logger,
		now:       systemClock,
	}
}

// WithClock replaces the clock used to decide whether a round accepts entries.
func (uc *EntryUseCase) WithClock(now func() time.Time) *EntryUseCase {
	uc.now = now
	return uc
}

// PurchaseResult is a committed entry purchase.
type PurchaseResult struct {
	Entry *domain.LedgerEntry
	Round *domain.LotteryRound
	Count int64
	Cost  int64
}

// PurchaseEntries debits count * costPerEntry coins and records the entries against the round.
// The round stays locked against closing until the debit commits, so a purchase either lands
// fully inside the round or not at all.
func (uc *EntryUseCase) PurchaseEntries(ctx context.Context, userID, roundID string, count int64) (*PurchaseResult, error) {
	if err := domain.ValidateEntryCount(count); err != nil {
		return nil, err
	}

	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	if roundID == "" {
		return nil, domain.ErrInvalidRoundID
	}

	start := time.Now()

	var result *PurchaseResult
	err := runWithRetry(ctx, uc.retrier, func() error {
		var err error
		result, err = uc.purchase(ctx, userID, roundID, count)
		return err
	})
	if err != nil {
		uc.ledger.observeRejection(err)
		return nil, err
	}

	uc.ledger.observe("purchase", start, result.Entry)
	if uc.metrics != nil {
		uc.metrics.EntriesPurchased.Add(float64(count))
	}

	uc.logger.Debug().
		Str("user_id", userID).
		Str("round_id", roundID).
		Int64("count", count).
		Int64("cost", result.Cost).
		Msg("lottery entries purchased")

	return result, nil
}

func (uc *EntryUseCase) purchase(ctx context.Context, userID, roundID string, count int64) (*PurchaseResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Shared lock: concurrent purchases proceed, the close sweep waits.
	round, err := uc.roundRepo.GetByIDForShare(txCtx, tx, roundID)
	if err != nil {
		return nil, err
	}

	if !round.AcceptsEntries(uc.now()) {
		return nil, fmt.Errorf("%w: round %s is %s, closes at %s", domain.ErrRoundNotOpen, round.ID, round.Status, round.ClosesAt.Format(time.RFC3339))
	}

	cost, err := round.EntryCost(count)
	if err != nil {
		return nil, err
	}
	entry, err := uc.ledger.DebitIfAffordedTx(txCtx, tx, DebitInput{
		UserID:  userID,
		Amount:  cost,
		Reason:  domain.ReasonLotteryEntry,
		RoundID: &round.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return &PurchaseResult{
		Entry: entry,
		Round: round,
		Count: count,
		Cost:  cost,
	}, nil
}
