package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/infrastructure/metrics"
)

// LotteryUseCase is the lottery catalog: round lifecycle and entry aggregates.
type LotteryUseCase struct {
	txManager  TransactionManager
	roundRepo  RoundRepository
	entryRepo  LedgerEntryRepository
	outboxRepo OutboxRepository
	idGen      IDGenerator
	retrier    Retrier
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// NewLotteryUseCase creates a new LotteryUseCase.
func NewLotteryUseCase(
	txManager TransactionManager,
	roundRepo RoundRepository,
	entryRepo LedgerEntryRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	retrier Retrier,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *LotteryUseCase {
	return &LotteryUseCase{
		txManager:  txManager,
		roundRepo:  roundRepo,
		entryRepo:  entryRepo,
		outboxRepo: outboxRepo,
		idGen:      idGen,
		retrier:    retrier,
		metrics:    metrics,
		logger:     logger,
		now:        systemClock,
	}
}

// WithClock replaces the clock used for timestamps.
func (uc *LotteryUseCase) WithClock(now func() time.Time) *LotteryUseCase {
	uc.now = now
	return uc
}

// OpenRound creates a round in open status.
func (uc *LotteryUseCase) OpenRound(ctx context.Context, spec domain.RoundSpec) (*domain.LotteryRound, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	now := uc.now()
	round := &domain.LotteryRound{
		ID:           uc.idGen.Generate(),
		Name:         spec.Name,
		Category:     spec.Category,
		CostPerEntry: spec.CostPerEntry,
		PrizeCoins:   spec.PrizeCoins,
		OpensAt:      spec.OpensAt.UTC(),
		ClosesAt:     spec.ClosesAt.UTC(),
		Status:       domain.RoundStatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := runWithRetry(ctx, uc.retrier, func() error {
		return uc.inTx(ctx, func(txCtx context.Context, tx Transaction) error {
			if err := uc.roundRepo.Create(txCtx, tx, round); err != nil {
				return err
			}
			return uc.emit(txCtx, tx, round, domain.EventTypeRoundOpened, now)
		})
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.RoundsOpened.Inc()
	}

	uc.logger.Info().Str("round_id", round.ID).Str("name", round.Name).Time("closes_at", round.ClosesAt).Msg("lottery round opened")
	return round, nil
}

// CloseExpiredRounds moves every open round whose close time has passed to closed_pending_draw.
// Re-running it has no effect on rounds already transitioned.
func (uc *LotteryUseCase) CloseExpiredRounds(ctx context.Context, now time.Time) ([]string, error) {
	var closed []*domain.LotteryRound

	err := runWithRetry(ctx, uc.retrier, func() error {
		closed = nil
		return uc.inTx(ctx, func(txCtx context.Context, tx Transaction) error {
			rounds, err := uc.roundRepo.CloseExpired(txCtx, tx, now)
			if err != nil {
				return err
			}

			for _, round := range rounds {
				if err := uc.emit(txCtx, tx, round, domain.EventTypeRoundClosed, now); err != nil {
					return err
				}
			}

			closed = rounds
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(closed))
	for _, round := range closed {
		ids = append(ids, round.ID)
	}

	if len(ids) > 0 {
		if uc.metrics != nil {
			uc.metrics.RoundsClosed.Add(float64(len(ids)))
		}
		uc.logger.Info().Strs("round_ids", ids).Msg("closed expired lottery rounds")
	}

	return ids, nil
}

// closeTx closes one expired round already locked by tx and records its close event.
func (uc *LotteryUseCase) closeTx(ctx context.Context, tx Transaction, round *domain.LotteryRound, now time.Time) error {
	if err := uc.roundRepo.Close(ctx, tx, round.ID, now); err != nil {
		return err
	}

	round.Status = domain.RoundStatusClosedPendingDraw
	round.UpdatedAt = now
	return uc.emit(ctx, tx, round, domain.EventTypeRoundClosed, now)
}

// GetRound returns a round by ID.
func (uc *LotteryUseCase) GetRound(ctx context.Context, roundID string) (*domain.LotteryRound, error) {
	if roundID == "" {
		return nil, domain.ErrInvalidRoundID
	}

	return uc.roundRepo.GetByID(ctx, roundID)
}

// ListRounds lists rounds, optionally filtered by status.
func (uc *LotteryUseCase) ListRounds(ctx context.Context, status domain.RoundStatus, limit, offset int) ([]*domain.LotteryRound, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidSpec, status)
	}

	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.roundRepo.List(ctx, status, limit, offset)
}

// EntriesFor maps each participant to their entry count, computed from the ledger.
func (uc *LotteryUseCase) EntriesFor(ctx context.Context, roundID string) (map[string]int64, error) {
	records, err := uc.EntryRecords(ctx, roundID)
	if err != nil {
		return nil, err
	}

	entries := make(map[string]int64, len(records))
	for _, r := range records {
		entries[r.UserID] = r.EntryCount
	}

	return entries, nil
}

// EntryRecords returns the round's per-user entry aggregates sorted by user ID.
func (uc *LotteryUseCase) EntryRecords(ctx context.Context, roundID string) ([]domain.EntryRecord, error) {
	round, err := uc.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	return uc.entryRecordsTx(ctx, nil, round)
}

// Settle records winnerUserID as the winner of a closed round.
func (uc *LotteryUseCase) Settle(ctx context.Context, roundID, winnerUserID string) error {
	err := runWithRetry(ctx, uc.retrier, func() error {
		return uc.inTx(ctx, func(txCtx context.Context, tx Transaction) error {
			round, err := uc.roundRepo.GetByIDForUpdate(txCtx, tx, roundID)
			if err != nil {
				return err
			}

			records, err := uc.entryRecordsTx(txCtx, tx, round)
			if err != nil {
				return err
			}

			if round.Status == domain.RoundStatusClosedPendingDraw && domain.TotalEntries(records) == 0 {
				return domain.ErrNoEntries
			}

			return uc.SettleTx(txCtx, tx, round, &winnerUserID, records)
		})
	})
	if err != nil {
		uc.logInvariant(err, roundID)
		return err
	}

	uc.observeSettlement(&winnerUserID)
	return nil
}

// SettleTx settles a round locked by the caller. A nil winner is only valid when the round has no entries.
func (uc *LotteryUseCase) SettleTx(ctx context.Context, tx Transaction, round *domain.LotteryRound, winnerUserID *string, records []domain.EntryRecord) error {
	if round.Status != domain.RoundStatusClosedPendingDraw {
		return fmt.Errorf("%w: round %s is %s", domain.ErrInvalidTransition, round.ID, round.Status)
	}

	total := domain.TotalEntries(records)
	if winnerUserID == nil {
		if total > 0 {
			return fmt.Errorf("%w: round %s has %d entries but no winner", domain.ErrInvalidWinner, round.ID, total)
		}
	} else {
		if total == 0 {
			return domain.ErrNoEntries
		}
		if !domain.HasEntries(records, *winnerUserID) {
			return fmt.Errorf("%w: %s", domain.ErrInvalidWinner, *winnerUserID)
		}
	}

	now := uc.now()
	if err := uc.roundRepo.UpdateSettlement(ctx, tx, round.ID, winnerUserID, now); err != nil {
		return err
	}

	round.Status = domain.RoundStatusSettled
	round.WinnerUserID = winnerUserID
	round.SettledAt = &now
	round.UpdatedAt = now

	return uc.emit(ctx, tx, round, domain.EventTypeRoundSettled, now)
}

func (uc *LotteryUseCase) entryRecordsTx(ctx context.Context, tx Transaction, round *domain.LotteryRound) ([]domain.EntryRecord, error) {
	spends, err := uc.entryRepo.SpendByRound(ctx, tx, round.ID)
	if err != nil {
		return nil, err
	}

	return domain.EntryRecordsFromSpend(round.ID, round.CostPerEntry, spends), nil
}

func (uc *LotteryUseCase) emit(ctx context.Context, tx Transaction, round *domain.LotteryRound, eventType string, at time.Time) error {
	return uc.outboxRepo.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   round.ID,
		AggregateType: domain.AggregateTypeRound,
		EventType:     eventType,
		Payload:       domain.RoundPayload(round),
		CreatedAt:     at,
	})
}

func (uc *LotteryUseCase) inTx(ctx context.Context, fn func(context.Context, Transaction) error) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := fn(txCtx, tx); err != nil {
		return err
	}

	return tx.Commit(txCtx)
}

func (uc *LotteryUseCase) observeSettlement(winnerUserID *string) {
	if uc.metrics == nil {
		return
	}

	outcome := "winner"
	if winnerUserID == nil {
		outcome = "no_entries"
	}
	uc.metrics.RoundsSettled.WithLabelValues(outcome).Inc()
}

func (uc *LotteryUseCase) logInvariant(err error, roundID string) {
	if isInvariantViolation(err) {
		uc.logger.Error().Err(err).Str("round_id", roundID).Msg("lottery invariant violated")
	}
}
