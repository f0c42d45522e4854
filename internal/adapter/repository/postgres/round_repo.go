package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/infrastructure/postgres/generated"
	"github.com/iho/coinledger/internal/usecase"
)

// RoundRepository implements usecase.RoundRepository.
type RoundRepository struct {
	queries *generated.Queries
}

// NewRoundRepository creates a new RoundRepository.
func NewRoundRepository(db generated.DBTX) *RoundRepository {
	return &RoundRepository{
		queries: generated.New(db),
	}
}

// Create inserts a new round.
func (r *RoundRepository) Create(ctx context.Context, tx usecase.Transaction, round *domain.LotteryRound) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	return queries.CreateLotteryRound(ctx, generated.CreateLotteryRoundParams{
		ID:           round.ID,
		Name:         round.Name,
		Category:     round.Category,
		CostPerEntry: round.CostPerEntry,
		PrizeCoins:   round.PrizeCoins,
		OpensAt:      timeToPgTimestamptz(round.OpensAt),
		ClosesAt:     timeToPgTimestamptz(round.ClosesAt),
		Status:       string(round.Status),
		CreatedAt:    timeToPgTimestamptz(round.CreatedAt),
		UpdatedAt:    timeToPgTimestamptz(round.UpdatedAt),
	})
}

// GetByID retrieves a round by ID.
func (r *RoundRepository) GetByID(ctx context.Context, id string) (*domain.LotteryRound, error) {
	return roundOrNotFound(r.queries.GetLotteryRoundByID(ctx, id))
}

// GetByIDForShare retrieves a round with a FOR SHARE lock.
func (r *RoundRepository) GetByIDForShare(ctx context.Context, tx usecase.Transaction, id string) (*domain.LotteryRound, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	return roundOrNotFound(queries.GetLotteryRoundByIDForShare(ctx, id))
}

// GetByIDForUpdate retrieves a round with a FOR UPDATE lock.
func (r *RoundRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LotteryRound, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	return roundOrNotFound(queries.GetLotteryRoundByIDForUpdate(ctx, id))
}

// CloseExpired moves every expired open round to closed_pending_draw. The UPDATE waits for
// purchases holding the round FOR SHARE.
func (r *RoundRepository) CloseExpired(ctx context.Context, tx usecase.Transaction, now time.Time) ([]*domain.LotteryRound, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	rows, err := queries.CloseExpiredLotteryRounds(ctx, timeToPgTimestamptz(now))
	if err != nil {
		return nil, err
	}

	return rowsToRounds(rows), nil
}

// Close moves one expired open round to closed_pending_draw.
func (r *RoundRepository) Close(ctx context.Context, tx usecase.Transaction, id string, now time.Time) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	affected, err := queries.CloseLotteryRound(ctx, id, timeToPgTimestamptz(now))
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrInvalidTransition
	}

	return nil
}

// UpdateSettlement records the winner. Only a closed_pending_draw round can be settled.
func (r *RoundRepository) UpdateSettlement(ctx context.Context, tx usecase.Transaction, id string, winnerUserID *string, settledAt time.Time) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	affected, err := queries.UpdateLotteryRoundSettlement(ctx, generated.UpdateLotteryRoundSettlementParams{
		ID:           id,
		WinnerUserID: optionalText(winnerUserID),
		SettledAt:    timeToPgTimestamptz(settledAt),
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrInvalidTransition
	}

	return nil
}

// List lists rounds newest first, optionally filtered by status.
func (r *RoundRepository) List(ctx context.Context, status domain.RoundStatus, limit, offset int) ([]*domain.LotteryRound, error) {
	rows, err := r.queries.ListLotteryRounds(ctx, generated.ListLotteryRoundsParams{
		Status: textOrNull(string(status)),
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	return rowsToRounds(rows), nil
}

func roundOrNotFound(row generated.LotteryRound, err error) (*domain.LotteryRound, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoundNotFound
		}

		return nil, err
	}

	return rowToRound(row), nil
}

func rowsToRounds(rows []generated.LotteryRound) []*domain.LotteryRound {
	rounds := make([]*domain.LotteryRound, 0, len(rows))
	for _, row := range rows {
		rounds = append(rounds, rowToRound(row))
	}
	return rounds
}

func rowToRound(row generated.LotteryRound) *domain.LotteryRound {
	return &domain.LotteryRound{
		ID:           row.ID,
		Name:         row.Name,
		Category:     row.Category,
		CostPerEntry: row.CostPerEntry,
		PrizeCoins:   row.PrizeCoins,
		OpensAt:      row.OpensAt.Time,
		ClosesAt:     row.ClosesAt.Time,
		Status:       domain.RoundStatus(row.Status),
		WinnerUserID: textPtr(row.WinnerUserID),
		SettledAt:    timePtr(row.SettledAt),
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
	}
}
