package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/usecase"
)

// RoundRepository implements usecase.RoundRepository.
// Shared and exclusive round locks are the same lock here; purchases of one round serialize.
type RoundRepository struct {
	store *Store
}

// NewRoundRepository creates a new RoundRepository.
func NewRoundRepository(store *Store) *RoundRepository {
	return &RoundRepository{store: store}
}

// Create buffers a new round in tx.
func (r *RoundRepository) Create(ctx context.Context, tx usecase.Transaction, round *domain.LotteryRound) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	if err := mtx.acquire(ctx, roundLockKey(round.ID)); err != nil {
		return err
	}

	mtx.rounds[round.ID] = cloneRound(round)
	return nil
}

// GetByID returns the committed round.
func (r *RoundRepository) GetByID(ctx context.Context, id string) (*domain.LotteryRound, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	round, ok := r.store.rounds[id]
	if !ok {
		return nil, domain.ErrRoundNotFound
	}
	return cloneRound(round), nil
}

// GetByIDForShare locks the round until tx ends.
func (r *RoundRepository) GetByIDForShare(ctx context.Context, tx usecase.Transaction, id string) (*domain.LotteryRound, error) {
	return r.GetByIDForUpdate(ctx, tx, id)
}

// GetByIDForUpdate locks the round until tx ends.
func (r *RoundRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LotteryRound, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	if err := mtx.acquire(ctx, roundLockKey(id)); err != nil {
		return nil, err
	}

	return r.current(mtx, id)
}

// CloseExpired locks each expired open round in ID order and marks it closed_pending_draw.
func (r *RoundRepository) CloseExpired(ctx context.Context, tx usecase.Transaction, now time.Time) ([]*domain.LotteryRound, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	var candidates []string
	for id, round := range r.store.rounds {
		if round.IsExpired(now) {
			candidates = append(candidates, id)
		}
	}
	r.store.mu.RUnlock()

	slices.Sort(candidates)

	closed := make([]*domain.LotteryRound, 0, len(candidates))
	for _, id := range candidates {
		if err := mtx.acquire(ctx, roundLockKey(id)); err != nil {
			return nil, err
		}

		round, err := r.current(mtx, id)
		if err != nil {
			return nil, err
		}

		// re-check under the lock; another sweep may have won
		if !round.IsExpired(now) {
			continue
		}

		round.Status = domain.RoundStatusClosedPendingDraw
		round.UpdatedAt = now
		mtx.rounds[id] = round
		closed = append(closed, cloneRound(round))
	}

	return closed, nil
}

// Close marks one expired open round locked by tx as closed_pending_draw.
func (r *RoundRepository) Close(ctx context.Context, tx usecase.Transaction, id string, now time.Time) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	if _, ok := mtx.held[roundLockKey(id)]; !ok {
		return domain.ErrRoundNotFound
	}

	round, err := r.current(mtx, id)
	if err != nil {
		return err
	}
	if !round.IsExpired(now) {
		return domain.ErrInvalidTransition
	}

	round.Status = domain.RoundStatusClosedPendingDraw
	round.UpdatedAt = now
	mtx.rounds[id] = round
	return nil
}

// UpdateSettlement marks a round locked by tx as settled.
func (r *RoundRepository) UpdateSettlement(ctx context.Context, tx usecase.Transaction, id string, winnerUserID *string, settledAt time.Time) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	if _, ok := mtx.held[roundLockKey(id)]; !ok {
		return domain.ErrRoundNotFound
	}

	round, err := r.current(mtx, id)
	if err != nil {
		return err
	}
	if round.Status != domain.RoundStatusClosedPendingDraw {
		return domain.ErrInvalidTransition
	}

	round.Status = domain.RoundStatusSettled
	round.WinnerUserID = winnerUserID
	round.SettledAt = &settledAt
	round.UpdatedAt = settledAt
	mtx.rounds[id] = round
	return nil
}

// List returns committed rounds, newest first, optionally filtered by status.
func (r *RoundRepository) List(ctx context.Context, status domain.RoundStatus, limit, offset int) ([]*domain.LotteryRound, error) {
	r.store.mu.RLock()
	rounds := make([]*domain.LotteryRound, 0, len(r.store.rounds))
	for _, round := range r.store.rounds {
		if status == "" || round.Status == status {
			rounds = append(rounds, cloneRound(round))
		}
	}
	r.store.mu.RUnlock()

	slices.SortFunc(rounds, func(a, b *domain.LotteryRound) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	return page(rounds, limit, offset), nil
}

// current returns a private copy of the round as tx sees it.
func (r *RoundRepository) current(mtx *Tx, id string) (*domain.LotteryRound, error) {
	if staged, ok := mtx.rounds[id]; ok {
		return cloneRound(staged), nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	round, ok := r.store.rounds[id]
	if !ok {
		return nil, domain.ErrRoundNotFound
	}
	return cloneRound(round), nil
}
