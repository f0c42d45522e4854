package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/usecase"
)

// LedgerEntryRepository implements usecase.LedgerEntryRepository.
type LedgerEntryRepository struct {
	store *Store
}

// NewLedgerEntryRepository creates a new LedgerEntryRepository.
func NewLedgerEntryRepository(store *Store) *LedgerEntryRepository {
	return &LedgerEntryRepository{store: store}
}

// Create buffers the entry in tx and assigns the next entry ID.
func (r *LedgerEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	if entry.IdempotencyKey != nil {
		key := *entry.IdempotencyKey

		r.store.mu.RLock()
		_, taken := r.store.byKey[key]
		r.store.mu.RUnlock()
		if taken {
			return domain.ErrDuplicateEntry
		}

		for _, pending := range mtx.entries {
			if pending.IdempotencyKey != nil && *pending.IdempotencyKey == key {
				return domain.ErrDuplicateEntry
			}
		}
	}

	entry.ID = r.store.nextEntryID.Add(1)
	mtx.entries = append(mtx.entries, cloneEntry(entry))
	return nil
}

// GetByIdempotencyKey returns the committed entry recorded under key.
func (r *LedgerEntryRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.byKey[key]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return cloneEntry(e), nil
}

// SumByUser returns the sum of the user's committed entries.
func (r *LedgerEntryRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var sum int64
	for _, e := range r.store.entries {
		if e.UserID == userID {
			sum += e.Amount
		}
	}
	return sum, nil
}

// ListByUser returns up to limit entries after the cursor, ordered by (occurred_at, id).
func (r *LedgerEntryRepository) ListByUser(ctx context.Context, userID string, filter domain.EntryFilter, after *domain.EntryCursor, limit int) ([]*domain.LedgerEntry, error) {
	r.store.mu.RLock()
	var matched []*domain.LedgerEntry
	for _, e := range r.store.entries {
		if e.UserID == userID && filter.Matches(e) && after.After(e) {
			matched = append(matched, cloneEntry(e))
		}
	}
	r.store.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *domain.LedgerEntry) int {
		if c := a.OccurredAt.Compare(b.OccurredAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	if matched == nil {
		matched = []*domain.LedgerEntry{}
	}
	return matched, nil
}

// SpendByRound sums lottery_entry debits per user, including entries pending in tx.
func (r *LedgerEntryRepository) SpendByRound(ctx context.Context, tx usecase.Transaction, roundID string) ([]domain.RoundSpend, error) {
	spent := make(map[string]int64)
	add := func(e *domain.LedgerEntry) {
		if e.Reason == domain.ReasonLotteryEntry && e.RoundID != nil && *e.RoundID == roundID {
			spent[e.UserID] -= e.Amount
		}
	}

	r.store.mu.RLock()
	for _, e := range r.store.entries {
		add(e)
	}
	r.store.mu.RUnlock()

	if tx != nil {
		mtx, err := asTx(tx)
		if err != nil {
			return nil, err
		}
		for _, e := range mtx.entries {
			add(e)
		}
	}

	spends := make([]domain.RoundSpend, 0, len(spent))
	for userID, coins := range spent {
		spends = append(spends, domain.RoundSpend{UserID: userID, Coins: coins})
	}
	slices.SortFunc(spends, func(a, b domain.RoundSpend) int {
		return strings.Compare(a.UserID, b.UserID)
	})

	return spends, nil
}

// Totals sums the whole ledger and all wallet balances.
func (r *LedgerEntryRepository) Totals(ctx context.Context) (domain.LedgerTotals, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var totals domain.LedgerTotals
	for _, e := range r.store.entries {
		totals.EntryCount++
		if e.Amount > 0 {
			totals.Credits += e.Amount
		} else {
			totals.Debits -= e.Amount
		}
	}
	for _, w := range r.store.wallets {
		totals.WalletTotal += w.Balance
	}

	return totals, nil
}
