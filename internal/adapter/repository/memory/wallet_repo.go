package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/usecase"
)

// WalletRepository implements usecase.WalletRepository.
type WalletRepository struct {
	store *Store
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(store *Store) *WalletRepository {
	return &WalletRepository{store: store}
}

// GetForUpdate locks the user's wallet, creating an empty one on first use.
func (r *WalletRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, userID string) (*domain.Wallet, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}

	if err := mtx.acquire(ctx, walletLockKey(userID)); err != nil {
		return nil, err
	}

	if w, ok := mtx.wallets[userID]; ok {
		return cloneWallet(w), nil
	}

	r.store.mu.RLock()
	committed, ok := r.store.wallets[userID]
	r.store.mu.RUnlock()

	if ok {
		return cloneWallet(committed), nil
	}

	now := time.Now().UTC()
	w := &domain.Wallet{UserID: userID, CreatedAt: now, UpdatedAt: now}
	mtx.wallets[userID] = w
	return cloneWallet(w), nil
}

// UpdateBalance sets the balance of a wallet locked by tx.
func (r *WalletRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, userID string, balance int64, updatedAt time.Time) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}

	if _, ok := mtx.held[walletLockKey(userID)]; !ok {
		return domain.ErrUserNotFound
	}

	w, ok := mtx.wallets[userID]
	if !ok {
		r.store.mu.RLock()
		committed, found := r.store.wallets[userID]
		r.store.mu.RUnlock()
		if !found {
			return domain.ErrUserNotFound
		}
		w = cloneWallet(committed)
		mtx.wallets[userID] = w
	}

	w.Balance = balance
	w.Version++
	w.UpdatedAt = updatedAt
	return nil
}

// GetByUserID returns the committed wallet.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	w, ok := r.store.wallets[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneWallet(w), nil
}

// List returns wallets ordered by user ID.
func (r *WalletRepository) List(ctx context.Context, limit, offset int) ([]*domain.Wallet, error) {
	r.store.mu.RLock()
	wallets := make([]*domain.Wallet, 0, len(r.store.wallets))
	for _, w := range r.store.wallets {
		wallets = append(wallets, cloneWallet(w))
	}
	r.store.mu.RUnlock()

	slices.SortFunc(wallets, func(a, b *domain.Wallet) int {
		return strings.Compare(a.UserID, b.UserID)
	})

	return page(wallets, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
