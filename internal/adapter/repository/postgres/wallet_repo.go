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

// WalletRepository implements usecase.WalletRepository.
type WalletRepository struct {
	queries *generated.Queries
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db generated.DBTX) *WalletRepository {
	return &WalletRepository{
		queries: generated.New(db),
	}
}

// GetForUpdate locks the wallet row, inserting an empty wallet first if the user has none.
func (r *WalletRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, userID string) (*domain.Wallet, error) {
	queries, err := txQueries(tx)
	if err != nil {
		return nil, err
	}

	if err := queries.EnsureWallet(ctx, generated.EnsureWalletParams{
		UserID:    userID,
		CreatedAt: timeToPgTimestamptz(time.Now().UTC()),
	}); err != nil {
		return nil, err
	}

	row, err := queries.GetWalletForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}

	return rowToWallet(row), nil
}

// UpdateBalance stores the running balance and bumps the version.
func (r *WalletRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, userID string, balance int64, updatedAt time.Time) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	return queries.UpdateWalletBalance(ctx, generated.UpdateWalletBalanceParams{
		UserID:    userID,
		Balance:   balance,
		UpdatedAt: timeToPgTimestamptz(updatedAt),
	})
}

// GetByUserID retrieves a wallet without locking it.
func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error) {
	row, err := r.queries.GetWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}

		return nil, err
	}

	return rowToWallet(row), nil
}

// List lists wallets ordered by user ID.
func (r *WalletRepository) List(ctx context.Context, limit, offset int) ([]*domain.Wallet, error) {
	rows, err := r.queries.ListWallets(ctx, generated.ListWalletsParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	wallets := make([]*domain.Wallet, 0, len(rows))
	for _, row := range rows {
		wallets = append(wallets, rowToWallet(row))
	}

	return wallets, nil
}

func rowToWallet(row generated.Wallet) *domain.Wallet {
	return &domain.Wallet{
		UserID:    row.UserID,
		Balance:   row.Balance,
		Version:   row.Version,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}
