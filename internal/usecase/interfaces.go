package usecase

import (
	"context"
	"time"

	"github.com/iho/coinledger/internal/domain"
)

// WalletRepository defines data access for per-user wallet rows.
type WalletRepository interface {
	// GetForUpdate locks the user's wallet row, creating it with a zero balance if absent.
	GetForUpdate(ctx context.Context, tx Transaction, userID string) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx Transaction, userID string, balance int64, updatedAt time.Time) error
	GetByUserID(ctx context.Context, userID string) (*domain.Wallet, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Wallet, error)
}

// LedgerEntryRepository defines data access for the append-only coin ledger.
type LedgerEntryRepository interface {
	// Create inserts the entry and assigns its ID. A reused idempotency key yields domain.ErrDuplicateEntry.
	Create(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error)
	SumByUser(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string, filter domain.EntryFilter, after *domain.EntryCursor, limit int) ([]*domain.LedgerEntry, error)
	// SpendByRound sums lottery_entry debits per user for a round. tx may be nil.
	SpendByRound(ctx context.Context, tx Transaction, roundID string) ([]domain.RoundSpend, error)
	Totals(ctx context.Context) (domain.LedgerTotals, error)
}

// RoundRepository defines data access for lottery rounds.
type RoundRepository interface {
	Create(ctx context.Context, tx Transaction, round *domain.LotteryRound) error
	GetByID(ctx context.Context, id string) (*domain.LotteryRound, error)
	// GetByIDForShare holds the round against status changes until the transaction ends.
	GetByIDForShare(ctx context.Context, tx Transaction, id string) (*domain.LotteryRound, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.LotteryRound, error)
	// CloseExpired moves every open round with closes_at <= now to closed_pending_draw.
	CloseExpired(ctx context.Context, tx Transaction, now time.Time) ([]*domain.LotteryRound, error)
	// Close moves one expired open round locked by tx to closed_pending_draw.
	Close(ctx context.Context, tx Transaction, id string, now time.Time) error
	UpdateSettlement(ctx context.Context, tx Transaction, id string, winnerUserID *string, settledAt time.Time) error
	List(ctx context.Context, status domain.RoundStatus, limit, offset int) ([]*domain.LotteryRound, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation on transient storage failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// DedupStore is a fast-path claim check in front of the ledger's unique keys.
type DedupStore interface {
	// Claim returns false if the key was already claimed.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
