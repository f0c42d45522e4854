package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/infrastructure/postgres/generated"
	"github.com/iho/coinledger/internal/usecase"
)

// LedgerEntryRepository implements usecase.LedgerEntryRepository.
type LedgerEntryRepository struct {
	queries *generated.Queries
}

// NewLedgerEntryRepository creates a new LedgerEntryRepository.
func NewLedgerEntryRepository(db generated.DBTX) *LedgerEntryRepository {
	return &LedgerEntryRepository{
		queries: generated.New(db),
	}
}

// Create inserts an entry and sets its store-assigned ID.
func (r *LedgerEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	queries, err := txQueries(tx)
	if err != nil {
		return err
	}

	id, err := queries.CreateLedgerEntry(ctx, generated.CreateLedgerEntryParams{
		UserID:         entry.UserID,
		Amount:         entry.Amount,
		Reason:         string(entry.Reason),
		RoundID:        optionalText(entry.RoundID),
		IdempotencyKey: optionalText(entry.IdempotencyKey),
		Note:           entry.Note,
		BalanceBefore:  entry.BalanceBefore,
		BalanceAfter:   entry.BalanceAfter,
		OccurredAt:     timeToPgTimestamptz(entry.OccurredAt),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateEntry, derefKey(entry.IdempotencyKey))
		}
		return err
	}

	entry.ID = id
	return nil
}

// GetByIdempotencyKey retrieves the entry recorded under key.
func (r *LedgerEntryRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	row, err := r.queries.GetLedgerEntryByIdempotencyKey(ctx, pgtype.Text{String: key, Valid: true})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}

		return nil, err
	}

	return rowToLedgerEntry(row), nil
}

// SumByUser returns the authoritative balance, zero for users without entries.
func (r *LedgerEntryRepository) SumByUser(ctx context.Context, userID string) (int64, error) {
	return r.queries.SumLedgerEntriesByUser(ctx, userID)
}

// ListByUser pages entries in (occurred_at, id) order starting after the cursor.
func (r *LedgerEntryRepository) ListByUser(ctx context.Context, userID string, filter domain.EntryFilter, after *domain.EntryCursor, limit int) ([]*domain.LedgerEntry, error) {
	params := generated.ListLedgerEntriesByUserParams{
		UserID:  userID,
		Reason:  textOrNull(string(filter.Reason)),
		RoundID: textOrNull(filter.RoundID),
		FromAt:  optionalTimestamptz(filter.From),
		ToAt:    optionalTimestamptz(filter.To),
		Limit:   int32(limit),
	}
	if after != nil {
		params.AfterOccurredAt = timeToPgTimestamptz(after.OccurredAt)
		params.AfterID = after.ID
	}

	rows, err := r.queries.ListLedgerEntriesByUser(ctx, params)
	if err != nil {
		return nil, err
	}

	entries := make([]*domain.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, rowToLedgerEntry(row))
	}

	return entries, nil
}

// SpendByRound sums lottery_entry debits per user. A non-nil tx also sees its own uncommitted entries.
func (r *LedgerEntryRepository) SpendByRound(ctx context.Context, tx usecase.Transaction, roundID string) ([]domain.RoundSpend, error) {
	queries := r.queries
	if tx != nil {
		var err error
		if queries, err = txQueries(tx); err != nil {
			return nil, err
		}
	}

	rows, err := queries.SpendByRound(ctx, pgtype.Text{String: roundID, Valid: true})
	if err != nil {
		return nil, err
	}

	spends := make([]domain.RoundSpend, 0, len(rows))
	for _, row := range rows {
		spends = append(spends, domain.RoundSpend{UserID: row.UserID, Coins: row.Coins})
	}

	return spends, nil
}

// Totals summarizes credits, debits and wallet balances across the ledger.
func (r *LedgerEntryRepository) Totals(ctx context.Context) (domain.LedgerTotals, error) {
	row, err := r.queries.GetLedgerTotals(ctx)
	if err != nil {
		return domain.LedgerTotals{}, err
	}

	return domain.LedgerTotals{
		Credits:     row.Credits,
		Debits:      row.Debits,
		EntryCount:  row.EntryCount,
		WalletTotal: row.WalletTotal,
	}, nil
}

func rowToLedgerEntry(row generated.LedgerEntry) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:             row.ID,
		UserID:         row.UserID,
		Amount:         row.Amount,
		Reason:         domain.Reason(row.Reason),
		RoundID:        textPtr(row.RoundID),
		IdempotencyKey: textPtr(row.IdempotencyKey),
		Note:           row.Note,
		BalanceBefore:  row.BalanceBefore,
		BalanceAfter:   row.BalanceAfter,
		OccurredAt:     row.OccurredAt.Time,
	}
}

func derefKey(key *string) string {
	if key == nil {
		return ""
	}
	return *key
}
