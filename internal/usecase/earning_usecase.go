package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/infrastructure/metrics"
)

// EarningUseCase turns login and saving events into deduplicated ledger credits.
type EarningUseCase struct {
	ledger   *LedgerUseCase
	rules    domain.EarningRules
	dedup    DedupStore
	location *time.Location
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEarningUseCase creates a new EarningUseCase. dedup may be nil; the ledger's unique
// idempotency keys stay authoritative either way.
func NewEarningUseCase(
	ledger *LedgerUseCase,
	rules domain.EarningRules,
	dedup DedupStore,
	location *time.Location,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *EarningUseCase {
	if location == nil {
		location = time.UTC
	}

	return &EarningUseCase{
		ledger:   ledger,
		rules:    rules,
		dedup:    dedup,
		location: location,
		metrics:  metrics,
		logger:   logger,
		now:      systemClock,
	}
}

// WithClock replaces the clock used to stamp and bound events.
func (uc *EarningUseCase) WithClock(now func() time.Time) *EarningUseCase {
	uc.now = now
	return uc
}

// CreditResult is the outcome of an earning event.
type CreditResult struct {
	Entry    *domain.LedgerEntry
	Coins    int64
	Credited bool
}

// SavingEvent is a saving reported by the financial-data ingestion boundary.
type SavingEvent struct {
	OccurredAt time.Time
	UserID     string
	ExternalID string
	Amount     decimal.Decimal
}

// Rules returns the configured earning rules.
func (uc *EarningUseCase) Rules() domain.EarningRules {
	return uc.rules
}

// RecordLogin credits the daily login reward once per user per calendar day in the reward time zone.
// Logins older than LoginMaxAge or stamped in the future are rejected.
func (uc *EarningUseCase) RecordLogin(ctx context.Context, userID string, at time.Time) (*CreditResult, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	now := uc.now()
	if at.IsZero() {
		at = now
	}
	if at.Before(now.Add(-LoginMaxAge)) || at.After(now.Add(EventClockSkew)) {
		return nil, fmt.Errorf("%w: login at %s", domain.ErrEventOutOfWindow, at.Format(time.RFC3339))
	}

	key := domain.LoginKey(userID, at, uc.location)

	claimed := uc.claim(ctx, key)
	if !claimed {
		existing, err := uc.ledger.GetByIdempotencyKey(ctx, key)
		if err == nil {
			uc.observeDuplicate(domain.ReasonLogin)
			return &CreditResult{Entry: existing}, nil
		}
		if !errors.Is(err, domain.ErrEntryNotFound) {
			return nil, err
		}
		// claimed elsewhere but not yet in the ledger; let the unique key decide
	}

	coins := uc.rules.OnLogin(userID)
	result, err := uc.credit(ctx, AppendInput{
		UserID:         userID,
		Amount:         coins,
		Reason:         domain.ReasonLogin,
		IdempotencyKey: &key,
		OccurredAt:     &at,
	})
	if err != nil && claimed {
		uc.release(ctx, key)
	}

	return result, err
}

// RecordSaving credits coins for a saving, once per external ID. Savings worth zero coins are
// acknowledged without an entry.
func (uc *EarningUseCase) RecordSaving(ctx context.Context, event SavingEvent) (*CreditResult, error) {
	if err := domain.ValidateUserID(event.UserID); err != nil {
		return nil, err
	}
	if event.ExternalID == "" {
		return nil, domain.ErrMissingExternalID
	}
	if event.OccurredAt.After(uc.now().Add(EventClockSkew)) {
		return nil, fmt.Errorf("%w: saving at %s", domain.ErrEventOutOfWindow, event.OccurredAt.Format(time.RFC3339))
	}

	coins := uc.rules.OnSaving(event.UserID, event.Amount)
	if coins <= 0 {
		return &CreditResult{}, nil
	}

	key := domain.SavingKey(event.ExternalID)
	input := AppendInput{
		UserID:         event.UserID,
		Amount:         coins,
		Reason:         domain.ReasonSaving,
		IdempotencyKey: &key,
	}
	if !event.OccurredAt.IsZero() {
		input.OccurredAt = &event.OccurredAt
	}

	return uc.credit(ctx, input)
}

func (uc *EarningUseCase) credit(ctx context.Context, input AppendInput) (*CreditResult, error) {
	entry, err := uc.ledger.Append(ctx, input)
	if errors.Is(err, domain.ErrDuplicateEntry) && input.IdempotencyKey != nil {
		existing, getErr := uc.ledger.GetByIdempotencyKey(ctx, *input.IdempotencyKey)
		if getErr != nil {
			return nil, getErr
		}
		uc.observeDuplicate(input.Reason)
		return &CreditResult{Entry: existing}, nil
	}
	if err != nil {
		return nil, err
	}

	return &CreditResult{Entry: entry, Coins: entry.Amount, Credited: true}, nil
}

// claim reports whether this call owns the key. Dedup store failures fall through to the ledger.
func (uc *EarningUseCase) claim(ctx context.Context, key string) bool {
	if uc.dedup == nil {
		return true
	}

	ok, err := uc.dedup.Claim(ctx, key, LoginDedupTTL)
	if err != nil {
		uc.logger.Warn().Err(err).Str("key", key).Msg("dedup store unavailable, relying on ledger key")
		return true
	}

	return ok
}

func (uc *EarningUseCase) release(ctx context.Context, key string) {
	if uc.dedup == nil {
		return
	}

	if err := uc.dedup.Release(ctx, key); err != nil {
		uc.logger.Warn().Err(err).Str("key", key).Msg("failed to release dedup key")
	}
}

func (uc *EarningUseCase) observeDuplicate(reason domain.Reason) {
	if uc.metrics != nil {
		uc.metrics.DuplicateEntries.WithLabelValues(string(reason)).Inc()
	}
}
