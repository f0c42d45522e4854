package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/iho/coinledger/internal/domain"
)

func systemClock() time.Time {
	return time.Now().UTC()
}

// runWithRetry runs operation once, or through the retrier when one is configured.
func runWithRetry(ctx context.Context, retrier Retrier, operation func() error) error {
	if retrier == nil {
		return operation()
	}
	return retrier.Retry(ctx, operation)
}

func isInsufficientBalance(err error) bool {
	return errors.Is(err, domain.ErrInsufficientBalance)
}

// isInvariantViolation reports errors that signal a broken internal invariant rather than bad input.
func isInvariantViolation(err error) bool {
	return errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrNoEntries) ||
		errors.Is(err, domain.ErrInvalidWinner)
}
