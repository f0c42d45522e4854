package domain

import "errors"

var (
	// Ledger errors
	ErrInsufficientBalance = errors.New("insufficient coin balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidReason       = errors.New("invalid ledger entry reason")
	ErrDuplicateEntry      = errors.New("ledger entry with this idempotency key already exists")
	ErrUserNotFound        = errors.New("user has no ledger history")
	ErrEntryNotFound       = errors.New("ledger entry not found")

	// Earning errors
	ErrEventOutOfWindow  = errors.New("event time is outside the accepted window")
	ErrMissingExternalID = errors.New("saving event requires an external id")

	// Round errors
	ErrRoundNotFound     = errors.New("lottery round not found")
	ErrInvalidSpec       = errors.New("invalid lottery round spec")
	ErrRoundNotOpen      = errors.New("lottery round is not open for entries")
	ErrInvalidCount      = errors.New("entry count must be at least 1")
	ErrInvalidTransition = errors.New("invalid lottery round status transition")
	ErrNoEntries         = errors.New("lottery round has no entries")
	ErrInvalidWinner     = errors.New("winner holds no entries in this round")
)
