package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validation errors
var (
	ErrInvalidUserID  = errors.New("invalid user ID")
	ErrInvalidRoundID = errors.New("invalid round ID")
	ErrNoteTooLong    = errors.New("note exceeds maximum length")
)

// Validation constants
const (
	MaxUserIDLength    = 128
	MaxRoundNameLength = 255
	MaxNoteLength      = 1024
	MaxEntriesPerOrder = 10000
	MaxPageSize        = 1000
	DefaultPageSize    = 50

	// MaxCoinAmount bounds a single ledger entry, a round's entry cost and its prize
	MaxCoinAmount = 1_000_000_000
)

var userIDRegex = regexp.MustCompile(`^[A-Za-z0-9._:@-]+$`)

// ValidateUserID validates an identity-provider user ID
func ValidateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: cannot be empty", ErrInvalidUserID)
	}

	if len(userID) > MaxUserIDLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, MaxUserIDLength)
	}

	if !userIDRegex.MatchString(userID) {
		return fmt.Errorf("%w: contains forbidden characters", ErrInvalidUserID)
	}

	return nil
}

// ValidateEntryCount validates the number of entries in one purchase
func ValidateEntryCount(count int64) error {
	if count < 1 {
		return ErrInvalidCount
	}

	if count > MaxEntriesPerOrder {
		return fmt.Errorf("%w: at most %d entries per purchase", ErrInvalidCount, MaxEntriesPerOrder)
	}

	return nil
}

// ValidateNote validates an adjustment note
func ValidateNote(note string) error {
	if len(note) > MaxNoteLength {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrNoteTooLong, len(note), MaxNoteLength)
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
