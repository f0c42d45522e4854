package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RoundStatus is the lifecycle state of a lottery round.
type RoundStatus string

const (
	RoundStatusOpen              RoundStatus = "open"
	RoundStatusClosedPendingDraw RoundStatus = "closed_pending_draw"
	RoundStatusSettled           RoundStatus = "settled"
)

// IsValid checks if the status is known.
func (s RoundStatus) IsValid() bool {
	switch s {
	case RoundStatusOpen, RoundStatusClosedPendingDraw, RoundStatusSettled:
		return true
	}
	return false
}

// LotteryRound is one lottery instance with its own entry cost and close time.
type LotteryRound struct {
	OpensAt      time.Time
	ClosesAt     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	WinnerUserID *string
	SettledAt    *time.Time
	ID           string
	Name         string
	Category     string
	Status       RoundStatus
	CostPerEntry int64
	PrizeCoins   int64
}

// AcceptsEntries reports whether a purchase at now may be recorded.
func (r *LotteryRound) AcceptsEntries(now time.Time) bool {
	return r.Status == RoundStatusOpen && !now.Before(r.OpensAt) && now.Before(r.ClosesAt)
}

// IsExpired reports whether an open round should move to closed_pending_draw.
func (r *LotteryRound) IsExpired(now time.Time) bool {
	return r.Status == RoundStatusOpen && !r.ClosesAt.After(now)
}

// EntryCost returns the coin cost of count entries. Counts whose cost would overflow
// or exceed MaxCoinAmount are rejected with ErrInvalidCount.
func (r *LotteryRound) EntryCost(count int64) (int64, error) {
	if count < 1 {
		return 0, ErrInvalidCount
	}
	if r.CostPerEntry <= 0 {
		return 0, fmt.Errorf("%w: round %s has cost %d", ErrInvalidSpec, r.ID, r.CostPerEntry)
	}
	if count > math.MaxInt64/r.CostPerEntry || count*r.CostPerEntry > MaxCoinAmount {
		return 0, fmt.Errorf("%w: %d entries at %d coins exceed %d coins", ErrInvalidCount, count, r.CostPerEntry, MaxCoinAmount)
	}
	return count * r.CostPerEntry, nil
}

// RoundSpec describes a round to open.
type RoundSpec struct {
	OpensAt      time.Time
	ClosesAt     time.Time
	Name         string
	Category     string
	CostPerEntry int64
	PrizeCoins   int64
}

// Validate checks the spec before a round is created.
func (s RoundSpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidSpec)
	}
	if len(s.Name) > MaxRoundNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidSpec, MaxRoundNameLength)
	}
	if s.CostPerEntry <= 0 {
		return fmt.Errorf("%w: cost per entry must be positive", ErrInvalidSpec)
	}
	if s.CostPerEntry > MaxCoinAmount {
		return fmt.Errorf("%w: cost per entry exceeds %d coins", ErrInvalidSpec, MaxCoinAmount)
	}
	if !s.ClosesAt.After(s.OpensAt) {
		return fmt.Errorf("%w: closes_at must be after opens_at", ErrInvalidSpec)
	}
	if s.PrizeCoins < 0 {
		return fmt.Errorf("%w: prize coins cannot be negative", ErrInvalidSpec)
	}
	if s.PrizeCoins > MaxCoinAmount {
		return fmt.Errorf("%w: prize exceeds %d coins", ErrInvalidSpec, MaxCoinAmount)
	}
	return nil
}

// EntryRecord aggregates one user's entries in one round.
type EntryRecord struct {
	UserID     string
	RoundID    string
	EntryCount int64
}

// RoundSpend is the total coins one user spent on entries in a round.
type RoundSpend struct {
	UserID string
	Coins  int64
}

// EntryRecordsFromSpend converts per-user spend into entry counts at the round's cost.
// Users whose spend buys no whole entry are left out. Records come back sorted by user ID.
func EntryRecordsFromSpend(roundID string, costPerEntry int64, spends []RoundSpend) []EntryRecord {
	records := make([]EntryRecord, 0, len(spends))
	for _, s := range spends {
		if s.Coins <= 0 || costPerEntry <= 0 {
			continue
		}
		count := s.Coins / costPerEntry
		if count == 0 {
			continue
		}
		records = append(records, EntryRecord{
			UserID:     s.UserID,
			RoundID:    roundID,
			EntryCount: count,
		})
	}
	return SortEntryRecords(records)
}
