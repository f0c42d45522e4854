package domain

import (
	"math/rand/v2"
	"slices"
	"strings"
)

// DrawState tracks a round through the draw.
type DrawState string

const (
	DrawStateNotDrawn DrawState = "not_drawn"
	DrawStateDrawn    DrawState = "drawn"
	DrawStateSettled  DrawState = "settled"
)

// DrawResult is the recorded outcome of a round's draw.
type DrawResult struct {
	WinnerUserID *string
	RoundID      string
	State        DrawState
	TotalEntries int64
	Participants int
	Replayed     bool
	NoEntries    bool
}

// TotalEntries sums entry counts across records.
func TotalEntries(records []EntryRecord) int64 {
	var total int64
	for _, r := range records {
		total += r.EntryCount
	}
	return total
}

// SortEntryRecords orders records by user ID so that a seeded draw is reproducible.
func SortEntryRecords(records []EntryRecord) []EntryRecord {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b EntryRecord) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return sorted
}

// SelectWinner picks one user with probability proportional to their entry count.
// The same records and the same source state always yield the same winner.
func SelectWinner(records []EntryRecord, rng *rand.Rand) (string, error) {
	sorted := SortEntryRecords(records)

	total := TotalEntries(sorted)
	if total <= 0 {
		return "", ErrNoEntries
	}

	ticket := rng.Int64N(total)
	for _, r := range sorted {
		if r.EntryCount <= 0 {
			continue
		}
		if ticket < r.EntryCount {
			return r.UserID, nil
		}
		ticket -= r.EntryCount
	}

	// unreachable while total matches the records
	return "", ErrNoEntries
}

// HasEntries reports whether userID holds at least one entry.
func HasEntries(records []EntryRecord, userID string) bool {
	for _, r := range records {
		if r.UserID == userID && r.EntryCount > 0 {
			return true
		}
	}
	return false
}
