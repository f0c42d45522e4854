package domain

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func TestSelectWinner_NoEntries(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	tests := []struct {
		name    string
		records []EntryRecord
	}{
		{name: "nil records", records: nil},
		{name: "zero counts", records: []EntryRecord{{UserID: "a", EntryCount: 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectWinner(tt.records, rng)
			if !errors.Is(err, ErrNoEntries) {
				t.Fatalf("expected ErrNoEntries, got %v", err)
			}
		})
	}
}

func TestSelectWinner_SingleParticipant(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	records := []EntryRecord{{UserID: "only", EntryCount: 3}, {UserID: "nobody", EntryCount: 0}}

	for range 50 {
		winner, err := SelectWinner(records, rng)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if winner != "only" {
			t.Fatalf("expected only, got %s", winner)
		}
	}
}

func TestSelectWinner_DeterministicForSeed(t *testing.T) {
	records := []EntryRecord{
		{UserID: "carol", EntryCount: 2},
		{UserID: "alice", EntryCount: 5},
		{UserID: "bob", EntryCount: 1},
	}
	reordered := []EntryRecord{records[2], records[0], records[1]}

	for seed := uint64(0); seed < 20; seed++ {
		first, err := SelectWinner(records, rand.New(rand.NewPCG(seed, 99)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := SelectWinner(reordered, rand.New(rand.NewPCG(seed, 99)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first != second {
			t.Fatalf("seed %d: winner depends on record order (%s vs %s)", seed, first, second)
		}
	}
}

func TestSelectWinner_ProportionalToEntries(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1337))
	records := []EntryRecord{
		{UserID: "A", EntryCount: 3},
		{UserID: "B", EntryCount: 1},
	}

	const draws = 20000
	wins := 0
	for range draws {
		winner, err := SelectWinner(records, rng)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if winner == "A" {
			wins++
		}
	}

	share := float64(wins) / draws
	if math.Abs(share-0.75) > 0.02 {
		t.Fatalf("expected A to win ~75%% of draws, got %.4f", share)
	}
}

func TestHasEntries(t *testing.T) {
	records := []EntryRecord{{UserID: "a", EntryCount: 2}, {UserID: "b", EntryCount: 0}}

	if !HasEntries(records, "a") {
		t.Error("expected a to hold entries")
	}
	if HasEntries(records, "b") {
		t.Error("expected b to hold no entries")
	}
	if HasEntries(records, "c") {
		t.Error("expected unknown user to hold no entries")
	}
}

func TestTotalEntries(t *testing.T) {
	records := []EntryRecord{{EntryCount: 2}, {EntryCount: 5}}
	if got := TotalEntries(records); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}
