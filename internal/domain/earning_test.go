package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestEarningRules_OnLogin(t *testing.T) {
	rules := NewEarningRules(0, decimal.Zero)
	if got := rules.OnLogin("u1"); got != DefaultLoginReward {
		t.Fatalf("expected default login reward %d, got %d", DefaultLoginReward, got)
	}

	rules = NewEarningRules(12, decimal.Zero)
	if got := rules.OnLogin("u1"); got != 12 {
		t.Fatalf("expected login reward 12, got %d", got)
	}
}

func TestEarningRules_OnSaving(t *testing.T) {
	rules := NewEarningRules(5, decimal.RequireFromString("0.1"))

	tests := []struct {
		name     string
		amount   decimal.Decimal
		expected int64
	}{
		{name: "exact multiple", amount: decimal.NewFromInt(50), expected: 5},
		{name: "floors fractional coins", amount: decimal.RequireFromString("59.99"), expected: 5},
		{name: "below one coin", amount: decimal.RequireFromString("9.99"), expected: 0},
		{name: "zero saving", amount: decimal.Zero, expected: 0},
		{name: "negative saving", amount: decimal.NewFromInt(-100), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.OnSaving("u1", tt.amount); got != tt.expected {
				t.Errorf("expected %d coins, got %d", tt.expected, got)
			}
		})
	}
}

func TestEarningRules_OnSavingIsPure(t *testing.T) {
	rules := NewEarningRules(5, decimal.RequireFromString("0.25"))
	amount := decimal.RequireFromString("40.00")

	first := rules.OnSaving("u1", amount)
	second := rules.OnSaving("u1", amount)
	if first != second || first != 10 {
		t.Fatalf("expected 10 coins twice, got %d and %d", first, second)
	}
}

func TestLoginKey_UsesCalendarDateInZone(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}

	// 2026-03-02 05:00 UTC is still March 1st in Los Angeles.
	at := time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC)

	if got := LoginKey("u1", at, la); got != "login:u1:2026-03-01" {
		t.Fatalf("unexpected key %s", got)
	}
	if got := LoginKey("u1", at, nil); got != "login:u1:2026-03-02" {
		t.Fatalf("unexpected UTC key %s", got)
	}
}
