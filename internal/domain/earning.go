package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Default earning settings.
const (
	DefaultLoginReward = 5
	DefaultSavingRate  = "0.1"
)

// EarningRules maps external events to coin credits. It holds no state.
type EarningRules struct {
	SavingRate  decimal.Decimal
	LoginReward int64
}

// NewEarningRules creates rules, falling back to defaults for unset values.
func NewEarningRules(loginReward int64, savingRate decimal.Decimal) EarningRules {
	if loginReward <= 0 {
		loginReward = DefaultLoginReward
	}
	if savingRate.IsZero() {
		savingRate = decimal.RequireFromString(DefaultSavingRate)
	}
	return EarningRules{LoginReward: loginReward, SavingRate: savingRate}
}

// OnLogin returns the coins credited for one login.
func (r EarningRules) OnLogin(userID string) int64 {
	return r.LoginReward
}

// OnSaving returns floor(amount * rate) coins for a saving. Non-positive savings earn nothing.
func (r EarningRules) OnSaving(userID string, amount decimal.Decimal) int64 {
	if !amount.IsPositive() || !r.SavingRate.IsPositive() {
		return 0
	}
	return amount.Mul(r.SavingRate).Floor().IntPart()
}

// LoginKey is the daily dedup key for a login credit.
func LoginKey(userID string, at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf("%s:%s:%s", ReasonLogin, userID, at.In(loc).Format(time.DateOnly))
}

// SavingKey is the dedup key for an externally identified saving event.
func SavingKey(externalID string) string {
	return fmt.Sprintf("%s:%s", ReasonSaving, externalID)
}

// PayoutKey is the dedup key for a round's prize payout.
func PayoutKey(roundID string) string {
	return fmt.Sprintf("payout:%s", roundID)
}
