package domain

import "time"

// Reason tells why coins moved.
type Reason string

const (
	ReasonLogin         Reason = "login"
	ReasonSaving        Reason = "saving"
	ReasonLotteryEntry  Reason = "lottery_entry"
	ReasonLotteryPayout Reason = "lottery_payout"
	ReasonAdjustment    Reason = "adjustment"
)

var validReasons = map[Reason]bool{
	ReasonLogin:         true,
	ReasonSaving:        true,
	ReasonLotteryEntry:  true,
	ReasonLotteryPayout: true,
	ReasonAdjustment:    true,
}

// IsValid checks if the reason is a known reason.
func (r Reason) IsValid() bool {
	return validReasons[r]
}

// LedgerEntry is one immutable signed coin movement for a user.
// Positive amounts are credits, negative amounts are debits.
type LedgerEntry struct {
	OccurredAt     time.Time
	RoundID        *string
	IdempotencyKey *string
	UserID         string
	Reason         Reason
	Note           string
	ID             int64
	Amount         int64
	BalanceBefore  int64
	BalanceAfter   int64
}

// IsCredit reports whether the entry adds coins.
func (e *LedgerEntry) IsCredit() bool {
	return e.Amount > 0
}

// Wallet is the per-user lock row carrying the running balance.
// The sum of the user's ledger entries is authoritative; Balance must always match it.
type Wallet struct {
	UserID    string
	Balance   int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanAfford reports whether amount coins can be debited without overdraft.
func (w *Wallet) CanAfford(amount int64) bool {
	return amount <= w.Balance
}

// Apply returns the new balance after a signed amount.
func (w *Wallet) Apply(amount int64) int64 {
	return w.Balance + amount
}

// EntryFilter narrows a ledger listing.
type EntryFilter struct {
	Reason  Reason
	RoundID string
	From    *time.Time
	To      *time.Time
}

// Matches reports whether the entry passes the filter.
func (f EntryFilter) Matches(e *LedgerEntry) bool {
	if f.Reason != "" && e.Reason != f.Reason {
		return false
	}
	if f.RoundID != "" && (e.RoundID == nil || *e.RoundID != f.RoundID) {
		return false
	}
	if f.From != nil && e.OccurredAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !e.OccurredAt.Before(*f.To) {
		return false
	}
	return true
}

// EntryCursor is a keyset position in the (occurred_at, id) ordering.
type EntryCursor struct {
	OccurredAt time.Time
	ID         int64
}

// After reports whether e sorts strictly after the cursor.
func (c *EntryCursor) After(e *LedgerEntry) bool {
	if c == nil {
		return true
	}
	if e.OccurredAt.Equal(c.OccurredAt) {
		return e.ID > c.ID
	}
	return e.OccurredAt.After(c.OccurredAt)
}

// LedgerTotals summarizes the whole ledger.
type LedgerTotals struct {
	Credits     int64
	Debits      int64
	EntryCount  int64
	WalletTotal int64
}

// Net returns credits minus debits.
func (t LedgerTotals) Net() int64 {
	return t.Credits - t.Debits
}
