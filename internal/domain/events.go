package domain

import "time"

// Event types
const (
	EventTypeCoinsCredited = "coins.credited"
	EventTypeCoinsDebited  = "coins.debited"
	EventTypeRoundOpened   = "round.opened"
	EventTypeRoundClosed   = "round.closed"
	EventTypeRoundSettled  = "round.settled"
)

// Aggregate types
const (
	AggregateTypeWallet = "wallet"
	AggregateTypeRound  = "round"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// LedgerEntryPayload builds the outbox payload for a ledger entry.
func LedgerEntryPayload(e *LedgerEntry) map[string]any {
	payload := map[string]any{
		"entry_id":       e.ID,
		"user_id":        e.UserID,
		"amount":         e.Amount,
		"reason":         string(e.Reason),
		"balance_before": e.BalanceBefore,
		"balance_after":  e.BalanceAfter,
		"occurred_at":    e.OccurredAt.Format(time.RFC3339Nano),
	}
	if e.RoundID != nil {
		payload["round_id"] = *e.RoundID
	}
	return payload
}

// RoundPayload builds the outbox payload for a round state change.
func RoundPayload(r *LotteryRound) map[string]any {
	payload := map[string]any{
		"round_id":       r.ID,
		"name":           r.Name,
		"category":       r.Category,
		"status":         string(r.Status),
		"cost_per_entry": r.CostPerEntry,
		"closes_at":      r.ClosesAt.Format(time.RFC3339Nano),
	}
	if r.WinnerUserID != nil {
		payload["winner_user_id"] = *r.WinnerUserID
	}
	return payload
}
