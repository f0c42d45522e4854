package dto

import (
	"time"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// BalanceResponse is a user's coin balance.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	OccurredAt     time.Time `json:"occurred_at"`
	RoundID        *string   `json:"round_id,omitempty"`
	IdempotencyKey *string   `json:"idempotency_key,omitempty"`
	UserID         string    `json:"user_id"`
	Reason         string    `json:"reason"`
	Note           string    `json:"note,omitempty"`
	ID             int64     `json:"id"`
	Amount         int64     `json:"amount"`
	BalanceBefore  int64     `json:"balance_before"`
	BalanceAfter   int64     `json:"balance_after"`
}

// EntryFromDomain converts a domain entry to response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	if e == nil {
		return nil
	}
	return &EntryResponse{
		OccurredAt:     e.OccurredAt,
		RoundID:        e.RoundID,
		IdempotencyKey: e.IdempotencyKey,
		UserID:         e.UserID,
		Reason:         string(e.Reason),
		Note:           e.Note,
		ID:             e.ID,
		Amount:         e.Amount,
		BalanceBefore:  e.BalanceBefore,
		BalanceAfter:   e.BalanceAfter,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// EntryPageResponse is one keyset page of a user's ledger.
type EntryPageResponse struct {
	Entries    []*EntryResponse `json:"entries"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// CreditResponse is the outcome of an earning event.
type CreditResponse struct {
	Entry    *EntryResponse `json:"entry,omitempty"`
	Coins    int64          `json:"coins"`
	Credited bool           `json:"credited"`
}

// CreditFromUseCase converts a credit result to response.
func CreditFromUseCase(r *usecase.CreditResult) *CreditResponse {
	return &CreditResponse{
		Entry:    EntryFromDomain(r.Entry),
		Coins:    r.Coins,
		Credited: r.Credited,
	}
}

// RoundResponse represents a lottery round in API responses.
type RoundResponse struct {
	OpensAt      time.Time  `json:"opens_at"`
	ClosesAt     time.Time  `json:"closes_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	WinnerUserID *string    `json:"winner_user_id,omitempty"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Category     string     `json:"category,omitempty"`
	Status       string     `json:"status"`
	CostPerEntry int64      `json:"cost_per_entry"`
	PrizeCoins   int64      `json:"prize_coins"`
}

// RoundFromDomain converts a domain round to response.
func RoundFromDomain(r *domain.LotteryRound) *RoundResponse {
	return &RoundResponse{
		OpensAt:      r.OpensAt,
		ClosesAt:     r.ClosesAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		WinnerUserID: r.WinnerUserID,
		SettledAt:    r.SettledAt,
		ID:           r.ID,
		Name:         r.Name,
		Category:     r.Category,
		Status:       string(r.Status),
		CostPerEntry: r.CostPerEntry,
		PrizeCoins:   r.PrizeCoins,
	}
}

// RoundsFromDomain converts domain rounds to responses.
func RoundsFromDomain(rounds []*domain.LotteryRound) []*RoundResponse {
	result := make([]*RoundResponse, len(rounds))
	for i, r := range rounds {
		result[i] = RoundFromDomain(r)
	}
	return result
}

// EntryRecordResponse is one user's entries in a round.
type EntryRecordResponse struct {
	UserID     string `json:"user_id"`
	EntryCount int64  `json:"entry_count"`
}

// RoundEntriesResponse lists a round's entries per user.
type RoundEntriesResponse struct {
	RoundID      string                 `json:"round_id"`
	Entries      []*EntryRecordResponse `json:"entries"`
	TotalEntries int64                  `json:"total_entries"`
}

// RoundEntriesFromDomain converts entry records to response.
func RoundEntriesFromDomain(roundID string, records []domain.EntryRecord) *RoundEntriesResponse {
	resp := &RoundEntriesResponse{
		RoundID: roundID,
		Entries: make([]*EntryRecordResponse, len(records)),
	}
	for i, rec := range records {
		resp.Entries[i] = &EntryRecordResponse{UserID: rec.UserID, EntryCount: rec.EntryCount}
		resp.TotalEntries += rec.EntryCount
	}
	return resp
}

// PurchaseResponse is a committed entry purchase.
type PurchaseResponse struct {
	Entry   *EntryResponse `json:"entry"`
	RoundID string         `json:"round_id"`
	Count   int64          `json:"count"`
	Cost    int64          `json:"cost"`
}

// PurchaseFromUseCase converts a purchase result to response.
func PurchaseFromUseCase(r *usecase.PurchaseResult) *PurchaseResponse {
	resp := &PurchaseResponse{
		Entry: EntryFromDomain(r.Entry),
		Count: r.Count,
		Cost:  r.Cost,
	}
	if r.Round != nil {
		resp.RoundID = r.Round.ID
	}
	return resp
}

// DrawResponse is the outcome of a draw.
type DrawResponse struct {
	WinnerUserID *string `json:"winner_user_id"`
	RoundID      string  `json:"round_id"`
	State        string  `json:"state"`
	TotalEntries int64   `json:"total_entries"`
	Participants int     `json:"participants"`
	Replayed     bool    `json:"replayed"`
	NoEntries    bool    `json:"no_entries"`
}

// DrawFromDomain converts a draw result to response.
func DrawFromDomain(r *domain.DrawResult) *DrawResponse {
	return &DrawResponse{
		WinnerUserID: r.WinnerUserID,
		RoundID:      r.RoundID,
		State:        string(r.State),
		TotalEntries: r.TotalEntries,
		Participants: r.Participants,
		Replayed:     r.Replayed,
		NoEntries:    r.NoEntries,
	}
}

// CloseExpiredResponse lists the rounds a sweep closed.
type CloseExpiredResponse struct {
	Closed []string `json:"closed"`
}
