package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/usecase"
)

// LoginRequest reports a login. At defaults to the server clock.
type LoginRequest struct {
	At *time.Time `json:"at,omitempty"`
}

// SavingRequest reports a saving from the financial-data boundary.
type SavingRequest struct {
	OccurredAt *time.Time      `json:"occurred_at,omitempty"`
	ExternalID string          `json:"external_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// ToUseCaseInput converts to use case input.
func (r *SavingRequest) ToUseCaseInput(userID string) usecase.SavingEvent {
	event := usecase.SavingEvent{
		UserID:     userID,
		ExternalID: r.ExternalID,
		Amount:     r.Amount,
	}
	if r.OccurredAt != nil {
		event.OccurredAt = *r.OccurredAt
	}
	return event
}

// AdjustmentRequest posts a compensating adjustment. Amount is signed.
type AdjustmentRequest struct {
	Note   string `json:"note"`
	Amount int64  `json:"amount"`
}

// OpenRoundRequest opens a lottery round. OpensAt defaults to now.
type OpenRoundRequest struct {
	OpensAt      *time.Time `json:"opens_at,omitempty"`
	ClosesAt     time.Time  `json:"closes_at"`
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	CostPerEntry int64      `json:"cost_per_entry"`
	PrizeCoins   int64      `json:"prize_coins"`
}

// ToDomain converts to a round spec.
func (r *OpenRoundRequest) ToDomain(now time.Time) domain.RoundSpec {
	opensAt := now
	if r.OpensAt != nil {
		opensAt = *r.OpensAt
	}
	return domain.RoundSpec{
		OpensAt:      opensAt,
		ClosesAt:     r.ClosesAt,
		Name:         r.Name,
		Category:     r.Category,
		CostPerEntry: r.CostPerEntry,
		PrizeCoins:   r.PrizeCoins,
	}
}

// PurchaseRequest buys entries for a user in a round.
type PurchaseRequest struct {
	UserID string `json:"user_id"`
	Count  int64  `json:"count"`
}

// CloseExpiredRequest sweeps rounds whose close time passed before At (default now).
type CloseExpiredRequest struct {
	At *time.Time `json:"at,omitempty"`
}
