package dto

import (
	"time"

	"github.com/iho/coinledger/internal/usecase"
)

// UserReconciliationResponse compares a wallet with its ledger sum.
type UserReconciliationResponse struct {
	CheckedAt     time.Time `json:"checked_at"`
	UserID        string    `json:"user_id"`
	WalletBalance int64     `json:"wallet_balance"`
	LedgerBalance int64     `json:"ledger_balance"`
	Difference    int64     `json:"difference"`
	IsReconciled  bool      `json:"is_reconciled"`
	Negative      bool      `json:"negative"`
}

// UserReconciliationFromUseCase converts a user reconciliation to response.
func UserReconciliationFromUseCase(r *usecase.UserReconciliation) *UserReconciliationResponse {
	return &UserReconciliationResponse{
		CheckedAt:     r.CheckedAt,
		UserID:        r.UserID,
		WalletBalance: r.WalletBalance,
		LedgerBalance: r.LedgerBalance,
		Difference:    r.Difference,
		IsReconciled:  r.IsReconciled,
		Negative:      r.Negative,
	}
}

// RoundReconciliationResponse checks a round's entry debits.
type RoundReconciliationResponse struct {
	CheckedAt       time.Time `json:"checked_at"`
	RoundID         string    `json:"round_id"`
	Status          string    `json:"status"`
	MisalignedUsers []string  `json:"misaligned_users"`
	CostPerEntry    int64     `json:"cost_per_entry"`
	TotalCoins      int64     `json:"total_coins"`
	TotalEntries    int64     `json:"total_entries"`
	Participants    int       `json:"participants"`
	IsReconciled    bool      `json:"is_reconciled"`
}

// RoundReconciliationFromUseCase converts a round reconciliation to response.
func RoundReconciliationFromUseCase(r *usecase.RoundReconciliation) *RoundReconciliationResponse {
	misaligned := r.MisalignedUsers
	if misaligned == nil {
		misaligned = []string{}
	}
	return &RoundReconciliationResponse{
		CheckedAt:       r.CheckedAt,
		RoundID:         r.RoundID,
		Status:          string(r.Status),
		MisalignedUsers: misaligned,
		CostPerEntry:    r.CostPerEntry,
		TotalCoins:      r.TotalCoins,
		TotalEntries:    r.TotalEntries,
		Participants:    r.Participants,
		IsReconciled:    r.IsReconciled,
	}
}

// LedgerTotalsResponse summarizes the whole ledger.
type LedgerTotalsResponse struct {
	Credits     int64 `json:"credits"`
	Debits      int64 `json:"debits"`
	Net         int64 `json:"net"`
	EntryCount  int64 `json:"entry_count"`
	WalletTotal int64 `json:"wallet_total"`
}

// ReconciliationReportResponse is a full ledger check.
type ReconciliationReportResponse struct {
	CheckedAt         time.Time                     `json:"checked_at"`
	Discrepancies     []*UserReconciliationResponse `json:"discrepancies"`
	Totals            LedgerTotalsResponse          `json:"totals"`
	TotalWallets      int                           `json:"total_wallets"`
	ReconciledWallets int                           `json:"reconciled_wallets"`
	LedgerConsistent  bool                          `json:"ledger_consistent"`
}

// ReportFromUseCase converts a reconciliation report to response.
func ReportFromUseCase(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	resp := &ReconciliationReportResponse{
		CheckedAt:     r.CheckedAt,
		Discrepancies: make([]*UserReconciliationResponse, len(r.Discrepancies)),
		Totals: LedgerTotalsResponse{
			Credits:     r.Totals.Credits,
			Debits:      r.Totals.Debits,
			Net:         r.Totals.Net(),
			EntryCount:  r.Totals.EntryCount,
			WalletTotal: r.Totals.WalletTotal,
		},
		TotalWallets:      r.TotalWallets,
		ReconciledWallets: r.ReconciledWallets,
		LedgerConsistent:  r.LedgerConsistent,
	}
	for i, d := range r.Discrepancies {
		resp.Discrepancies[i] = UserReconciliationFromUseCase(d)
	}
	return resp
}
