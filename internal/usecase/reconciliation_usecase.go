package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/infrastructure/metrics"
)

// ReconciliationUseCase checks materialized balances and round aggregates against the ledger
type ReconciliationUseCase struct {
	walletRepo WalletRepository
	entryRepo  LedgerEntryRepository
	roundRepo  RoundRepository
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	walletRepo WalletRepository,
	entryRepo LedgerEntryRepository,
	roundRepo RoundRepository,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		roundRepo:  roundRepo,
		metrics:    metrics,
		logger:     logger,
	}
}

// UserReconciliation compares a wallet's running balance with the sum of its entries
type UserReconciliation struct {
	CheckedAt     time.Time
	UserID        string
	WalletBalance int64
	LedgerBalance int64
	Difference    int64
	IsReconciled  bool
	Negative      bool
}

// RoundReconciliation checks that a round's entry debits line up with its cost
type RoundReconciliation struct {
	CheckedAt       time.Time
	RoundID         string
	Status          domain.RoundStatus
	MisalignedUsers []string
	CostPerEntry    int64
	TotalCoins      int64
	TotalEntries    int64
	Participants    int
	IsReconciled    bool
}

// ReconciliationReport summarizes a full ledger check
type ReconciliationReport struct {
	CheckedAt         time.Time
	Discrepancies     []*UserReconciliation
	Totals            domain.LedgerTotals
	TotalWallets      int
	ReconciledWallets int
	LedgerConsistent  bool
}

// ReconcileUser compares the user's wallet row with SUM(entries)
func (uc *ReconciliationUseCase) ReconcileUser(ctx context.Context, userID string) (*UserReconciliation, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	var walletBalance int64
	wallet, err := uc.walletRepo.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		walletBalance = wallet.Balance
	case errors.Is(err, domain.ErrUserNotFound):
	default:
		return nil, err
	}

	ledgerBalance, err := uc.entryRepo.SumByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &UserReconciliation{
		UserID:        userID,
		WalletBalance: walletBalance,
		LedgerBalance: ledgerBalance,
		Difference:    walletBalance - ledgerBalance,
		Negative:      ledgerBalance < 0,
		CheckedAt:     time.Now().UTC(),
	}
	result.IsReconciled = result.Difference == 0 && !result.Negative

	if !result.IsReconciled {
		if uc.metrics != nil {
			uc.metrics.ReconciliationDrifts.Inc()
		}
		uc.logger.Error().
			Str("user_id", userID).
			Int64("wallet_balance", walletBalance).
			Int64("ledger_balance", ledgerBalance).
			Msg("wallet balance drifted from ledger")
	}

	return result, nil
}

// ReconcileRound verifies every user's entry spend in the round is a whole number of entries
func (uc *ReconciliationUseCase) ReconcileRound(ctx context.Context, roundID string) (*RoundReconciliation, error) {
	round, err := uc.roundRepo.GetByID(ctx, roundID)
	if err != nil {
		return nil, err
	}

	spends, err := uc.entryRepo.SpendByRound(ctx, nil, roundID)
	if err != nil {
		return nil, err
	}

	result := &RoundReconciliation{
		RoundID:      round.ID,
		Status:       round.Status,
		CostPerEntry: round.CostPerEntry,
		CheckedAt:    time.Now().UTC(),
	}

	for _, s := range spends {
		result.TotalCoins += s.Coins
		if s.Coins%round.CostPerEntry != 0 {
			result.MisalignedUsers = append(result.MisalignedUsers, s.UserID)
		}
	}

	records := domain.EntryRecordsFromSpend(round.ID, round.CostPerEntry, spends)
	result.TotalEntries = domain.TotalEntries(records)
	result.Participants = len(records)
	result.IsReconciled = len(result.MisalignedUsers) == 0 &&
		result.TotalEntries*round.CostPerEntry == result.TotalCoins

	if round.WinnerUserID != nil && !domain.HasEntries(records, *round.WinnerUserID) {
		result.IsReconciled = false
		uc.logger.Error().Str("round_id", round.ID).Str("winner_user_id", *round.WinnerUserID).Msg("recorded winner holds no entries")
	}

	return result, nil
}

// GenerateReport reconciles every wallet and compares ledger totals with wallet totals
func (uc *ReconciliationUseCase) GenerateReport(ctx context.Context) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		Discrepancies: make([]*UserReconciliation, 0),
		CheckedAt:     time.Now().UTC(),
	}

	for offset := 0; ; offset += domain.MaxPageSize {
		wallets, err := uc.walletRepo.List(ctx, domain.MaxPageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, wallet := range wallets {
			result, err := uc.ReconcileUser(ctx, wallet.UserID)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile user %s: %w", wallet.UserID, err)
			}

			report.TotalWallets++
			if result.IsReconciled {
				report.ReconciledWallets++
			} else {
				report.Discrepancies = append(report.Discrepancies, result)
			}
		}

		if len(wallets) < domain.MaxPageSize {
			break
		}
	}

	totals, err := uc.entryRepo.Totals(ctx)
	if err != nil {
		return nil, err
	}

	report.Totals = totals
	report.LedgerConsistent = totals.Net() == totals.WalletTotal && len(report.Discrepancies) == 0

	return report, nil
}
