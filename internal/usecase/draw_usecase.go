package usecase

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/infrastructure/metrics"
)

// RandSource returns the random generator used for one round's draw.
type RandSource func(roundID string) *rand.Rand

// NewSecureRandSource seeds a fresh PCG generator from crypto/rand for every draw.
func NewSecureRandSource() RandSource {
	return func(string) *rand.Rand {
		var seed [16]byte
		if _, err := crand.Read(seed[:]); err != nil {
			// crypto/rand does not fail on supported platforms
			panic(fmt.Sprintf("read random seed: %v", err))
		}
		return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:])))
	}
}

// NewSeededRandSource returns a deterministic source; the same seed and round always draw the same winner.
func NewSeededRandSource(seed uint64) RandSource {
	return func(roundID string) *rand.Rand {
		var stream uint64
		for _, b := range []byte(roundID) {
			stream = stream*31 + uint64(b)
		}
		return rand.New(rand.NewPCG(seed, stream))
	}
}

// DrawUseCase selects and records lottery winners.
type DrawUseCase struct {
	txManager TransactionManager
	roundRepo RoundRepository
	lottery   *LotteryUseCase
	ledger    *LedgerUseCase
	cache     Cache
	rng       RandSource
	retrier   Retrier
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	group     singleflight.Group
}

// NewDrawUseCase creates a new DrawUseCase. cache may be nil.
func NewDrawUseCase(
	txManager TransactionManager,
	roundRepo RoundRepository,
	lottery *LotteryUseCase,
	ledger *LedgerUseCase,
	cache Cache,
	rng RandSource,
	retrier Retrier,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *DrawUseCase {
	if rng == nil {
		rng = NewSecureRandSource()
	}

	return &DrawUseCase{
		txManager: txManager,
		roundRepo: roundRepo,
		lottery:   lottery,
		ledger:    ledger,
		cache:     cache,
		rng:       rng,
		retrier:   retrier,
		metrics:   metrics,
		logger:    logger,
	}
}

// Draw settles a closed round, picking a winner with probability proportional to entries.
// Drawing an already settled round returns the recorded outcome without drawing again.
func (uc *DrawUseCase) Draw(ctx context.Context, roundID string) (*domain.DrawResult, error) {
	if roundID == "" {
		return nil, domain.ErrInvalidRoundID
	}

	if cached, ok := uc.cached(ctx, roundID); ok {
		return cached, nil
	}

	// the flight outlives any one caller
	ch := uc.group.DoChan(roundID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DrawTimeout)
		defer cancel()
		return uc.draw(flightCtx, roundID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result := *res.Val.(*domain.DrawResult)
		return &result, nil
	}
}

// DrawDue draws every round waiting in closed_pending_draw. One failing round does not stop the others.
func (uc *DrawUseCase) DrawDue(ctx context.Context) ([]*domain.DrawResult, error) {
	rounds, err := uc.roundRepo.List(ctx, domain.RoundStatusClosedPendingDraw, domain.MaxPageSize, 0)
	if err != nil {
		return nil, err
	}

	var (
		results []*domain.DrawResult
		errs    []error
	)
	for _, round := range rounds {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		result, err := uc.Draw(ctx, round.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("draw round %s: %w", round.ID, err))
			continue
		}
		results = append(results, result)
	}

	return results, errors.Join(errs...)
}

func (uc *DrawUseCase) draw(ctx context.Context, roundID string) (*domain.DrawResult, error) {
	start := time.Now()

	var (
		result *domain.DrawResult
		round  *domain.LotteryRound
	)
	err := runWithRetry(ctx, uc.retrier, func() error {
		var err error
		result, round, err = uc.settle(ctx, roundID)
		return err
	})
	if err != nil {
		uc.lottery.logInvariant(err, roundID)
		return nil, err
	}

	if !result.Replayed {
		uc.lottery.observeSettlement(result.WinnerUserID)
		if uc.metrics != nil {
			uc.metrics.DrawDuration.Observe(time.Since(start).Seconds())
		}

		event := uc.logger.Info().
			Str("round_id", roundID).
			Int64("total_entries", result.TotalEntries).
			Int("participants", result.Participants)
		if result.WinnerUserID != nil {
			event = event.Str("winner_user_id", *result.WinnerUserID)
		}
		event.Msg("lottery round drawn")
	}

	if err := uc.payout(ctx, round, result); err != nil {
		return nil, err
	}

	uc.store(ctx, result)
	return result, nil
}

// settle locks the round and either replays its recorded outcome or draws and records a new one.
func (uc *DrawUseCase) settle(ctx context.Context, roundID string) (*domain.DrawResult, *domain.LotteryRound, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	round, err := uc.roundRepo.GetByIDForUpdate(txCtx, tx, roundID)
	if err != nil {
		return nil, nil, err
	}

	closedNow := false
	if round.Status == domain.RoundStatusOpen {
		now := uc.lottery.now()
		if !round.IsExpired(now) {
			return nil, nil, fmt.Errorf("%w: round %s is still open", domain.ErrInvalidTransition, round.ID)
		}
		// expired but not yet swept
		if err := uc.lottery.closeTx(txCtx, tx, round, now); err != nil {
			return nil, nil, err
		}
		closedNow = true
	}

	records, err := uc.lottery.entryRecordsTx(txCtx, tx, round)
	if err != nil {
		return nil, nil, err
	}

	result := &domain.DrawResult{
		RoundID:      round.ID,
		TotalEntries: domain.TotalEntries(records),
		Participants: len(records),
		State:        domain.DrawStateSettled,
	}

	if round.Status == domain.RoundStatusSettled {
		result.WinnerUserID = round.WinnerUserID
		result.NoEntries = round.WinnerUserID == nil
		result.Replayed = true
		return result, round, nil
	}

	var winner *string
	if result.TotalEntries > 0 {
		w, err := domain.SelectWinner(records, uc.rng(round.ID))
		if err != nil {
			return nil, nil, err
		}
		winner = &w
	} else {
		result.NoEntries = true
	}
	result.State = domain.DrawStateDrawn

	if err := uc.lottery.SettleTx(txCtx, tx, round, winner, records); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, nil, err
	}

	if closedNow && uc.metrics != nil {
		uc.metrics.RoundsClosed.Inc()
	}

	result.WinnerUserID = winner
	result.State = domain.DrawStateSettled
	return result, round, nil
}

// payout credits the prize once per round; a repeated attempt finds the payout key taken.
func (uc *DrawUseCase) payout(ctx context.Context, round *domain.LotteryRound, result *domain.DrawResult) error {
	if result.WinnerUserID == nil || round.PrizeCoins <= 0 {
		return nil
	}

	key := domain.PayoutKey(round.ID)
	_, err := uc.ledger.Append(ctx, AppendInput{
		UserID:         *result.WinnerUserID,
		Amount:         round.PrizeCoins,
		Reason:         domain.ReasonLotteryPayout,
		RoundID:        &round.ID,
		IdempotencyKey: &key,
	})
	if errors.Is(err, domain.ErrDuplicateEntry) {
		return nil
	}
	if err != nil {
		uc.logger.Error().Err(err).Str("round_id", round.ID).Msg("lottery payout failed")
		return fmt.Errorf("payout for round %s: %w", round.ID, err)
	}

	if uc.metrics != nil {
		uc.metrics.PayoutCoins.Add(float64(round.PrizeCoins))
	}

	return nil
}

type cachedDrawResult struct {
	WinnerUserID *string `json:"winner_user_id"`
	RoundID      string  `json:"round_id"`
	TotalEntries int64   `json:"total_entries"`
	Participants int     `json:"participants"`
	NoEntries    bool    `json:"no_entries"`
}

func (uc *DrawUseCase) cached(ctx context.Context, roundID string) (*domain.DrawResult, bool) {
	if uc.cache == nil {
		return nil, false
	}

	data, err := uc.cache.Get(ctx, drawResultCacheKey(roundID))
	if err != nil || data == nil {
		return nil, false
	}

	var c cachedDrawResult
	if err := json.Unmarshal(data, &c); err != nil {
		uc.logger.Warn().Err(err).Str("round_id", roundID).Msg("discarding unreadable cached draw result")
		return nil, false
	}

	return &domain.DrawResult{
		WinnerUserID: c.WinnerUserID,
		RoundID:      c.RoundID,
		TotalEntries: c.TotalEntries,
		Participants: c.Participants,
		NoEntries:    c.NoEntries,
		State:        domain.DrawStateSettled,
		Replayed:     true,
	}, true
}

func (uc *DrawUseCase) store(ctx context.Context, result *domain.DrawResult) {
	if uc.cache == nil {
		return
	}

	data, err := json.Marshal(cachedDrawResult{
		WinnerUserID: result.WinnerUserID,
		RoundID:      result.RoundID,
		TotalEntries: result.TotalEntries,
		Participants: result.Participants,
		NoEntries:    result.NoEntries,
	})
	if err != nil {
		return
	}

	if err := uc.cache.Set(ctx, drawResultCacheKey(result.RoundID), data, DrawResultTTL); err != nil {
		uc.logger.Warn().Err(err).Str("round_id", result.RoundID).Msg("failed to cache draw result")
	}
}
