package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/infrastructure/metrics"
)

// DefaultSpec runs the round sweep twice a minute.
const DefaultSpec = "@every 30s"

const jobName = "round_sweep"

// RoundCloser closes rounds whose closes_at has passed.
type RoundCloser interface {
	CloseExpiredRounds(ctx context.Context, now time.Time) ([]string, error)
}

// DueDrawer draws every round awaiting its draw.
type DueDrawer interface {
	DrawDue(ctx context.Context) ([]*domain.DrawResult, error)
}

// Scheduler periodically closes expired rounds and draws them.
// Both steps are idempotent, so overlapping or repeated runs are harmless.
type Scheduler struct {
	cron    *cron.Cron
	closer  RoundCloser
	drawer  DueDrawer
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
	timeout time.Duration

	mu  sync.Mutex
	ctx context.Context
}

// Config for Scheduler.
type Config struct {
	Spec    string
	Closer  RoundCloser
	Drawer  DueDrawer
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
	Timeout time.Duration // per-run deadline
}

// New validates the schedule and registers the sweep job.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Minute
	}

	logger := cfg.Logger.With().Str("component", "scheduler").Logger()
	cronLogger := cronLogger{logger: logger}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		closer:  cfg.Closer,
		drawer:  cfg.Drawer,
		metrics: cfg.Metrics,
		logger:  logger,
		now:     time.Now,
		timeout: cfg.Timeout,
		ctx:     context.Background(),
	}

	if _, err := s.cron.AddFunc(cfg.Spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Spec, err)
	}

	return s, nil
}

// Start runs the schedule until ctx is cancelled, then waits for a running sweep to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.Info().Msg("scheduler started")
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("round sweep failed")
	}
}

// RunOnce closes expired rounds and then draws every round pending a draw.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	closed, closeErr := s.closer.CloseExpiredRounds(ctx, s.now())
	if closeErr != nil {
		closeErr = fmt.Errorf("close expired rounds: %w", closeErr)
	}

	// draws still run when closing failed; rounds closed earlier are pending too
	results, drawErr := s.drawer.DrawDue(ctx)
	if drawErr != nil {
		drawErr = fmt.Errorf("draw due rounds: %w", drawErr)
	}

	err := errors.Join(closeErr, drawErr)
	s.observe(err)

	s.logger.Debug().
		Int("closed", len(closed)).
		Int("drawn", len(results)).
		Msg("round sweep finished")

	return err
}

func (s *Scheduler) observe(err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.SchedulerRuns.WithLabelValues(jobName, status).Inc()
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
