package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/coinledger/internal/adapter/http"
	"github.com/iho/coinledger/internal/adapter/http/handler"
	"github.com/iho/coinledger/internal/adapter/http/middleware"
	"github.com/iho/coinledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/coinledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/coinledger/internal/adapter/repository/redis"
	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/infrastructure/auth"
	"github.com/iho/coinledger/internal/infrastructure/config"
	"github.com/iho/coinledger/internal/infrastructure/eventpublisher"
	"github.com/iho/coinledger/internal/infrastructure/logger"
	"github.com/iho/coinledger/internal/infrastructure/metrics"
	"github.com/iho/coinledger/internal/infrastructure/postgres"
	"github.com/iho/coinledger/internal/infrastructure/redis"
	"github.com/iho/coinledger/internal/infrastructure/scheduler"
	"github.com/iho/coinledger/internal/usecase"
)

const (
	limiterCleanupInterval = time.Minute
	limiterMaxIdle         = 10 * time.Minute
	outboxRetention        = 7 * 24 * time.Hour
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

// storage is the repository set for one storage driver.
type storage struct {
	txManager usecase.TransactionManager
	wallets   usecase.WalletRepository
	entries   usecase.LedgerEntryRepository
	rounds    usecase.RoundRepository
	outbox    usecase.OutboxRepository
	retrier   usecase.Retrier
	pool      *pgxpool.Pool
}

// app is the fully wired service.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	router    http.Handler
	limiter   *middleware.RateLimiter
	scheduler *scheduler.Scheduler
	publisher *eventpublisher.EventPublisher
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) (*storage, func(), error) {
	if cfg.StorageDriver == config.StorageMemory {
		store := memory.NewStore()
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		return &storage{
			txManager: memory.NewTxManager(store),
			wallets:   memory.NewWalletRepository(store),
			entries:   memory.NewLedgerEntryRepository(store),
			rounds:    memory.NewRoundRepository(store),
			outbox:    memory.NewOutboxRepository(store),
		}, func() {}, nil
	}

	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	log.Info().Msg("connected to postgres")

	return &storage{
		txManager: postgresRepo.NewTxManager(pool),
		wallets:   postgresRepo.NewWalletRepository(pool),
		entries:   postgresRepo.NewLedgerEntryRepository(pool),
		rounds:    postgresRepo.NewRoundRepository(pool),
		outbox:    postgresRepo.NewOutboxRepository(pool),
		retrier:   postgresRepo.NewRetrier(log, m),
		pool:      pool,
	}, pool.Close, nil
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*app, error) {
	m := metrics.NewWithRegisterer(reg)
	a := &app{cfg: cfg, logger: log, metrics: m}

	st, closeStorage, err := newStorage(ctx, cfg, log, m)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStorage)
	if !cfg.OutboxEnabled {
		st.outbox = postgresRepo.NewNullOutboxRepository()
	}

	// Redis is optional
	var (
		redisClient *goredis.Client
		cache       usecase.Cache
		dedup       usecase.DedupStore
		idempotency usecase.IdempotencyStore
		publisher   eventpublisher.Publisher = eventpublisher.NewLogPublisher(log)
	)
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL, redis.Options{PoolSize: cfg.RedisPoolSize})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, func() { redisClient.Close() })
		log.Info().Msg("connected to redis")

		cache = redisRepo.NewCache(redisClient, m)
		dedup = redisRepo.NewDedupStore(redisClient)
		idempotency = redisRepo.NewIdempotencyStore(redisClient)
		publisher = eventpublisher.NewRedisPublisher(redisClient, cfg.OutboxChannel)
	}

	rate, err := cfg.SavingRateDecimal()
	if err != nil {
		a.Close()
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		a.Close()
		return nil, err
	}

	rng := usecase.NewSecureRandSource()
	if cfg.DrawSeed != 0 {
		rng = usecase.NewSeededRandSource(cfg.DrawSeed)
		log.Warn().Uint64("seed", cfg.DrawSeed).Msg("draws use a fixed seed")
	}

	// Initialize use cases
	ids := postgresRepo.NewULIDGenerator()
	ledgerUC := usecase.NewLedgerUseCase(st.txManager, st.wallets, st.entries, st.outbox, ids, st.retrier, m, log)
	earningUC := usecase.NewEarningUseCase(ledgerUC, domain.NewEarningRules(cfg.LoginReward, rate), dedup, loc, m, log)
	lotteryUC := usecase.NewLotteryUseCase(st.txManager, st.rounds, st.entries, st.outbox, ids, st.retrier, m, log)
	entryUC := usecase.NewEntryUseCase(st.txManager, st.rounds, ledgerUC, st.retrier, m, log)
	drawUC := usecase.NewDrawUseCase(st.txManager, st.rounds, lotteryUC, ledgerUC, cache, rng, st.retrier, m, log)
	reconUC := usecase.NewReconciliationUseCase(st.wallets, st.entries, st.rounds, m, log)

	// Initialize handlers
	checks := map[string]handler.Pinger{}
	if st.pool != nil {
		checks["postgres"] = st.pool
	}
	if redisClient != nil {
		checks["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	routerCfg := httpAdapter.RouterConfig{
		LedgerHandler:    handler.NewLedgerHandler(ledgerUC, earningUC, reconUC),
		RoundHandler:     handler.NewRoundHandler(lotteryUC, entryUC, drawUC, reconUC),
		HealthHandler:    handler.NewHealthHandler(checks),
		IdempotencyStore: idempotency,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Metrics:          m,
		MetricsHandler:   promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		Logger:           log,
	}
	if cfg.AuthEnabled {
		routerCfg.Verifier = auth.NewJWTManager(cfg.JWTSecret, 0)
	}
	if cfg.RateLimitRPS > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
		routerCfg.RateLimiter = a.limiter
	}
	a.router = httpAdapter.NewRouter(routerCfg)

	if cfg.SchedulerEnabled {
		a.scheduler, err = scheduler.New(scheduler.Config{
			Spec:    cfg.SchedulerSpec,
			Closer:  lotteryUC,
			Drawer:  drawUC,
			Metrics: m,
			Logger:  log,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.OutboxEnabled {
		a.publisher = eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: st.outbox,
			Publisher:  publisher,
			Metrics:    m,
			Logger:     log,
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxInterval,
			Retention:  outboxRetention,
		})
	}

	return a, nil
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	a, err := newApp(ctx, cfg, log, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}
	defer a.Close()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      a.router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Str("storage", cfg.StorageDriver).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if a.scheduler != nil {
		g.Go(func() error { return ignoreCanceled(a.scheduler.Start(gctx)) })
	}
	if a.publisher != nil {
		g.Go(func() error { return ignoreCanceled(a.publisher.Start(gctx)) })
	}
	if a.limiter != nil {
		g.Go(func() error {
			a.cleanupLimiters(gctx)
			return nil
		})
	}

	return g.Wait()
}

// cleanupLimiters drops idle per-client rate limiters until ctx is done.
func (a *app) cleanupLimiters(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.CleanupLimiters(limiterMaxIdle); n > 0 {
				a.logger.Debug().Int("removed", n).Msg("rate limiters cleaned up")
			}
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
