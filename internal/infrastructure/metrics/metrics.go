package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	CoinsCredited        *prometheus.CounterVec
	CoinsDebited         *prometheus.CounterVec
	LedgerEntries        *prometheus.CounterVec
	InsufficientBalance  prometheus.Counter
	DuplicateEntries     *prometheus.CounterVec
	LedgerOpDuration     *prometheus.HistogramVec
	ReconciliationDrifts prometheus.Counter

	// Lottery metrics
	RoundsOpened     prometheus.Counter
	RoundsClosed     prometheus.Counter
	RoundsSettled    *prometheus.CounterVec
	EntriesPurchased prometheus.Counter
	DrawDuration     prometheus.Histogram
	PayoutCoins      prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBRetries *prometheus.CounterVec

	// Redis metrics
	RedisErrors *prometheus.CounterVec

	// Scheduler metrics
	SchedulerRuns *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Outbox metrics
	EventsPublished *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registerer
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates metrics registered on reg
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Ledger metrics
		CoinsCredited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinledger_coins_credited_total",
				Help: "Total coins credited by reason",
			},
			[]string{"reason"},
		),
		CoinsDebited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinledger_coins_debited_total",
				Help: "Total coins debited by reason",
			},
			[]string{"reason"},
		),
		LedgerEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinledger_ledger_entries_total",
				Help: "Total ledger entries appended by reason",
			},
			[]string{"reason"},
		),
		InsufficientBalance: factory.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_insufficient_balance_total",
			Help: "Total debits rejected for insufficient balance",
		}),
		DuplicateEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinledger_duplicate_entries_total",
				Help: "Total credits skipped because their idempotency key was already used",
			},
			[]string{"reason"},
		),
		LedgerOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinledger_ledger_operation_duration_seconds",
				Help:    "Duration of ledger write operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ReconciliationDrifts: factory.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_reconciliation_drifts_total",
			Help: "Total wallets found out of sync with their ledger entries",
		}),

		// Lottery metrics
		RoundsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_rounds_opened_total",
			Help: "Total lottery rounds opened",
		}),
		RoundsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_rounds_closed_total",
			Help: "Total lottery rounds closed for drawing",
		}),
		RoundsSettled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinledger_rounds_settled_total",
				Help: "Total lottery rounds settled by outcome",
			},
			[]string{"outcome"},
		),
		EntriesPurchased: factory.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_entries_purchased_total",
			Help: "Total lottery entry units purchased",
		}),
		DrawDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinledger_draw_duration_seconds",
			Help:    "Duration of lottery draws",
			Buckets: prometheus.DefBuckets,
		}),
		PayoutCoins: factory.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_payout_coins_total",
			Help: "Total coins paid out to lottery winners",
		}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinledger_db_retries_total",
				Help: "Total retried database operations by error code",
			},
			[]string{"code"},
		),

		// Redis metrics
		RedisErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinledger_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Scheduler metrics
		SchedulerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinledger_scheduler_runs_total",
				Help: "Total scheduler job runs by job and status",
			},
			[]string{"job", "status"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),

		// Outbox metrics
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinledger_events_published_total",
				Help: "Total outbox events published by type",
			},
			[]string{"event_type"},
		),
	}
}
