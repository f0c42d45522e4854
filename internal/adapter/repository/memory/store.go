// Package memory is an in-process storage backend with the same transactional contract
// as the Postgres adapter: row locks held until commit or rollback, writes buffered in the
// transaction and applied atomically on commit.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/usecase"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("memory: transaction already committed or rolled back")

// Store holds committed state.
type Store struct {
	mu      sync.RWMutex
	wallets map[string]*domain.Wallet
	entries []*domain.LedgerEntry
	byKey   map[string]*domain.LedgerEntry
	rounds  map[string]*domain.LotteryRound
	outbox  []*domain.OutboxEvent

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	nextEntryID atomic.Int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		wallets: make(map[string]*domain.Wallet),
		byKey:   make(map[string]*domain.LedgerEntry),
		rounds:  make(map[string]*domain.LotteryRound),
		locks:   make(map[string]chan struct{}),
	}
}

// lock returns the row lock for key, creating it on first use.
func (s *Store) lock(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[key] = l
	}
	return l
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Tx{
		store:   m.store,
		held:    make(map[string]chan struct{}),
		wallets: make(map[string]*domain.Wallet),
		rounds:  make(map[string]*domain.LotteryRound),
	}, nil
}

// Tx buffers writes until Commit.
type Tx struct {
	store *Store
	held  map[string]chan struct{}

	wallets map[string]*domain.Wallet
	entries []*domain.LedgerEntry
	rounds  map[string]*domain.LotteryRound
	outbox  []*domain.OutboxEvent

	done bool
}

// acquire takes the row lock for key unless this transaction already holds it.
func (t *Tx) acquire(ctx context.Context, key string) error {
	if t.done {
		return ErrTxDone
	}

	if _, ok := t.held[key]; ok {
		return nil
	}

	l := t.store.lock(key)
	select {
	case l <- struct{}{}:
		t.held[key] = l
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tx) release() {
	for key, l := range t.held {
		<-l
		delete(t.held, key)
	}
}

// Commit applies buffered writes. A cancelled context rolls the transaction back instead.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	defer t.finish()

	if err := ctx.Err(); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range t.entries {
		if e.IdempotencyKey == nil {
			continue
		}
		if _, ok := s.byKey[*e.IdempotencyKey]; ok {
			return domain.ErrDuplicateEntry
		}
	}

	for id, w := range t.wallets {
		s.wallets[id] = w
	}
	for _, e := range t.entries {
		s.entries = append(s.entries, e)
		if e.IdempotencyKey != nil {
			s.byKey[*e.IdempotencyKey] = e
		}
	}
	for id, r := range t.rounds {
		s.rounds[id] = r
	}
	s.outbox = append(s.outbox, t.outbox...)

	return nil
}

// Rollback discards buffered writes. Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *Tx) finish() {
	t.done = true
	t.release()
	t.wallets = nil
	t.entries = nil
	t.rounds = nil
	t.outbox = nil
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	if w, ok := tx.(interface{ Unwrap() usecase.Transaction }); ok {
		tx = w.Unwrap()
	}
	mtx, ok := tx.(*Tx)
	if !ok || mtx == nil {
		return nil, errors.New("memory: foreign or nil transaction")
	}
	if mtx.done {
		return nil, ErrTxDone
	}
	return mtx, nil
}

func walletLockKey(userID string) string {
	return "wallet:" + userID
}

func roundLockKey(roundID string) string {
	return "round:" + roundID
}

func cloneEntry(e *domain.LedgerEntry) *domain.LedgerEntry {
	c := *e
	return &c
}

func cloneRound(r *domain.LotteryRound) *domain.LotteryRound {
	c := *r
	return &c
}

func cloneWallet(w *domain.Wallet) *domain.Wallet {
	c := *w
	return &c
}
