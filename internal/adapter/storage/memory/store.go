// Package memory is an in-process implementation of every storage port. It
// backs the "memory" storage driver and the end-to-end tests.
//
// A transaction holds the store-wide lock from Begin until Commit or
// Rollback, so transactions are fully serialized. Calls made with a nil tx
// take the lock for the duration of the call. A goroutine that holds a
// transaction must therefore pass it to every repository call until it ends.
package memory

import (
	"context"
	"errors"
	"sync"

	"custodial-wallet/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction does not belong to this store")

// Store holds all ledger state in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex

	users        map[uuid.UUID]*domain.User
	usersByEmail map[string]uuid.UUID

	wallets        map[uuid.UUID]*domain.Wallet
	walletByUser   map[uuid.UUID]uuid.UUID
	walletByNumber map[string]uuid.UUID

	transactions map[string]*domain.Transaction
	txnOrder     []string

	apiKeys      map[uuid.UUID]*domain.APIKey
	apiKeyByHash map[string]uuid.UUID

	idempotency map[string]*domain.IdempotencyLog
	events      []domain.GatewayEvent
	audit       []domain.AuditLog
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:          make(map[uuid.UUID]*domain.User),
		usersByEmail:   make(map[string]uuid.UUID),
		wallets:        make(map[uuid.UUID]*domain.Wallet),
		walletByUser:   make(map[uuid.UUID]uuid.UUID),
		walletByNumber: make(map[string]uuid.UUID),
		transactions:   make(map[string]*domain.Transaction),
		apiKeys:        make(map[uuid.UUID]*domain.APIKey),
		apiKeyByHash:   make(map[string]uuid.UUID),
		idempotency:    make(map[string]*domain.IdempotencyLog),
	}
}

// Repository views over the shared state.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }
func (s *Store) Wallets() *WalletRepo { return &WalletRepo{s: s} }
func (s *Store) Transactions() *TransactionRepo { return &TransactionRepo{s: s} }
func (s *Store) APIKeys() *APIKeyRepo { return &APIKeyRepo{s: s} }
func (s *Store) Idempotency() *IdempotencyRepo { return &IdempotencyRepo{s: s} }
func (s *Store) GatewayEvents() *GatewayEventRepo { return &GatewayEventRepo{s: s} }
func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }

// Begin implements ports.DBTransactor. It blocks until no other transaction
// is open or ctx is done.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if s.mu.TryLock() {
		return &memTx{store: s}, nil
	}
	locked := make(chan struct{})
	go func() {
		s.mu.Lock()
		close(locked)
	}()
	select {
	case <-locked:
		return &memTx{store: s}, nil
	case <-ctx.Done():
		// Hand the lock back once the waiter acquires it.
		go func() {
			<-locked
			s.mu.Unlock()
		}()
		return nil, ctx.Err()
	}
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

// memTx satisfies pgx.Tx. Only Commit and Rollback are meaningful; the
// embedded interface is nil and any other method panics.
type memTx struct {
	pgx.Tx
	store *Store
	undo  []func()
	done  bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

// Rollback replays the undo log in reverse and releases the store.
func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.done = true
	t.undo = nil
	t.store.mu.Unlock()
	return nil
}

// onRollback records how to revert a mutation. It is a no-op outside a
// transaction.
func (t *memTx) onRollback(fn func()) {
	if t != nil {
		t.undo = append(t.undo, fn)
	}
}

// enter resolves tx against the store. With a nil tx it locks the store and
// returns the matching unlock; inside a transaction the lock is already held.
func (s *Store) enter(tx pgx.Tx) (*memTx, func(), error) {
	if tx == nil {
		s.mu.Lock()
		return nil, s.mu.Unlock, nil
	}
	mt, ok := tx.(*memTx)
	if !ok || mt.store != s {
		return nil, nil, errForeignTx
	}
	if mt.done {
		return nil, nil, pgx.ErrTxClosed
	}
	return mt, func() {}, nil
}
