// Package memory is an in-process implementation of the account, client and
// ledger stores. It keeps the same transaction and row-locking contract as the
// PostgreSQL store: writes are staged per transaction and become visible only
// on commit, and row locks are held until the transaction ends.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/bankledger/internal/domain"
)

type accountRow struct {
	// lock is a one-slot semaphore so waiters can give up on timeout.
	lock chan struct{}
	acc  domain.Account
}

// Store is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	accounts    map[int64]*accountRow
	byNumber    map[string]int64
	clients     map[int64]domain.Client
	transfers   map[int64]domain.Transfer
	entries     []domain.LedgerEntry
	nextID      map[string]int64
	lockTimeout time.Duration
	now         func() time.Time
}

// New returns an empty store. A zero lockTimeout waits for locks until the
// context is done.
func New(lockTimeout time.Duration) *Store {
	return &Store{
		accounts:    make(map[int64]*accountRow),
		byNumber:    make(map[string]int64),
		clients:     make(map[int64]domain.Client),
		transfers:   make(map[int64]domain.Transfer),
		nextID:      make(map[string]int64),
		lockTimeout: lockTimeout,
		now:         time.Now,
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

// seq hands out ids like a database sequence: gaps on rollback are fine.
func (s *Store) seq(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seqLocked(name)
}

func (s *Store) seqLocked(name string) int64 {
	s.nextID[name]++
	return s.nextID[name]
}

type tx struct {
	held     map[int64]*accountRow
	staged   map[int64]domain.Account
	entries  []domain.LedgerEntry
	transfer []domain.Transfer
}

type txKey struct{}

func txFromContext(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// WithTransaction runs fn in a transaction; nested calls join the outer one.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	t := &tx{held: make(map[int64]*accountRow), staged: make(map[int64]domain.Account)}
	defer s.release(t)

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	s.commit(t)
	return nil
}

func (s *Store) commit(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, acc := range t.staged {
		s.accounts[id].acc = acc
	}
	for _, tr := range t.transfer {
		s.transfers[tr.ID] = tr
	}
	s.entries = append(s.entries, t.entries...)
}

func (s *Store) release(t *tx) {
	for _, row := range t.held {
		<-row.lock
	}
	t.held = nil
}

func (s *Store) acquire(ctx context.Context, t *tx, id int64, row *accountRow) error {
	if _, ok := t.held[id]; ok {
		return nil
	}
	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case row.lock <- struct{}{}:
		t.held[id] = row
		return nil
	case <-timeout:
		return fmt.Errorf("lock account %d: %w", id, domain.ErrLockTimeout)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("lock account %d: %w: %v", id, domain.ErrLockTimeout, ctx.Err())
		}
		return fmt.Errorf("lock account %d: %w", id, ctx.Err())
	}
}

// current returns the account as seen by t: staged if written, else committed.
func (s *Store) current(t *tx, id int64) domain.Account {
	if acc, ok := t.staged[id]; ok {
		return acc
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id].acc
}

func (s *Store) row(id int64) (*accountRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.accounts[id]
	return row, ok
}

func (s *Store) CreateAccount(ctx context.Context, acc *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[acc.ClientID]; !ok {
		return fmt.Errorf("insert account: %w", domain.ErrNotFound)
	}
	if _, ok := s.byNumber[acc.Number]; ok {
		return fmt.Errorf("insert account: %w", domain.ErrUniqueNumber)
	}
	acc.ID = s.seqLocked("accounts")
	s.accounts[acc.ID] = &accountRow{lock: make(chan struct{}, 1), acc: *acc}
	s.byNumber[acc.Number] = acc.ID
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	row, ok := s.row(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	if t := txFromContext(ctx); t != nil {
		acc := s.current(t, id)
		return &acc, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := row.acc
	return &acc, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Account, 0, len(s.accounts))
	for _, row := range s.accounts {
		out = append(out, row.acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) LockByID(ctx context.Context, id int64) (*domain.Account, error) {
	t := txFromContext(ctx)
	if t == nil {
		return nil, domain.ErrNoTransaction
	}
	row, ok := s.row(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := s.acquire(ctx, t, id, row); err != nil {
		return nil, err
	}
	acc := s.current(t, id)
	return &acc, nil
}

// LockByNumbers locks in ascending number order, like the PostgreSQL store.
func (s *Store) LockByNumbers(ctx context.Context, numbers []string) (map[string]*domain.Account, error) {
	t := txFromContext(ctx)
	if t == nil {
		return nil, domain.ErrNoTransaction
	}
	keys := slices.Clone(numbers)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	out := make(map[string]*domain.Account, len(keys))
	for _, number := range keys {
		s.mu.Lock()
		id, ok := s.byNumber[number]
		var row *accountRow
		if ok {
			row = s.accounts[id]
		}
		s.mu.Unlock()
		if !ok {
			continue
		}
		if err := s.acquire(ctx, t, id, row); err != nil {
			return nil, err
		}
		acc := s.current(t, id)
		out[number] = &acc
	}
	return out, nil
}

// Persist stages the balance. It enforces the same constraints as the
// numeric(15,2) CHECK (balance >= 0) column.
func (s *Store) Persist(ctx context.Context, acc *domain.Account) error {
	t := txFromContext(ctx)
	if t == nil {
		return domain.ErrNoTransaction
	}
	if _, ok := t.held[acc.ID]; !ok {
		return fmt.Errorf("persist account %d: row not locked by this transaction", acc.ID)
	}
	if acc.Balance.IsNegative() {
		return fmt.Errorf("persist account %d: balance violates check constraint", acc.ID)
	}
	if !domain.FitsMoneyColumn(acc.Balance) {
		return fmt.Errorf("persist account %d: numeric field overflow", acc.ID)
	}
	staged := s.current(t, acc.ID)
	staged.Balance = acc.Balance.Round(domain.MoneyScale)
	t.staged[acc.ID] = staged
	return nil
}

func (s *Store) RecordCredit(ctx context.Context, accountID int64, amount decimal.Decimal) error {
	t := txFromContext(ctx)
	if t == nil {
		return domain.ErrNoTransaction
	}
	t.entries = append(t.entries, domain.LedgerEntry{
		ID:        s.seq("ledger_entries"),
		AccountID: accountID,
		Delta:     amount,
		CreatedAt: s.now(),
	})
	return nil
}

func (s *Store) RecordTransfer(ctx context.Context, sourceID, destinationID int64, amount decimal.Decimal) (*domain.Transfer, error) {
	t := txFromContext(ctx)
	if t == nil {
		return nil, domain.ErrNoTransaction
	}
	now := s.now()
	tr := domain.Transfer{
		ID:                   s.seq("transfers"),
		SourceAccountID:      sourceID,
		DestinationAccountID: destinationID,
		Amount:               amount,
		CreatedAt:            now,
	}
	t.transfer = append(t.transfer, tr)
	t.entries = append(t.entries,
		domain.LedgerEntry{ID: s.seq("ledger_entries"), AccountID: sourceID, TransferID: &tr.ID, Delta: amount.Neg(), CreatedAt: now},
		domain.LedgerEntry{ID: s.seq("ledger_entries"), AccountID: destinationID, TransferID: &tr.ID, Delta: amount, CreatedAt: now},
	)
	return &tr, nil
}

func (s *Store) GetTransfer(ctx context.Context, id int64) (*domain.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.transfers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &tr, nil
}

func (s *Store) ListEntries(ctx context.Context, accountID int64) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return nil, domain.ErrNotFound
	}
	out := []domain.LedgerEntry{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].AccountID == accountID {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *Store) CreateClient(ctx context.Context, c *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.seqLocked("clients")
	s.clients[c.ID] = *c
	return nil
}

func (s *Store) UpdateClient(ctx context.Context, c *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; !ok {
		return domain.ErrNotFound
	}
	s.clients[c.ID] = *c
	return nil
}

func (s *Store) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
