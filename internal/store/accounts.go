package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"

	"github.com/punchamoorthee/bankledger/internal/domain"
)

const accountColumns = "id, number, account_type, balance, client_id"

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acc     domain.Account
		accType string
	)
	if err := row.Scan(&acc.ID, &acc.Number, &accType, &acc.Balance, &acc.ClientID); err != nil {
		return nil, err
	}
	acc.Type = domain.AccountType(accType)
	return &acc, nil
}

// CreateAccount inserts a zero-balance account and fills in its ID.
func (s *Store) CreateAccount(ctx context.Context, acc *domain.Account) error {
	err := s.q(ctx).QueryRow(ctx,
		"INSERT INTO accounts (number, account_type, balance, client_id) VALUES ($1, $2, $3, $4) RETURNING id",
		acc.Number, string(acc.Type), acc.Balance, acc.ClientID,
	).Scan(&acc.ID)
	if err != nil {
		return fmt.Errorf("insert account: %w", mapError(err))
	}
	return nil
}

// GetAccount reads an account without locking it.
func (s *Store) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	acc, err := scanAccount(s.q(ctx).QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

// ListAccounts returns every account ordered by number.
func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.q(ctx).Query(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY number")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

// LockByID takes an exclusive row lock on the account for the rest of the
// transaction in ctx and returns its current persisted state. It blocks while
// another transaction holds the lock.
func (s *Store) LockByID(ctx context.Context, id int64) (*domain.Account, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return nil, domain.ErrNoTransaction
	}
	acc, err := scanAccount(tx.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("lock account %d: %w", id, mapLockError(err))
	}
	return acc, nil
}

// LockByNumbers locks every account whose number is in numbers, in ascending
// number order, and returns them keyed by number. Unknown numbers are absent
// from the result.
func (s *Store) LockByNumbers(ctx context.Context, numbers []string) (map[string]*domain.Account, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return nil, domain.ErrNoTransaction
	}

	keys := slices.Clone(numbers)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	// PostgreSQL locks rows as they leave the sort, so ORDER BY fixes the lock order.
	rows, err := tx.Query(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE number = ANY($1) ORDER BY number FOR UPDATE", keys)
	if err != nil {
		return nil, fmt.Errorf("lock accounts: %w", mapLockError(err))
	}
	defer rows.Close()

	out := make(map[string]*domain.Account, len(keys))
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan locked account: %w", mapLockError(err))
		}
		out[acc.Number] = acc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock accounts: %w", mapLockError(err))
	}
	return out, nil
}

// Persist writes the in-memory balance back. It must run inside the
// transaction that locked the account.
func (s *Store) Persist(ctx context.Context, acc *domain.Account) error {
	tx := txFromContext(ctx)
	if tx == nil {
		return domain.ErrNoTransaction
	}
	tag, err := tx.Exec(ctx, "UPDATE accounts SET balance = $2 WHERE id = $1", acc.ID, acc.Balance)
	if err != nil {
		return fmt.Errorf("persist account %d: %w", acc.ID, mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
