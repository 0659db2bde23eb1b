package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/bankledger/internal/domain"
)

// RecordCredit appends a single positive ledger entry for a credit.
func (s *Store) RecordCredit(ctx context.Context, accountID int64, amount decimal.Decimal) error {
	_, err := s.q(ctx).Exec(ctx,
		"INSERT INTO ledger_entries (account_id, delta) VALUES ($1, $2)",
		accountID, amount,
	)
	if err != nil {
		return fmt.Errorf("ledger entry failed: %w", mapError(err))
	}
	return nil
}

// RecordTransfer inserts the transfer row and its debit/credit entries.
func (s *Store) RecordTransfer(ctx context.Context, sourceID, destinationID int64, amount decimal.Decimal) (*domain.Transfer, error) {
	t := domain.Transfer{SourceAccountID: sourceID, DestinationAccountID: destinationID, Amount: amount}
	err := s.q(ctx).QueryRow(ctx,
		"INSERT INTO transfers (source_account_id, destination_account_id, amount) VALUES ($1, $2, $3) RETURNING id, created_at",
		sourceID, destinationID, amount,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("transfer insert failed: %w", mapError(err))
	}

	_, err = s.q(ctx).Exec(ctx,
		"INSERT INTO ledger_entries (transfer_id, account_id, delta) VALUES ($1, $2, $3), ($1, $4, $5)",
		t.ID, sourceID, amount.Neg(), destinationID, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger entry failed: %w", mapError(err))
	}
	return &t, nil
}

// GetTransfer retrieves transfer details.
func (s *Store) GetTransfer(ctx context.Context, id int64) (*domain.Transfer, error) {
	var t domain.Transfer
	err := s.q(ctx).QueryRow(ctx,
		"SELECT id, source_account_id, destination_account_id, amount, created_at FROM transfers WHERE id = $1",
		id).Scan(&t.ID, &t.SourceAccountID, &t.DestinationAccountID, &t.Amount, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	return &t, nil
}

// ListEntries returns an account's ledger entries, newest first.
func (s *Store) ListEntries(ctx context.Context, accountID int64) ([]domain.LedgerEntry, error) {
	var exists bool
	err := s.q(ctx).QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)", accountID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check account: %w", err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	rows, err := s.q(ctx).Query(ctx,
		"SELECT id, account_id, transfer_id, delta, created_at FROM ledger_entries WHERE account_id = $1 ORDER BY created_at DESC, id DESC",
		accountID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.LedgerEntry{}
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.TransferID, &e.Delta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
