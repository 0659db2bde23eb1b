package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

type txKey struct{}

func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// WithTransaction runs fn inside a read-committed transaction carried by the
// context passed to fn. A nested call joins the outer transaction. Any error
// from fn rolls everything back.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", mapError(err))
	}
	defer func() {
		// Rollback must still reach the server when ctx was cancelled mid-transaction.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.WarnContext(ctx, "transaction rollback failed", slog.Any("error", rbErr))
		}
	}()

	if s.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", timeout); err != nil {
			return fmt.Errorf("set lock_timeout: %w", mapError(err))
		}
	}

	if err := fn(withTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", mapError(err))
	}
	return nil
}
