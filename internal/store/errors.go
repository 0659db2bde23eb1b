package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/punchamoorthee/bankledger/internal/domain"
)

// PostgreSQL SQLSTATE codes the store reacts to.
const (
	codeLockNotAvailable = "55P03"
	codeUniqueViolation  = "23505"
	codeForeignKey       = "23503"
)

// mapError rewrites driver errors into the domain sentinels the services
// understand, keeping the original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable:
			return fmt.Errorf("%w: %v", domain.ErrLockTimeout, err)
		case codeUniqueViolation:
			if pgErr.ConstraintName == "accounts_number_key" {
				return fmt.Errorf("%w: %v", domain.ErrUniqueNumber, err)
			}
		case codeForeignKey:
			if pgErr.ConstraintName == "accounts_client_id_fkey" {
				return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
			}
		}
		return err
	}
	return err
}

// mapLockError additionally treats a context deadline hit while waiting for a
// row lock as a lock timeout.
func mapLockError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrLockTimeout, err)
	}
	return mapError(err)
}
