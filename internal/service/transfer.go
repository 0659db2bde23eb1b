package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/punchamoorthee/bankledger/internal/domain"
)

// TxManager runs fn inside one atomic transaction carried by ctx.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccountLocker is the locking half of the account store.
type AccountLocker interface {
	LockByID(ctx context.Context, id int64) (*domain.Account, error)
	// LockByNumbers must lock in ascending number order.
	LockByNumbers(ctx context.Context, numbers []string) (map[string]*domain.Account, error)
	Persist(ctx context.Context, acc *domain.Account) error
}

// Ledger records the audit trail in the same transaction as the balance change.
type Ledger interface {
	RecordCredit(ctx context.Context, accountID int64, amount decimal.Decimal) error
	RecordTransfer(ctx context.Context, sourceID, destinationID int64, amount decimal.Decimal) (*domain.Transfer, error)
}

// TransferResult is the committed state after a two-account transfer.
type TransferResult struct {
	Transfer    *domain.Transfer
	Source      *domain.Account
	Destination *domain.Account
}

type TransferService struct {
	tx       TxManager
	accounts AccountLocker
	ledger   Ledger
	log      *slog.Logger
}

func NewTransferService(tx TxManager, accounts AccountLocker, ledger Ledger, logger *slog.Logger) *TransferService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransferService{tx: tx, accounts: accounts, ledger: ledger, log: logger}
}

// Credit adds amount to a single account under its row lock.
func (s *TransferService) Credit(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Account, error) {
	const op = "credit"
	ctx, span := tracer.Start(ctx, "TransferService.Credit", trace.WithAttributes(
		attribute.Int64("account.id", accountID),
		attribute.String("amount", amount.String()),
	))
	defer span.End()

	amount, err := domain.ValidateAmount(amount)
	if err != nil {
		return nil, s.finish(ctx, span, op, domain.ErrInvalidAmount.With(op, nil))
	}

	var updated *domain.Account
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		start := time.Now()
		acc, err := s.accounts.LockByID(ctx, accountID)
		lockWaitSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrAccountNotFound.With(op, nil)
			}
			return infraError(op, err)
		}

		acc.Credit(amount)
		if err := s.accounts.Persist(ctx, acc); err != nil {
			return infraError(op, err)
		}
		if err := s.ledger.RecordCredit(ctx, acc.ID, amount); err != nil {
			return infraError(op, err)
		}
		updated = acc
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, span, op, err)
	}

	s.finish(ctx, span, op, nil)
	s.log.InfoContext(ctx, "account credited",
		slog.Int64("account_id", updated.ID),
		slog.String("amount", domain.FormatMoney(amount)),
		slog.String("balance", domain.FormatMoney(updated.Balance)),
	)
	return updated, nil
}

// Transfer moves amount from the source account to the destination account,
// both identified by number. Both rows are locked in ascending number order so
// that concurrent transfers over the same pair, in either direction, cannot
// deadlock.
func (s *TransferService) Transfer(ctx context.Context, source, destination string, amount decimal.Decimal) (*TransferResult, error) {
	const op = "transfer"
	ctx, span := tracer.Start(ctx, "TransferService.Transfer", trace.WithAttributes(
		attribute.String("account.source", source),
		attribute.String("account.destination", destination),
		attribute.String("amount", amount.String()),
	))
	defer span.End()

	amount, err := domain.ValidateAmount(amount)
	if err != nil {
		return nil, s.finish(ctx, span, op, domain.ErrInvalidAmount.With(op, nil))
	}

	var result TransferResult
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		start := time.Now()
		locked, err := s.accounts.LockByNumbers(ctx, []string{source, destination})
		lockWaitSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			return infraError(op, err)
		}

		src, ok := locked[source]
		if !ok {
			return domain.ErrSourceNotFound.With(op, nil)
		}
		dst, ok := locked[destination]
		if !ok {
			return domain.ErrDestinationNotFound.With(op, nil)
		}

		if src.Balance.LessThan(amount) {
			return domain.ErrInsufficientFunds.With(op, nil)
		}

		// For a self-transfer src and dst are the same object, so the debit
		// and credit cancel out and the row is written once.
		if err := src.Debit(amount); err != nil {
			return domain.ErrInsufficientFunds.With(op, err)
		}
		dst.Credit(amount)

		if err := s.accounts.Persist(ctx, src); err != nil {
			return infraError(op, err)
		}
		if dst != src {
			if err := s.accounts.Persist(ctx, dst); err != nil {
				return infraError(op, err)
			}
		}

		tr, err := s.ledger.RecordTransfer(ctx, src.ID, dst.ID, amount)
		if err != nil {
			return infraError(op, err)
		}
		result = TransferResult{Transfer: tr, Source: src, Destination: dst}
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, span, op, err)
	}

	s.finish(ctx, span, op, nil)
	s.log.InfoContext(ctx, "transfer committed",
		slog.Int64("transfer_id", result.Transfer.ID),
		slog.String("source", source),
		slog.String("destination", destination),
		slog.String("amount", domain.FormatMoney(amount)),
	)
	return &result, nil
}

// infraError classifies a store failure. Anything that is not a lock timeout
// is reported as a persistence error.
func infraError(op string, err error) error {
	if errors.Is(err, domain.ErrLockTimeout) {
		return domain.ErrLockTimeout.With(op, err)
	}
	return domain.ErrPersistence.With(op, err)
}

// finish tags the span, counts the outcome and makes sure every returned
// error is a *domain.Error.
func (s *TransferService) finish(ctx context.Context, span trace.Span, op string, err error) error {
	if err == nil {
		balanceOpsTotal.WithLabelValues(op, "ok").Inc()
		return nil
	}
	if domain.KindOf(err) == domain.KindUnknown {
		err = infraError(op, err)
	}
	kind := domain.KindOf(err)
	balanceOpsTotal.WithLabelValues(op, kind.String()).Inc()
	span.SetAttributes(attribute.String("error.kind", kind.String()))

	if kind.Class() == domain.ClassUnavailable {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.ErrorContext(ctx, "balance operation failed", slog.String("op", op), slog.Any("error", err))
	} else {
		s.log.InfoContext(ctx, "balance operation rejected", slog.String("op", op), slog.String("kind", kind.String()))
	}
	return err
}
