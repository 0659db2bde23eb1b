package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/bankledger/internal/domain"
)

const maxAccountNumberLen = 16

// AccountRepository is the read/create half of the account store.
type AccountRepository interface {
	CreateAccount(ctx context.Context, acc *domain.Account) error
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	ListEntries(ctx context.Context, accountID int64) ([]domain.LedgerEntry, error)
	GetTransfer(ctx context.Context, id int64) (*domain.Transfer, error)
}

// ClientLookup resolves account owners.
type ClientLookup interface {
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
}

type CreateAccountInput struct {
	ClientID    int64
	Number      string
	AccountType string
}

type AccountService struct {
	accounts AccountRepository
	clients  ClientLookup
	log      *slog.Logger
}

func NewAccountService(accounts AccountRepository, clients ClientLookup, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{accounts: accounts, clients: clients, log: logger}
}

// Create opens a zero-balance account for an existing client.
func (s *AccountService) Create(ctx context.Context, in CreateAccountInput) (*domain.Account, error) {
	const op = "create account"

	number := strings.TrimSpace(in.Number)
	if number == "" || utf8.RuneCountInString(number) > maxAccountNumberLen {
		return nil, domain.ErrInvalidInput.With(op, errors.New("number must be 1-16 characters"))
	}
	accType, err := domain.ParseAccountType(in.AccountType)
	if err != nil {
		return nil, domain.ErrInvalidInput.With(op, err)
	}

	if _, err := s.clients.GetClient(ctx, in.ClientID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrClientNotFound.With(op, nil)
		}
		return nil, domain.ErrPersistence.With(op, err)
	}

	acc := &domain.Account{
		Number:   number,
		Type:     accType,
		Balance:  decimal.Zero,
		ClientID: in.ClientID,
	}
	if err := s.accounts.CreateAccount(ctx, acc); err != nil {
		switch {
		case errors.Is(err, domain.ErrUniqueNumber):
			return nil, domain.ErrDuplicateNumber.With(op, nil)
		case errors.Is(err, domain.ErrNotFound):
			return nil, domain.ErrClientNotFound.With(op, nil)
		}
		return nil, domain.ErrPersistence.With(op, err)
	}

	s.log.InfoContext(ctx, "account created", slog.Int64("account_id", acc.ID), slog.Int64("client_id", acc.ClientID))
	return acc, nil
}

func (s *AccountService) Get(ctx context.Context, id int64) (*domain.Account, error) {
	acc, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		return nil, lookupError("get account", domain.ErrAccountNotFound, err)
	}
	return acc, nil
}

func (s *AccountService) List(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, domain.ErrPersistence.With("list accounts", err)
	}
	return accounts, nil
}

// Entries returns the ledger trail of one account, newest first.
func (s *AccountService) Entries(ctx context.Context, accountID int64) ([]domain.LedgerEntry, error) {
	entries, err := s.accounts.ListEntries(ctx, accountID)
	if err != nil {
		return nil, lookupError("list entries", domain.ErrAccountNotFound, err)
	}
	return entries, nil
}

func (s *AccountService) Transfer(ctx context.Context, id int64) (*domain.Transfer, error) {
	tr, err := s.accounts.GetTransfer(ctx, id)
	if err != nil {
		return nil, lookupError("get transfer", domain.ErrTransferNotFound, err)
	}
	return tr, nil
}

func lookupError(op string, notFound *domain.Error, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return notFound.With(op, nil)
	}
	return domain.ErrPersistence.With(op, err)
}
