package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the closed set of account products.
type AccountType string

const (
	CreditCard AccountType = "CREDIT_CARD"
	DebitCard  AccountType = "DEBIT_CARD"
)

// ParseAccountType accepts the canonical values plus the legacy spellings
// still sent by older clients ("CREDI CARD", "Debit card", ...).
func ParseAccountType(raw string) (AccountType, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.ReplaceAll(norm, " ", "_")
	switch norm {
	case "CREDIT_CARD", "CREDI_CARD":
		return CreditCard, nil
	case "DEBIT_CARD":
		return DebitCard, nil
	}
	return "", fmt.Errorf("unknown account type %q", raw)
}

// Account is a client's card account. Balance is numeric(15,2) in storage
// and never negative.
type Account struct {
	ID       int64
	Number   string
	Type     AccountType
	Balance  decimal.Decimal
	ClientID int64
}

// Debit removes amount from the in-memory balance. The caller holds the row lock.
func (a *Account) Debit(amount decimal.Decimal) error {
	if a.Balance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// Credit adds amount to the in-memory balance. The caller holds the row lock.
func (a *Account) Credit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
}

// Coordinates is a resolved geographic position.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Client owns zero or more accounts.
type Client struct {
	ID        int64
	Name      string
	Address   string
	Birthdate time.Time
	Location  Coordinates
}

// Transfer is the immutable record of a committed two-account transfer.
type Transfer struct {
	ID                   int64
	SourceAccountID      int64
	DestinationAccountID int64
	Amount               decimal.Decimal
	CreatedAt            time.Time
}

// LedgerEntry is one signed balance movement. Entries of a transfer sum to zero.
type LedgerEntry struct {
	ID         int64
	AccountID  int64
	TransferID *int64
	Delta      decimal.Decimal
	CreatedAt  time.Time
}

// SeedNumberPrefix marks accounts created by the seeder.
const SeedNumberPrefix = "4000"

// SeedAccountNumber returns the 16-digit number of the n-th seeded account.
// The seeder and the benchmark agree on it.
func SeedAccountNumber(n int) string {
	return fmt.Sprintf("%s%012d", SeedNumberPrefix, n)
}
