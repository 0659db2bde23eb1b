// Package models holds the JSON request and response bodies of the HTTP API.
package models

import (
	"time"

	"github.com/punchamoorthee/bankledger/internal/domain"
)

// TransferRequest moves money between two accounts identified by number.
type TransferRequest struct {
	SrcAccount  string        `json:"src_account"`
	DestAccount string        `json:"dest_account"`
	Amount      domain.Amount `json:"amount"`
}

// CreditRequest adds money to a single account.
type CreditRequest struct {
	Amount domain.Amount `json:"amount"`
}

type CreateAccountRequest struct {
	UserID      int64  `json:"user_id"`
	Number      string `json:"number"`
	AccountType string `json:"account_type"`
}

// ClientRequest creates or replaces a client profile. Latitude and longitude
// are optional; when both are present the address is not geocoded.
type ClientRequest struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Birthdate string   `json:"birthdate"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Account is the public account representation. Balance always has two
// fractional digits and is a string so it never passes through a float.
type Account struct {
	ID          int64  `json:"id"`
	Number      string `json:"number"`
	AccountType string `json:"account_type"`
	Balance     string `json:"balance"`
}

func NewAccount(a *domain.Account) Account {
	return Account{
		ID:          a.ID,
		Number:      a.Number,
		AccountType: string(a.Type),
		Balance:     domain.FormatMoney(a.Balance),
	}
}

func NewAccounts(in []domain.Account) []Account {
	out := make([]Account, 0, len(in))
	for i := range in {
		out = append(out, NewAccount(&in[i]))
	}
	return out
}

type Client struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Birthdate string  `json:"birthdate"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func NewClient(c *domain.Client, birthdateLayout string) Client {
	return Client{
		ID:        c.ID,
		Name:      c.Name,
		Birthdate: c.Birthdate.Format(birthdateLayout),
		Address:   c.Address,
		Latitude:  c.Location.Latitude,
		Longitude: c.Location.Longitude,
	}
}

// Transfer is the immutable record of a committed transfer.
type Transfer struct {
	ID                   int64     `json:"id"`
	SourceAccountID      int64     `json:"source_account_id"`
	DestinationAccountID int64     `json:"destination_account_id"`
	Amount               string    `json:"amount"`
	CreatedAt            time.Time `json:"created_at"`
}

func NewTransfer(t *domain.Transfer) Transfer {
	return Transfer{
		ID:                   t.ID,
		SourceAccountID:      t.SourceAccountID,
		DestinationAccountID: t.DestinationAccountID,
		Amount:               domain.FormatMoney(t.Amount),
		CreatedAt:            t.CreatedAt,
	}
}

// LedgerEntry represents one leg of the double-entry accounting.
type LedgerEntry struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	TransferID *int64    `json:"transfer_id,omitempty"`
	Delta      string    `json:"delta"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewLedgerEntries(in []domain.LedgerEntry) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(in))
	for _, e := range in {
		out = append(out, LedgerEntry{
			ID:         e.ID,
			AccountID:  e.AccountID,
			TransferID: e.TransferID,
			Delta:      domain.FormatMoney(e.Delta),
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
