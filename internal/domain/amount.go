package domain

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits carried by every balance.
const MoneyScale = 2

// MaxMoneyDigits bounds the total significant digits of a stored balance (numeric(15,2)).
const MaxMoneyDigits = 15

var amountPattern = regexp.MustCompile(`^[+-]?\d+(\.\d+)?$`)

// ParseAmount converts raw decimal text into a strictly positive amount with at
// most two fractional digits. It never goes through binary floating point.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if !amountPattern.MatchString(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return ValidateAmount(d)
}

// ValidateAmount checks an already decoded amount.
func ValidateAmount(d decimal.Decimal) (decimal.Decimal, error) {
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(MoneyScale)) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Truncate(MoneyScale), nil
}

// FitsMoneyColumn reports whether d can be stored as numeric(15,2).
func FitsMoneyColumn(d decimal.Decimal) bool {
	return len(d.Truncate(0).Abs().String()) <= MaxMoneyDigits-MoneyScale
}

// FormatMoney renders d with exactly two fractional digits.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

// Amount is request-side money. It decodes from a JSON string ("10.00") or a
// JSON number literal (10.00) using the literal text.
type Amount struct {
	Raw string
	set bool
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	a.Raw = strings.Trim(string(data), `"`)
	a.set = true
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.Raw + `"`), nil
}

// Present reports whether the field was supplied.
func (a Amount) Present() bool { return a.set }

// Decimal validates and returns the amount.
func (a Amount) Decimal() (decimal.Decimal, error) {
	if !a.set {
		return decimal.Zero, ErrInvalidAmount
	}
	return ParseAmount(a.Raw)
}

// NewAmount builds an Amount from text, mostly for clients and tests.
func NewAmount(raw string) Amount {
	return Amount{Raw: raw, set: true}
}
