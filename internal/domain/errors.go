package domain

import (
	"errors"
	"fmt"
)

// Kind enumerates every failure an operation can report.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidAmount
	KindInvalidInput
	KindAccountNotFound
	KindSourceNotFound
	KindDestinationNotFound
	KindClientNotFound
	KindTransferNotFound
	KindInsufficientFunds
	KindDuplicateNumber
	KindLockTimeout
	KindPersistence
	KindGeocodeFailed
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindInvalidAmount:       "invalid_amount",
	KindInvalidInput:        "invalid_input",
	KindAccountNotFound:     "account_not_found",
	KindSourceNotFound:      "source_not_found",
	KindDestinationNotFound: "destination_not_found",
	KindClientNotFound:      "client_not_found",
	KindTransferNotFound:    "transfer_not_found",
	KindInsufficientFunds:   "insufficient_funds",
	KindDuplicateNumber:     "duplicate_number",
	KindLockTimeout:         "lock_timeout",
	KindPersistence:         "persistence_error",
	KindGeocodeFailed:       "geocode_failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Class groups kinds by how a caller should react to them.
type Class int

const (
	ClassValidation Class = iota + 1
	ClassNotFound
	ClassBusinessRule
	ClassConflict
	ClassUnavailable
)

func (k Kind) Class() Class {
	switch k {
	case KindInvalidAmount, KindInvalidInput:
		return ClassValidation
	case KindAccountNotFound, KindSourceNotFound, KindDestinationNotFound,
		KindClientNotFound, KindTransferNotFound:
		return ClassNotFound
	case KindInsufficientFunds:
		return ClassBusinessRule
	case KindDuplicateNumber:
		return ClassConflict
	default:
		return ClassUnavailable
	}
}

// Retryable reports whether the caller may safely repeat the operation.
// Nothing partial is ever committed, so this is true for every
// infrastructure failure.
func (k Kind) Retryable() bool {
	return k.Class() == ClassUnavailable
}

// Error is the tagged error returned across the service boundary.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// With returns a copy of e bound to an operation and an underlying cause.
func (e *Error) With(op string, err error) *Error {
	return &Error{Kind: e.Kind, Op: op, Msg: e.Msg, Err: err}
}

// KindOf extracts the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

var (
	ErrInvalidAmount       = &Error{Kind: KindInvalidAmount, Msg: "amount must be a positive decimal with at most 2 fractional digits"}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, Msg: "invalid input"}
	ErrAccountNotFound     = &Error{Kind: KindAccountNotFound, Msg: "account not found"}
	ErrSourceNotFound      = &Error{Kind: KindSourceNotFound, Msg: "source account not found"}
	ErrDestinationNotFound = &Error{Kind: KindDestinationNotFound, Msg: "destination account not found"}
	ErrClientNotFound      = &Error{Kind: KindClientNotFound, Msg: "client not found"}
	ErrTransferNotFound    = &Error{Kind: KindTransferNotFound, Msg: "transfer not found"}
	ErrInsufficientFunds   = &Error{Kind: KindInsufficientFunds, Msg: "insufficient funds"}
	ErrDuplicateNumber     = &Error{Kind: KindDuplicateNumber, Msg: "an account already exists with that number"}
	ErrLockTimeout         = &Error{Kind: KindLockTimeout, Msg: "timed out waiting for account lock"}
	ErrPersistence         = &Error{Kind: KindPersistence, Msg: "persistence failure"}
	ErrGeocodeFailed       = &Error{Kind: KindGeocodeFailed, Msg: "address lookup failed"}
)

// Store-level sentinels. Services translate these into tagged errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrNoTransaction = errors.New("no active transaction")
	ErrUniqueNumber  = errors.New("account number already in use")
)
