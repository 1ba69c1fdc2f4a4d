package domain

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies ledger failures; every kind is terminal for the call.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidAssetPair
	KindInvalidAmount
	KindPriceUnavailable
	KindInsufficientBalance
	KindAssetLocked
	KindPersistenceFailure
	KindRequestConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidAssetPair:
		return "invalid_asset_pair"
	case KindInvalidAmount:
		return "invalid_amount"
	case KindPriceUnavailable:
		return "price_unavailable"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindAssetLocked:
		return "asset_locked"
	case KindPersistenceFailure:
		return "persistence_failure"
	case KindRequestConflict:
		return "request_conflict"
	default:
		return "unknown"
	}
}

// Error is the error type returned by ledger services.
type Error struct {
	Kind Kind
	Msg  string

	// AssetLocked only: the unlocked amount right now and the time at
	// which the rejected request would fit.
	Available int64
	UnlockAt  time.Time

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrAssetLocked)
// works for every locked failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidAssetPair    = &Error{Kind: KindInvalidAssetPair, Msg: "exactly one side of a trade must be BTC"}
	ErrInvalidAmount       = &Error{Kind: KindInvalidAmount, Msg: "amount must be a positive number of smallest units"}
	ErrPriceUnavailable    = &Error{Kind: KindPriceUnavailable, Msg: "price unavailable"}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Msg: "insufficient balance"}
	ErrAssetLocked         = &Error{Kind: KindAssetLocked, Msg: "asset is still locked"}
	ErrPersistenceFailure  = &Error{Kind: KindPersistenceFailure, Msg: "ledger storage failure"}
	ErrRequestConflict     = &Error{Kind: KindRequestConflict, Msg: "request id already used with different parameters"}
)

func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Locked builds the AssetLocked error for asset.
func Locked(asset string, requested, available int64, unlockAt time.Time) *Error {
	return &Error{
		Kind: KindAssetLocked,
		Msg: fmt.Sprintf("only %s %s is unlocked, requested %s; recently bought lots unlock at %s",
			FormatAmount(available), asset, FormatAmount(requested), unlockAt.UTC().Format(time.RFC3339)),
		Available: available,
		UnlockAt:  unlockAt,
	}
}

// Persistence wraps a storage error. Ledger errors pass through unchanged.
func Persistence(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return &Error{Kind: KindPersistenceFailure, Msg: "ledger storage failure", Err: err}
}

// KindOf returns KindUnknown for nil and foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
