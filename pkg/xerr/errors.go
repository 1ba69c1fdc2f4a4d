package xerr

import (
	"errors"
	"fmt"
)

// Common error codes.
const (
	OK                 = 200
	RequestParamsError = 400
	Unauthenticated    = 401
	RecordNotFound     = 404
	Conflict           = 409
	TooManyRequests    = 429
	ServerCommonError  = 500
	DbError            = 501
	CacheError         = 502
	Unavailable        = 503
)

// Ledger business codes.
const (
	InvalidAssetPair    = 2001001
	InvalidAmount       = 2001002
	PriceUnavailable    = 2001003
	InsufficientBalance = 2001004
	AssetLocked         = 2001005
	LedgerStoreError    = 2001006
	RequestConflict     = 2001007
)

type CodeError struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	Cause error  `json:"-"`
}

func (e *CodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ErrCode:%d, Msg:%s, Cause:%v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func (e *CodeError) Unwrap() error { return e.Cause }

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Wrap keeps err reachable through errors.Is/As.
func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	return &CodeError{Code: code, Msg: msg, Cause: err}
}

func As(err error) (*CodeError, bool) {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// CodeOf returns ServerCommonError for errors that carry no code.
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	if ce, ok := As(err); ok {
		return ce.Code
	}
	return ServerCommonError
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "internal server error"
	case RequestParamsError:
		return "invalid request parameters"
	case Unauthenticated:
		return "missing or invalid user"
	case DbError:
		return "database busy"
	case CacheError:
		return "cache unavailable"
	case RecordNotFound:
		return "record not found"
	case Conflict:
		return "conflicting request"
	case TooManyRequests:
		return "too many requests"
	case Unavailable:
		return "service unavailable"
	case InvalidAssetPair:
		return "exactly one side of a trade must be BTC"
	case InvalidAmount:
		return "amount must be a positive number in a known unit"
	case PriceUnavailable:
		return "price unavailable, try again later"
	case InsufficientBalance:
		return "insufficient balance"
	case AssetLocked:
		return "asset is locked after purchase"
	case LedgerStoreError:
		return "trade could not be saved"
	case RequestConflict:
		return "request id already used"
	default:
		return "unknown error"
	}
}
