package ledger

import "errors"

// User-facing trade errors. All are recoverable and leave the ledger unchanged.
var (
	ErrInvalidTicker      = errors.New("invalid ticker")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrUnknownTicker      = errors.New("no holding for ticker")
	ErrInvalidAmount      = errors.New("invalid amount")
)
