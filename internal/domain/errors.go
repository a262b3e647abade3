package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidState        = errors.New("invalid market state for requested transition")
	ErrMarketExpired       = errors.New("market betting window has closed")
	ErrInvalidAmount       = errors.New("bet amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotResolved         = errors.New("market not resolved")
	ErrNothingToClaim      = errors.New("no position to claim")
	ErrAlreadyClaimed      = errors.New("winnings already claimed")
)
