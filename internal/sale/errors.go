package sale

import "errors"

// Validation errors. Surfaced verbatim to the caller; a rejected
// purchase is a caller or configuration mistake, never absorbed.
var (
	// ErrUnknownInstrument is returned when the payment instrument is not configured.
	ErrUnknownInstrument = errors.New("unknown payment instrument")

	// ErrInstrumentDisabled is returned when the payment instrument is disabled.
	ErrInstrumentDisabled = errors.New("payment instrument disabled")

	// ErrBelowMinimum is returned when the USD value is under the instrument minimum.
	ErrBelowMinimum = errors.New("below minimum purchase amount")

	// ErrAboveMaximum is returned when the USD value is over the instrument maximum.
	ErrAboveMaximum = errors.New("above maximum purchase amount")

	// ErrSlippageExceeded is returned when the quoted token amount is
	// under the buyer's minimum.
	ErrSlippageExceeded = errors.New("token amount below requested minimum")
)

// State and authorization errors.
var (
	// ErrSaleInactive is returned by Purchase while the sale is paused.
	ErrSaleInactive = errors.New("distribution not active")

	// ErrNotOwner is returned when a privileged operation is invoked
	// by anyone but the owner.
	ErrNotOwner = errors.New("caller is not the owner")
)
