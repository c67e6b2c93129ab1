package transaction

import "errors"

var (
	ErrNotPending         = errors.New("transaction is not pending")
	ErrNotEligible        = errors.New("transaction is not eligible for this action")
	ErrAdjustOutOfRange   = errors.New("adjusted redeem amount out of range")
	ErrNotRedeem          = errors.New("transaction is not a redemption")
	ErrPaymentNotEligible = errors.New("transaction is not eligible for payment processing")
	ErrUnknownTransaction = errors.New("transaction not found")
)
