package actions

import "errors"

var (
	ErrReasonRequired     = errors.New("rejection reason is required")
	ErrPaymentRefRequired = errors.New("payment reference is required")
)
