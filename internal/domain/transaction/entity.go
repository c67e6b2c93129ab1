package transaction

import "time"

// Type classifies how a transaction affects a user's coin balance
type Type string

const (
	TypeEarn          Type = "EARN"
	TypeRedeem        Type = "REDEEM"
	TypeWelcomeBonus  Type = "WELCOME_BONUS"
	TypeAdjustment    Type = "ADJUSTMENT"
	TypeRewardRequest Type = "REWARD_REQUEST"
)

// Status is the review/payment lifecycle state of a transaction
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusProcessed Status = "PROCESSED"
	StatusPaid      Status = "PAID"
	StatusUnpaid    Status = "UNPAID"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Transaction is one coin-earning or coin-redemption event as the coins
// backend reports it to the admin portal. JSON tags follow that service's
// wire format. Pointer fields are three-valued: nil means the backend did
// not supply the value, which is distinct from zero/false.
type Transaction struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	Type   Type   `json:"type"`
	Status Status `json:"status"`

	BillAmount    *float64 `json:"billAmount,omitempty"`
	CoinsEarned   *int64   `json:"coinsEarned,omitempty"`
	CoinsRedeemed *int64   `json:"coinsRedeemed,omitempty"`
	// Amount is the signed net coin delta (earned - redeemed)
	Amount int64 `json:"amount"`

	ReceiptURL *string    `json:"receiptUrl,omitempty"`
	BillDate   *time.Time `json:"billDate,omitempty"`

	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	StatusUpdatedAt    *time.Time `json:"statusUpdatedAt,omitempty"`
	ProcessedAt        *time.Time `json:"processedAt,omitempty"`
	PaymentProcessedAt *time.Time `json:"paymentProcessedAt,omitempty"`
	AdminNotes         *string    `json:"adminNotes,omitempty"`
	// PaymentReference is the external payment reference set when a payout is processed
	PaymentReference *string `json:"transactionId,omitempty"`

	// Read-time context supplied by the backend. UserBalance may be
	// negative. IsOldestPending is true only for the single oldest PENDING
	// transaction of the owning user.
	UserBalance     *int64 `json:"userBalance,omitempty"`
	IsOldestPending *bool  `json:"isOldestPending,omitempty"`
}

// RedeemedCoins returns coinsRedeemed treating nil as zero
func (t *Transaction) RedeemedCoins() int64 {
	if t.CoinsRedeemed == nil {
		return 0
	}
	return *t.CoinsRedeemed
}

// OldestPendingKnownFalse reports whether the backend explicitly marked
// this transaction as NOT the oldest pending one. nil (unknown) is
// resolved permissively; the backend re-checks on every mutation.
func (t *Transaction) OldestPendingKnownFalse() bool {
	return t.IsOldestPending != nil && !*t.IsOldestPending
}

// HasNegativeBalance reports a known-negative user balance. nil (unknown)
// counts as not negative.
func (t *Transaction) HasNegativeBalance() bool {
	return t.UserBalance != nil && *t.UserBalance < 0
}
