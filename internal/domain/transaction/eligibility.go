package transaction

// reviewableTypes are the transaction types an operator can decide on.
// WELCOME_BONUS and ADJUSTMENT are system-generated and never reviewed.
var reviewableTypes = map[Type]bool{
	TypeEarn:          true,
	TypeRedeem:        true,
	TypeRewardRequest: true,
}

// CanApprove reports whether tx may be approved given the rest of the
// user's PENDING transactions. All checks are advisory: the coins backend
// re-validates on the approve call and its answer wins.
//
// Approval requires, in order:
//   - status PENDING and a reviewable type
//   - tx not explicitly marked as out of queue order (oldest-pending-first)
//   - for REDEEM, no sibling EARN still PENDING (earn requests clear first,
//     otherwise the balance could swing while the redeem is applied)
//   - a user in coin deficit cannot have further redemption approved; the
//     redeem amount must first be adjusted to zero
func CanApprove(tx *Transaction, siblings []*Transaction) bool {
	if tx == nil || tx.Status != StatusPending || !reviewableTypes[tx.Type] {
		return false
	}
	if tx.OldestPendingKnownFalse() {
		return false
	}
	if tx.Type == TypeRedeem {
		for _, sib := range siblings {
			if sib == nil || sib.ID == tx.ID {
				continue
			}
			if sib.Type == TypeEarn && sib.Status == StatusPending {
				return false
			}
		}
	}
	if tx.HasNegativeBalance() && tx.RedeemedCoins() > 0 {
		return false
	}
	return true
}

// CanReject reports whether tx may be rejected
func CanReject(tx *Transaction) bool {
	if tx == nil || tx.Status != StatusPending || !reviewableTypes[tx.Type] {
		return false
	}
	return !tx.OldestPendingKnownFalse()
}

// CanProcessPayment reports whether a payout can be processed for tx
func CanProcessPayment(tx *Transaction) bool {
	if tx == nil {
		return false
	}
	if tx.Type != TypeRedeem && tx.Type != TypeRewardRequest {
		return false
	}
	return tx.Status == StatusApproved && tx.RedeemedCoins() > 0
}

// ActionRequired classifies whether a transaction still needs operator
// attention. This drives triage lists and badges only; it must never be
// used to allow or block a mutation.
func ActionRequired(tx *Transaction) bool {
	if tx == nil {
		return false
	}
	switch tx.Type {
	case TypeEarn:
		return tx.Status == StatusPending
	case TypeRedeem, TypeRewardRequest:
		return tx.Status == StatusPending || tx.Status == StatusApproved || tx.Status == StatusUnpaid
	default:
		return false
	}
}
