package transaction

import (
	"testing"
	"time"
)

func ptrBool(v bool) *bool    { return &v }
func ptrInt64(v int64) *int64 { return &v }

func pendingTx(id string, typ Type) *Transaction {
	now := time.Now()
	return &Transaction{
		ID:        id,
		UserID:    "user-1",
		Type:      typ,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCanApproveRequiresPendingStatus(t *testing.T) {
	for _, status := range []Status{StatusApproved, StatusRejected, StatusProcessed, StatusPaid, StatusUnpaid, StatusCompleted, StatusFailed} {
		tx := pendingTx("t1", TypeEarn)
		tx.Status = status
		if CanApprove(tx, nil) {
			t.Errorf("CanApprove should be false for status %s", status)
		}
		if CanReject(tx) {
			t.Errorf("CanReject should be false for status %s", status)
		}
	}
}

func TestCanApproveRejectsNonReviewableTypes(t *testing.T) {
	for _, typ := range []Type{TypeWelcomeBonus, TypeAdjustment} {
		tx := pendingTx("t1", typ)
		if CanApprove(tx, nil) {
			t.Errorf("CanApprove should be false for type %s", typ)
		}
		if CanReject(tx) {
			t.Errorf("CanReject should be false for type %s", typ)
		}
	}
}

func TestCanApproveOldestPendingThreeValued(t *testing.T) {
	tests := []struct {
		name   string
		oldest *bool
		want   bool
	}{
		{"explicitly oldest", ptrBool(true), true},
		{"explicitly not oldest", ptrBool(false), false},
		{"unknown is permissive", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := pendingTx("t1", TypeEarn)
			tx.IsOldestPending = tt.oldest
			if got := CanApprove(tx, nil); got != tt.want {
				t.Errorf("CanApprove = %v, want %v", got, tt.want)
			}
			if got := CanReject(tx); got != tt.want {
				t.Errorf("CanReject = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanApproveRedeemBlockedByPendingEarn(t *testing.T) {
	redeem := pendingTx("t2", TypeRedeem)
	redeem.CoinsRedeemed = ptrInt64(50)

	earn := pendingTx("t1", TypeEarn)
	if CanApprove(redeem, []*Transaction{earn}) {
		t.Error("redeem must not be approvable while a sibling earn is pending")
	}

	// Approving the earn clears the path for the redeem
	earn.Status = StatusApproved
	if !CanApprove(redeem, []*Transaction{earn}) {
		t.Error("redeem should be approvable once the sibling earn left PENDING")
	}
}

func TestCanApproveRedeemIgnoresSelfInSiblings(t *testing.T) {
	redeem := pendingTx("t1", TypeRedeem)
	if !CanApprove(redeem, []*Transaction{redeem}) {
		t.Error("a redeem must not be blocked by itself appearing in the sibling set")
	}
}

func TestCanApproveNegativeBalanceGuard(t *testing.T) {
	tx := pendingTx("t1", TypeRedeem)
	tx.UserBalance = ptrInt64(-50)
	tx.CoinsRedeemed = ptrInt64(20)

	if CanApprove(tx, nil) {
		t.Error("negative-balance user must not have a non-zero redemption approved")
	}

	// After adjusting the redeem amount to zero, approval becomes eligible
	// again even though the balance is still negative.
	tx.CoinsRedeemed = ptrInt64(0)
	if !CanApprove(tx, nil) {
		t.Error("zero redeem amount should clear the negative balance guard")
	}

	tx.CoinsRedeemed = nil
	if !CanApprove(tx, nil) {
		t.Error("undefined redeem amount should clear the negative balance guard")
	}

	// Unknown balance is resolved permissively.
	tx.UserBalance = nil
	tx.CoinsRedeemed = ptrInt64(20)
	if !CanApprove(tx, nil) {
		t.Error("unknown balance must not block approval")
	}
}

func TestCanProcessPayment(t *testing.T) {
	tx := pendingTx("t1", TypeRedeem)
	tx.CoinsRedeemed = ptrInt64(100)

	if CanProcessPayment(tx) {
		t.Error("PENDING transaction must not be payable")
	}

	tx.Status = StatusApproved
	if !CanProcessPayment(tx) {
		t.Error("APPROVED redeem with coins should be payable")
	}

	tx.CoinsRedeemed = ptrInt64(0)
	if CanProcessPayment(tx) {
		t.Error("zero redeemed coins must not be payable")
	}

	earn := pendingTx("t2", TypeEarn)
	earn.Status = StatusApproved
	earn.CoinsEarned = ptrInt64(10)
	if CanProcessPayment(earn) {
		t.Error("earn transactions are never payable")
	}
}

func TestActionRequired(t *testing.T) {
	tests := []struct {
		typ    Type
		status Status
		want   bool
	}{
		{TypeEarn, StatusPending, true},
		{TypeEarn, StatusApproved, false},
		{TypeEarn, StatusUnpaid, false},
		{TypeRedeem, StatusPending, true},
		{TypeRedeem, StatusApproved, true},
		{TypeRedeem, StatusUnpaid, true},
		{TypeRedeem, StatusPaid, false},
		{TypeRewardRequest, StatusApproved, true},
		{TypeRewardRequest, StatusRejected, false},
		{TypeWelcomeBonus, StatusPending, false},
		{TypeAdjustment, StatusPending, false},
	}
	for _, tt := range tests {
		tx := pendingTx("t1", tt.typ)
		tx.Status = tt.status
		if got := ActionRequired(tx); got != tt.want {
			t.Errorf("ActionRequired(%s/%s) = %v, want %v", tt.typ, tt.status, got, tt.want)
		}
	}
}

func TestNilTransactionIsNeverEligible(t *testing.T) {
	if CanApprove(nil, nil) || CanReject(nil) || CanProcessPayment(nil) || ActionRequired(nil) {
		t.Error("nil transaction must fail every predicate")
	}
}
