package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/coinly/coinadmin-api/internal/domain/audit"
	"github.com/coinly/coinadmin-api/internal/domain/events"
	"github.com/coinly/coinadmin-api/internal/domain/transaction"
)

type fakeCoins struct {
	approveCalls int
	rejectCalls  int
	payCalls     int
	markCalls    int
	adjustCalls  int

	lastReason    string
	lastRef       string
	lastAmount    int64
	lastNewAmount int64

	err error
}

func (f *fakeCoins) Approve(ctx context.Context, id, notes string) (*transaction.Transaction, error) {
	f.approveCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &transaction.Transaction{ID: id, Status: transaction.StatusApproved}, nil
}

func (f *fakeCoins) Reject(ctx context.Context, id, reason, notes string) error {
	f.rejectCalls++
	f.lastReason = reason
	return f.err
}

func (f *fakeCoins) ProcessPayment(ctx context.Context, id, ref, method string, amount int64, notes string) (*transaction.Transaction, error) {
	f.payCalls++
	f.lastRef = ref
	f.lastAmount = amount
	if f.err != nil {
		return nil, f.err
	}
	return &transaction.Transaction{ID: id, Status: transaction.StatusPaid}, nil
}

func (f *fakeCoins) MarkPaid(ctx context.Context, id, ref, notes string) (*transaction.Transaction, error) {
	f.markCalls++
	f.lastRef = ref
	if f.err != nil {
		return nil, f.err
	}
	return &transaction.Transaction{ID: id, Status: transaction.StatusPaid}, nil
}

func (f *fakeCoins) AdjustRedeem(ctx context.Context, id string, newAmount int64, notes string) (*transaction.Transaction, error) {
	f.adjustCalls++
	f.lastNewAmount = newAmount
	if f.err != nil {
		return nil, f.err
	}
	amt := newAmount
	return &transaction.Transaction{ID: id, Status: transaction.StatusPending, CoinsRedeemed: &amt}, nil
}

type fakeAuditor struct {
	actions []audit.Action
}

func (f *fakeAuditor) Record(ctx context.Context, operatorID uuid.UUID, txID, userID string, action audit.Action, reason, notes, detail string) {
	f.actions = append(f.actions, action)
}

type fakePublisher struct {
	published []events.Event
}

func (f *fakePublisher) Publish(event events.Event) {
	f.published = append(f.published, event)
}

func newTestDispatcher() (*Dispatcher, *fakeCoins, *fakeAuditor, *fakePublisher) {
	coins := &fakeCoins{}
	auditor := &fakeAuditor{}
	publisher := &fakePublisher{}
	return NewDispatcher(coins, auditor, publisher), coins, auditor, publisher
}

func ptrInt64(v int64) *int64 { return &v }

func pendingEarn(id string) *transaction.Transaction {
	return &transaction.Transaction{
		ID:     id,
		UserID: "user-1",
		Type:   transaction.TypeEarn,
		Status: transaction.StatusPending,
	}
}

func pendingRedeem(id string, coins int64) *transaction.Transaction {
	return &transaction.Transaction{
		ID:            id,
		UserID:        "user-1",
		Type:          transaction.TypeRedeem,
		Status:        transaction.StatusPending,
		CoinsRedeemed: ptrInt64(coins),
	}
}

func TestDispatcherApprove(t *testing.T) {
	d, coins, auditor, publisher := newTestDispatcher()
	operatorID := uuid.New()

	tx := pendingEarn("tx-1")
	updated, err := d.Approve(context.Background(), operatorID, tx, nil, "looks fine")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if updated.Status != transaction.StatusApproved {
		t.Errorf("expected APPROVED, got %s", updated.Status)
	}
	if coins.approveCalls != 1 {
		t.Errorf("expected 1 approve call, got %d", coins.approveCalls)
	}
	if len(auditor.actions) != 1 || auditor.actions[0] != audit.ActionApproved {
		t.Errorf("unexpected audit trail: %v", auditor.actions)
	}
	if len(publisher.published) != 1 || publisher.published[0].Type != events.EventApproved {
		t.Errorf("unexpected events: %v", publisher.published)
	}
}

func TestDispatcherApproveIneligible(t *testing.T) {
	d, coins, _, publisher := newTestDispatcher()

	tx := pendingEarn("tx-1")
	tx.Status = transaction.StatusApproved

	_, err := d.Approve(context.Background(), uuid.New(), tx, nil, "")
	if !errors.Is(err, transaction.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
	if coins.approveCalls != 0 {
		t.Error("ineligible approve must not reach the backend")
	}
	if len(publisher.published) != 0 {
		t.Error("ineligible approve must not publish an event")
	}
}

func TestDispatcherApproveRedeemBlockedByPendingEarn(t *testing.T) {
	d, coins, _, _ := newTestDispatcher()

	redeem := pendingRedeem("tx-r", 100)
	siblings := []*transaction.Transaction{redeem, pendingEarn("tx-e")}

	_, err := d.Approve(context.Background(), uuid.New(), redeem, siblings, "")
	if !errors.Is(err, transaction.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
	if coins.approveCalls != 0 {
		t.Error("blocked redeem must not reach the backend")
	}
}

func TestDispatcherApproveBackendError(t *testing.T) {
	d, coins, auditor, publisher := newTestDispatcher()
	coins.err = errors.New("backend down")

	_, err := d.Approve(context.Background(), uuid.New(), pendingEarn("tx-1"), nil, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(auditor.actions) != 0 {
		t.Error("failed approve must not be audited")
	}
	if len(publisher.published) != 0 {
		t.Error("failed approve must not publish an event")
	}
}

func TestDispatcherReject(t *testing.T) {
	d, coins, auditor, _ := newTestDispatcher()

	err := d.Reject(context.Background(), uuid.New(), pendingEarn("tx-1"), "blurry receipt", "")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if coins.lastReason != "blurry receipt" {
		t.Errorf("reason not passed through: %q", coins.lastReason)
	}
	if len(auditor.actions) != 1 || auditor.actions[0] != audit.ActionRejected {
		t.Errorf("unexpected audit trail: %v", auditor.actions)
	}
}

func TestDispatcherRejectRequiresReason(t *testing.T) {
	d, coins, _, _ := newTestDispatcher()

	err := d.Reject(context.Background(), uuid.New(), pendingEarn("tx-1"), "   ", "")
	if !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	if coins.rejectCalls != 0 {
		t.Error("reject without reason must not reach the backend")
	}
}

func TestDispatcherProcessPayment(t *testing.T) {
	d, coins, auditor, publisher := newTestDispatcher()

	tx := pendingRedeem("tx-r", 250)
	tx.Status = transaction.StatusApproved

	updated, err := d.ProcessPayment(context.Background(), uuid.New(), tx, "UPI-123", "upi", "")
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}
	if updated.Status != transaction.StatusPaid {
		t.Errorf("expected PAID, got %s", updated.Status)
	}
	if coins.lastAmount != 250 {
		t.Errorf("expected full redeemed amount 250, got %d", coins.lastAmount)
	}
	if coins.lastRef != "UPI-123" {
		t.Errorf("payment ref not passed through: %q", coins.lastRef)
	}
	if len(auditor.actions) != 1 || auditor.actions[0] != audit.ActionPaid {
		t.Errorf("unexpected audit trail: %v", auditor.actions)
	}
	if len(publisher.published) != 1 || publisher.published[0].Type != events.EventPaid {
		t.Errorf("unexpected events: %v", publisher.published)
	}
}

func TestDispatcherProcessPaymentIneligible(t *testing.T) {
	d, coins, _, _ := newTestDispatcher()

	cases := []struct {
		name string
		tx   *transaction.Transaction
	}{
		{"still pending", pendingRedeem("tx-1", 100)},
		{"earn type", func() *transaction.Transaction {
			tx := pendingEarn("tx-2")
			tx.Status = transaction.StatusApproved
			return tx
		}()},
		{"zero redeem", func() *transaction.Transaction {
			tx := pendingRedeem("tx-3", 0)
			tx.Status = transaction.StatusApproved
			return tx
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.ProcessPayment(context.Background(), uuid.New(), tc.tx, "REF-1", "upi", "")
			if !errors.Is(err, transaction.ErrPaymentNotEligible) {
				t.Fatalf("expected ErrPaymentNotEligible, got %v", err)
			}
		})
	}
	if coins.payCalls != 0 {
		t.Error("ineligible payment must not reach the backend")
	}
}

func TestDispatcherProcessPaymentRequiresRef(t *testing.T) {
	d, _, _, _ := newTestDispatcher()

	tx := pendingRedeem("tx-r", 100)
	tx.Status = transaction.StatusApproved

	_, err := d.ProcessPayment(context.Background(), uuid.New(), tx, "", "upi", "")
	if !errors.Is(err, ErrPaymentRefRequired) {
		t.Fatalf("expected ErrPaymentRefRequired, got %v", err)
	}
}

func TestDispatcherMarkPaid(t *testing.T) {
	d, coins, auditor, _ := newTestDispatcher()

	tx := pendingRedeem("tx-r", 100)
	tx.Status = transaction.StatusUnpaid

	updated, err := d.MarkPaid(context.Background(), uuid.New(), tx, "BANK-42", "paid via branch")
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if updated.Status != transaction.StatusPaid {
		t.Errorf("expected PAID, got %s", updated.Status)
	}
	if coins.markCalls != 1 {
		t.Errorf("expected 1 mark-paid call, got %d", coins.markCalls)
	}
	if len(auditor.actions) != 1 || auditor.actions[0] != audit.ActionMarkedPaid {
		t.Errorf("unexpected audit trail: %v", auditor.actions)
	}
}

func TestDispatcherMarkPaidRequiresUnpaid(t *testing.T) {
	d, _, _, _ := newTestDispatcher()

	tx := pendingRedeem("tx-r", 100)
	tx.Status = transaction.StatusApproved

	_, err := d.MarkPaid(context.Background(), uuid.New(), tx, "REF-1", "")
	if !errors.Is(err, transaction.ErrPaymentNotEligible) {
		t.Fatalf("expected ErrPaymentNotEligible, got %v", err)
	}
}

func TestDispatcherAdjustRedeem(t *testing.T) {
	d, coins, auditor, publisher := newTestDispatcher()

	tx := pendingRedeem("tx-r", 500)

	updated, err := d.AdjustRedeem(context.Background(), uuid.New(), tx, 200, "partial receipt")
	if err != nil {
		t.Fatalf("AdjustRedeem: %v", err)
	}
	if updated.RedeemedCoins() != 200 {
		t.Errorf("expected adjusted amount 200, got %d", updated.RedeemedCoins())
	}
	if coins.lastNewAmount != 200 {
		t.Errorf("expected 200 sent to backend, got %d", coins.lastNewAmount)
	}
	if len(auditor.actions) != 1 || auditor.actions[0] != audit.ActionAdjusted {
		t.Errorf("unexpected audit trail: %v", auditor.actions)
	}
	if len(publisher.published) != 1 || publisher.published[0].Type != events.EventAdjusted {
		t.Errorf("unexpected events: %v", publisher.published)
	}
}

func TestDispatcherAdjustRedeemBounds(t *testing.T) {
	d, coins, _, _ := newTestDispatcher()

	tx := pendingRedeem("tx-r", 500)

	for _, amount := range []int64{-1, 501, 1000} {
		if _, err := d.AdjustRedeem(context.Background(), uuid.New(), tx, amount, ""); !errors.Is(err, transaction.ErrAdjustOutOfRange) {
			t.Errorf("amount %d: expected ErrAdjustOutOfRange, got %v", amount, err)
		}
	}

	// Boundary values are allowed: zero clears a deficit redeem, the
	// current amount is a no-op adjustment
	for _, amount := range []int64{0, 500} {
		if _, err := d.AdjustRedeem(context.Background(), uuid.New(), tx, amount, ""); err != nil {
			t.Errorf("amount %d: unexpected error %v", amount, err)
		}
	}

	if coins.adjustCalls != 2 {
		t.Errorf("expected 2 backend calls, got %d", coins.adjustCalls)
	}
}

func TestDispatcherAdjustRedeemTypeAndStatus(t *testing.T) {
	d, _, _, _ := newTestDispatcher()

	earn := pendingEarn("tx-e")
	if _, err := d.AdjustRedeem(context.Background(), uuid.New(), earn, 0, ""); !errors.Is(err, transaction.ErrNotRedeem) {
		t.Errorf("expected ErrNotRedeem, got %v", err)
	}

	approved := pendingRedeem("tx-r", 100)
	approved.Status = transaction.StatusApproved
	if _, err := d.AdjustRedeem(context.Background(), uuid.New(), approved, 50, ""); !errors.Is(err, transaction.ErrNotPending) {
		t.Errorf("expected ErrNotPending, got %v", err)
	}
}

func TestDispatcherNilTransaction(t *testing.T) {
	d, _, _, _ := newTestDispatcher()
	ctx := context.Background()
	operatorID := uuid.New()

	if _, err := d.Approve(ctx, operatorID, nil, nil, ""); !errors.Is(err, transaction.ErrUnknownTransaction) {
		t.Errorf("Approve(nil): %v", err)
	}
	if err := d.Reject(ctx, operatorID, nil, "reason", ""); !errors.Is(err, transaction.ErrUnknownTransaction) {
		t.Errorf("Reject(nil): %v", err)
	}
	if _, err := d.AdjustRedeem(ctx, operatorID, nil, 0, ""); !errors.Is(err, transaction.ErrUnknownTransaction) {
		t.Errorf("AdjustRedeem(nil): %v", err)
	}
}
