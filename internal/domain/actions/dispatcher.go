package actions

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coinly/coinadmin-api/internal/domain/audit"
	"github.com/coinly/coinadmin-api/internal/domain/events"
	"github.com/coinly/coinadmin-api/internal/domain/transaction"
)

// CoinsClient is the slice of the coins backend API the dispatcher needs.
// The backend stays authoritative: every mutation here is a request, and
// the returned record (or error) is the truth.
type CoinsClient interface {
	Approve(ctx context.Context, id, adminNotes string) (*transaction.Transaction, error)
	Reject(ctx context.Context, id, reason, adminNotes string) error
	ProcessPayment(ctx context.Context, id, paymentRef, method string, amount int64, adminNotes string) (*transaction.Transaction, error)
	MarkPaid(ctx context.Context, id, paymentRef, adminNotes string) (*transaction.Transaction, error)
	AdjustRedeem(ctx context.Context, id string, newAmount int64, adminNotes string) (*transaction.Transaction, error)
}

// Auditor records operator decisions
type Auditor interface {
	Record(ctx context.Context, operatorID uuid.UUID, txID, userID string, action audit.Action, reason, notes, detail string)
}

// Publisher pushes workflow events to connected admin UIs
type Publisher interface {
	Publish(event events.Event)
}

// Dispatcher routes operator decisions to the coins backend. Eligibility
// is checked locally first so operators get an immediate, specific error
// instead of a backend round trip, then the backend re-validates.
type Dispatcher struct {
	coins  CoinsClient
	audit  Auditor
	events Publisher
}

// NewDispatcher creates an action dispatcher
func NewDispatcher(coins CoinsClient, auditor Auditor, publisher Publisher) *Dispatcher {
	return &Dispatcher{coins: coins, audit: auditor, events: publisher}
}

// Approve approves a pending transaction. The siblings slice is the rest
// of the user's PENDING queue and feeds the ordering/redeem gates.
func (d *Dispatcher) Approve(ctx context.Context, operatorID uuid.UUID, tx *transaction.Transaction, siblings []*transaction.Transaction, notes string) (*transaction.Transaction, error) {
	if tx == nil {
		return nil, transaction.ErrUnknownTransaction
	}
	if !transaction.CanApprove(tx, siblings) {
		return nil, transaction.ErrNotEligible
	}

	updated, err := d.coins.Approve(ctx, tx.ID, notes)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", tx.ID).
		Str("operator_id", operatorID.String()).
		Msg("transaction approved")

	d.audit.Record(ctx, operatorID, tx.ID, tx.UserID, audit.ActionApproved, "", notes, "")
	d.publish(events.EventApproved, operatorID, tx)

	return updated, nil
}

// Reject rejects a pending transaction. A non-empty reason is mandatory
// and is shown to the end user by the coins backend.
func (d *Dispatcher) Reject(ctx context.Context, operatorID uuid.UUID, tx *transaction.Transaction, reason, notes string) error {
	if tx == nil {
		return transaction.ErrUnknownTransaction
	}
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	if !transaction.CanReject(tx) {
		return transaction.ErrNotEligible
	}

	if err := d.coins.Reject(ctx, tx.ID, reason, notes); err != nil {
		return err
	}

	log.Info().
		Str("transaction_id", tx.ID).
		Str("operator_id", operatorID.String()).
		Str("reason", reason).
		Msg("transaction rejected")

	d.audit.Record(ctx, operatorID, tx.ID, tx.UserID, audit.ActionRejected, reason, notes, "")
	d.publish(events.EventRejected, operatorID, tx)

	return nil
}

// ProcessPayment records a payout for an approved redemption. Amount is
// the full redeemed coin value; partial payouts are not supported.
func (d *Dispatcher) ProcessPayment(ctx context.Context, operatorID uuid.UUID, tx *transaction.Transaction, paymentRef, method, notes string) (*transaction.Transaction, error) {
	if tx == nil {
		return nil, transaction.ErrUnknownTransaction
	}
	if strings.TrimSpace(paymentRef) == "" {
		return nil, ErrPaymentRefRequired
	}
	if !transaction.CanProcessPayment(tx) {
		return nil, transaction.ErrPaymentNotEligible
	}

	updated, err := d.coins.ProcessPayment(ctx, tx.ID, paymentRef, method, tx.RedeemedCoins(), notes)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", tx.ID).
		Str("operator_id", operatorID.String()).
		Str("payment_ref", paymentRef).
		Int64("amount", tx.RedeemedCoins()).
		Msg("payment processed")

	d.audit.Record(ctx, operatorID, tx.ID, tx.UserID, audit.ActionPaid, "", notes, paymentRef)
	d.publish(events.EventPaid, operatorID, tx)

	return updated, nil
}

// MarkPaid flips an UNPAID transaction to PAID after a manual payout
// performed outside the portal
func (d *Dispatcher) MarkPaid(ctx context.Context, operatorID uuid.UUID, tx *transaction.Transaction, paymentRef, notes string) (*transaction.Transaction, error) {
	if tx == nil {
		return nil, transaction.ErrUnknownTransaction
	}
	if strings.TrimSpace(paymentRef) == "" {
		return nil, ErrPaymentRefRequired
	}
	if tx.Status != transaction.StatusUnpaid {
		return nil, transaction.ErrPaymentNotEligible
	}

	updated, err := d.coins.MarkPaid(ctx, tx.ID, paymentRef, notes)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", tx.ID).
		Str("operator_id", operatorID.String()).
		Str("payment_ref", paymentRef).
		Msg("transaction marked paid")

	d.audit.Record(ctx, operatorID, tx.ID, tx.UserID, audit.ActionMarkedPaid, "", notes, paymentRef)
	d.publish(events.EventPaid, operatorID, tx)

	return updated, nil
}

// AdjustRedeem changes a pending redemption's coin amount. The new amount
// can only shrink: it must stay within [0, current coinsRedeemed]. Zero is
// the escape hatch for users in coin deficit, whose redemptions cannot be
// approved at any positive amount.
func (d *Dispatcher) AdjustRedeem(ctx context.Context, operatorID uuid.UUID, tx *transaction.Transaction, newAmount int64, notes string) (*transaction.Transaction, error) {
	if tx == nil {
		return nil, transaction.ErrUnknownTransaction
	}
	if tx.Type != transaction.TypeRedeem {
		return nil, transaction.ErrNotRedeem
	}
	if tx.Status != transaction.StatusPending {
		return nil, transaction.ErrNotPending
	}
	if newAmount < 0 || newAmount > tx.RedeemedCoins() {
		return nil, transaction.ErrAdjustOutOfRange
	}

	updated, err := d.coins.AdjustRedeem(ctx, tx.ID, newAmount, notes)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("transaction_id", tx.ID).
		Str("operator_id", operatorID.String()).
		Int64("old_amount", tx.RedeemedCoins()).
		Int64("new_amount", newAmount).
		Msg("redeem amount adjusted")

	d.audit.Record(ctx, operatorID, tx.ID, tx.UserID, audit.ActionAdjusted, "", notes, "")
	d.publish(events.EventAdjusted, operatorID, tx)

	return updated, nil
}

func (d *Dispatcher) publish(typ events.Type, operatorID uuid.UUID, tx *transaction.Transaction) {
	if d.events == nil {
		return
	}
	d.events.Publish(events.Event{
		Type:          typ,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		OperatorID:    operatorID.String(),
	})
}
