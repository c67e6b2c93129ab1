package verification

import (
	"time"

	"github.com/coinly/coinadmin-api/internal/domain/transaction"
	"github.com/coinly/coinadmin-api/internal/pkg/coins"
)

// OpenSessionRequest opens a verification session over one user's queue
type OpenSessionRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// UpdateFormRequest patches the verification draft
type UpdateFormRequest struct {
	ObservedAmount        *float64   `json:"observed_amount" validate:"omitempty,gte=0"`
	ReceiptDateObserved   *time.Time `json:"receipt_date_observed"`
	VerificationConfirmed *bool      `json:"verification_confirmed"`
	RejectionNote         *string    `json:"rejection_note"`
	AdminNotes            *string    `json:"admin_notes"`
}

// AdjustRequest changes the focused redemption's coin amount
type AdjustRequest struct {
	NewRedeemedAmount *int64 `json:"new_redeemed_amount" validate:"required,gte=0"`
	Notes             string `json:"notes"`
}

// ApproveAndPayRequest approves and immediately pays out the focused
// redemption
type ApproveAndPayRequest struct {
	PaymentReferenceID string `json:"payment_reference_id" validate:"required"`
	Method             string `json:"method" validate:"omitempty,payment_method"`
}

// AvailableActions tells the UI which controls to enable for the current
// position. Advisory only; every submission re-checks.
type AvailableActions struct {
	CanApprove       bool `json:"can_approve"`
	CanReject        bool `json:"can_reject"`
	CanApproveAndPay bool `json:"can_approve_and_pay"`
	CanAdjust        bool `json:"can_adjust"`
	CanNext          bool `json:"can_next"`
	CanPrevious      bool `json:"can_previous"`
}

// ReceiptView is the evidence links for the focused transaction
type ReceiptView struct {
	TransactionID string `json:"transaction_id"`
	ReceiptURL    string `json:"receipt_url,omitempty"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
}

// Snapshot is the full observable session state returned by every
// operation
type Snapshot struct {
	ID        string                   `json:"id"`
	UserID    string                   `json:"user_id"`
	State     State                    `json:"state"`
	Cursor    int                      `json:"cursor"`
	QueueSize int                      `json:"queue_size"`
	Current   *transaction.Transaction `json:"current,omitempty"`
	Profile   *coins.UserProfile       `json:"profile,omitempty"`
	Form      *Form                    `json:"form,omitempty"`
	Banner    *Banner                  `json:"banner,omitempty"`
	Actions   AvailableActions         `json:"actions"`
}

// snapshotLocked builds the observable state. Caller holds mu.
func (s *Session) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		ID:        s.ID.String(),
		UserID:    s.UserID,
		State:     s.state,
		Cursor:    s.cursor,
		QueueSize: len(s.queue),
		Profile:   s.profile,
		Banner:    s.banner,
	}

	if s.state != StateReviewing {
		return snap
	}

	cur := s.current()
	snap.Current = cur
	if s.form != nil {
		form := *s.form
		snap.Form = &form
	}

	canApprove := transaction.CanApprove(cur, s.queue)
	snap.Actions = AvailableActions{
		CanApprove: canApprove,
		CanReject:  transaction.CanReject(cur),
		CanApproveAndPay: canApprove &&
			(cur.Type == transaction.TypeRedeem || cur.Type == transaction.TypeRewardRequest) &&
			cur.RedeemedCoins() > 0,
		CanAdjust: cur.Type == transaction.TypeRedeem &&
			cur.Status == transaction.StatusPending,
		CanNext:     s.canMove(1),
		CanPrevious: s.canMove(-1),
	}
	return snap
}

// canMove reports whether navigation by delta would land on a PENDING
// transaction. Caller holds mu.
func (s *Session) canMove(delta int) bool {
	next := s.cursor + delta
	if next < 0 || next >= len(s.queue) {
		return false
	}
	return s.queue[next].Status == transaction.StatusPending
}
