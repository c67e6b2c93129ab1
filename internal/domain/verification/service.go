package verification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/coinly/coinadmin-api/internal/domain/events"
	"github.com/coinly/coinadmin-api/internal/domain/transaction"
	"github.com/coinly/coinadmin-api/internal/pkg/coins"
)

const (
	queuePageLimit = 100
	queueMaxPages  = 10
)

// QueueSource is the slice of the coins backend API the workflow reads
type QueueSource interface {
	ListPendingTransactions(ctx context.Context, userID string, page, limit int) ([]*transaction.Transaction, coins.PageMeta, error)
	GetUserProfile(ctx context.Context, userID string) (*coins.UserProfile, error)
}

// Dispatcher routes operator decisions to the coins backend
type Dispatcher interface {
	Approve(ctx context.Context, operatorID uuid.UUID, tx *transaction.Transaction, siblings []*transaction.Transaction, notes string) (*transaction.Transaction, error)
	Reject(ctx context.Context, operatorID uuid.UUID, tx *transaction.Transaction, reason, notes string) error
	ProcessPayment(ctx context.Context, operatorID uuid.UUID, tx *transaction.Transaction, paymentRef, method, notes string) (*transaction.Transaction, error)
	AdjustRedeem(ctx context.Context, operatorID uuid.UUID, tx *transaction.Transaction, newAmount int64, notes string) (*transaction.Transaction, error)
}

// Publisher pushes workflow events to connected admin UIs
type Publisher interface {
	Publish(event events.Event)
}

// ReceiptEnqueuer schedules thumbnail generation for receipt evidence
type ReceiptEnqueuer interface {
	EnqueueFromQueue(ctx context.Context, txs []*transaction.Transaction)
}

// Service drives verification sessions: opening a user's PENDING queue,
// navigating it, and submitting decisions. One submission per session may
// be in flight; the network call runs outside the session lock.
type Service struct {
	coins    QueueSource
	actions  Dispatcher
	sessions *Manager
	events   Publisher
	receipts ReceiptEnqueuer
	emptyTTL time.Duration
}

// NewService creates the verification workflow service. emptyTTL is how
// long an emptied session lingers before closing itself.
func NewService(coinsClient QueueSource, dispatcher Dispatcher, manager *Manager, publisher Publisher, receipts ReceiptEnqueuer, emptyTTL time.Duration) *Service {
	return &Service{
		coins:    coinsClient,
		actions:  dispatcher,
		sessions: manager,
		events:   publisher,
		receipts: receipts,
		emptyTTL: emptyTTL,
	}
}

// Open starts a verification session over userID's PENDING transactions.
// A fetch failure still yields a session, in Empty with an error banner,
// so the operator sees what happened and can retry via Refresh.
func (s *Service) Open(ctx context.Context, operatorID uuid.UUID, userID string) (*Snapshot, error) {
	sess := newSession(operatorID, userID)

	queue, fetchErr := s.fetchQueue(ctx, userID)

	profile, err := s.coins.GetUserProfile(ctx, userID)
	if err != nil {
		// Non-fatal: the queue can be reviewed without the profile card
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to fetch user profile")
	}

	s.sessions.add(sess)

	sess.mu.Lock()
	sess.profile = profile
	if fetchErr != nil {
		sess.installQueue(nil)
		sess.banner = &Banner{Kind: bannerError, Message: upstreamMessage(fetchErr)}
	} else {
		sess.installQueue(queue)
	}
	if sess.state == StateEmpty {
		s.scheduleEmptyClose(sess)
	}
	snapshot := sess.snapshotLocked()
	sess.mu.Unlock()

	if s.receipts != nil && len(queue) > 0 {
		s.receipts.EnqueueFromQueue(ctx, queue)
	}

	s.publish(events.Event{
		Type:       events.EventSessionOpened,
		UserID:     userID,
		OperatorID: operatorID.String(),
		SessionID:  sess.ID.String(),
	})

	return snapshot, nil
}

// Get returns the session snapshot
func (s *Service) Get(operatorID, sessionID uuid.UUID) (*Snapshot, error) {
	sess, err := s.sessions.get(operatorID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.markActive()
	return sess.snapshotLocked(), nil
}

// UpdateForm merges a draft patch into the current form
func (s *Service) UpdateForm(operatorID, sessionID uuid.UUID, patch FormPatch) (*Snapshot, error) {
	sess, err := s.sessions.get(operatorID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.markActive()
	if sess.state != StateReviewing || sess.form == nil {
		return nil, ErrNotReviewing
	}
	sess.form.Apply(patch)
	return sess.snapshotLocked(), nil
}

// Next focuses the next queue position
func (s *Service) Next(operatorID, sessionID uuid.UUID) (*Snapshot, error) {
	return s.navigate(operatorID, sessionID, 1)
}

// Previous focuses the previous queue position
func (s *Service) Previous(operatorID, sessionID uuid.UUID) (*Snapshot, error) {
	return s.navigate(operatorID, sessionID, -1)
}

func (s *Service) navigate(operatorID, sessionID uuid.UUID, delta int) (*Snapshot, error) {
	sess, err := s.sessions.get(operatorID, sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.markActive()
	if err := sess.moveCursor(delta); err != nil {
		return nil, err
	}
	return sess.snapshotLocked(), nil
}

// Approve submits the focused transaction for approval
func (s *Service) Approve(ctx context.Context, operatorID, sessionID uuid.UUID) (*Snapshot, error) {
	return s.submit(ctx, operatorID, sessionID, func(ctx context.Context, sess *Session, work *transaction.Transaction, siblings []*transaction.Transaction, form Form) error {
		if err := form.ValidateApprove(); err != nil {
			return err
		}
		if _, err := s.actions.Approve(ctx, operatorID, work, siblings, form.AdminNotes); err != nil {
			return err
		}
		now := time.Now()
		work.Status = transaction.StatusApproved
		work.StatusUpdatedAt = &now
		return nil
	}, "Transaction approved")
}

// Reject submits the focused transaction for rejection using the form's
// rejection note
func (s *Service) Reject(ctx context.Context, operatorID, sessionID uuid.UUID) (*Snapshot, error) {
	return s.submit(ctx, operatorID, sessionID, func(ctx context.Context, sess *Session, work *transaction.Transaction, siblings []*transaction.Transaction, form Form) error {
		if err := form.ValidateReject(); err != nil {
			return err
		}
		if err := s.actions.Reject(ctx, operatorID, work, form.RejectionNote, form.AdminNotes); err != nil {
			return err
		}
		now := time.Now()
		work.Status = transaction.StatusRejected
		work.StatusUpdatedAt = &now
		return nil
	}, "Transaction rejected")
}

// ApproveAndPay approves the focused redemption and immediately records
// its payout. If the payout leg fails after a successful approval, the
// transaction still leaves the queue; the error banner tells the operator
// to finish payment from the triage list.
func (s *Service) ApproveAndPay(ctx context.Context, operatorID, sessionID uuid.UUID, paymentRef, method string) (*Snapshot, error) {
	return s.submit(ctx, operatorID, sessionID, func(ctx context.Context, sess *Session, work *transaction.Transaction, siblings []*transaction.Transaction, form Form) error {
		if err := form.ValidateApprove(); err != nil {
			return err
		}
		if _, err := s.actions.Approve(ctx, operatorID, work, siblings, form.AdminNotes); err != nil {
			return err
		}
		now := time.Now()
		work.Status = transaction.StatusApproved
		work.StatusUpdatedAt = &now

		if _, err := s.actions.ProcessPayment(ctx, operatorID, work, paymentRef, method, form.AdminNotes); err != nil {
			return &partialError{err: err}
		}
		paidAt := time.Now()
		work.Status = transaction.StatusPaid
		work.PaymentProcessedAt = &paidAt
		return nil
	}, "Transaction approved and paid")
}

// partialError marks a submission that mutated backend state before
// failing; the transaction must still be treated as decided.
type partialError struct{ err error }

func (e *partialError) Error() string { return e.err.Error() }
func (e *partialError) Unwrap() error { return e.err }

type submitFn func(ctx context.Context, sess *Session, work *transaction.Transaction, siblings []*transaction.Transaction, form Form) error

func (s *Service) submit(ctx context.Context, operatorID, sessionID uuid.UUID, fn submitFn, successMsg string) (*Snapshot, error) {
	sess, err := s.sessions.get(operatorID, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	sess.markActive()
	if sess.state == StateClosed {
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if sess.submitting {
		sess.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if sess.state != StateReviewing {
		sess.mu.Unlock()
		return nil, ErrNotReviewing
	}
	cur := sess.current()
	if cur == nil {
		sess.mu.Unlock()
		return nil, ErrNotReviewing
	}

	// Work on a copy so readers taking snapshots never observe a
	// half-applied mutation; the result is written back under the lock.
	work := *cur
	siblings := append([]*transaction.Transaction(nil), sess.queue...)
	form := *sess.form
	sess.submitting = true
	sess.state = StateSubmitting
	sess.mu.Unlock()

	submitErr := fn(ctx, sess, &work, siblings, form)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.submitting = false

	// A submission completing after close is discarded: the backend
	// already holds the authoritative outcome, and there is no session
	// left to apply it to.
	if sess.state == StateClosed {
		return nil, ErrSessionClosed
	}

	var partial *partialError
	if submitErr != nil && !errors.As(submitErr, &partial) {
		sess.state = StateReviewing
		sess.banner = &Banner{Kind: bannerError, Message: upstreamMessage(submitErr)}
		return nil, submitErr
	}

	sess.queue[sess.cursor] = &work
	if partial != nil {
		sess.banner = &Banner{Kind: bannerError, Message: "Approved, but payment failed: " + upstreamMessage(partial.err) + ". Finish payment from the pending payouts list."}
	} else {
		sess.banner = &Banner{Kind: bannerSuccess, Message: successMsg}
	}
	sess.advance()
	if sess.state == StateEmpty {
		s.publish(events.Event{
			Type:       events.EventSessionEmptied,
			UserID:     sess.UserID,
			OperatorID: operatorID.String(),
			SessionID:  sess.ID.String(),
		})
		s.scheduleEmptyClose(sess)
	}
	return sess.snapshotLocked(), nil
}

// Adjust changes the focused redemption's coin amount. The bound check
// runs before any network call; boundary values are accepted.
func (s *Service) Adjust(ctx context.Context, operatorID, sessionID uuid.UUID, newAmount int64, notes string) (*Snapshot, error) {
	sess, err := s.sessions.get(operatorID, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	sess.markActive()
	if sess.state == StateClosed {
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if sess.submitting {
		sess.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if sess.state != StateReviewing {
		sess.mu.Unlock()
		return nil, ErrNotReviewing
	}
	cur := sess.current()
	if cur == nil {
		sess.mu.Unlock()
		return nil, ErrNotReviewing
	}
	if cur.Type != transaction.TypeRedeem {
		sess.mu.Unlock()
		return nil, transaction.ErrNotRedeem
	}
	if newAmount < 0 || newAmount > cur.RedeemedCoins() {
		sess.mu.Unlock()
		return nil, &ValidationError{Field: "new_redeemed_amount", Message: "adjusted amount must be between 0 and the current redeemed amount"}
	}

	work := *cur
	sess.submitting = true
	sess.state = StateSubmitting
	sess.mu.Unlock()

	_, adjustErr := s.actions.AdjustRedeem(ctx, operatorID, &work, newAmount, notes)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.submitting = false
	if sess.state == StateClosed {
		return nil, ErrSessionClosed
	}
	sess.state = StateReviewing
	if adjustErr != nil {
		sess.banner = &Banner{Kind: bannerError, Message: upstreamMessage(adjustErr)}
		return nil, adjustErr
	}

	amount := newAmount
	work.CoinsRedeemed = &amount
	sess.queue[sess.cursor] = &work
	sess.banner = &Banner{Kind: bannerSuccess, Message: "Redeem amount adjusted"}
	return sess.snapshotLocked(), nil
}

// Refresh reloads the PENDING queue, recovering from cross-operator races
// where the focused transaction was decided elsewhere
func (s *Service) Refresh(ctx context.Context, operatorID, sessionID uuid.UUID) (*Snapshot, error) {
	sess, err := s.sessions.get(operatorID, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	sess.markActive()
	if sess.state == StateClosed {
		sess.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if sess.submitting {
		sess.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if sess.emptyTimer != nil {
		sess.emptyTimer.Stop()
		sess.emptyTimer = nil
	}
	sess.state = StateLoadingQueue
	sess.mu.Unlock()

	queue, fetchErr := s.fetchQueue(ctx, sess.UserID)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state == StateClosed {
		return nil, ErrSessionClosed
	}
	if fetchErr != nil {
		sess.installQueue(nil)
		sess.banner = &Banner{Kind: bannerError, Message: upstreamMessage(fetchErr)}
	} else {
		sess.installQueue(queue)
		sess.banner = nil
	}
	if sess.state == StateEmpty {
		s.scheduleEmptyClose(sess)
	}
	return sess.snapshotLocked(), nil
}

// Close ends the session explicitly
func (s *Service) Close(operatorID, sessionID uuid.UUID) error {
	sess, err := s.sessions.get(operatorID, sessionID)
	if err != nil {
		return err
	}
	s.closeSession(sess)
	return nil
}

// Expire is the janitor callback for idle sessions already removed from
// the store
func (s *Service) Expire(sess *Session) {
	sess.mu.Lock()
	closed := sess.closeLocked()
	sess.mu.Unlock()
	if closed {
		s.publishClosed(sess)
	}
}

func (s *Service) closeSession(sess *Session) {
	sess.mu.Lock()
	closed := sess.closeLocked()
	sess.mu.Unlock()
	if !closed {
		return
	}
	s.sessions.remove(sess.ID)
	s.publishClosed(sess)
}

func (s *Service) publishClosed(sess *Session) {
	s.publish(events.Event{
		Type:       events.EventSessionClosed,
		UserID:     sess.UserID,
		OperatorID: sess.OperatorID.String(),
		SessionID:  sess.ID.String(),
	})
}

// scheduleEmptyClose arms the auto-close for an emptied session. Caller
// holds sess.mu.
func (s *Service) scheduleEmptyClose(sess *Session) {
	if s.emptyTTL <= 0 {
		return
	}
	if sess.emptyTimer != nil {
		sess.emptyTimer.Stop()
	}
	sess.emptyTimer = time.AfterFunc(s.emptyTTL, func() {
		sess.mu.Lock()
		if sess.state != StateEmpty {
			sess.mu.Unlock()
			return
		}
		sess.closeLocked()
		sess.mu.Unlock()
		s.sessions.remove(sess.ID)
		s.publishClosed(sess)
	})
}

// fetchQueue pages through the user's PENDING transactions, oldest first
func (s *Service) fetchQueue(ctx context.Context, userID string) ([]*transaction.Transaction, error) {
	var queue []*transaction.Transaction
	for page := 1; page <= queueMaxPages; page++ {
		txs, meta, err := s.coins.ListPendingTransactions(ctx, userID, page, queuePageLimit)
		if err != nil {
			return nil, err
		}
		queue = append(queue, txs...)
		if len(txs) < queuePageLimit || len(queue) >= meta.Total {
			break
		}
	}
	return queue, nil
}

func (s *Service) publish(event events.Event) {
	if s.events == nil {
		return
	}
	s.events.Publish(event)
}

// upstreamMessage extracts the operator-facing message from an error,
// preserving backend-provided text verbatim
func upstreamMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *coins.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var transportErr *coins.TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Timeout {
			return "The coins service timed out. Please retry."
		}
		return "The coins service is unreachable. Please retry."
	}
	if errors.Is(err, coins.ErrUnauthorized) {
		return "Not authorized by the coins service. Please re-authenticate."
	}
	return err.Error()
}
