package verification

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coinly/coinadmin-api/internal/domain/transaction"
	"github.com/coinly/coinadmin-api/internal/pkg/coins"
)

// State is the session's position in the verification workflow
type State string

const (
	StateClosed       State = "closed"
	StateLoadingQueue State = "loading_queue"
	StateReviewing    State = "reviewing"
	StateSubmitting   State = "submitting"
	StateAdvancing    State = "advancing"
	StateEmpty        State = "empty"
)

// Banner is a transient message shown above the current transaction.
// It is replaced on every outcome and cleared on navigation.
type Banner struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	bannerSuccess = "success"
	bannerError   = "error"
)

// Session is one operator's in-memory walk through a user's PENDING queue.
// It is never persisted; a crash simply means reopening, since the coins
// backend holds all real state. All fields below mu are guarded by it.
type Session struct {
	ID         uuid.UUID
	OperatorID uuid.UUID
	UserID     string
	CreatedAt  time.Time

	mu         sync.Mutex
	state      State
	queue      []*transaction.Transaction
	cursor     int
	form       *Form
	profile    *coins.UserProfile
	banner     *Banner
	submitting bool
	lastActive time.Time
	emptyTimer *time.Timer
}

func newSession(operatorID uuid.UUID, userID string) *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.New(),
		OperatorID: operatorID,
		UserID:     userID,
		CreatedAt:  now,
		state:      StateLoadingQueue,
		lastActive: now,
	}
}

// current returns the focused transaction, or nil outside Reviewing range.
// Caller holds mu.
func (s *Session) current() *transaction.Transaction {
	if s.cursor < 0 || s.cursor >= len(s.queue) {
		return nil
	}
	return s.queue[s.cursor]
}

// installQueue replaces the queue and moves to Reviewing(0) or Empty.
// Caller holds mu.
func (s *Session) installQueue(queue []*transaction.Transaction) {
	s.queue = queue
	s.cursor = 0
	if len(queue) == 0 {
		s.state = StateEmpty
		s.form = nil
		return
	}
	s.state = StateReviewing
	s.form = NewForm(s.current())
}

// advance drops transactions that are no longer PENDING and refocuses.
// The cursor clamps to min(i, len-1) so finishing the last item focuses
// the new last item instead of running off the end. Caller holds mu.
func (s *Session) advance() {
	s.state = StateAdvancing

	remaining := s.queue[:0]
	for _, tx := range s.queue {
		if tx.Status == transaction.StatusPending {
			remaining = append(remaining, tx)
		}
	}
	s.queue = remaining

	if len(s.queue) == 0 {
		s.state = StateEmpty
		s.form = nil
		return
	}
	if s.cursor > len(s.queue)-1 {
		s.cursor = len(s.queue) - 1
	}
	s.state = StateReviewing
	s.form = NewForm(s.current())
}

// moveCursor navigates to an adjacent queue position. Navigation targets
// must exist and still be PENDING; the form and banner reset on focus
// change. Caller holds mu.
func (s *Session) moveCursor(delta int) error {
	if s.state != StateReviewing {
		return ErrNotReviewing
	}
	next := s.cursor + delta
	if next < 0 || next >= len(s.queue) {
		return ErrNavigationBlocked
	}
	if s.queue[next].Status != transaction.StatusPending {
		return ErrNavigationBlocked
	}
	s.cursor = next
	s.form = NewForm(s.current())
	s.banner = nil
	return nil
}

// markActive refreshes the idle clock. Caller holds mu.
func (s *Session) markActive() {
	s.lastActive = time.Now()
}

// closeLocked transitions to Closed and cancels any pending auto-close.
// Returns false if already closed. Caller holds mu.
func (s *Session) closeLocked() bool {
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	if s.emptyTimer != nil {
		s.emptyTimer.Stop()
		s.emptyTimer = nil
	}
	return true
}

// IdleFor reports how long the session has gone without operator activity
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActive)
}
