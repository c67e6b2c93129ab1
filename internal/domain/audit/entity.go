package audit

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Action is the operator decision being recorded
type Action string

const (
	ActionApproved   Action = "approved"
	ActionRejected   Action = "rejected"
	ActionPaid       Action = "paid"
	ActionMarkedPaid Action = "marked_paid"
	ActionAdjusted   Action = "adjusted"
)

// Entry is one immutable row in the operator action log. Entries are the
// portal's own record of what was sent to the coins backend; transaction
// state itself lives there.
type Entry struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	OperatorID    uuid.UUID      `db:"operator_id" json:"operator_id"`
	TransactionID string         `db:"transaction_id" json:"transaction_id"`
	UserID        string         `db:"user_id" json:"user_id"`
	Action        Action         `db:"action" json:"action"`
	Reason        sql.NullString `db:"reason" json:"reason,omitempty"`
	Notes         sql.NullString `db:"notes" json:"notes,omitempty"`
	Detail        sql.NullString `db:"detail" json:"detail,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// ListFilter narrows admin audit queries
type ListFilter struct {
	OperatorID    *uuid.UUID
	TransactionID string
	Action        Action
	Limit         int
	Offset        int
}

// Summary aggregates decision counts over a window, one bucket per action
type Summary struct {
	Since    time.Time        `json:"since"`
	ByAction map[Action]int64 `json:"by_action"`
	Total    int64            `json:"total"`
}
