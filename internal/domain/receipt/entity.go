package receipt

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the processing state of a thumbnail job
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// Job is one receipt thumbnail generation task. Jobs are keyed by
// transaction so re-opening a session never duplicates work.
type Job struct {
	ID            uuid.UUID      `db:"id"`
	TransactionID string         `db:"transaction_id"`
	SourceURL     string         `db:"source_url"`
	ObjectKey     sql.NullString `db:"object_key"`
	Status        JobStatus      `db:"status"`
	Attempts      int            `db:"attempts"`
	LastError     sql.NullString `db:"last_error"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}
