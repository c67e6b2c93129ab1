package receipt

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository persists thumbnail jobs
type Repository interface {
	Enqueue(ctx context.Context, transactionID, sourceURL string) error
	GetByTransactionID(ctx context.Context, transactionID string) (*Job, error)
	ClaimNext(ctx context.Context, maxAttempts int) (*Job, bool, error)
	MarkDone(ctx context.Context, id uuid.UUID, objectKey string) error
	MarkFailed(ctx context.Context, id uuid.UUID, msg string) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates a thumbnail job repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Enqueue(ctx context.Context, transactionID, sourceURL string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO receipt_thumbnails (id, transaction_id, source_url, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', 0, NOW(), NOW())
		ON CONFLICT (transaction_id) DO NOTHING
	`, uuid.New(), transactionID, sourceURL)
	return err
}

func (r *repository) GetByTransactionID(ctx context.Context, transactionID string) (*Job, error) {
	var job Job
	err := r.db.GetContext(ctx, &job, `
		SELECT id, transaction_id, source_url, object_key, status, attempts, last_error, created_at, updated_at
		FROM receipt_thumbnails
		WHERE transaction_id = $1
	`, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ClaimNext picks the oldest claimable job and marks it processing. The
// two-step select-then-conditional-update stays safe if more than one
// worker runs.
func (r *repository) ClaimNext(ctx context.Context, maxAttempts int) (*Job, bool, error) {
	var job Job
	err := r.db.GetContext(ctx, &job, `
		SELECT id, transaction_id, source_url, object_key, status, attempts, last_error, created_at, updated_at
		FROM receipt_thumbnails
		WHERE status IN ('pending', 'failed')
		  AND attempts < $1
		ORDER BY created_at ASC
		LIMIT 1
	`, maxAttempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE receipt_thumbnails
		SET status = 'processing',
		    attempts = attempts + 1,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
		  AND status IN ('pending', 'failed')
		  AND attempts < $2
	`, job.ID, maxAttempts)
	if err != nil {
		return nil, false, err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return nil, false, nil
	}

	return &job, true, nil
}

func (r *repository) MarkDone(ctx context.Context, id uuid.UUID, objectKey string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE receipt_thumbnails
		SET status = 'done',
		    object_key = $2,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id, objectKey)
	return err
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, msg string) error {
	if len(msg) > 2000 {
		msg = msg[:2000]
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE receipt_thumbnails
		SET status = 'failed',
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, msg)
	return err
}
