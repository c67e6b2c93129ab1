package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository defines audit log data access
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	List(ctx context.Context, filter *ListFilter) ([]*Entry, error)
	Count(ctx context.Context, filter *ListFilter) (int, error)
	CountByActionSince(ctx context.Context, since time.Time) (map[Action]int64, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates an audit repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO audit_entries (
			id, operator_id, transaction_id, user_id, action, reason, notes, detail, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.OperatorID,
		entry.TransactionID,
		entry.UserID,
		entry.Action,
		entry.Reason,
		entry.Notes,
		entry.Detail,
		entry.CreatedAt,
	)
	return err
}

func (r *repository) List(ctx context.Context, filter *ListFilter) ([]*Entry, error) {
	query := `SELECT * FROM audit_entries WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter != nil {
		if filter.OperatorID != nil {
			query += fmt.Sprintf(` AND operator_id = $%d`, argPos)
			args = append(args, *filter.OperatorID)
			argPos++
		}
		if filter.TransactionID != "" {
			query += fmt.Sprintf(` AND transaction_id = $%d`, argPos)
			args = append(args, filter.TransactionID)
			argPos++
		}
		if filter.Action != "" {
			query += fmt.Sprintf(` AND action = $%d`, argPos)
			args = append(args, filter.Action)
			argPos++
		}

		query += ` ORDER BY created_at DESC`

		if filter.Limit > 0 {
			query += fmt.Sprintf(` LIMIT $%d`, argPos)
			args = append(args, filter.Limit)
			argPos++
		}
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, argPos)
			args = append(args, filter.Offset)
		}
	} else {
		query += ` ORDER BY created_at DESC LIMIT 50`
	}

	var entries []*Entry
	err := r.db.SelectContext(ctx, &entries, query, args...)
	return entries, err
}

func (r *repository) Count(ctx context.Context, filter *ListFilter) (int, error) {
	query := `SELECT COUNT(*) FROM audit_entries WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter != nil {
		if filter.OperatorID != nil {
			query += fmt.Sprintf(` AND operator_id = $%d`, argPos)
			args = append(args, *filter.OperatorID)
			argPos++
		}
		if filter.TransactionID != "" {
			query += fmt.Sprintf(` AND transaction_id = $%d`, argPos)
			args = append(args, filter.TransactionID)
			argPos++
		}
		if filter.Action != "" {
			query += fmt.Sprintf(` AND action = $%d`, argPos)
			args = append(args, filter.Action)
		}
	}

	var count int
	err := r.db.GetContext(ctx, &count, query, args...)
	return count, err
}

func (r *repository) CountByActionSince(ctx context.Context, since time.Time) (map[Action]int64, error) {
	query := `
		SELECT action, COUNT(*) AS count
		FROM audit_entries
		WHERE created_at >= $1
		GROUP BY action
	`
	rows, err := r.db.QueryxContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Action]int64)
	for rows.Next() {
		var action Action
		var count int64
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, rows.Err()
}
