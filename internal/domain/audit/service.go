package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	summaryCacheKey = "coinadmin:audit:summary"
	summaryCacheTTL = 60 * time.Second
	summaryWindow   = 24 * time.Hour
)

// Service records operator decisions and serves the activity summary the
// admin UI polls for its counters
type Service struct {
	repo  Repository
	redis *redis.Client
}

// NewService creates an audit service. redisClient may be nil; the summary
// then skips caching.
func NewService(repo Repository, redisClient *redis.Client) *Service {
	return &Service{repo: repo, redis: redisClient}
}

// Record writes one audit row. Failures are logged, not propagated: an
// audit miss must never undo a decision the backend already accepted.
func (s *Service) Record(ctx context.Context, operatorID uuid.UUID, txID, userID string, action Action, reason, notes, detail string) {
	entry := &Entry{
		ID:            uuid.New(),
		OperatorID:    operatorID,
		TransactionID: txID,
		UserID:        userID,
		Action:        action,
		CreatedAt:     time.Now(),
	}
	if reason != "" {
		entry.Reason = sql.NullString{String: reason, Valid: true}
	}
	if notes != "" {
		entry.Notes = sql.NullString{String: notes, Valid: true}
	}
	if detail != "" {
		entry.Detail = sql.NullString{String: detail, Valid: true}
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		log.Error().Err(err).
			Str("transaction_id", txID).
			Str("action", string(action)).
			Msg("failed to write audit entry")
		return
	}

	s.invalidateSummary(ctx)
}

// List returns audit entries for the admin screen
func (s *Service) List(ctx context.Context, filter *ListFilter) ([]*Entry, int, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// GetSummary returns decision counts over the last 24h, cached briefly in
// Redis so counter polling doesn't hammer Postgres
func (s *Service) GetSummary(ctx context.Context) (*Summary, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, summaryCacheKey).Bytes()
		if err == nil {
			var summary Summary
			if json.Unmarshal(cached, &summary) == nil {
				return &summary, nil
			}
		}
	}

	since := time.Now().Add(-summaryWindow)
	counts, err := s.repo.CountByActionSince(ctx, since)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Since:    since,
		ByAction: counts,
	}
	for _, c := range counts {
		summary.Total += c
	}

	if s.redis != nil {
		if payload, err := json.Marshal(summary); err == nil {
			if err := s.redis.Set(ctx, summaryCacheKey, payload, summaryCacheTTL).Err(); err != nil {
				log.Debug().Err(err).Msg("failed to cache audit summary")
			}
		}
	}

	return summary, nil
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, summaryCacheKey).Err(); err != nil {
		log.Debug().Err(err).Msg("failed to invalidate audit summary cache")
	}
}
