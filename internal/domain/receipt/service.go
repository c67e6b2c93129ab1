package receipt

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/coinly/coinadmin-api/internal/domain/transaction"
	"github.com/coinly/coinadmin-api/internal/pkg/storage"
)

// WakeChannel is the Redis channel pinged when new jobs are enqueued so
// the worker polls immediately instead of waiting out its interval
const WakeChannel = "coinadmin:receipts_enqueued"

const presignTTL = 15 * time.Minute

// Service schedules thumbnail jobs and resolves evidence links
type Service struct {
	repo    Repository
	redis   *redis.Client
	storage storage.Storage
}

// NewService creates a receipt service
func NewService(repo Repository, redisClient *redis.Client, store storage.Storage) *Service {
	return &Service{repo: repo, redis: redisClient, storage: store}
}

// EnqueueFromQueue schedules thumbnail generation for every transaction
// in the queue that carries receipt evidence. Best-effort: a failed
// enqueue is logged and skipped, the original receipt URL still works.
func (s *Service) EnqueueFromQueue(ctx context.Context, txs []*transaction.Transaction) {
	enqueued := 0
	for _, tx := range txs {
		if tx == nil || tx.ReceiptURL == nil || *tx.ReceiptURL == "" {
			continue
		}
		if err := s.repo.Enqueue(ctx, tx.ID, *tx.ReceiptURL); err != nil {
			log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("failed to enqueue receipt thumbnail")
			continue
		}
		enqueued++
	}

	if enqueued == 0 || s.redis == nil {
		return
	}
	if err := s.redis.Publish(ctx, WakeChannel, "enqueued").Err(); err != nil {
		log.Debug().Err(err).Msg("failed to wake receipt worker")
	}
}

// Resolve returns the original receipt URL and, when a thumbnail has been
// generated, a short-lived presigned link to it
func (s *Service) Resolve(ctx context.Context, tx *transaction.Transaction) (string, string, error) {
	if tx == nil || tx.ReceiptURL == nil || *tx.ReceiptURL == "" {
		return "", "", nil
	}
	receiptURL := *tx.ReceiptURL

	job, err := s.repo.GetByTransactionID(ctx, tx.ID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return receiptURL, "", nil
		}
		return receiptURL, "", err
	}
	if job.Status != JobDone || !job.ObjectKey.Valid {
		return receiptURL, "", nil
	}

	thumbURL, err := s.storage.PresignGet(ctx, job.ObjectKey.String, presignTTL)
	if err != nil {
		log.Warn().Err(err).Str("object_key", job.ObjectKey.String).Msg("failed to presign thumbnail")
		return receiptURL, "", nil
	}
	return receiptURL, thumbURL, nil
}
