package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/coinly/coinadmin-api/internal/config"
	"github.com/coinly/coinadmin-api/internal/domain/receipt"
	"github.com/coinly/coinadmin-api/internal/pkg/database"
	"github.com/coinly/coinadmin-api/internal/pkg/logger"
	"github.com/coinly/coinadmin-api/internal/pkg/storage"
)

const (
	pollInterval  = 5 * time.Second
	maxAttempts   = 3
	thumbSide     = 400
	jpegQuality   = 85
	maxSourceSize = 20 << 20 // 20 MiB cap on downloaded receipts
)

func main() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
	})

	log.Info().Msg("Starting receipt-worker")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(rdb)

	r2, err := storage.NewR2Storage(storage.R2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		AccessKeySecret: cfg.R2AccessKeySecret,
		BucketName:      cfg.R2BucketName,
		PublicURL:       cfg.R2PublicURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create R2 storage client")
	}

	repo := receipt.NewRepository(db)
	httpClient := &http.Client{Timeout: 30 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis wake-ups shorten latency; polling stays the main mechanism
	wake := make(chan struct{}, 1)
	go subscribeWakeups(ctx, rdb, wake)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	lastIdleLog := time.Time{}
	idleLogEvery := 1 * time.Minute

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("receipt-worker stopped")
			return
		case <-wake:
			// immediate poll
		case <-ticker.C:
		}

		job, ok, err := repo.ClaimNext(ctx, maxAttempts)
		if err != nil {
			log.Error().Err(err).Msg("DB error while claiming job")
			continue
		}
		if !ok {
			now := time.Now()
			if lastIdleLog.IsZero() || now.Sub(lastIdleLog) >= idleLogEvery {
				log.Info().Msg("Idle: no thumbnail jobs found")
				lastIdleLog = now
			}
			continue
		}

		start := time.Now()
		log.Info().
			Str("transaction_id", job.TransactionID).
			Msg("Generating receipt thumbnail")

		key, err := processOne(ctx, httpClient, r2, job)
		if err != nil {
			log.Error().
				Err(err).
				Str("transaction_id", job.TransactionID).
				Msg("Thumbnail generation failed")

			if err2 := repo.MarkFailed(ctx, job.ID, err.Error()); err2 != nil {
				log.Error().Err(err2).Str("transaction_id", job.TransactionID).Msg("Failed to update job status=failed")
			}
			continue
		}

		if err := repo.MarkDone(ctx, job.ID, key); err != nil {
			log.Error().Err(err).Str("transaction_id", job.TransactionID).Msg("Failed to update job status=done")
			continue
		}

		log.Info().
			Str("transaction_id", job.TransactionID).
			Str("key", key).
			Dur("took", time.Since(start)).
			Msg("Thumbnail done")
	}
}

func processOne(ctx context.Context, client *http.Client, st *storage.R2Storage, job *receipt.Job) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.SourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize))
	if err != nil {
		return "", fmt.Errorf("read: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}

	thumb := imaging.Fit(img, thumbSide, thumbSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	key := fmt.Sprintf("receipts/thumbs/%s.jpg", job.TransactionID)
	if err := st.Put(ctx, key, bytes.NewReader(buf.Bytes()), "image/jpeg"); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	return key, nil
}

func subscribeWakeups(ctx context.Context, rdb *redis.Client, wake chan<- struct{}) {
	sub := rdb.Subscribe(ctx, receipt.WakeChannel)
	defer func() { _ = sub.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Channel():
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}
