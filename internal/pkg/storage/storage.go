package storage

import (
	"context"
	"io"
	"time"
)

// Storage is the minimal interface the receipt pipeline needs from an
// object store: write a thumbnail, read it back, and hand out URLs.
type Storage interface {
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	GetURL(key string) string
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}
