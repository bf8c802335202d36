package redis

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// KV is the slice of the cache the lock needs: an atomic set-if-absent and a
// delete.
type KV interface {
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Lock is a cache-backed mutual-exclusion primitive shared by every service
// instance. At most one holder exists per key within its TTL; the TTL
// guarantees eventual release even when the holder dies without releasing.
type Lock struct {
	kv     KV
	logger *zap.Logger
}

func NewLock(kv KV, logger *zap.Logger) *Lock {
	return &Lock{kv: kv, logger: logger}
}

// Acquire atomically claims key for ttl. A false return is not an error:
// another instance holds the key.
func (l *Lock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.kv.SetIfAbsent(ctx, key, "1", ttl)
}

// Release drops the key. Best-effort: a failed release only delays the next
// acquisition until the TTL expires.
func (l *Lock) Release(ctx context.Context, key string) {
	if err := l.kv.Delete(ctx, key); err != nil {
		l.logger.Debug("Failed to release lock, TTL will reclaim it",
			zap.String("key", key),
			zap.Error(err))
	}
}
