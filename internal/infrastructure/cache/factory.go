package cache

import (
	"context"
	"time"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/shared"
	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SearchCache is the storage behind cached search responses
type SearchCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// Stores bundles the key-value stores the service needs
type Stores struct {
	Idempotency shared.IdempotencyStore
	Search      SearchCache
	client      *redis.Client
}

// Close releases the stores and the redis client if one was opened
func (s *Stores) Close() error {
	if err := s.Idempotency.Close(); err != nil {
		return err
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Backend reports which store implementation is in use
func (s *Stores) Backend() string {
	if s.client != nil {
		return "redis"
	}
	return "memory"
}

// Ping checks the redis connection. In-memory stores are always reachable.
func (s *Stores) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// NewStores builds redis-backed stores when redis is configured and reachable,
// and falls back to in-memory stores otherwise
func NewStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) *Stores {
	if cfg.RedisEnabled() {
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err == nil {
			logger.Info("using Redis for job dedupe and search cache", zap.String("addr", cfg.Redis.Addr()))
			return &Stores{
				Idempotency: NewRedisIdempotencyStore(client, cfg.Queue.IdempotencyKeyPrefix),
				Search:      NewRedisSearchCache(client, ""),
				client:      client,
			}
		}
		logger.Warn("Redis unavailable, falling back to in-memory stores. "+
			"Job dedupe is then local to this process.",
			zap.Error(err),
		)
	}
	return &Stores{
		Idempotency: NewInMemoryIdempotencyStore(cfg.Queue.IdempotencyCleanupTick),
		Search:      NewInMemorySearchCache(),
	}
}

var (
	_ SearchCache = (*InMemorySearchCache)(nil)
	_ SearchCache = (*RedisSearchCache)(nil)
)
