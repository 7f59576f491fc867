package cache

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/soloware/dealdesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRedisClient returns nil when no Redis address is configured.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

func Provide(client *redis.Client, log *zap.Logger) Cache {
	if client == nil {
		log.Named("cache").Info("using in-memory cache")
		return NewMemory()
	}
	log.Named("cache").Info("using redis cache")
	return NewRedis(client)
}

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(Provide),
)
