package ratelimit

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/soloware/dealdesk/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	Redis *redis.Client `optional:"true"`
}

func Provide(p Params) Limiter {
	if p.Redis != nil {
		return NewTokenBucket(p.Redis)
	}
	p.Log.Named("ratelimit").Info("using in-process rate limiter")
	return NewMemoryBucket(p.Clock)
}

var Module = fx.Module("ratelimit",
	fx.Provide(Provide),
)
