package redislimit

import (
	"context"
	"net/http"

	"github.com/dormoron/strand"
	"github.com/redis/go-redis/v9"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// MiddlewareBuilder limits the requests handled at the same time by all
// instances sharing one redis counter.
type MiddlewareBuilder struct {
	maxActive *atomic.Int64
	key       string
	cmd       redis.Cmdable
}

func InitMiddlewareBuilder(cmd redis.Cmdable, maxActive int64, key string) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		maxActive: atomic.NewInt64(maxActive),
		key:       key,
		cmd:       cmd,
	}
}

func (b *MiddlewareBuilder) Build() strand.Handler {
	return func(ctx *strand.Context) {
		current, err := b.cmd.Incr(ctx, b.key).Result()
		if err != nil {
			ctx.Logger().Error("redislimit: incrementing counter failed", zap.String("key", b.key), zap.Error(err))
			ctx.Error(err)
			return
		}
		defer func() {
			if err := b.cmd.Decr(context.WithoutCancel(ctx), b.key).Err(); err != nil {
				ctx.Logger().Error("redislimit: decrementing counter failed", zap.String("key", b.key), zap.Error(err))
			}
		}()

		if current > b.maxActive.Load() {
			ctx.Logger().Warn("redislimit: limit reached", zap.String("key", b.key), zap.Int64("active", current))
			ctx.ClientError(http.StatusTooManyRequests)
			return
		}
		ctx.Next()
	}
}
