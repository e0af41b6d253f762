package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dormoron/strand"
	"go.uber.org/zap"
)

type MiddlewareBuilder struct {
	limiter       Limiter
	keyFn         func(ctx *strand.Context) string
	retryAfterSec int
}

// InitMiddlewareBuilder limits requests per client IP by default.
func InitMiddlewareBuilder(limiter Limiter, retryAfterSec int) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		limiter:       limiter,
		retryAfterSec: retryAfterSec,
		keyFn: func(ctx *strand.Context) string {
			return "ip-limiter:" + ClientIP(ctx.Request)
		},
	}
}

func (b *MiddlewareBuilder) SetKeyGenFunc(fn func(*strand.Context) string) *MiddlewareBuilder {
	b.keyFn = fn
	return b
}

// Build answers limited requests with 429 and Retry-After. An empty key
// is never limited. Limiter failures go to the server error handler.
func (b *MiddlewareBuilder) Build() strand.Handler {
	return func(ctx *strand.Context) {
		key := b.keyFn(ctx)
		if key == "" {
			ctx.Logger().Warn("ratelimit: empty key, request not limited")
			ctx.Next()
			return
		}
		limited, err := b.limiter.Limit(ctx, key)
		if err != nil {
			ctx.Error(err)
			return
		}
		if limited {
			ctx.Logger().Debug("ratelimit: request blocked", zap.String("key", key))
			if b.retryAfterSec > 0 {
				ctx.Response.Header().Set("Retry-After", strconv.Itoa(b.retryAfterSec))
			}
			ctx.ClientError(http.StatusTooManyRequests)
			return
		}
		ctx.Next()
	}
}

// ClientIP 取 X-Forwarded-For 第一个地址, 其次 X-Real-IP, 最后 RemoteAddr
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
