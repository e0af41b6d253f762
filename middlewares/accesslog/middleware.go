package accesslog

import (
	"time"

	"github.com/dormoron/strand"
	"go.uber.org/zap"
)

// MiddlewareBuilder builds a handler that logs one entry per request
// once the downstream handlers have returned.
type MiddlewareBuilder struct {
	logger  *zap.Logger
	message string
	skip    func(ctx *strand.Context) bool
}

func InitMiddlewareBuilder() *MiddlewareBuilder {
	return &MiddlewareBuilder{message: "access"}
}

// Logger sets the logger. Without one the request's logger from the
// registry is used, which carries the request id.
func (b *MiddlewareBuilder) Logger(l *zap.Logger) *MiddlewareBuilder {
	b.logger = l
	return b
}

func (b *MiddlewareBuilder) Message(msg string) *MiddlewareBuilder {
	b.message = msg
	return b
}

// Skip excludes requests, e.g. health probes, from the log.
func (b *MiddlewareBuilder) Skip(fn func(ctx *strand.Context) bool) *MiddlewareBuilder {
	b.skip = fn
	return b
}

func (b *MiddlewareBuilder) Build() strand.Handler {
	return func(ctx *strand.Context) {
		if b.skip != nil && b.skip(ctx) {
			ctx.Next()
			return
		}
		start := time.Now()
		defer func() {
			l := b.logger
			if l == nil {
				l = ctx.Logger()
			} else if id := ctx.RequestID(); id != "" {
				l = l.With(zap.String("request_id", string(id)))
			}
			l.Info(b.message,
				zap.String("host", ctx.Request.Host),
				zap.String("route", ctx.MatchedRoute()),
				zap.String("http_method", ctx.Request.Method),
				zap.String("path", ctx.Request.URL.Path),
				zap.Int("status", ctx.Response.StatusCode()),
				zap.Int("bytes", ctx.Response.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		}()
		ctx.Next()
	}
}
