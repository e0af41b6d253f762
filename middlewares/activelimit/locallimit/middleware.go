package locallimit

import (
	"net/http"

	"github.com/dormoron/strand"
	"go.uber.org/atomic"
)

// MiddlewareBuilder limits the requests handled at the same time by one
// process. Requests over the limit get 429 through the client error
// handler unless an overload handler is set.
type MiddlewareBuilder struct {
	maxActive   *atomic.Int64
	countActive *atomic.Int64
	onOverload  strand.Handler
}

func InitMiddlewareBuilder(maxActive int64) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		maxActive:   atomic.NewInt64(maxActive),
		countActive: atomic.NewInt64(0),
	}
}

func (m *MiddlewareBuilder) SetOverloadHandler(h strand.Handler) *MiddlewareBuilder {
	m.onOverload = h
	return m
}

// SetMaxActive changes the limit of a running handler.
func (m *MiddlewareBuilder) SetMaxActive(maxActive int64) *MiddlewareBuilder {
	m.maxActive.Store(maxActive)
	return m
}

// Active is the number of requests currently past this handler.
func (m *MiddlewareBuilder) Active() int64 {
	return m.countActive.Load()
}

func (m *MiddlewareBuilder) Build() strand.Handler {
	return func(ctx *strand.Context) {
		current := m.countActive.Inc()
		defer m.countActive.Dec()

		if current > m.maxActive.Load() {
			if m.onOverload != nil {
				m.onOverload(ctx)
				return
			}
			ctx.ClientError(http.StatusTooManyRequests)
			return
		}
		ctx.Next()
	}
}
