package accesslog

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dormoron/strand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddlewareBuilder_Build(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := strand.InitServer(
		strand.WithLogger(zap.New(core)),
		strand.WithHandlers(strand.BuildChain(func(c *strand.Chain) {
			c.All(InitMiddlewareBuilder().Skip(func(ctx *strand.Context) bool {
				return ctx.Request.URL.Path == "/health"
			}).Build())
			c.Get("users/:id", func(ctx *strand.Context) {
				ctx.Response.Status(http.StatusCreated)
				ctx.Render("hello")
			})
			c.Get("health", func(ctx *strand.Context) { ctx.Render("ok") })
		})),
	)

	req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
	req.Header.Set(strand.RequestIDHeader, "rid")
	s.ServeHTTP(httptest.NewRecorder(), req)
	s.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.FilterMessage("access").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "users/:id", fields["route"])
	assert.Equal(t, "/users/1", fields["path"])
	assert.Equal(t, int64(http.StatusCreated), fields["status"])
	assert.Equal(t, int64(5), fields["bytes"])
	assert.Equal(t, "rid", fields["request_id"])
}
