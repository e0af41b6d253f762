package redislimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/dormoron/strand"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newClient connects to the redis at REDIS_ADDR and skips the test when
// none is configured.
func newClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestMiddlewareBuilder_Build(t *testing.T) {
	client := newClient(t)
	key := "strand:test:active:" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	var during int64
	s := strand.InitServer(
		strand.WithLogger(zap.NewNop()),
		strand.WithHandlers(InitMiddlewareBuilder(client, 1, key).Build(), func(ctx *strand.Context) {
			during, _ = client.Get(ctx, key).Int64()
			ctx.Render("ok")
		}),
	)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), during)

	after, err := client.Get(context.Background(), key).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(0), after)

	// another instance holds the only slot
	require.NoError(t, client.Incr(context.Background(), key).Err())
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
