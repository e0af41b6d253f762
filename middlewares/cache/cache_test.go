package cache

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dormoron/strand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResponseCache_Middleware(t *testing.T) {
	rc, err := New(8, time.Minute)
	require.NoError(t, err)

	calls := 0
	s := strand.InitServer(
		strand.WithLogger(zap.NewNop()),
		strand.WithHandlers(strand.BuildChain(func(c *strand.Chain) {
			c.All(rc.Middleware(URLKeyGenerator()))
			c.Get("items", func(ctx *strand.Context) {
				calls++
				ctx.Response.Header().Set("X-Version", "7")
				ctx.Render(strand.JSON(map[string]int{"calls": calls}))
			})
			c.Get("fail", func(ctx *strand.Context) {
				calls++
				ctx.ClientError(http.StatusBadRequest)
			})
		})),
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	first := get("/items")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get("/items")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "7", second.Header().Get("X-Version"))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	get("/fail")
	get("/fail")
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, rc.Len())

	rc.Clear()
	get("/items")
	assert.Equal(t, 4, calls)
}

func TestResponseCache_Expired(t *testing.T) {
	rc, err := New(8, 20*time.Millisecond)
	require.NoError(t, err)

	calls := 0
	s := strand.InitServer(
		strand.WithLogger(zap.NewNop()),
		strand.WithHandlers(rc.Middleware(URLAndHeaderKeyGenerator("Accept-Language")), func(ctx *strand.Context) {
			calls++
			ctx.Render(fmt.Sprint(calls))
		}),
	)
	serve := func(lang string) string {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Language", lang)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		return rec.Body.String()
	}

	assert.Equal(t, "1", serve("en"))
	assert.Equal(t, "1", serve("en"))
	assert.Equal(t, "2", serve("fr"))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, "3", serve("en"))
}
