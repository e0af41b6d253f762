package strand

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/dormoron/strand/config"
	"github.com/dormoron/strand/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestServer_NoResponseSent(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := InitServer(
		WithLogger(zap.New(core)),
		WithHandlers(func(ctx *Context) {}),
	)

	rec := serve(s, http.MethodGet, "/quiet")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entries := logs.FilterMessage("no response sent").All()
	require.Len(t, entries, 1)
	assert.Equal(t, rec.Header().Get(RequestIDHeader), entries[0].ContextMap()["request_id"])
}

func TestServer_DefaultIsNotFound(t *testing.T) {
	s := InitServer(WithLogger(zap.NewNop()))
	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/").Code)
}

func TestServer_WithHandlersAppends(t *testing.T) {
	s := InitServer(
		WithLogger(zap.NewNop()),
		WithHandlers(func(ctx *Context) {
			ctx.Set("first", true)
			ctx.Next()
		}),
		WithHandlers(func(ctx *Context) {
			_, ok := ctx.Get("first")
			assert.True(t, ok)
			ctx.Render("second")
		}),
	)
	assert.Equal(t, "second", serve(s, http.MethodGet, "/").Body.String())
}

func TestServer_Registry(t *testing.T) {
	cfg, err := config.New()
	require.NoError(t, err)
	cfg.Set("greeting", "hi")

	s := InitServer(
		WithLogger(zap.NewNop()),
		WithConfig(cfg),
		WithRegistry(registry.Single("first")),
		WithRegistry(registry.Single("second")),
		WithHandlers(func(ctx *Context) {
			p := registry.MustGet[config.Provider](ctx)
			ctx.Render(p.GetString("greeting") + " " + registry.MustGet[string](ctx))
		}),
	)

	assert.Equal(t, "hi second", serve(s, http.MethodGet, "/").Body.String())

	all := make([]string, 0, 2)
	for v := range registry.All[string](s.Registry()) {
		all = append(all, v)
	}
	assert.Equal(t, []string{"second", "first"}, all)

	_, ok := registry.Lookup[ServerConfig](s.Registry())
	assert.True(t, ok)
}

func TestServer_RequestIDGeneratorFromRegistry(t *testing.T) {
	gen := RequestIDGeneratorFunc(func(r *http.Request) RequestID { return "custom-id" })
	s := InitServer(
		WithLogger(zap.NewNop()),
		WithRegistry(registry.Single[RequestIDGenerator](gen)),
		WithHandlers(func(ctx *Context) {
			ctx.Render(string(ctx.RequestID()))
		}),
	)

	rec := serve(s, http.MethodGet, "/")
	assert.Equal(t, "custom-id", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "custom-id", rec.Body.String())
}

func TestServer_ServeAndShutdown(t *testing.T) {
	s := InitServer(
		WithLogger(zap.NewNop()),
		WithHandlers(BuildChain(func(c *Chain) {
			c.Get("ping", func(ctx *Context) { ctx.Render("pong") })
		})),
	)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/ping")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "pong", string(body))
	assert.Equal(t, l.Addr().String(), s.Addr().String())

	assert.Eventually(t, func() bool {
		return s.Stats() == Stats{InFlight: 0, Served: 1}
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-done)
}

func TestServerConfigFrom(t *testing.T) {
	cfg, err := config.New()
	require.NoError(t, err)

	got, err := ServerConfigFrom(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultServerConfig(), got)

	cfg.Set("server", map[string]any{
		"address":      ":9999",
		"read_timeout": "3s",
		"development":  "true",
		"log":          map[string]any{"level": "debug"},
	})
	got, err = ServerConfigFrom(cfg)
	require.NoError(t, err)
	assert.Equal(t, ":9999", got.Address)
	assert.Equal(t, 3*time.Second, got.ReadTimeout)
	assert.True(t, got.Development)
	assert.Equal(t, "debug", got.Log.Level)
	assert.Equal(t, DefaultServerConfig().WriteTimeout, got.WriteTimeout)
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))

	_, err = NewLogger(LogConfig{Level: "loud", Console: true})
	assert.Error(t, err)

	file := t.TempDir() + "/app.log"
	l, err = NewLogger(LogConfig{Level: "warn", File: file, MaxSize: 1})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
}
