package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/dormoron/strand"
	"github.com/dormoron/strand/registry"
	"github.com/dormoron/strand/session"
	"github.com/dormoron/strand/session/cookie"
	"github.com/dormoron/strand/session/memory"
	sessredis "github.com/dormoron/strand/session/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MiddlewareBuilder 为每个请求准备 session, 并把它注册到下游的 registry:
//
//	sess := registry.MustGet[session.Session](ctx)
type MiddlewareBuilder struct {
	manager *session.Manager

	cookieName     string
	cookiePath     string
	cookieDomain   string
	cookieSecure   bool
	cookieHTTPOnly bool
	cookieSameSite http.SameSite
	maxAge         time.Duration
	// 为 false 时只加载已有 session
	autoCreate bool
}

type Option func(*MiddlewareBuilder)

func defaults() *MiddlewareBuilder {
	return &MiddlewareBuilder{
		cookieName:     "strand_session",
		cookiePath:     "/",
		cookieSecure:   true,
		cookieHTTPOnly: true,
		cookieSameSite: http.SameSiteStrictMode,
		maxAge:         time.Hour,
		autoCreate:     true,
	}
}

// InitMiddlewareBuilder uses store with a cookie propagator configured
// by opts.
func InitMiddlewareBuilder(store func(expiration time.Duration) session.Store, opts ...Option) *MiddlewareBuilder {
	b := defaults()
	for _, opt := range opts {
		opt(b)
	}
	b.manager = &session.Manager{
		Store: store(b.maxAge),
		Propagator: cookie.InitPropagator(
			cookie.WithCookieName(b.cookieName),
			cookie.WithCookieOption(func(c *http.Cookie) {
				c.Path = b.cookiePath
				c.Domain = b.cookieDomain
				c.Secure = b.cookieSecure
				c.HttpOnly = b.cookieHTTPOnly
				c.SameSite = b.cookieSameSite
				if c.MaxAge == 0 {
					c.MaxAge = int(b.maxAge / time.Second)
				}
			}),
		),
	}
	return b
}

func NewMemoryStore(opts ...Option) *MiddlewareBuilder {
	return InitMiddlewareBuilder(func(exp time.Duration) session.Store {
		return memory.InitStore(exp)
	}, opts...)
}

func NewRedisStore(client redis.Cmdable, keyPrefix string, opts ...Option) *MiddlewareBuilder {
	return InitMiddlewareBuilder(func(exp time.Duration) session.Store {
		return sessredis.InitStore(client,
			sessredis.StoreWithPrefix(keyPrefix),
			sessredis.StoreWithExpiration(exp))
	}, opts...)
}

func WithCookieName(name string) Option {
	return func(b *MiddlewareBuilder) { b.cookieName = name }
}

func WithCookiePath(path string) Option {
	return func(b *MiddlewareBuilder) { b.cookiePath = path }
}

func WithCookieDomain(domain string) Option {
	return func(b *MiddlewareBuilder) { b.cookieDomain = domain }
}

func WithCookieSecure(secure bool) Option {
	return func(b *MiddlewareBuilder) { b.cookieSecure = secure }
}

func WithCookieHTTPOnly(httpOnly bool) Option {
	return func(b *MiddlewareBuilder) { b.cookieHTTPOnly = httpOnly }
}

func WithCookieSameSite(sameSite http.SameSite) Option {
	return func(b *MiddlewareBuilder) { b.cookieSameSite = sameSite }
}

func WithMaxAge(maxAge time.Duration) Option {
	return func(b *MiddlewareBuilder) { b.maxAge = maxAge }
}

func WithAutoCreate(autoCreate bool) Option {
	return func(b *MiddlewareBuilder) { b.autoCreate = autoCreate }
}

func (b *MiddlewareBuilder) Manager() *session.Manager {
	return b.manager
}

// Build loads the request's session and extends its lifetime. Without
// a live session a new one is created, unless auto creation is off, in
// which case the request passes on without one.
func (b *MiddlewareBuilder) Build() strand.Handler {
	return func(ctx *strand.Context) {
		sess, err := b.manager.GetSession(ctx)
		switch {
		case err == nil:
			if err = b.manager.Refresh(ctx, sess.ID()); err != nil {
				ctx.Error(err)
				return
			}
		case !errors.Is(err, session.ErrSessionNotFound) && !errors.Is(err, http.ErrNoCookie):
			ctx.Error(err)
			return
		case !b.autoCreate:
			ctx.Next()
			return
		default:
			if sess, err = b.manager.InitSession(ctx); err != nil {
				ctx.Logger().Error("初始化会话失败", zap.Error(err))
				ctx.Error(err)
				return
			}
		}
		ctx.NextWith(registry.Single[session.Session](sess))
	}
}
