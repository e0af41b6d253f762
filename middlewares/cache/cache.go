package cache

import (
	"bytes"
	"net/http"
	"time"

	"github.com/dormoron/strand"
	lru "github.com/hashicorp/golang-lru"
)

// ResponseCache 缓存 GET 请求的 2xx 响应, 按 LRU 淘汰, 超过 ttl 视为过期
type ResponseCache struct {
	cache *lru.Cache
	ttl   time.Duration
}

type cachedResponse struct {
	data       []byte
	statusCode int
	createdAt  time.Time
	headers    http.Header
}

func New(size int, ttl time.Duration) (*ResponseCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ResponseCache{cache: c, ttl: ttl}, nil
}

// Middleware serves cached responses for the key keyFn computes, and
// caches what the rest of the chain sends otherwise. An empty key
// bypasses the cache. X-Cache tells HIT from MISS.
func (rc *ResponseCache) Middleware(keyFn func(*strand.Context) string) strand.Handler {
	return func(ctx *strand.Context) {
		if ctx.Request.Method != http.MethodGet {
			ctx.Next()
			return
		}
		key := keyFn(ctx)
		if key == "" {
			ctx.Next()
			return
		}

		if v, ok := rc.cache.Get(key); ok {
			cached := v.(*cachedResponse)
			if time.Since(cached.createdAt) <= rc.ttl {
				header := ctx.Response.Header()
				for k, vals := range cached.headers {
					header[k] = append([]string(nil), vals...)
				}
				header.Set("X-Cache", "HIT")
				_ = ctx.Response.Status(cached.statusCode).Send(cached.data)
				return
			}
			rc.cache.Remove(key)
		}

		var buf bytes.Buffer
		ctx.Response.Tee(&buf)
		ctx.Response.BeforeSend(func(r *strand.Response) {
			r.Header().Set("X-Cache", "MISS")
		})
		ctx.Next()
		ctx.Response.Tee(nil)

		status := ctx.Response.StatusCode()
		if !ctx.Response.Committed() || status < 200 || status >= 300 {
			return
		}
		headers := ctx.Response.Header().Clone()
		headers.Del("X-Cache")
		headers.Del("Set-Cookie")
		headers.Del(strand.RequestIDHeader)
		rc.cache.Add(key, &cachedResponse{
			data:       bytes.Clone(buf.Bytes()),
			statusCode: status,
			createdAt:  time.Now(),
			headers:    headers,
		})
	}
}

func URLKeyGenerator() func(*strand.Context) string {
	return func(ctx *strand.Context) string {
		return ctx.Request.URL.String()
	}
}

func URLAndHeaderKeyGenerator(headers ...string) func(*strand.Context) string {
	return func(ctx *strand.Context) string {
		key := ctx.Request.URL.String()
		for _, h := range headers {
			key += ":" + ctx.Request.Header.Get(h)
		}
		return key
	}
}

func (rc *ResponseCache) Len() int {
	return rc.cache.Len()
}

func (rc *ResponseCache) Clear() {
	rc.cache.Purge()
}
