package session

import (
	"context"
	"net/http"
)

// Store 管理 session 本身
type Store interface {
	// Generate 创建 id 对应的 session
	Generate(ctx context.Context, id string) (Session, error)
	// Refresh 延长 session 的过期时间
	Refresh(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Session, error)
}

type Session interface {
	// Get 返回 key 对应的值, 不存在时返回 ErrKeyNotFound
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, key string) error
	ID() string
}

// Propagator 在请求和响应之间传递 session id
type Propagator interface {
	Inject(id string, writer http.ResponseWriter) error
	Extract(req *http.Request) (string, error)
	Remove(writer http.ResponseWriter) error
}
