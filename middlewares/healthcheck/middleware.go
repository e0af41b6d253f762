package healthcheck

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dormoron/strand"
	"github.com/dormoron/strand/registry"
)

// Status 表示服务健康状态
type Status string

const (
	StatusUp      Status = "UP"
	StatusDown    Status = "DOWN"
	StatusUnknown Status = "UNKNOWN"
)

// ComponentCheck 表示一个组件检查函数
type ComponentCheck func(ctx context.Context) (Status, map[string]any)

// Component is a named check. Components found in the request registry
// are added to the main health report, after the registered ones.
type Component struct {
	Name  string
	Check ComponentCheck
}

// HealthResponse 表示健康检查响应
type HealthResponse struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
}

// ComponentStatus 表示组件状态
type ComponentStatus struct {
	Status  Status         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// Middleware answers GET on path, path/readiness and path/liveness and
// passes every other request on. path is matched against the remainder of
// the path binding in scope, so under Prefix("admin") "/health" answers
// /admin/health.
type Middleware struct {
	mu              sync.Mutex
	path            string
	version         string
	components      map[string]ComponentCheck
	readinessChecks map[string]ComponentCheck
	livenessChecks  map[string]ComponentCheck

	cacheTimeout  time.Duration
	cached        HealthResponse
	lastCheckTime time.Time
}

// InitMiddleware 创建新的健康检查中间件, path 默认 /health
func InitMiddleware(path string) *Middleware {
	if path == "" {
		path = "/health"
	}
	path = "/" + strings.Trim(path, "/")
	m := &Middleware{
		path:            path,
		components:      make(map[string]ComponentCheck),
		readinessChecks: make(map[string]ComponentCheck),
		livenessChecks:  make(map[string]ComponentCheck),
		cacheTimeout:    5 * time.Second,
	}
	m.RegisterComponent("self", func(context.Context) (Status, map[string]any) {
		return StatusUp, map[string]any{"message": "Service is running"}
	})
	return m
}

func (m *Middleware) RegisterComponent(name string, check ComponentCheck) *Middleware {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = check
	m.lastCheckTime = time.Time{}
	return m
}

func (m *Middleware) RegisterReadinessCheck(name string, check ComponentCheck) *Middleware {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readinessChecks[name] = check
	return m
}

func (m *Middleware) RegisterLivenessCheck(name string, check ComponentCheck) *Middleware {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.livenessChecks[name] = check
	return m
}

func (m *Middleware) SetVersion(version string) *Middleware {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = version
	return m
}

// SetCacheTimeout sets how long the main report is reused. Zero
// disables caching.
func (m *Middleware) SetCacheTimeout(timeout time.Duration) *Middleware {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheTimeout = timeout
	return m
}

func (m *Middleware) performChecks(ctx context.Context, checks map[string]ComponentCheck) HealthResponse {
	result := HealthResponse{
		Status:     StatusUp,
		Components: make(map[string]ComponentStatus, len(checks)),
		Timestamp:  time.Now(),
		Version:    m.version,
	}
	if len(checks) == 0 {
		result.Status = StatusUnknown
		return result
	}
	for name, check := range checks {
		status, details := check(ctx)
		result.Components[name] = ComponentStatus{Status: status, Details: details}
		// 任一组件 DOWN 则整体 DOWN
		if status != StatusUp && result.Status != StatusDown {
			result.Status = status
		}
	}
	return result
}

func (m *Middleware) health(ctx *strand.Context) HealthResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.lastCheckTime.IsZero() && time.Since(m.lastCheckTime) < m.cacheTimeout {
		return m.cached
	}
	checks := make(map[string]ComponentCheck, len(m.components))
	for name, check := range m.components {
		checks[name] = check
	}
	for c := range registry.All[Component](ctx) {
		if _, ok := checks[c.Name]; !ok && c.Check != nil {
			checks[c.Name] = c.Check
		}
	}
	m.cached = m.performChecks(ctx, checks)
	m.lastCheckTime = time.Now()
	return m.cached
}

func (m *Middleware) probe(ctx *strand.Context, checks map[string]ComponentCheck) HealthResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.performChecks(ctx, checks)
}

func (m *Middleware) Build() strand.Handler {
	return func(ctx *strand.Context) {
		if ctx.Request.Method != http.MethodGet && ctx.Request.Method != http.MethodHead {
			ctx.Next()
			return
		}
		var resp HealthResponse
		switch "/" + ctx.PathBinding().PastBinding() {
		case m.path:
			resp = m.health(ctx)
		case m.path + "/readiness":
			resp = m.probe(ctx, m.readinessChecks)
		case m.path + "/liveness":
			resp = m.probe(ctx, m.livenessChecks)
		default:
			ctx.Next()
			return
		}
		if resp.Status != StatusUp {
			ctx.Response.Status(http.StatusServiceUnavailable)
		}
		ctx.Render(strand.JSON(resp))
	}
}
