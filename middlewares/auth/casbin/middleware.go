package casbin

import (
	"fmt"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/dormoron/strand"
	"github.com/dormoron/strand/middlewares/auth"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SubjectResolver names the casbin subject of a request. The default
// uses the auth.Principal registered by an upstream handler.
type SubjectResolver func(ctx *strand.Context) (string, bool)

// MiddlewareBuilder builds a handler enforcing casbin policies with the
// subject, the request path and the method as (sub, obj, act). Requests
// without a subject are answered with 401 and denied ones with 403.
type MiddlewareBuilder struct {
	enforcer *casbin.Enforcer
	resolver SubjectResolver
	mu       sync.RWMutex

	policyFile string
	watcher    *fsnotify.Watcher
	logger     *zap.Logger
}

// InitMiddlewareBuilder loads the model and policy files and reloads the
// policy whenever the policy file is written.
func InitMiddlewareBuilder(modelFile, policyFile string) (*MiddlewareBuilder, error) {
	enforcer, err := casbin.NewEnforcer(modelFile, policyFile)
	if err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(policyFile)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("error adding policy file to watcher: %w", err)
	}

	b := NewMiddlewareBuilder(enforcer)
	b.policyFile = filepath.Clean(policyFile)
	b.watcher = watcher
	go b.watchPolicyFile()
	return b, nil
}

// NewMiddlewareBuilder uses an enforcer configured by the caller.
func NewMiddlewareBuilder(enforcer *casbin.Enforcer) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		enforcer: enforcer,
		resolver: principalSubject,
		logger:   zap.L(),
	}
}

func principalSubject(ctx *strand.Context) (string, bool) {
	p, ok := auth.Current(ctx)
	if !ok || p.Name == "" {
		return "", false
	}
	return p.Name, true
}

func (b *MiddlewareBuilder) SubjectResolver(fn SubjectResolver) *MiddlewareBuilder {
	b.resolver = fn
	return b
}

// Logger sets the logger for policy reload failures.
func (b *MiddlewareBuilder) Logger(l *zap.Logger) *MiddlewareBuilder {
	b.logger = l
	return b
}

func (b *MiddlewareBuilder) Close() error {
	if b.watcher == nil {
		return nil
	}
	return b.watcher.Close()
}

func (b *MiddlewareBuilder) watchPolicyFile() {
	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Clean(event.Name) != b.policyFile {
				continue
			}
			if err := b.UpdatePolicy(); err != nil {
				b.logger.Warn("casbin: failed to load updated policy", zap.Error(err))
			}
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.logger.Warn("casbin: policy watcher error", zap.Error(err))
		}
	}
}

// UpdatePolicy reloads the policy from the enforcer's adapter.
func (b *MiddlewareBuilder) UpdatePolicy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enforcer.LoadPolicy()
}

func (b *MiddlewareBuilder) Build() strand.Handler {
	return func(ctx *strand.Context) {
		sub, ok := b.resolver(ctx)
		if !ok {
			ctx.ClientError(http.StatusUnauthorized)
			return
		}
		obj := ctx.Request.URL.Path
		act := ctx.Request.Method

		b.mu.RLock()
		allowed, err := b.enforcer.Enforce(sub, obj, act)
		b.mu.RUnlock()
		if err != nil {
			ctx.Error(fmt.Errorf("casbin: enforce %s %s %s: %w", sub, obj, act, err))
			return
		}
		if !allowed {
			ctx.Logger().Debug("casbin: permission denied",
				zap.String("sub", sub), zap.String("obj", obj), zap.String("act", act))
			ctx.ClientError(http.StatusForbidden)
			return
		}
		ctx.Next()
	}
}
