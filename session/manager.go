package session

import (
	"errors"

	"github.com/dormoron/strand"
	"github.com/dormoron/strand/internal/errs"
	"github.com/dormoron/strand/registry"
	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound 表示 id 对应的 session 不存在或已过期
	ErrSessionNotFound = errs.ErrSessionNotFound
	// ErrKeyNotFound 表示 session 中没有该 key
	ErrKeyNotFound = errs.ErrSessionKeyNotFound
)

// Manager 组合 Store 与 Propagator
type Manager struct {
	Store
	Propagator
}

// GetSession returns the session in the request registry, put there by
// the session handler, or else the one named by the request.
func (m *Manager) GetSession(ctx *strand.Context) (Session, error) {
	if sess, ok := registry.Lookup[Session](ctx); ok {
		return sess, nil
	}
	id, err := m.Extract(ctx.Request)
	if err != nil {
		return nil, errors.Join(ErrSessionNotFound, err)
	}
	return m.Get(ctx, id)
}

// InitSession creates a session with a fresh id and sends the id back
// to the client.
func (m *Manager) InitSession(ctx *strand.Context) (Session, error) {
	id := uuid.NewString()
	sess, err := m.Generate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = m.Inject(id, ctx.Response); err != nil {
		return nil, err
	}
	return sess, nil
}

func (m *Manager) RefreshSession(ctx *strand.Context) error {
	sess, err := m.GetSession(ctx)
	if err != nil {
		return err
	}
	return m.Refresh(ctx, sess.ID())
}

func (m *Manager) RemoveSession(ctx *strand.Context) error {
	sess, err := m.GetSession(ctx)
	if err != nil {
		return err
	}
	if err = m.Store.Remove(ctx, sess.ID()); err != nil {
		return err
	}
	return m.Propagator.Remove(ctx.Response)
}
