package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dormoron/strand/internal/errs"
	"github.com/dormoron/strand/session"
	"github.com/patrickmn/go-cache"
)

// Store 基于 go-cache 的本地 session 存储, 过期的 session 由 go-cache 定期清理
type Store struct {
	// 保证 Refresh 读取和写回之间不被 Remove 打断
	mutex      sync.Mutex
	sessions   *cache.Cache
	expiration time.Duration
}

// InitStore 创建过期时间为 expiration 的存储
func InitStore(expiration time.Duration) *Store {
	cleanup := expiration
	if cleanup > time.Minute {
		cleanup = time.Minute
	}
	return &Store{
		sessions:   cache.New(expiration, cleanup),
		expiration: expiration,
	}
}

func (s *Store) Generate(_ context.Context, id string) (session.Session, error) {
	sess := &Session{id: id}
	s.sessions.Set(id, sess, s.expiration)
	return sess, nil
}

func (s *Store) Refresh(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	val, ok := s.sessions.Get(id)
	if !ok {
		return errs.ErrIdSessionNotFound(id)
	}
	s.sessions.Set(id, val, s.expiration)
	return nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sessions.Delete(id)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (session.Session, error) {
	val, ok := s.sessions.Get(id)
	if !ok {
		return nil, errs.ErrIdSessionNotFound(id)
	}
	return val.(*Session), nil
}

// Len 当前未过期的 session 数
func (s *Store) Len() int {
	return s.sessions.ItemCount()
}

type Session struct {
	id     string
	values sync.Map
}

func (s *Session) Get(_ context.Context, key string) (any, error) {
	val, ok := s.values.Load(key)
	if !ok {
		return nil, errs.ErrKeyNotFound(key)
	}
	return val, nil
}

func (s *Session) Set(_ context.Context, key string, value any) error {
	s.values.Store(key, value)
	return nil
}

func (s *Session) Delete(_ context.Context, key string) error {
	s.values.Delete(key)
	return nil
}

func (s *Session) ID() string {
	return s.id
}
