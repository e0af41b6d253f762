package redis

import (
	"context"
	"errors"
	"time"

	"github.com/dormoron/strand/internal/errs"
	"github.com/dormoron/strand/session"
	"github.com/redis/go-redis/v9"
)

// Store 每个 session 存为一个 hash, key 为 prefix:id
type Store struct {
	prefix     string
	client     redis.Cmdable
	expiration time.Duration
}

type StoreOptions func(store *Store)

func InitStore(client redis.Cmdable, opts ...StoreOptions) *Store {
	res := &Store{
		client:     client,
		expiration: 15 * time.Minute,
		prefix:     "sessionId",
	}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

func StoreWithExpiration(expiration time.Duration) StoreOptions {
	return func(store *Store) {
		store.expiration = expiration
	}
}

func StoreWithPrefix(prefix string) StoreOptions {
	return func(store *Store) {
		store.prefix = prefix
	}
}

func (s *Store) key(id string) string {
	return s.prefix + ":" + id
}

func (s *Store) Generate(ctx context.Context, id string) (session.Session, error) {
	key := s.key(id)
	// 空 hash 不存在, 写入 id 占位
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, "_id", id)
		p.Expire(ctx, key, s.expiration)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Session{id: id, key: key, client: s.client}, nil
}

func (s *Store) Refresh(ctx context.Context, id string) error {
	ok, err := s.client.Expire(ctx, s.key(id), s.expiration).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrIdSessionNotFound(id)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	key := s.key(id)
	cnt, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if cnt != 1 {
		return nil, errs.ErrIdSessionNotFound(id)
	}
	return &Session{id: id, key: key, client: s.client}, nil
}

// Session 的值以字符串形式保存, Get 总是返回 string
type Session struct {
	id     string
	key    string
	client redis.Cmdable
}

func (s *Session) Get(ctx context.Context, key string) (any, error) {
	val, err := s.client.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrKeyNotFound(key)
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

const luaSet = `
if redis.call("exists", KEYS[1]) == 1
then
	return redis.call("hset", KEYS[1], ARGV[1], ARGV[2])
else
	return -1
end
`

func (s *Session) Set(ctx context.Context, key string, value any) error {
	res, err := s.client.Eval(ctx, luaSet, []string{s.key}, key, value).Int()
	if err != nil {
		return err
	}
	if res < 0 {
		return errs.ErrIdSessionNotFound(s.id)
	}
	return nil
}

func (s *Session) Delete(ctx context.Context, key string) error {
	return s.client.HDel(ctx, s.key, key).Err()
}

func (s *Session) ID() string {
	return s.id
}
