package main

import (
	"context"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Store.Load for keys that were never saved.
var ErrNotFound = errors.New("history not found")

// Store persists encoded histories between invocations.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

const (
	backendMemory = "memory"
	backendPebble = "pebble"
	backendRedis  = "redis"
)

// OpenStore opens the backend selected in cfg.
func OpenStore(cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case backendMemory:
		return NewMemoryStore(), nil
	case backendPebble:
		return OpenPebbleStore(cfg.Path)
	case backendRedis:
		return OpenRedisStore(cfg.RedisURL, cfg.Prefix)
	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.Backend)
	}
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

type PebbleStore struct {
	db *pebble.DB
}

func OpenPebbleStore(dir string) (*PebbleStore, error) {
	if dir == "" {
		return nil, errors.New("pebble store needs a directory")
	}
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening pebble database at %s", dir)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Load(_ context.Context, key string) ([]byte, error) {
	v, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading %q", key)
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (s *PebbleStore) Save(_ context.Context, key string, data []byte) error {
	if err := s.db.Set([]byte(key), data, pebble.Sync); err != nil {
		return errors.Wrapf(err, "saving %q", key)
	}
	return nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// OpenRedisStore connects to redisURL, e.g. redis://localhost:6379/0. Keys
// are stored under prefix.
func OpenRedisStore(redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	return NewRedisStore(redis.NewClient(opts), prefix), nil
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading %q", key)
	}
	return v, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return errors.Wrapf(err, "saving %q", key)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
