package store

import (
	"context"
	"errors"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStepStore 将摄取步骤输出保存在 Redis hash 中，每个文档一个 key。
type RedisStepStore struct {
	redis     goredis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

var _ StepStore = (*RedisStepStore)(nil)

// NewRedisStepStore creates a Redis checkpoint store. ttl bounds how long a
// half-finished ingestion can be resumed.
func NewRedisStepStore(redis goredis.Cmdable, keyPrefix string, ttl time.Duration) *RedisStepStore {
	if keyPrefix == "" {
		keyPrefix = "tutor:ingest:"
	}
	return &RedisStepStore{redis: redis, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *RedisStepStore) key(documentID string) string {
	return s.keyPrefix + documentID
}

// Load returns the saved output of step, if any.
func (s *RedisStepStore) Load(ctx context.Context, documentID, step string) ([]byte, bool, error) {
	data, err := s.redis.HGet(ctx, s.key(documentID), step).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Save records the output of step.
func (s *RedisStepStore) Save(ctx context.Context, documentID, step string, data []byte) error {
	key := s.key(documentID)
	_, err := s.redis.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, step, data)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	return err
}

// Clear drops every checkpoint of a document.
func (s *RedisStepStore) Clear(ctx context.Context, documentID string) error {
	return s.redis.Del(ctx, s.key(documentID)).Err()
}

// MemoryStepStore is an in-process StepStore.
type MemoryStepStore struct {
	mu    sync.Mutex
	steps map[string]map[string][]byte
}

var _ StepStore = (*MemoryStepStore)(nil)

// NewMemoryStepStore creates an empty in-process checkpoint store.
func NewMemoryStepStore() *MemoryStepStore {
	return &MemoryStepStore{steps: make(map[string]map[string][]byte)}
}

// Load returns the saved output of step, if any.
func (s *MemoryStepStore) Load(_ context.Context, documentID, step string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.steps[documentID][step]
	return data, ok, nil
}

// Save records the output of step.
func (s *MemoryStepStore) Save(_ context.Context, documentID, step string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.steps[documentID] == nil {
		s.steps[documentID] = make(map[string][]byte)
	}
	s.steps[documentID][step] = append([]byte(nil), data...)
	return nil
}

// Clear drops every checkpoint of a document.
func (s *MemoryStepStore) Clear(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.steps, documentID)
	return nil
}
