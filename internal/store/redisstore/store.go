package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("task is already being processed")

const (
	stopTTL = 24 * time.Hour
	lockTTL = 45 * time.Minute
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func stopKey(taskID string) string { return "task:stop:" + taskID }
func lockKey(taskID string) string { return "task:lock:" + taskID }

// RequestStop records a cooperative stop request the worker checks between stages.
func (s *Store) RequestStop(ctx context.Context, taskID string) error {
	return s.rdb.Set(ctx, stopKey(taskID), "1", stopTTL).Err()
}

func (s *Store) IsStopped(ctx context.Context, taskID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, stopKey(taskID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TryLock takes the per-task execution lock. The returned token releases it.
func (s *Store) TryLock(ctx context.Context, taskID string) (string, error) {
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, lockKey(taskID), token, lockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("lock task %s: %w", taskID, err)
	}
	if !ok {
		return "", ErrLocked
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (s *Store) Unlock(ctx context.Context, taskID, token string) error {
	_, err := luaUnlock.Run(ctx, s.rdb, []string{lockKey(taskID)}, token).Result()
	return err
}
