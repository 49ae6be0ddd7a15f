package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisMaxTxAttempts = 5

// RedisStore keeps each task as a JSON document and indexes owners with a
// sorted set scored by creation time. Conditional updates run as
// WATCH/MULTI/EXEC optimistic transactions.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore creates a RedisStore. Keys are namespaced by prefix
// (default "kaiamate").
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "kaiamate"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) taskKey(id string) string {
	return s.prefix + ":task:" + id
}

func (s *RedisStore) ownerKey(wallet string) string {
	return s.prefix + ":owner:" + wallet
}

func (s *RedisStore) Insert(ctx context.Context, t *Task) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	key := s.taskKey(t.ID)
	return s.watch(ctx, key, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateID
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			pipe.ZAdd(ctx, s.ownerKey(t.WalletAddress), redis.Z{
				Score:  float64(t.CreatedAt.UnixMicro()),
				Member: t.ID,
			})
			return nil
		})
		return err
	})
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*Task, error) {
	raw, err := s.rdb.Get(ctx, s.taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return decodeRedisTask(raw)
}

func (s *RedisStore) ConditionalUpdate(ctx context.Context, id string, expected Status, p Patch) (bool, error) {
	key := s.taskKey(id)
	applied := false
	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		applied = false
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		t, err := decodeRedisTask(raw)
		if err != nil {
			return err
		}
		if t.Status != expected {
			return nil
		}
		p.Apply(t)
		doc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal task: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("update task %s: %w", id, err)
	}
	return applied, nil
}

func (s *RedisStore) ListByOwner(ctx context.Context, walletAddress string, limit int) ([]*Task, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.rdb.ZRevRange(ctx, s.ownerKey(walletAddress), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.taskKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]*Task, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // index entry without document
		}
		t, err := decodeRedisTask([]byte(raw))
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// watch runs fn in an optimistic transaction on key, retrying when another
// client modified the key between WATCH and EXEC.
func (s *RedisStore) watch(ctx context.Context, key string, fn func(*redis.Tx) error) error {
	var err error
	for i := 0; i < redisMaxTxAttempts; i++ {
		err = s.rdb.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func decodeRedisTask(raw []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	if !t.Status.IsValid() {
		return nil, fmt.Errorf("task %s has unknown status %q", t.ID, t.Status)
	}
	if t.Parameters == nil {
		t.Parameters = map[string]any{}
	}
	return &t, nil
}
