package task

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, "test")
}

func TestRedisStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return newTestRedisStore(t) })
}

func TestRedisStore_KeyNamespace(t *testing.T) {
	store := NewRedisStore(nil, "")
	if got := store.taskKey("abc"); got != "kaiamate:task:abc" {
		t.Fatalf("taskKey = %q", got)
	}
	if got := store.ownerKey("0xabc"); got != "kaiamate:owner:0xabc" {
		t.Fatalf("ownerKey = %q", got)
	}
}

func TestRedisStore_RejectsUnknownStoredStatus(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	doc := `{"id":"bogus-1","type":"SAVE_MONEY","parameters":{},"status":"ARCHIVED","walletAddress":"0xabc","createdAt":"2024-01-01T00:00:00Z"}`
	if err := store.rdb.Set(ctx, store.taskKey("bogus-1"), doc, 0).Err(); err != nil {
		t.Fatalf("seed raw task: %v", err)
	}
	if _, err := store.FindByID(ctx, "bogus-1"); err == nil {
		t.Fatal("expected error for unknown stored status")
	}
}
