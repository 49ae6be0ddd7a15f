package asyncx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"

	"github.com/mohans/kaiamate/executor"
	"github.com/mohans/kaiamate/orchestrator"
	"github.com/mohans/kaiamate/task"
)

var dbSeq atomic.Int64

func openTestStore(t *testing.T) *task.SQLStore {
	t.Helper()
	dsn := fmt.Sprintf("file:asyncx_it_%d?mode=memory&cache=shared", dbSeq.Add(1))
	store, err := task.OpenSQLite(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func startMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	return s
}

func pollUntil(t *testing.T, timeout time.Duration, f func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := f()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.New("timeout")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessor_Integration_SuccessAndFailure(t *testing.T) {
	s := startMiniRedis(t)
	defer s.Close()

	store := openTestStore(t)
	redis := asynq.RedisClientOpt{Addr: s.Addr()}

	client := NewClient(redis, ClientOptions{Queue: "default"})
	defer client.Close()

	orch := orchestrator.New(store, executor.New(nil), quietLogger(), orchestrator.WithDispatcher(client))
	processor := NewProcessor(redis, orch, ProcessorConfig{Concurrency: 5, Queues: map[string]int{"default": 1}}, quietLogger())
	if err := processor.Start(); err != nil {
		t.Fatalf("start processor: %v", err)
	}
	defer processor.Shutdown()

	ctx := context.Background()
	ok, err := orch.Create(ctx, orchestrator.CreateRequest{
		Type:          task.TypeSaveMoney,
		Parameters:    map[string]any{"amount": "50", "token": "USDT"},
		WalletAddress: "0xabc",
	})
	if err != nil {
		t.Fatalf("create ok task: %v", err)
	}
	bad, err := orch.Create(ctx, orchestrator.CreateRequest{Type: "UNKNOWN_X", WalletAddress: "0xabc"})
	if err != nil {
		t.Fatalf("create failing task: %v", err)
	}

	if err := pollUntil(t, 5*time.Second, func() (bool, error) {
		v, err := orch.Status(ctx, ok.TaskID)
		if err != nil {
			return false, err
		}
		return v.Status == task.StatusCompleted, nil
	}); err != nil {
		t.Fatalf("ok task did not complete: %v", err)
	}
	if err := pollUntil(t, 5*time.Second, func() (bool, error) {
		v, err := orch.Status(ctx, bad.TaskID)
		if err != nil {
			return false, err
		}
		return v.Status == task.StatusFailed, nil
	}); err != nil {
		t.Fatalf("unknown task did not fail: %v", err)
	}

	v, _ := orch.Status(ctx, ok.TaskID)
	if v.Result.Message != "Successfully saved 50 USDT to your savings account." {
		t.Fatalf("message = %q", v.Result.Message)
	}
	v, _ = orch.Status(ctx, bad.TaskID)
	if v.Error != "Unknown task type: UNKNOWN_X" {
		t.Fatalf("error = %q", v.Error)
	}
}

func TestClient_DispatchIsIdempotentPerTask(t *testing.T) {
	s := startMiniRedis(t)
	defer s.Close()

	redis := asynq.RedisClientOpt{Addr: s.Addr()}
	client := NewClient(redis, ClientOptions{Queue: "critical"})
	defer client.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := client.Dispatch(ctx, "task-1"); err != nil {
			t.Fatalf("Dispatch #%d: %v", i, err)
		}
	}

	inspector := asynq.NewInspector(redis)
	defer inspector.Close()
	pending, err := inspector.ListPendingTasks("critical")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if info := pending[0]; info.ID != "task-1" || info.Type != TypeExecute || info.MaxRetry != 0 {
		t.Fatalf("unexpected task info: id=%s type=%s maxRetry=%d", info.ID, info.Type, info.MaxRetry)
	}
}

func TestClient_RejectsEmptyID(t *testing.T) {
	client := NewClient(asynq.RedisClientOpt{Addr: "127.0.0.1:0"}, ClientOptions{})
	defer client.Close()
	if err := client.Dispatch(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty id")
	}
}

type recordingRunner struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingRunner) Execute(_ context.Context, id string) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
}

func TestProcessor_HandleExecute(t *testing.T) {
	runner := &recordingRunner{}
	p := &Processor{runner: runner, logger: quietLogger()}
	h := p.Handler()

	good, err := NewExecuteTask("abc")
	if err != nil {
		t.Fatalf("NewExecuteTask: %v", err)
	}
	if err := h.ProcessTask(context.Background(), good); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if len(runner.ids) != 1 || runner.ids[0] != "abc" {
		t.Fatalf("runner got %v", runner.ids)
	}

	for _, payload := range []string{"not json", `{}`} {
		err := h.ProcessTask(context.Background(), asynq.NewTask(TypeExecute, []byte(payload)))
		if !errors.Is(err, asynq.SkipRetry) {
			t.Fatalf("payload %q: want SkipRetry, got %v", payload, err)
		}
	}
	if len(runner.ids) != 1 {
		t.Fatalf("runner called for bad payloads: %v", runner.ids)
	}
}
