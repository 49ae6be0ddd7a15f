// Package orchestrator creates tasks, schedules their execution and drives
// them through the task state machine using the store's conditional update.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohans/kaiamate/task"
)

// DefaultListLimit is used when UserTasks is asked for a non-positive limit.
const DefaultListLimit = 10

// Executor runs a task's handler.
type Executor interface {
	Run(ctx context.Context, t task.Task) (*task.Result, error)
}

// CreateRequest describes a task to create.
type CreateRequest struct {
	Type          task.Type
	Parameters    map[string]any
	WalletAddress string
	UserID        string
}

// Receipt is returned by Create.
type Receipt struct {
	TaskID string      `json:"taskId"`
	Status task.Status `json:"status"`
}

// StatusView is the externally visible state of a task.
type StatusView struct {
	TaskID string       `json:"taskId"`
	Status task.Status  `json:"status"`
	Result *task.Result `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Orchestrator owns the task lifecycle.
type Orchestrator struct {
	store    task.Store
	exec     Executor
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
	newID    func() string
	timeout  time.Duration
	poolSize int
	cacheLen int

	dispatcher Dispatcher
	pool       *Pool
	terminal   *lru.Cache[string, StatusView]
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDispatcher replaces the in-process worker pool.
func WithDispatcher(d Dispatcher) Option {
	return func(o *Orchestrator) { o.dispatcher = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator overrides task id generation.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

// WithConcurrency bounds the in-process worker pool.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.poolSize = n }
}

// WithExecTimeout bounds a single handler execution. Zero means no limit.
func WithExecTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithMetrics records lifecycle metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithStatusCacheSize sets how many terminal status views are kept in
// memory. Zero or less disables the cache.
func WithStatusCacheSize(n int) Option {
	return func(o *Orchestrator) { o.cacheLen = n }
}

// New returns an Orchestrator. Unless WithDispatcher is given, tasks run on
// an in-process Pool that Close drains.
func New(store task.Store, exec Executor, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		store:    store,
		exec:     exec,
		logger:   logger.With("component", "orchestrator"),
		now:      time.Now,
		newID:    newTaskID,
		cacheLen: 1024,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.dispatcher == nil {
		o.pool = NewPool(o.Execute, o.poolSize)
		o.dispatcher = o.pool
	}
	if o.cacheLen > 0 {
		c, err := lru.New[string, StatusView](o.cacheLen)
		if err == nil {
			o.terminal = c
		}
	}
	return o
}

func newTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (o *Orchestrator) stamp() time.Time {
	return o.now().UTC().Truncate(time.Microsecond)
}

// Create persists a PENDING task and schedules it. An unknown task type is
// accepted with a warning and fails at execution.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (*Receipt, error) {
	t := &task.Task{
		ID:            o.newID(),
		Type:          req.Type,
		Parameters:    req.Parameters,
		Status:        task.StatusPending,
		WalletAddress: req.WalletAddress,
		UserID:        req.UserID,
		CreatedAt:     o.stamp(),
	}
	if t.Parameters == nil {
		t.Parameters = map[string]any{}
	}
	if err := o.store.Insert(ctx, t); err != nil {
		var pe *task.PersistenceError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &task.PersistenceError{Op: "insert", Err: err}
	}
	o.metrics.taskCreated(t.Type)
	o.logger.Info("task created", "task_id", t.ID, "type", t.Type, "wallet", t.WalletAddress)
	if !t.Type.Known() {
		o.logger.Warn("unknown task type, will fail at execution", "task_id", t.ID, "type", t.Type)
	}

	if err := o.dispatcher.Dispatch(context.WithoutCancel(ctx), t.ID); err != nil {
		o.logger.Error("dispatch failed, task left pending", "task_id", t.ID, "type", t.Type, "error", err)
	}
	return &Receipt{TaskID: t.ID, Status: task.StatusPending}, nil
}

// Execute runs a PENDING task to completion. Failures are recorded on the
// task or logged; nothing is returned to the caller.
func (o *Orchestrator) Execute(ctx context.Context, id string) {
	log := o.logger.With("task_id", id)

	t, err := o.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			log.Warn("execute: task not found")
		} else {
			log.Error("execute: load task", "error", err)
		}
		return
	}
	log = log.With("type", t.Type)
	if !t.Status.CanTransitionTo(task.StatusExecuting) {
		log.Info("execute: task not pending, skipping", "status", t.Status)
		return
	}

	started := o.stamp()
	ok, err := o.store.ConditionalUpdate(ctx, id, task.StatusPending, task.Patch{
		Status:     task.StatusExecuting,
		ExecutedAt: &started,
	})
	if err != nil {
		log.Error("execute: claim task", "error", err)
		return
	}
	if !ok {
		log.Info("execute: task no longer pending, skipping")
		return
	}
	o.metrics.transitioned(task.StatusExecuting)
	t.Status = task.StatusExecuting
	t.ExecutedAt = &started

	runCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	begin := time.Now()
	res, runErr := o.exec.Run(runCtx, *t)
	o.metrics.executed(t.Type, time.Since(begin))

	patch := task.Patch{Status: task.StatusCompleted, Result: res}
	if runErr != nil {
		msg := runErr.Error()
		patch = task.Patch{Status: task.StatusFailed, Error: &msg}
	}
	ok, err = o.store.ConditionalUpdate(ctx, id, task.StatusExecuting, patch)
	switch {
	case err != nil:
		log.Error("execute: persist outcome", "status", patch.Status, "error", err)
	case !ok:
		log.Error("execute: inconsistent state, task left EXECUTING by another writer", "status", patch.Status)
	default:
		o.metrics.transitioned(patch.Status)
		if runErr != nil {
			log.Warn("task failed", "error", runErr)
		} else {
			log.Info("task completed")
		}
	}
}

// Status returns the current view of a task or task.ErrNotFound.
func (o *Orchestrator) Status(ctx context.Context, id string) (*StatusView, error) {
	if o.terminal != nil {
		if v, ok := o.terminal.Get(id); ok {
			return &v, nil
		}
	}
	t, err := o.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			return nil, err
		}
		return nil, &task.PersistenceError{Op: "find", Err: err}
	}
	v := StatusView{
		TaskID: t.ID,
		Status: t.Status,
		Result: t.Result,
		Error:  t.Error,
	}
	if t.Status.IsTerminal() && o.terminal != nil {
		o.terminal.Add(id, v)
	}
	return &v, nil
}

// UserTasks lists up to limit of a wallet's tasks, newest first. A limit of
// zero or less means DefaultListLimit.
func (o *Orchestrator) UserTasks(ctx context.Context, wallet string, limit int) ([]*task.Task, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	tasks, err := o.store.ListByOwner(ctx, wallet, limit)
	if err != nil {
		return nil, &task.PersistenceError{Op: "list", Err: err}
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	return tasks, nil
}

// Cancel moves a PENDING task to CANCELLED. It reports false when the task
// is unknown or has already left PENDING.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (bool, error) {
	ok, err := o.store.ConditionalUpdate(ctx, id, task.StatusPending, task.Patch{Status: task.StatusCancelled})
	if err != nil {
		return false, &task.PersistenceError{Op: "cancel", Err: err}
	}
	if ok {
		o.metrics.transitioned(task.StatusCancelled)
		o.logger.Info("task cancelled", "task_id", id)
	}
	return ok, nil
}

// Close waits for in-process executions to finish. It is a no-op when an
// external dispatcher is used.
func (o *Orchestrator) Close() {
	if o.pool != nil {
		o.pool.Close()
	}
}
