// Package executor maps task types to the handlers that carry them out.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mohans/kaiamate/analysis"
	"github.com/mohans/kaiamate/task"
)

// ErrUnknownTaskType is matched by errors returned for types without a handler.
var ErrUnknownTaskType = errors.New("unknown task type")

type unknownTypeError struct {
	typ task.Type
}

func (e *unknownTypeError) Error() string {
	return fmt.Sprintf("Unknown task type: %s", e.typ)
}

func (e *unknownTypeError) Is(target error) bool { return target == ErrUnknownTaskType }

// HandlerError is a business failure reported by a handler. Its message is
// what ends up in the task's error field.
type HandlerError struct {
	Type task.Type
	Err  error
}

func (e *HandlerError) Error() string { return e.Err.Error() }

func (e *HandlerError) Unwrap() error { return e.Err }

// Request is what a handler sees of a task.
type Request struct {
	TaskID        string
	Type          task.Type
	WalletAddress string
	Params        Params
}

// Handler carries out one task type. It is invoked at most once per task.
type Handler func(ctx context.Context, req Request) (*task.Result, error)

// Executor is a dispatch table from task type to handler.
type Executor struct {
	handlers map[task.Type]Handler
	analyzer analysis.Provider
	now      func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock overrides the time source used by scheduling handlers.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an Executor with handlers for every known task type.
// ANALYZE_SPENDING tasks fail when analyzer is nil.
func New(analyzer analysis.Provider, opts ...Option) *Executor {
	e := &Executor{
		handlers: map[task.Type]Handler{},
		analyzer: analyzer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Register(task.TypeSaveMoney, e.saveMoney)
	e.Register(task.TypeSendMoney, e.sendMoney)
	e.Register(task.TypeSetSubscription, e.setSubscription)
	e.Register(task.TypeCheckBalance, e.checkBalance)
	e.Register(task.TypeAnalyzeSpending, e.analyzeSpending)
	e.Register(task.TypeOptimizeYield, e.optimizeYield)
	e.Register(task.TypeSetBudgetLimit, e.setBudgetLimit)
	e.Register(task.TypeAutoSave, e.autoSave)
	return e
}

// Register installs h for typ, replacing any existing handler.
func (e *Executor) Register(typ task.Type, h Handler) {
	e.handlers[typ] = h
}

// Types returns the registered task types in sorted order.
func (e *Executor) Types() []task.Type {
	out := make([]task.Type, 0, len(e.handlers))
	for t := range e.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Run dispatches t to its handler. A missing handler yields an error
// matching ErrUnknownTaskType; handler errors and panics are returned as
// *HandlerError.
func (e *Executor) Run(ctx context.Context, t task.Task) (res *task.Result, err error) {
	h, ok := e.handlers[t.Type]
	if !ok {
		return nil, &unknownTypeError{typ: t.Type}
	}
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &HandlerError{Type: t.Type, Err: fmt.Errorf("handler panic: %v", r)}
		}
	}()

	res, err = h(ctx, Request{
		TaskID:        t.ID,
		Type:          t.Type,
		WalletAddress: t.WalletAddress,
		Params:        Params(t.Parameters),
	})
	if err != nil {
		var he *HandlerError
		if !errors.As(err, &he) {
			err = &HandlerError{Type: t.Type, Err: err}
		}
		return nil, err
	}
	if res == nil {
		return nil, &HandlerError{Type: t.Type, Err: errors.New("handler returned no result")}
	}
	return res, nil
}
