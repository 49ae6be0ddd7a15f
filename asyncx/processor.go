package asyncx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
)

// Runner executes a persisted task by id.
type Runner interface {
	Execute(ctx context.Context, taskID string)
}

// Processor manages asynq workers that run dispatched task executions.
type Processor struct {
	server *asynq.Server
	runner Runner
	logger *slog.Logger
}

type ProcessorConfig struct {
	Concurrency int
	Queues      map[string]int
}

func NewProcessor(redisOpt asynq.RedisConnOpt, runner Runner, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "asyncx")
	con := cfg.Concurrency
	if con <= 0 {
		con = 10
	}
	qs := cfg.Queues
	if qs == nil {
		qs = map[string]int{"default": 1}
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: con,
		Queues:      qs,
		Logger:      asynqLogger{logger},
		LogLevel:    asynq.WarnLevel,
	})
	return &Processor{server: server, runner: runner, logger: logger}
}

// lifecycleMiddleware logs start, finish and duration of every message.
func (p *Processor) lifecycleMiddleware(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		id, _ := asynq.GetTaskID(ctx)
		log := p.logger.With("asynq_id", id, "asynq_type", t.Type())
		log.Debug("message started")
		start := time.Now()
		err := next.ProcessTask(ctx, t)
		if err != nil {
			log.Error("message failed", "duration", time.Since(start), "error", err)
		} else {
			log.Debug("message done", "duration", time.Since(start))
		}
		return err
	})
}

func (p *Processor) handleExecute(ctx context.Context, t *asynq.Task) error {
	var payload ExecutePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.TaskID == "" {
		return fmt.Errorf("payload has no task id: %w", asynq.SkipRetry)
	}
	// the store write that ends the task must survive a worker shutdown
	p.runner.Execute(context.WithoutCancel(ctx), payload.TaskID)
	return nil
}

// Handler returns the wrapped mux that serves TypeExecute.
func (p *Processor) Handler() asynq.Handler {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeExecute, p.handleExecute)
	return p.lifecycleMiddleware(mux)
}

// Start runs the workers in the background.
func (p *Processor) Start() error {
	return p.server.Start(p.Handler())
}

// Run blocks until the process receives a termination signal.
func (p *Processor) Run() error {
	return p.server.Run(p.Handler())
}

func (p *Processor) Shutdown() { p.server.Shutdown() }

// asynqLogger routes asynq's internal logging through slog.
type asynqLogger struct {
	l *slog.Logger
}

func (a asynqLogger) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }

func (a asynqLogger) Fatal(args ...interface{}) {
	a.l.Error(fmt.Sprint(args...))
	os.Exit(1)
}
