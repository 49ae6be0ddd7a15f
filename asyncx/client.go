package asyncx

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// Client enqueues task executions on asynq.
type Client struct {
	client *asynq.Client
	queue  string
}

type ClientOptions struct {
	Queue string
}

func NewClient(redisOpt asynq.RedisConnOpt, opts ClientOptions) *Client {
	q := opts.Queue
	if q == "" {
		q = "default"
	}
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  q,
	}
}

// Dispatch enqueues an execution of taskID. The asynq task id is the task
// id, so dispatching the same task twice enqueues it once. Executions are
// never retried by asynq; a failed execution is recorded on the task.
func (c *Client) Dispatch(ctx context.Context, taskID string) error {
	if c.client == nil {
		return fmt.Errorf("nil asynq client")
	}
	t, err := NewExecuteTask(taskID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, t,
		asynq.TaskID(taskID),
		asynq.MaxRetry(0),
		asynq.Queue(c.queue),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskID, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
