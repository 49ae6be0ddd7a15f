package asyncx

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

// TypeExecute is the asynq task type that carries a task execution.
const TypeExecute = "task:execute"

// ExecutePayload is the body of a TypeExecute message.
type ExecutePayload struct {
	TaskID string `json:"task_id"`
}

// NewExecuteTask builds the asynq message for taskID.
func NewExecuteTask(taskID string) (*asynq.Task, error) {
	if taskID == "" {
		return nil, errors.New("asyncx: empty task id")
	}
	b, err := json.Marshal(ExecutePayload{TaskID: taskID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeExecute, b), nil
}
