// Package task defines the task model, its lifecycle state machine and the
// persistence contract used by the orchestrator.
package task

import "time"

// Type names the action a task performs. Values outside the known set are
// accepted at creation and rejected when the task executes.
type Type string

const (
	TypeSaveMoney       Type = "SAVE_MONEY"
	TypeSendMoney       Type = "SEND_MONEY"
	TypeSetSubscription Type = "SET_SUBSCRIPTION"
	TypeCheckBalance    Type = "CHECK_BALANCE"
	TypeAnalyzeSpending Type = "ANALYZE_SPENDING"
	TypeOptimizeYield   Type = "OPTIMIZE_YIELD"
	TypeSetBudgetLimit  Type = "SET_BUDGET_LIMIT"
	TypeAutoSave        Type = "AUTO_SAVE"
)

// Types lists every known task type.
var Types = []Type{
	TypeSaveMoney,
	TypeSendMoney,
	TypeSetSubscription,
	TypeCheckBalance,
	TypeAnalyzeSpending,
	TypeOptimizeYield,
	TypeSetBudgetLimit,
	TypeAutoSave,
}

// Known reports whether t is one of the declared task types.
func (t Type) Known() bool {
	for _, k := range Types {
		if k == t {
			return true
		}
	}
	return false
}

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExecuting Status = "EXECUTING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid reports whether s is a declared status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusExecuting, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether the state machine allows s -> target.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusExecuting || target == StatusCancelled
	case StatusExecuting:
		// a running task cannot be cancelled
		return target == StatusCompleted || target == StatusFailed
	default:
		return false
	}
}

// Result is the outcome of a completed task.
type Result struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message"`
	Data            map[string]any `json:"data,omitempty"`
	TransactionHash string         `json:"transactionHash,omitempty"`
}

// Task is a unit of user-requested work scoped to a wallet.
type Task struct {
	ID            string         `json:"id"`
	Type          Type           `json:"type"`
	Parameters    map[string]any `json:"parameters"`
	Status        Status         `json:"status"`
	WalletAddress string         `json:"walletAddress"`
	UserID        string         `json:"userId,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	ExecutedAt    *time.Time     `json:"executedAt,omitempty"`
	Result        *Result        `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Patch describes the fields a conditional update writes. Status is always
// written; nil pointers leave the stored value untouched.
type Patch struct {
	Status     Status
	ExecutedAt *time.Time
	Result     *Result
	Error      *string
}

// Apply writes p onto t.
func (p Patch) Apply(t *Task) {
	t.Status = p.Status
	if p.ExecutedAt != nil {
		at := *p.ExecutedAt
		t.ExecutedAt = &at
	}
	if p.Result != nil {
		r := *p.Result
		t.Result = &r
	}
	if p.Error != nil {
		t.Error = *p.Error
	}
}

// Clone returns a copy of t that shares no pointers with it. Parameter and
// result data maps are copied one level deep.
func (t *Task) Clone() *Task {
	c := *t
	if t.Parameters != nil {
		c.Parameters = make(map[string]any, len(t.Parameters))
		for k, v := range t.Parameters {
			c.Parameters[k] = v
		}
	}
	if t.ExecutedAt != nil {
		at := *t.ExecutedAt
		c.ExecutedAt = &at
	}
	if t.Result != nil {
		r := *t.Result
		if t.Result.Data != nil {
			r.Data = make(map[string]any, len(t.Result.Data))
			for k, v := range t.Result.Data {
				r.Data[k] = v
			}
		}
		c.Result = &r
	}
	return &c
}
