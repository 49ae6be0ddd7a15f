package executor

import "github.com/mohans/kaiamate/task"

// Template is a ready-made task request offered to clients.
type Template struct {
	Type        task.Type      `json:"type"`
	Parameters  map[string]any `json:"parameters"`
	Description string         `json:"description"`
}

// Templates returns the built-in task templates keyed by name. Each call
// returns fresh maps. Required values the client must choose, such as
// amount, are left out of Parameters.
func Templates() map[string]Template {
	return map[string]Template{
		"SAVE_USDT": {
			Type:        task.TypeSaveMoney,
			Parameters:  map[string]any{"token": "USDT"},
			Description: "Save money in USDT. Set amount before submitting.",
		},
		"SEND_USDT": {
			Type:        task.TypeSendMoney,
			Parameters:  map[string]any{"token": "USDT"},
			Description: "Send USDT to another address. Set amount and recipient before submitting.",
		},
		"SET_SUBSCRIPTION": {
			Type:        task.TypeSetSubscription,
			Parameters:  map[string]any{"frequency": "monthly"},
			Description: "Set up a recurring subscription. Set amount and serviceAddress before submitting.",
		},
		"CHECK_BALANCE": {
			Type:        task.TypeCheckBalance,
			Parameters:  map[string]any{},
			Description: "Check wallet balances",
		},
		"ANALYZE_SPENDING": {
			Type:        task.TypeAnalyzeSpending,
			Parameters:  map[string]any{"analysisType": "general"},
			Description: "Analyze spending patterns",
		},
		"AUTO_SAVE": {
			Type:        task.TypeAutoSave,
			Parameters:  map[string]any{"percentage": 10, "token": "USDT"},
			Description: "Automatically save a percentage of transactions",
		},
		"OPTIMIZE_YIELD": {
			Type:        task.TypeOptimizeYield,
			Parameters:  map[string]any{"token": "USDT"},
			Description: "Move idle balance to the highest-yield savings pool",
		},
		"SET_BUDGET_LIMIT": {
			Type:        task.TypeSetBudgetLimit,
			Parameters:  map[string]any{"token": "USDT", "period": "monthly"},
			Description: "Cap spending over a period. Set amount before submitting.",
		},
	}
}
