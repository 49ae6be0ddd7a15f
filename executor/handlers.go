package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mohans/kaiamate/analysis"
	"github.com/mohans/kaiamate/task"
)

const defaultToken = "USDT"

// frequencies maps the named schedules users pick to cron descriptors.
var frequencies = map[string]string{
	"hourly":  "@hourly",
	"daily":   "@daily",
	"weekly":  "@weekly",
	"monthly": "@monthly",
	"yearly":  "@yearly",
}

func (e *Executor) saveMoney(_ context.Context, req Request) (*task.Result, error) {
	_, amount, err := req.Params.Amount("amount")
	if err != nil {
		return nil, err
	}
	token := req.Params.String("token", defaultToken)
	return &task.Result{
		Success: true,
		Message: fmt.Sprintf("Successfully saved %s %s to your savings account.", amount, token),
		Data: map[string]any{
			"amount": amount,
			"token":  token,
			"action": string(task.TypeSaveMoney),
		},
	}, nil
}

func (e *Executor) sendMoney(_ context.Context, req Request) (*task.Result, error) {
	_, amount, err := req.Params.Amount("amount")
	if err != nil {
		return nil, err
	}
	recipient, err := req.Params.Address("recipient")
	if err != nil {
		return nil, err
	}
	token := req.Params.String("token", defaultToken)
	return &task.Result{
		Success: true,
		Message: fmt.Sprintf("Successfully sent %s %s to %s.", amount, token, recipient),
		Data: map[string]any{
			"amount":    amount,
			"token":     token,
			"recipient": recipient,
			"action":    string(task.TypeSendMoney),
		},
	}, nil
}

func (e *Executor) setSubscription(_ context.Context, req Request) (*task.Result, error) {
	_, amount, err := req.Params.Amount("amount")
	if err != nil {
		return nil, err
	}
	service, err := req.Params.Address("serviceAddress")
	if err != nil {
		return nil, err
	}
	frequency := req.Params.String("frequency", "monthly")
	sched, err := parseFrequency(frequency)
	if err != nil {
		return nil, err
	}
	return &task.Result{
		Success: true,
		Message: fmt.Sprintf("Successfully set up %s subscription for %s to service %s.", frequency, amount, service),
		Data: map[string]any{
			"amount":         amount,
			"frequency":      frequency,
			"serviceAddress": service,
			"nextPaymentAt":  sched.Next(e.now().UTC()).Format(time.RFC3339),
			"action":         string(task.TypeSetSubscription),
		},
	}, nil
}

func (e *Executor) checkBalance(_ context.Context, _ Request) (*task.Result, error) {
	return &task.Result{
		Success: true,
		Message: "Balance check completed. Check your wallet for current balances.",
		Data: map[string]any{
			"action": string(task.TypeCheckBalance),
		},
	}, nil
}

func (e *Executor) analyzeSpending(ctx context.Context, req Request) (*task.Result, error) {
	if e.analyzer == nil {
		return nil, errors.New("analysis provider is not configured")
	}
	typ := analysis.Type(strings.ToLower(req.Params.String("analysisType", string(analysis.TypeGeneral))))
	if !typ.Valid() {
		return nil, fmt.Errorf("invalid analysisType: %s", typ)
	}
	txs, err := transactions(req.Params)
	if err != nil {
		return nil, err
	}
	resp, err := e.analyzer.Analyze(ctx, analysis.Request{
		WalletAddress: req.WalletAddress,
		Transactions:  txs,
		AnalysisType:  typ,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis failed: %w", err)
	}
	return &task.Result{
		Success: true,
		Message: "Spending analysis completed successfully.",
		Data: map[string]any{
			"analysis": resp,
			"action":   string(task.TypeAnalyzeSpending),
		},
	}, nil
}

func (e *Executor) optimizeYield(_ context.Context, req Request) (*task.Result, error) {
	token := req.Params.String("token", defaultToken)
	data := map[string]any{
		"token":  token,
		"action": string(task.TypeOptimizeYield),
	}
	msg := fmt.Sprintf("Yield optimization enabled: idle %s will be moved to the highest-yield savings pool.", token)
	if _, ok := req.Params["amount"]; ok {
		_, amount, err := req.Params.Amount("amount")
		if err != nil {
			return nil, err
		}
		data["amount"] = amount
		msg = fmt.Sprintf("Yield optimization enabled: %s %s will be moved to the highest-yield savings pool.", amount, token)
	}
	return &task.Result{Success: true, Message: msg, Data: data}, nil
}

func (e *Executor) setBudgetLimit(_ context.Context, req Request) (*task.Result, error) {
	_, amount, err := req.Params.Amount("amount")
	if err != nil {
		return nil, err
	}
	token := req.Params.String("token", defaultToken)
	period := strings.ToLower(req.Params.String("period", "monthly"))
	if _, ok := frequencies[period]; !ok {
		return nil, fmt.Errorf("invalid period: %s", period)
	}
	category := req.Params.String("category", "all")
	return &task.Result{
		Success: true,
		Message: fmt.Sprintf("Budget limit set: %s %s %s for %s spending.", amount, token, period, category),
		Data: map[string]any{
			"amount":   amount,
			"token":    token,
			"period":   period,
			"category": category,
			"action":   string(task.TypeSetBudgetLimit),
		},
	}, nil
}

func (e *Executor) autoSave(_ context.Context, req Request) (*task.Result, error) {
	pct, err := req.Params.Float("percentage", 10)
	if err != nil {
		return nil, err
	}
	if pct <= 0 || pct > 100 {
		return nil, fmt.Errorf("percentage must be between 0 and 100, got %s", formatNumber(pct))
	}
	token := req.Params.String("token", defaultToken)
	return &task.Result{
		Success: true,
		Message: fmt.Sprintf("Auto-save configured: %s%% of incoming transactions will be saved in %s.", formatNumber(pct), token),
		Data: map[string]any{
			"percentage": pct,
			"token":      token,
			"action":     string(task.TypeAutoSave),
		},
	}, nil
}

// parseFrequency accepts a named frequency or a standard cron expression.
func parseFrequency(frequency string) (cron.Schedule, error) {
	spec, ok := frequencies[strings.ToLower(frequency)]
	if !ok {
		spec = frequency
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid frequency %q: %w", frequency, err)
	}
	return sched, nil
}

// transactions decodes the optional caller-supplied transaction list.
func transactions(p Params) ([]analysis.Transaction, error) {
	raw, ok := p["transactions"]
	if !ok || raw == nil {
		return []analysis.Transaction{}, nil
	}
	if txs, ok := raw.([]analysis.Transaction); ok {
		return txs, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid transactions: %w", err)
	}
	var txs []analysis.Transaction
	if err := json.Unmarshal(b, &txs); err != nil {
		return nil, fmt.Errorf("invalid transactions: %w", err)
	}
	return txs, nil
}
