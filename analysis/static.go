package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Static derives insights locally from the transaction set. It needs no
// external service and is deterministic.
type Static struct{}

// NewStatic creates a Static provider.
func NewStatic() *Static { return &Static{} }

// Name implements Provider.
func (s *Static) Name() string { return "static" }

// Analyze implements Provider.
func (s *Static) Analyze(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Transactions) == 0 {
		return &Response{
			Insights:        []string{"No recent transaction data to analyze"},
			Recommendations: savingsRecommendations(req.AnalysisType),
			Summary:         fmt.Sprintf("No transactions found for %s; showing general %s guidance.", req.WalletAddress, typeOrGeneral(req.AnalysisType)),
			Confidence:      20,
		}, nil
	}

	wallet := strings.ToLower(req.WalletAddress)
	spent := map[string]decimal.Decimal{}
	received := map[string]decimal.Decimal{}
	var outgoing, incoming, skipped int
	for _, tx := range req.Transactions {
		v, err := decimal.NewFromString(tx.Value)
		if err != nil {
			skipped++
			continue
		}
		sym := tx.TokenSymbol
		if sym == "" {
			sym = strings.ToUpper(tx.Token)
		}
		switch {
		case strings.ToLower(tx.From) == wallet:
			outgoing++
			spent[sym] = spent[sym].Add(v)
		case strings.ToLower(tx.To) == wallet:
			incoming++
			received[sym] = received[sym].Add(v)
		}
	}

	insights := []string{
		fmt.Sprintf("%d outgoing and %d incoming transfers analyzed", outgoing, incoming),
	}
	for _, sym := range sortedKeys(spent) {
		insights = append(insights, fmt.Sprintf("Spent %s %s", spent[sym].String(), sym))
	}
	for _, sym := range sortedKeys(received) {
		insights = append(insights, fmt.Sprintf("Received %s %s", received[sym].String(), sym))
	}
	if top := topToken(spent); top != "" {
		insights = append(insights, fmt.Sprintf("Most of your spending is in %s", top))
	}

	confidence := 60
	if skipped > 0 {
		confidence = 40
	}
	return &Response{
		Insights:        insights,
		Recommendations: savingsRecommendations(req.AnalysisType),
		Summary: fmt.Sprintf("%s analysis of %d transactions for %s.",
			typeOrGeneral(req.AnalysisType), len(req.Transactions), req.WalletAddress),
		Confidence: confidence,
	}, nil
}

func savingsRecommendations(t Type) []string {
	switch t {
	case TypeSavings:
		return []string{
			"Start a basic plan with a fixed amount and duration",
			"Automate a weekly or monthly frequency plan",
			"Save a percentage of every transaction with spend & save",
		}
	case TypeSpending:
		return []string{
			"Set a monthly budget limit for your most used token",
			"Review recurring subscriptions",
			"Batch small transfers to reduce fees",
		}
	default:
		return []string{
			"Consider reviewing your spending patterns",
			"Enable auto-save on incoming transactions",
		}
	}
}

func typeOrGeneral(t Type) Type {
	if t == "" {
		return TypeGeneral
	}
	return t
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func topToken(m map[string]decimal.Decimal) string {
	var top string
	var best decimal.Decimal
	for _, k := range sortedKeys(m) {
		if m[k].GreaterThan(best) {
			top, best = k, m[k]
		}
	}
	return top
}
