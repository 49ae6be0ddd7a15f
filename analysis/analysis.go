// Package analysis defines the wallet spending analysis contract and its
// implementations.
package analysis

import (
	"context"
	"time"
)

// Type selects the focus of an analysis.
type Type string

const (
	TypeSavings  Type = "savings"
	TypeSpending Type = "spending"
	TypeGeneral  Type = "general"
)

// Valid reports whether t is a supported analysis type.
func (t Type) Valid() bool {
	return t == TypeSavings || t == TypeSpending || t == TypeGeneral
}

// Transaction is a wallet transfer as seen by the analysis.
type Transaction struct {
	Hash        string    `json:"hash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Value       string    `json:"value"`
	Token       string    `json:"token"`
	TokenSymbol string    `json:"tokenSymbol"`
	Timestamp   time.Time `json:"timestamp"`
	BlockNumber int64     `json:"blockNumber"`
	Status      string    `json:"status"`
}

// Request asks for insights about a wallet's transactions.
type Request struct {
	WalletAddress string        `json:"walletAddress"`
	Transactions  []Transaction `json:"transactions"`
	AnalysisType  Type          `json:"analysisType"`
}

// Response carries the analysis outcome.
type Response struct {
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
	Summary         string   `json:"summary"`
	Confidence      int      `json:"confidence"`
}

// Provider produces insights for a wallet.
type Provider interface {
	// Name returns the provider identifier (e.g., "gemini", "static").
	Name() string

	// Analyze inspects the transactions and returns insights.
	Analyze(ctx context.Context, req Request) (*Response, error)
}
