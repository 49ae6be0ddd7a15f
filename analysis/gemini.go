package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// generator turns a prompt into model text.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

// Gemini analyzes wallets with Google's generative AI API.
type Gemini struct {
	client *genai.Client
	gen    generator
	logger *slog.Logger
}

// NewGemini creates a Gemini provider. The caller must call Close.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(0.7)
	model.SetTopK(1)
	model.SetTopP(1)
	model.SetMaxOutputTokens(1500)
	model.ResponseMIMEType = "application/json"
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
	}

	return &Gemini{
		client: client,
		gen:    &genaiGenerator{model: model},
		logger: logger.With("component", "analysis.gemini"),
	}, nil
}

// Name implements Provider.
func (g *Gemini) Name() string { return "gemini" }

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Analyze implements Provider. Transport failures are returned; a reply
// that is not valid JSON degrades to a generic response built from its text.
func (g *Gemini) Analyze(ctx context.Context, req Request) (*Response, error) {
	prompt, err := analysisPrompt(req)
	if err != nil {
		return nil, err
	}
	text, err := g.gen.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}
	resp, ok := parseAnalysis(text)
	if !ok {
		g.logger.Warn("reply is not JSON, using fallback", "wallet", req.WalletAddress)
	}
	return resp, nil
}

func analysisPrompt(req Request) (string, error) {
	txs := req.Transactions
	if txs == nil {
		txs = []Transaction{}
	}
	data, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transactions: %w", err)
	}
	var b strings.Builder
	b.WriteString("Analyze the following wallet transaction data and provide financial insights:\n\n")
	fmt.Fprintf(&b, "Wallet Address: %s\n", req.WalletAddress)
	fmt.Fprintf(&b, "Analysis Type: %s\n", req.AnalysisType)
	fmt.Fprintf(&b, "Transaction Count: %d\n\n", len(txs))
	b.WriteString("Transaction Data:\n")
	b.Write(data)
	b.WriteString(`

Please provide:
1. 3-5 key insights about spending patterns
2. 3-5 actionable recommendations
3. A brief summary of the analysis
4. Confidence level (0-100) based on data quality

Format your response as JSON:
{
  "insights": ["insight1", "insight2", "insight3"],
  "recommendations": ["rec1", "rec2", "rec3"],
  "summary": "brief summary",
  "confidence": 85
}
`)
	return b.String(), nil
}

// parseAnalysis decodes a model reply. It reports false when the reply was
// not JSON and the fallback response was used.
func parseAnalysis(text string) (*Response, bool) {
	var parsed struct {
		Insights        []string `json:"insights"`
		Recommendations []string `json:"recommendations"`
		Summary         string   `json:"summary"`
		Confidence      float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return &Response{
			Insights:        []string{"Analysis completed successfully"},
			Recommendations: []string{"Consider reviewing your spending patterns"},
			Summary:         truncateRunes(text, 200) + "...",
			Confidence:      70,
		}, false
	}

	resp := &Response{
		Insights:        parsed.Insights,
		Recommendations: parsed.Recommendations,
		Summary:         parsed.Summary,
		Confidence:      int(parsed.Confidence),
	}
	if resp.Insights == nil {
		resp.Insights = []string{"No insights available"}
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []string{"No recommendations available"}
	}
	if resp.Summary == "" {
		resp.Summary = "Analysis completed"
	}
	if resp.Confidence == 0 {
		resp.Confidence = 50
	}
	return resp, true
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type genaiGenerator struct {
	model *genai.GenerativeModel
}

func (g *genaiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		break
	}
	if b.Len() == 0 {
		return "", errors.New("empty response")
	}
	return b.String(), nil
}
