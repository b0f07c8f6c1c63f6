package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const analysisPrompt = `You are a procurement analyst. Extract a structured ` +
	`analysis of this tender document and reply with a single JSON object ` +
	`with the fields: classification, summary, vendor_name, estimated_value, ` +
	`risks (category, severity, description), line_items (description, ` +
	`quantity, unit, unit_price) and compliance (requirement, status, notes). ` +
	`Reply with JSON only, no markdown fences.`

// GeminiAnalyzer implements Analyzer on top of the Gemini API
type GeminiAnalyzer struct {
	model *genai.GenerativeModel
}

// NewGeminiAnalyzer creates the Gemini client and selects the model
func NewGeminiAnalyzer(ctx context.Context, apiKey, modelName string) (*GeminiAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not set")
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gemini client: %w", err)
	}

	return &GeminiAnalyzer{model: client.GenerativeModel(modelName)}, nil
}

// Analyze sends the document and parses the JSON reply
func (g *GeminiAnalyzer) Analyze(ctx context.Context, data []byte, mimeType string) (*Analysis, error) {
	resp, err := g.model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: data},
		genai.Text(analysisPrompt),
	)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("analysis returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	raw := strings.TrimSpace(sb.String())
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var analysis Analysis
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &analysis); err != nil {
		return nil, fmt.Errorf("invalid analysis payload: %w", err)
	}

	return &analysis, nil
}
