package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/memograph/memory"
)

const analysisPrompt = `You decide whether a chat message contains information worth remembering about the user for future coaching conversations.

Recent context:
%s

Message:
%s

Respond with a single JSON object, no prose:
{"should_remember": bool, "category": "preference"|"personal_info"|"context"|"instruction", "importance": number between 0 and 1, "keywords": [strings]}`

// LLMAnalyzer implements Analyzer on top of any langchaingo model.
type LLMAnalyzer struct {
	model llms.Model
}

var _ Analyzer = (*LLMAnalyzer)(nil)

// NewLLMAnalyzer creates an analyzer backed by the given model.
func NewLLMAnalyzer(model llms.Model) *LLMAnalyzer {
	return &LLMAnalyzer{model: model}
}

type analysisResponse struct {
	ShouldRemember bool     `json:"should_remember"`
	Category       string   `json:"category"`
	Importance     float64  `json:"importance"`
	Keywords       []string `json:"keywords"`
}

// Analyze asks the model for a memory-worthiness judgment.
func (a *LLMAnalyzer) Analyze(ctx context.Context, text string, convContext []string) (*Decision, error) {
	prompt := fmt.Sprintf(analysisPrompt, strings.Join(convContext, "\n"), text)
	completion, err := llms.GenerateFromSinglePrompt(ctx, a.model, prompt,
		llms.WithTemperature(0), llms.WithMaxTokens(256))
	if err != nil {
		return nil, &memory.ProviderError{Provider: "text-analysis", Err: err}
	}

	var resp analysisResponse
	if err := json.Unmarshal([]byte(extractJSON(completion)), &resp); err != nil {
		return nil, &memory.ProviderError{Provider: "text-analysis", Err: fmt.Errorf("unparseable response: %w", err)}
	}

	return &Decision{
		ShouldRemember: resp.ShouldRemember,
		Category:       memory.Category(resp.Category),
		Importance:     memory.Clamp01(resp.Importance),
		Keywords:       resp.Keywords,
	}, nil
}

// extractJSON strips markdown code fences models tend to wrap JSON in.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
