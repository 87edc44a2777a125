// internal/usage/pricing.go
package usage

// pricing is $/1M tokens, keyed by OpenRouter model identifier. Unknown
// models fall back to the "default" row. Needs periodic refreshing.
var pricing = map[string]struct{ Input, Output float64 }{
	"openai/gpt-4o":                 {2.5, 10.0},
	"openai/gpt-4o-mini":            {0.15, 0.60},
	"openai/gpt-4.1":                {2.0, 8.0},
	"openai/gpt-4.1-mini":           {0.4, 1.6},
	"openai/gpt-5.1":                {3.0, 12.0},
	"openai/gpt-5-mini":             {0.5, 2.0},
	"anthropic/claude-3-5-sonnet":   {3.0, 15.0},
	"anthropic/claude-3-5-haiku":    {0.8, 4.0},
	"anthropic/claude-sonnet-4":     {3.0, 15.0},
	"anthropic/claude-opus-4":       {15.0, 75.0},
	"anthropic/claude-opus-4.5":     {15.0, 75.0},
	"google/gemini-2.0-flash":       {0.1, 0.4},
	"google/gemini-2.5-flash":       {0.15, 0.60},
	"google/gemini-3-flash-preview": {0.1, 0.4},
	"google/gemini-3-pro-preview":   {2.0, 12.0},
	"deepseek/deepseek-chat":        {0.14, 0.28},
	"deepseek/deepseek-chat-v3":     {0.14, 0.28},
	"x-ai/grok-4.1-fast":            {1.0, 4.0},
	"default":                       {1.0, 3.0},
}

// EstimateCost returns the estimated USD cost of one call.
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	rates, ok := pricing[model]
	if !ok {
		rates = pricing["default"]
	}
	return float64(promptTokens)/1e6*rates.Input + float64(completionTokens)/1e6*rates.Output
}
