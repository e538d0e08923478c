package ledger

// ModelPrice is the cost per million tokens for one model.
type ModelPrice struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// priceTable maps model names to published per-million-token prices (USD).
// Unknown models fall back to DefaultPrice.
var priceTable = map[string]ModelPrice{
	// OpenAI
	"gpt-4o":      {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini": {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4.1":     {InputPerMTok: 2.00, OutputPerMTok: 8.00},

	// Google Gemini
	"gemini-2.0-flash":     {InputPerMTok: 0.10, OutputPerMTok: 0.40},
	"gemini-1.5-pro":       {InputPerMTok: 1.25, OutputPerMTok: 5.00},
	"gemini-2.5-pro":       {InputPerMTok: 1.25, OutputPerMTok: 10.00},
	"gemini-2.5-flash":     {InputPerMTok: 0.30, OutputPerMTok: 2.50},

	// DeepSeek
	"deepseek-chat":     {InputPerMTok: 0.27, OutputPerMTok: 1.10},
	"deepseek-reasoner": {InputPerMTok: 0.55, OutputPerMTok: 2.19},

	// Qwen (DashScope)
	"qwen-plus":  {InputPerMTok: 0.40, OutputPerMTok: 1.20},
	"qwen-turbo": {InputPerMTok: 0.05, OutputPerMTok: 0.20},
	"qwen-max":   {InputPerMTok: 1.60, OutputPerMTok: 6.40},

	// x.ai Grok
	"grok-3":      {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"grok-3-mini": {InputPerMTok: 0.30, OutputPerMTok: 0.50},

	// Moonshot Kimi
	"moonshot-v1-8k":   {InputPerMTok: 0.20, OutputPerMTok: 2.00},
	"moonshot-v1-128k": {InputPerMTok: 0.80, OutputPerMTok: 3.00},
	"kimi-k2":          {InputPerMTok: 0.60, OutputPerMTok: 2.50},
}

// DefaultPrice is the conservative fallback for models missing from the
// table. Erring high keeps unknown-model runs from under-reporting cost.
var DefaultPrice = ModelPrice{InputPerMTok: 5.00, OutputPerMTok: 15.00}

// PriceFor returns the price entry for a model, falling back to DefaultPrice.
func PriceFor(model string) ModelPrice {
	if p, ok := priceTable[model]; ok {
		return p
	}
	return DefaultPrice
}

// CalculateCost computes the USD cost of one call.
func CalculateCost(model string, usage Usage) float64 {
	p := PriceFor(model)
	return float64(usage.PromptTokens)/1e6*p.InputPerMTok +
		float64(usage.CompletionTokens)/1e6*p.OutputPerMTok
}
