package grader

// modelCost is USD per million tokens.
type modelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

func (c modelCost) cost(u Usage) float64 {
	return float64(u.InputTokens)*c.InputPerMTok/1_000_000 +
		float64(u.OutputTokens)*c.OutputPerMTok/1_000_000
}

// modelCosts covers the default models of each backend.
var modelCosts = map[string]modelCost{
	"claude-haiku-4-5-20251001":   {1, 5},
	"claude-sonnet-4-20250514":    {3, 15},
	"gpt-4o-mini":                 {0.15, 0.6},
	"gpt-4o":                      {2.5, 10},
	"gemini-2.0-flash":            {0.1, 0.4},
	"gemini-2.5-pro":              {1.25, 10},
	"google/gemini-2.0-flash-001": {0.1, 0.4},
}

// EstimateCost returns the USD cost of usage on model, and false when the
// model has no known price.
func EstimateCost(model string, u Usage) (float64, bool) {
	c, ok := modelCosts[model]
	if !ok {
		return 0, false
	}
	return c.cost(u), true
}
