package agent

import "strings"

// Rule routes text containing any of its keywords to an agent.
type Rule struct {
	AgentID  string
	Keywords []string
}

// DefaultRules are evaluated in order; the first match wins.
var DefaultRules = []Rule{
	{AgentID: Calendar, Keywords: []string{"schedule", "meeting", "calendar"}},
	{AgentID: Email, Keywords: []string{"email", "message", "send"}},
	{AgentID: HomeAssistant, Keywords: []string{"home", "light", "temperature"}},
}

const (
	keywordConfidence  = 0.6
	fallbackConfidence = 0.1
)

// KeywordClassifier is a substring matcher over an ordered rule list.
type KeywordClassifier struct {
	rules    []Rule
	fallback string
}

// NewKeywordClassifier builds a classifier. Empty rules use DefaultRules and
// an empty fallback uses chat-gpt.
func NewKeywordClassifier(rules []Rule, fallback string) *KeywordClassifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	if fallback == "" {
		fallback = ChatGPT
	}
	return &KeywordClassifier{rules: rules, fallback: fallback}
}

// Classify returns the suggested agent id and a rough confidence in [0, 1].
func (c *KeywordClassifier) Classify(text string) (string, float64) {
	lower := strings.ToLower(text)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.AgentID, keywordConfidence
			}
		}
	}
	return c.fallback, fallbackConfidence
}
