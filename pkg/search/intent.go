package search

import (
	"regexp"
	"strings"
)

// IntentAnalysis is the outcome of classifying a query: the detected
// Intent plus a recommended per-strategy weight multiplier, grounded on
// original_source/rae-core/rae_core/search/intent.py's rule table.
type IntentAnalysis struct {
	Intent  Intent
	recipe  map[string]float64
}

// Weights expands the analysis's recipe into a full weight map covering
// every configured strategy, falling back to each strategy's own
// DefaultWeight for anything the recipe doesn't mention.
func (a IntentAnalysis) Weights(strategies []Strategy) map[string]float64 {
	out := make(map[string]float64, len(strategies))
	for _, s := range strategies {
		if w, ok := a.recipe[s.Name()]; ok {
			out[s.Name()] = w
			continue
		}
		out[s.Name()] = s.DefaultWeight()
	}
	return out
}

// IntentAnalyzer classifies a raw query string into an IntentAnalysis.
type IntentAnalyzer interface {
	Analyze(query string) IntentAnalysis
}

// RuleBasedIntentAnalyzer is a small regex/keyword classifier mirroring
// the Python original's rule-based (non-ML) intent detection: it never
// calls an LLM, keeping intent analysis cheap and synchronous on the
// query-parsing hot path.
type RuleBasedIntentAnalyzer struct{}

var (
	anchorLikePattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}|0x[0-9a-f]{4,}|#\d{3,}`)
	temporalWords     = []string{"yesterday", "last week", "ago", "when did", "what time", "recent", "recently", "earlier today"}
	exploratoryWords  = []string{"how", "why", "explain", "what are", "tell me about", "overview"}
)

// Analyze implements IntentAnalyzer.
func (RuleBasedIntentAnalyzer) Analyze(query string) IntentAnalysis {
	lower := strings.ToLower(query)

	switch {
	case anchorLikePattern.MatchString(query):
		return IntentAnalysis{
			Intent: IntentFactualLookup,
			recipe: map[string]float64{"anchor": 150.0, "sparse": 0.9, "dense": 0.6, "graph": 0.3, "multi_vector": 0.6},
		}
	case containsAny(lower, temporalWords):
		return IntentAnalysis{
			Intent: IntentTemporalQuery,
			recipe: map[string]float64{"anchor": 80.0, "sparse": 0.8, "dense": 0.8, "graph": 0.4, "multi_vector": 0.8},
		}
	case containsAny(lower, exploratoryWords):
		return IntentAnalysis{
			Intent: IntentExploratory,
			recipe: map[string]float64{"anchor": 30.0, "sparse": 0.5, "dense": 1.2, "graph": 0.9, "multi_vector": 1.2},
		}
	default:
		return IntentAnalysis{
			Intent: IntentConversational,
			recipe: map[string]float64{"anchor": 50.0, "sparse": 0.7, "dense": 1.0, "graph": 0.5, "multi_vector": 1.0},
		}
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

var _ IntentAnalyzer = RuleBasedIntentAnalyzer{}
