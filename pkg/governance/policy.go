// Package governance implements the security-classification invariant,
// auto-tagging rules, and retention/GDPR-erasure cascade of spec.md §6,
// grounded on
// original_source/apps/memory_api/services/retention_service.py and the
// auto-tag thresholds exercised by
// original_source/apps/memory_api/tests/services/test_security_enforcement.py
// (the rule table itself lives only in that test file in the retrieval
// pack — rae_core's RAECoreService.store_memory is not included — so the
// thresholds below are the values the tests assert on, not a guess).
package governance

import (
	"fmt"

	"github.com/oceanbase/agentmem/pkg/memory"
)

// Auto-tag threshold constants, each grounded on the specific assertion
// in test_security_enforcement.py that exercises it.
const (
	// HighRiskChainLength is the prompt-chain length at or above which a
	// record is tagged high_risk_sequence (test asserts chain_length=10
	// triggers the tag).
	HighRiskChainLength = 10

	// LowConfidenceRoutingThreshold is the routing-decision confidence
	// at or below which a record is tagged hitl_review_required (test
	// asserts decision_basis_confidence=0.3 triggers the tag).
	LowConfidenceRoutingThreshold = 0.3

	// HeavyToolUseTokenThreshold is the tool-invocation token count at
	// or above which a record is tagged heavy_tool_use (test asserts
	// token_count=15000 triggers the tag).
	HeavyToolUseTokenThreshold = 15000
)

// Auto-tag values applied by ApplyAutoTags.
const (
	TagHighRiskSequence     = "high_risk_sequence"
	TagHITLReviewRequired   = "hitl_review_required"
	TagHeavyToolUse         = "heavy_tool_use"
	TagDeeperReflectionNeed = "deeper_reflection_needed"
)

// Governance pattern types, carried over verbatim from the original
// service's governance.pattern_type discriminator.
const (
	PatternPromptChaining  = "prompt_chaining"
	PatternRoutingDecision = "routing_decision"
	PatternToolInvocation  = "tool_invocation"
	PatternReflection      = "reflection"
)

// Input mirrors the original service's `governance` dict parameter: a
// pattern type plus a loosely-typed field bag, since each pattern
// contributes a different shape of evidence.
type Input struct {
	PatternType string
	Fields      map[string]interface{}
}

// EnforceSecurityPolicy applies spec.md §6's restricted+episodic
// invariant: RESTRICTED-classified content may never be written to the
// episodic layer (it may live transiently in working memory, but must
// never be promoted into durable long-term storage at that
// classification). Returns memory.ErrSecurityPolicyViolation, wrapped
// with the offending layer/class, when violated.
func EnforceSecurityPolicy(rec *memory.Record) error {
	if rec.InfoClass == memory.InfoClassRestricted && rec.Layer == memory.LayerEpisodic {
		return fmt.Errorf("%w: restricted data cannot be stored in episodic layer", memory.ErrSecurityPolicyViolation)
	}
	return nil
}

// ApplyAutoTags inspects governance evidence attached to a write and
// appends the matching compliance tags to rec.Tags, deduplicating
// against tags already present. A record can match more than one rule;
// every rule is evaluated independently.
func ApplyAutoTags(rec *memory.Record, in Input) {
	switch in.PatternType {
	case PatternPromptChaining:
		if chainLength := floatField(in.Fields, "chain_length"); chainLength >= HighRiskChainLength {
			addTag(rec, TagHighRiskSequence)
		}
	case PatternRoutingDecision:
		if confidence, ok := in.Fields["decision_basis_confidence"]; ok {
			if f := toFloat(confidence); f <= LowConfidenceRoutingThreshold {
				addTag(rec, TagHITLReviewRequired)
			}
		}
	case PatternToolInvocation:
		if metrics, ok := in.Fields["cost_metrics"].(map[string]interface{}); ok {
			if tokenCount := toFloat(metrics["token_count"]); tokenCount >= HeavyToolUseTokenThreshold {
				addTag(rec, TagHeavyToolUse)
			}
		}
	case PatternReflection:
		before := toFloat(in.Fields["confidence_before"])
		after := toFloat(in.Fields["confidence_after"])
		if _, hasBefore := in.Fields["confidence_before"]; hasBefore {
			if after < before {
				addTag(rec, TagDeeperReflectionNeed)
			}
		}
	}
}

func floatField(fields map[string]interface{}, key string) float64 {
	return toFloat(fields[key])
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func addTag(rec *memory.Record, tag string) {
	for _, t := range rec.Tags {
		if t == tag {
			return
		}
	}
	rec.Tags = append(rec.Tags, tag)
}
