package matching

import (
	"winefeed/internal/matching/models"
)

const maxConfidence = 100

// Threshold maps a score to a decision on the tiered ladder. It is a monotonic
// step function of score and assumes guardrails and the vintage policy passed.
func Threshold(score int, cfg Config) models.Decision {
	switch {
	case score >= cfg.AutoMatchThreshold:
		return models.DecisionAutoMatch
	case score >= cfg.SamplingThreshold:
		return models.DecisionAutoMatchSampling
	case score >= cfg.ReviewThreshold:
		return models.DecisionReviewQueue
	default:
		return models.DecisionNoMatch
	}
}

// Decide applies the rule chain to the decisive candidate.
// This is pure domain logic: no I/O, no side effects.
// Rule priority (fail-fast):
//  1. Guardrail failure - NO_MATCH whatever the score
//  2. Vintage policy failure - REVIEW_QUEUE whatever the score
//  3. Score thresholds
func Decide(candidate models.Candidate, vintage models.Reason, cfg Config) models.Decision {
	if len(candidate.GuardrailFailures) > 0 {
		return models.DecisionNoMatch
	}
	if vintage != "" {
		return models.DecisionReviewQueue
	}
	return Threshold(candidate.Score, cfg)
}

func clampConfidence(score int) int {
	return min(max(score, 0), maxConfidence)
}
