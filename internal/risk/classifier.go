// Package risk flags impulsive or risky events from their derived features.
//
// An event is high risk when any of three rules fires:
//   - rapid fire: mean inter-event latency under LatencyThresholdSeconds on a
//     page refresh or add-to-cart action
//   - volatile spending: amount stddev above VolatilityThreshold
//   - long session: session duration above SessionDurationThresholdMin
package risk

import "example.com/riskpipeline/internal/domain"

// Classification policy thresholds.
const (
	LatencyThresholdSeconds     = 3.0
	VolatilityThreshold         = 150.0
	SessionDurationThresholdMin = 30.0
)

// Rule names a classification rule.
type Rule string

const (
	RuleRapidFire     Rule = "rapid_fire"
	RuleVolatileSpend Rule = "volatile_spend"
	RuleLongSession   Rule = "long_session"
)

// Rules lists every rule in evaluation order.
var Rules = []Rule{RuleRapidFire, RuleVolatileSpend, RuleLongSession}

// impulsiveActions are the actions for which a short latency is suspicious.
var impulsiveActions = map[domain.Action]struct{}{
	domain.ActionPageRefresh: {},
	domain.ActionAddToCart:   {},
}

// Matches returns the rules that fire for ev, in Rules order.
func Matches(ev *domain.EnrichedEvent) []Rule {
	var out []Rule
	if ev.RollingAvgLatency != nil && *ev.RollingAvgLatency < LatencyThresholdSeconds {
		if _, ok := impulsiveActions[ev.Action]; ok {
			out = append(out, RuleRapidFire)
		}
	}
	if ev.AmountVolatility > VolatilityThreshold {
		out = append(out, RuleVolatileSpend)
	}
	if ev.SessionDurationMin > SessionDurationThresholdMin {
		out = append(out, RuleLongSession)
	}
	return out
}

// IsHighRisk reports whether any rule fires for ev.
func IsHighRisk(ev *domain.EnrichedEvent) bool {
	return len(Matches(ev)) > 0
}

// Classify sets IsHighRisk on every event and returns how many times each
// rule fired.
func Classify(events []domain.EnrichedEvent) map[Rule]int {
	counts := make(map[Rule]int, len(Rules))
	for i := range events {
		rules := Matches(&events[i])
		events[i].IsHighRisk = len(rules) > 0
		for _, r := range rules {
			counts[r]++
		}
	}
	return counts
}
