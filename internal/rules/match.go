package rules

import (
	"github.com/CamDog38/formrelay/internal/types"
)

/*
 * Rule matching.
 *
 * Match is a pure filter over the rules registered for a submission's form:
 * inactive rules and rules belonging to other forms are skipped, each
 * remaining rule's condition tree is evaluated exactly once against the
 * submission data, and duplicates (same rule id appearing twice in the
 * input) are dropped before evaluation. Queuing and log creation happen
 * downstream; Match has no side effects.
 *
 * Result order follows input (storage) order, so re-running Match on the
 * same inputs yields the same slice.
 */

// Match selects the subset of rules whose conditions evaluate true for the
// submission. The returned slice preserves input order and contains no
// duplicate rule IDs.
func Match(sub types.Submission, candidates []types.Rule) []types.Rule {
	data := sub.Data.Decode()

	var matched []types.Rule
	seen := make(map[types.RuleID]struct{}, len(candidates))

	for _, rule := range candidates {
		if !rule.Active || rule.FormID != sub.FormID {
			continue
		}
		if _, dup := seen[rule.RuleID]; dup {
			continue
		}
		seen[rule.RuleID] = struct{}{}

		if EvaluateRaw(rule.Conditions, data) {
			matched = append(matched, rule)
		}
	}

	return matched
}
