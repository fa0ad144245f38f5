package reconciler

import (
	"github.com/hazyhaar/eidetic/internal/analyst"
	"github.com/hazyhaar/eidetic/internal/store"
)

// applyPruneRule demotes every live, non-merged proposition meeting the
// formulaic prune condition (spec.md §4.4 step 6 / §8) to weak. The rule is
// purely a function of already-committed confidence and staleness
// counters, so it is evaluated directly rather than trusted from the
// Analyst's prune proposals — those are treated as a hint only, already
// folded into the deterministic check below by construction.
func applyPruneRule(work *workingSet, cfg Config) {
	for id, r := range work.propositions {
		if !r.prop.Live() {
			continue
		}
		p := r.prop
		if !analyst.ShouldPrune(p.Confidence, p.InterviewsWithoutNewEvidence, cfg.PruneMinInterviews, cfg.PruneConfidenceThreshold) {
			continue
		}
		if p.Status == store.StatusWeak {
			continue // already weak; avoid a redundant event
		}
		p.Status = store.StatusWeak
		work.set(p)
		if !r.isNew {
			work.markUpdated(id)
		}
		work.events = append(work.events, Event{Kind: EventPropositionPruned, Payload: map[string]any{
			"proposition_id": id,
		}})
	}
}
