package reconciler

import (
	"github.com/hazyhaar/eidetic/internal/analyst"
	"github.com/hazyhaar/eidetic/internal/store"
)

// recomputeConfidenceAndStatus recomputes id's confidence from its current
// evidence sets and advances its lifecycle status (spec.md §4.4 step 7).
func recomputeConfidenceAndStatus(work *workingSet, id, interviewID string, interviewOf map[string]string) {
	p, ok := work.get(id)
	if !ok {
		return
	}

	all := append(append([]string{}, p.SupportingEvidence...), p.ContradictingEvidence...)
	single := analyst.IsSingleInterview(all, interviewOf)
	p.Confidence = analyst.Confidence(len(p.SupportingEvidence), len(p.ContradictingEvidence), single)
	p.Status = nextStatus(p.Status, p.Confidence, distinctInterviews(p.SupportingEvidence, interviewOf), len(p.ContradictingEvidence), p.InterviewsWithoutNewEvidence)
	p.LastUpdatedInterview = interviewID

	work.set(p)
	work.markUpdated(id)
	work.events = append(work.events, Event{Kind: EventPropositionUpdated, Payload: map[string]any{
		"proposition_id": id, "status": string(p.Status), "confidence": p.Confidence,
	}})
}

// nextStatus is the lifecycle transition rule: strong, multi-interview
// support with no fresh activity settles into saturated; strong support
// still accumulating stays confirmed; unresolved contradiction against weak
// confidence flips to challenged; everything else holds, with untested
// advancing to exploring the moment it has any evidence at all.
func nextStatus(old store.PropositionStatus, confidence float64, distinctSupportingInterviews, contradictingCount, interviewsWithoutNewEvidence int) store.PropositionStatus {
	switch old {
	case store.StatusMerged, store.StatusWeak:
		return old
	}
	switch {
	case confidence >= 0.8 && distinctSupportingInterviews >= 2 && interviewsWithoutNewEvidence >= 2:
		return store.StatusSaturated
	case confidence >= 0.7 && distinctSupportingInterviews >= 2:
		return store.StatusConfirmed
	case contradictingCount > 0 && confidence < 0.7:
		return store.StatusChallenged
	case old == store.StatusUntested:
		return store.StatusExploring
	default:
		return old
	}
}

func distinctInterviews(evidenceIDs []string, interviewOf map[string]string) int {
	seen := map[string]bool{}
	for _, id := range evidenceIDs {
		if iv, ok := interviewOf[id]; ok {
			seen[iv] = true
		}
	}
	return len(seen)
}

// bumpStaleCounters resets interviews_without_new_evidence to 0 for every
// proposition touched this interview and increments it for every other live
// proposition that was not created this interview (spec.md §4.4 step 7 /
// invariant used by the prune rule).
func bumpStaleCounters(work *workingSet, touched map[string]bool, interviewID string) {
	for id, r := range work.propositions {
		if r.isNew || !r.prop.Live() {
			continue
		}
		p := r.prop
		if touched[id] {
			if p.InterviewsWithoutNewEvidence == 0 {
				continue
			}
			p.InterviewsWithoutNewEvidence = 0
		} else {
			p.InterviewsWithoutNewEvidence++
		}
		work.set(p)
		work.markUpdated(id)
	}
}
