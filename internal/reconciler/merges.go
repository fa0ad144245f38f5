package reconciler

import (
	"context"
	"fmt"

	"github.com/hazyhaar/eidetic/internal/analyst"
	"github.com/hazyhaar/eidetic/internal/store"
)

// unionFind collapses chained merges within one diff — A merging into B
// which itself later merges into C leaves both A and B pointing at C
// (spec.md §8: merge transitivity).
type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind { return &unionFind{parent: map[string]string{}} }

func (u *unionFind) find(x string) string {
	p, ok := u.parent[x]
	if !ok || p == x {
		return x
	}
	root := u.find(p)
	u.parent[x] = root
	return root
}

func (u *unionFind) union(a, b, newRoot string) {
	u.parent[u.find(a)] = newRoot
	u.parent[u.find(b)] = newRoot
	u.parent[newRoot] = newRoot
}

// applyMerges processes the Analyst's merge proposals in order, verifying
// each against the configured Jaccard overlap threshold before committing
// it (the threshold check is deterministic and not trusted blindly from
// LLM output), and resolves transitive chains via union-find so that every
// superseded id ends up pointing at the final surviving proposition.
func applyMerges(ctx context.Context, st *store.Store, work *workingSet, proposals []analyst.MergeProposal, cfg Config, interviewID string, interviewOf map[string]string) error {
	if len(proposals) == 0 {
		return nil
	}

	uf := newUnionFind()
	type pendingMerge struct {
		newID      string
		absorbedA  string
		absorbedB  string
	}
	var pending []pendingMerge

	for _, m := range proposals {
		ra := uf.find(m.AID)
		rb := uf.find(m.BID)
		if ra == rb {
			continue // already merged earlier in this diff; idempotent no-op
		}
		propA, okA := work.get(ra)
		propB, okB := work.get(rb)
		if !okA || !okB || !propA.Live() || !propB.Live() {
			continue
		}
		if !analyst.ShouldMerge(propA.SupportingEvidence, propB.SupportingEvidence, cfg.MergeOverlapThreshold) {
			continue
		}

		newID, err := st.NextID(ctx, "proposition")
		if err != nil {
			return fmt.Errorf("assign merged proposition id: %w", err)
		}

		merged := buildMergedProposition(newID, propA, propB, m, interviewID, interviewOf)
		work.addProposition(merged)

		propA.Status = store.StatusMerged
		propA.MergedInto = newID
		work.set(propA)
		work.markUpdated(ra)

		propB.Status = store.StatusMerged
		propB.MergedInto = newID
		work.set(propB)
		work.markUpdated(rb)

		uf.union(ra, rb, newID)
		pending = append(pending, pendingMerge{newID: newID, absorbedA: ra, absorbedB: rb})

		work.events = append(work.events, Event{Kind: EventPropositionMerged, Payload: map[string]any{
			"a": ra, "b": rb, "merged_into": newID,
		}})
	}

	// Resolve full transitivity: any id (including an intermediate merge
	// target later absorbed by a further merge) now points at its final
	// root.
	for _, pm := range pending {
		for _, absorbed := range []string{pm.absorbedA, pm.absorbedB, pm.newID} {
			p, ok := work.get(absorbed)
			if !ok {
				continue
			}
			root := uf.find(absorbed)
			if root == absorbed {
				continue
			}
			p.Status = store.StatusMerged
			p.MergedInto = root
			work.set(p)
			if !work.propositions[absorbed].isNew {
				work.markUpdated(absorbed)
			}
		}
	}

	return nil
}

// buildMergedProposition unions two propositions' evidence sets and
// recomputes confidence/status for the surviving unified claim.
func buildMergedProposition(newID string, a, b store.Proposition, m analyst.MergeProposal, interviewID string, interviewOf map[string]string) store.Proposition {
	supp := unionStrings(a.SupportingEvidence, b.SupportingEvidence)
	contra := unionStrings(a.ContradictingEvidence, b.ContradictingEvidence)
	// invariant 1: an id cannot remain in both sets after union.
	contraFiltered := contra[:0:0]
	suppSet := map[string]bool{}
	for _, id := range supp {
		suppSet[id] = true
	}
	for _, id := range contra {
		if !suppSet[id] {
			contraFiltered = append(contraFiltered, id)
		}
	}

	all := append(append([]string{}, supp...), contraFiltered...)
	single := analyst.IsSingleInterview(all, interviewOf)
	confidence := analyst.Confidence(len(supp), len(contraFiltered), single)

	factor, mechanism, outcome := m.NewFactor, m.NewMechanism, m.NewOutcome
	if factor == "" {
		factor = a.Factor
	}
	if mechanism == "" {
		mechanism = a.Mechanism
	}
	if outcome == "" {
		outcome = a.Outcome
	}

	status := store.StatusExploring
	if len(supp) >= 2 {
		status = nextStatus(store.StatusExploring, confidence, distinctInterviews(supp, interviewOf), len(contraFiltered), 0)
	}

	return store.Proposition{
		ID:                           newID,
		Factor:                       factor,
		Mechanism:                    mechanism,
		Outcome:                      outcome,
		Confidence:                   confidence,
		Status:                       status,
		SupportingEvidence:           supp,
		ContradictingEvidence:        contraFiltered,
		FirstSeenInterview:           minInterview(a.FirstSeenInterview, b.FirstSeenInterview),
		LastUpdatedInterview:         interviewID,
		InterviewsWithoutNewEvidence: 0,
	}
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range a {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// minInterview keeps the earlier of two interview ids so a merged
// proposition's first_seen_interview reflects whichever precursor surfaced
// first. Interview ids are monotonically formatted (INT_001, INT_002, ...),
// so lexical comparison matches arrival order.
func minInterview(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if a <= b {
		return a
	}
	return b
}
