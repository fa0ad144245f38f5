package reconciler

import "github.com/hazyhaar/eidetic/internal/analyst"

// validateMappings rejects a diff outright if any mapping resolves to
// evidence or a proposition the working set doesn't know about — a
// hallucinated reference the Analyst's own record is malformed enough not
// to trust (spec.md §7: structurally invalid diffs downgrade to
// evidence-only rather than commit partial damage).
func validateMappings(mappings []analyst.Mapping, refs *refResolver, work *workingSet) (reason string, ok bool) {
	for _, m := range mappings {
		evID := refs.resolveEvidence(m.EvidenceRef)
		if _, known := work.evidenceInterview[evID]; !known {
			return "mapping references unknown evidence " + m.EvidenceRef, false
		}
		propID := refs.resolveProposition(m.PropositionRef)
		if _, known := work.get(propID); !known {
			return "mapping references unknown proposition " + m.PropositionRef, false
		}
	}
	return "", true
}

// applyMappings folds every supports/contradicts mapping into its target
// proposition's evidence sets, skipping irrelevant classifications and
// skipping a mapping that would place the same evidence id in both sets
// (invariant 1: supporting ∩ contradicting = ∅ — first classification
// processed wins). Returns the set of proposition ids whose evidence sets
// actually grew, so the caller knows which need confidence/status
// recomputation.
func applyMappings(work *workingSet, mappings []analyst.Mapping, refs *refResolver) map[string]bool {
	touched := map[string]bool{}
	for _, m := range mappings {
		if m.Relation == analyst.RelationIrrelevant {
			continue
		}
		evID := refs.resolveEvidence(m.EvidenceRef)
		propID := refs.resolveProposition(m.PropositionRef)
		p, ok := work.get(propID)
		if !ok || !p.Live() {
			continue
		}

		inSupp := containsString(p.SupportingEvidence, evID)
		inContra := containsString(p.ContradictingEvidence, evID)
		if inSupp || inContra {
			continue // already classified; don't flip or duplicate
		}

		switch m.Relation {
		case analyst.RelationSupports:
			p.SupportingEvidence = append(p.SupportingEvidence, evID)
		case analyst.RelationContradicts:
			p.ContradictingEvidence = append(p.ContradictingEvidence, evID)
		default:
			continue
		}
		work.set(p)
		touched[propID] = true
	}
	return touched
}

func containsString(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}
