package reconciler

import (
	"context"
	"fmt"

	"github.com/hazyhaar/eidetic/internal/analyst"
	"github.com/hazyhaar/eidetic/internal/store"
)

type assignedEvidence struct {
	symbolicID string
	evidence   store.Evidence
}

// assignEvidenceIDs mints a real E-id for every extracted evidence item and
// builds the store.Evidence rows to commit. Ids are minted in proposal
// order, so a replay of the identical diff assigns identical ids only if
// the counter hasn't advanced — ids are never reused (spec invariant 3).
func assignEvidenceIDs(ctx context.Context, st *store.Store, proposals []analyst.EvidenceProposal, interviewID, language string) ([]assignedEvidence, error) {
	out := make([]assignedEvidence, 0, len(proposals))
	for _, p := range proposals {
		id, err := st.NextID(ctx, "evidence")
		if err != nil {
			return nil, fmt.Errorf("assign evidence id for %s: %w", p.SymbolicID, err)
		}
		lang := p.Language
		if lang == "" {
			lang = language
		}
		out = append(out, assignedEvidence{
			symbolicID: p.SymbolicID,
			evidence: store.Evidence{
				ID:             id,
				InterviewID:    interviewID,
				Quote:          p.Quote,
				Interpretation: p.Interpretation,
				Factor:         p.Factor,
				Mechanism:      p.Mechanism,
				Outcome:        p.Outcome,
				Tags:           p.Tags,
				Language:       lang,
			},
		})
	}
	return out, nil
}

// assignPropositionIDs mints a real P-id for every newly proposed
// proposition, resolves its supporting/contradicting evidence references
// through refs, and computes its initial confidence.
func assignPropositionIDs(ctx context.Context, st *store.Store, proposals []analyst.PropositionProposal, interviewID string, refs *refResolver, interviewOf map[string]string) ([]store.Proposition, error) {
	out := make([]store.Proposition, 0, len(proposals))
	for _, p := range proposals {
		id, err := st.NextID(ctx, "proposition")
		if err != nil {
			return nil, fmt.Errorf("assign proposition id for %s: %w", p.SymbolicID, err)
		}
		refs.bindProposition(p.SymbolicID, id)

		supp := resolveAll(p.SupportingEvidenceRefs, refs.resolveEvidence)
		contra := resolveAll(p.ContradictingEvidenceRefs, refs.resolveEvidence)

		single := analyst.IsSingleInterview(append(append([]string{}, supp...), contra...), interviewOf)
		confidence := analyst.Confidence(len(supp), len(contra), single)

		out = append(out, store.Proposition{
			ID:                           id,
			Factor:                       p.Factor,
			Mechanism:                    p.Mechanism,
			Outcome:                      p.Outcome,
			Confidence:                   confidence,
			Status:                       store.PropositionStatus(p.ProvisionalStatus),
			SupportingEvidence:           supp,
			ContradictingEvidence:        contra,
			FirstSeenInterview:           interviewID,
			LastUpdatedInterview:         interviewID,
			InterviewsWithoutNewEvidence: 0,
		})
	}
	return out, nil
}

func resolveAll(refs []string, resolve func(string) string) []string {
	if len(refs) == 0 {
		return nil
	}
	out := make([]string, 0, len(refs))
	seen := map[string]bool{}
	for _, r := range refs {
		real := resolve(r)
		if seen[real] {
			continue
		}
		seen[real] = true
		out = append(out, real)
	}
	return out
}
