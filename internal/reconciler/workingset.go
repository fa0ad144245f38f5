package reconciler

import "github.com/hazyhaar/eidetic/internal/store"

// propRecord tracks one proposition plus whether it was created during this
// diff (destined for store.Diff.NewPropositions) or already existed
// (destined for UpdatedPropositions only if it was actually touched).
type propRecord struct {
	prop  store.Proposition
	isNew bool
}

// workingSet is the Reconciler's in-memory mutable view of one project's
// state for the duration of one Apply call. It starts from the Pipeline's
// pre-Analyst Snapshot and accumulates every structural change before a
// single store.Diff is assembled and committed.
type workingSet struct {
	propositions map[string]*propRecord
	dirty        map[string]bool // existing proposition ids mutated this pass

	newEvidence       []store.Evidence
	evidenceInterview map[string]string // evidence id -> interview id, existing + new

	events []Event
}

func newWorkingSet(snap *store.Snapshot) *workingSet {
	ws := &workingSet{
		propositions:      map[string]*propRecord{},
		dirty:             map[string]bool{},
		evidenceInterview: map[string]string{},
	}
	if snap == nil {
		return ws
	}
	for _, p := range snap.Propositions {
		pp := p
		ws.propositions[p.ID] = &propRecord{prop: pp, isNew: false}
	}
	for _, e := range snap.Evidence {
		ws.evidenceInterview[e.ID] = e.InterviewID
	}
	return ws
}

func (ws *workingSet) addEvidence(e store.Evidence) {
	ws.newEvidence = append(ws.newEvidence, e)
	ws.evidenceInterview[e.ID] = e.InterviewID
	ws.events = append(ws.events, Event{Kind: EventNewEvidence, Payload: map[string]any{"evidence_id": e.ID}})
}

func (ws *workingSet) addProposition(p store.Proposition) {
	ws.propositions[p.ID] = &propRecord{prop: p, isNew: true}
	ws.events = append(ws.events, Event{Kind: EventNewProposition, Payload: map[string]any{"proposition_id": p.ID}})
}

func (ws *workingSet) get(id string) (store.Proposition, bool) {
	r, ok := ws.propositions[id]
	if !ok {
		return store.Proposition{}, false
	}
	return r.prop, true
}

func (ws *workingSet) set(p store.Proposition) {
	r, ok := ws.propositions[p.ID]
	if !ok {
		ws.propositions[p.ID] = &propRecord{prop: p, isNew: false}
		return
	}
	r.prop = p
	if !r.isNew {
		ws.dirty[p.ID] = true
	}
}

func (ws *workingSet) markUpdated(id string) {
	if r, ok := ws.propositions[id]; ok && !r.isNew {
		ws.dirty[id] = true
	}
}

func (ws *workingSet) evidenceInterviewIndex() map[string]string { return ws.evidenceInterview }

func (ws *workingSet) newPropositions() []store.Proposition {
	var out []store.Proposition
	for _, r := range ws.propositions {
		if r.isNew {
			out = append(out, r.prop)
		}
	}
	return out
}

func (ws *workingSet) updatedPropositions() []store.Proposition {
	var out []store.Proposition
	for id := range ws.dirty {
		if r, ok := ws.propositions[id]; ok && !r.isNew {
			out = append(out, r.prop)
		}
	}
	return out
}

// checkInvariants validates spec.md §8's structural invariants over the
// working set before it is allowed to commit.
func (ws *workingSet) checkInvariants() (ok bool, reason string) {
	for id, r := range ws.propositions {
		p := r.prop
		supp := map[string]bool{}
		for _, e := range p.SupportingEvidence {
			supp[e] = true
			if _, ok := ws.evidenceInterview[e]; !ok {
				return false, "proposition " + id + " references unknown evidence " + e
			}
		}
		for _, e := range p.ContradictingEvidence {
			if supp[e] {
				return false, "proposition " + id + " has evidence " + e + " in both supporting and contradicting sets"
			}
			if _, ok := ws.evidenceInterview[e]; !ok {
				return false, "proposition " + id + " references unknown evidence " + e
			}
		}
		if p.Status == store.StatusMerged {
			if p.MergedInto == "" {
				return false, "proposition " + id + " is merged but has no merged_into target"
			}
			if p.MergedInto == id {
				return false, "proposition " + id + " merged into itself"
			}
			if _, ok := ws.propositions[p.MergedInto]; !ok {
				return false, "proposition " + id + " merged into unknown id " + p.MergedInto
			}
		}
	}
	return true, ""
}
