package reconciler

// refResolver translates the Analyst's interview-local symbolic references
// (e#3, p#1) into the real, store-assigned ids minted during this Apply
// call. A reference the resolver doesn't recognize is assumed to already be
// a real id — true for prior evidence and pre-existing live propositions,
// which the Analyst cites directly.
type refResolver struct {
	evidenceBySymbolic    map[string]string
	propositionBySymbolic map[string]string
}

func newRefResolver(assignedEvidence []assignedEvidence) *refResolver {
	r := &refResolver{
		evidenceBySymbolic:    map[string]string{},
		propositionBySymbolic: map[string]string{},
	}
	for _, a := range assignedEvidence {
		r.evidenceBySymbolic[a.symbolicID] = a.evidence.ID
	}
	return r
}

func (r *refResolver) bindProposition(symbolicID, realID string) {
	if symbolicID == "" {
		return
	}
	r.propositionBySymbolic[symbolicID] = realID
}

// resolveEvidence returns the real evidence id for ref, or ref itself if it
// is not a known symbolic id.
func (r *refResolver) resolveEvidence(ref string) string {
	if real, ok := r.evidenceBySymbolic[ref]; ok {
		return real
	}
	return ref
}

// resolveProposition returns the real proposition id for ref, or ref itself
// if it is not a known symbolic id.
func (r *refResolver) resolveProposition(ref string) string {
	if real, ok := r.propositionBySymbolic[ref]; ok {
		return real
	}
	return ref
}
