package analyst

// AnalysisDiff is the Analyst's entire output for one interview: everything
// the Reconciler needs to validate, assign real ids to, and commit. All ids
// here are Analyst-local symbolic references (e#3, p#1) except for live
// proposition ids already known from the snapshot.
type AnalysisDiff struct {
	NewEvidence       []EvidenceProposal
	Mappings          []Mapping
	NewPropositions   []PropositionProposal
	MergeProposals    []MergeProposal
	PruneProposals    []PruneProposal
	Metrics           Metrics
	Warnings          []string
}

// EvidenceProposal is one extracted Evidence item with a symbolic id the
// Reconciler will resolve to a real E-id.
type EvidenceProposal struct {
	SymbolicID     string
	Quote          string
	Interpretation string
	Factor         string
	Mechanism      string
	Outcome        string
	Tags           []string
	Language       string
}

// MappingRelation is how an evidence item relates to a proposition.
type MappingRelation string

const (
	RelationSupports    MappingRelation = "supports"
	RelationContradicts MappingRelation = "contradicts"
	RelationIrrelevant  MappingRelation = "irrelevant"
)

// Mapping classifies one (evidence, proposition) pair. EvidenceRef and
// PropositionRef may be symbolic (new this interview) or real (pre-existing
// live propositions, or prior evidence visited during the retroactive
// scan).
type Mapping struct {
	EvidenceRef     string
	PropositionRef  string
	Relation        MappingRelation
}

// PropositionProposal is a new causal claim, provisional until the
// Reconciler assigns it a real id and resolves its evidence references.
type PropositionProposal struct {
	SymbolicID             string
	Factor                 string
	Mechanism              string
	Outcome                string
	SupportingEvidenceRefs []string
	ContradictingEvidenceRefs []string
	ProvisionalStatus      string // "untested" or "exploring"
}

// MergeProposal unifies two live propositions into a new one.
type MergeProposal struct {
	AID          string // real, pre-existing proposition id
	BID          string // real, pre-existing proposition id
	NewFactor    string
	NewMechanism string
	NewOutcome   string
}

// PruneProposal flags a live proposition for demotion to weak.
type PruneProposal struct {
	PropositionID string
}

// Metrics carries the Analyst's computed convergence_score and novelty_rate
// for this pass (spec.md §4.4 step 8). The Reconciler/Pipeline may also
// recompute these independently from committed state; the Analyst's figures
// reflect its view of the diff before commit.
type Metrics struct {
	ConvergenceScore float64
	NoveltyRate      float64
	Mode             string
}
