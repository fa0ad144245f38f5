// Package reconciler is the sole mutator of a project's Store. It takes the
// Analyst's AnalysisDiff, assigns real ids, resolves symbolic references,
// enforces the structural invariants spec.md §8 names, applies merge
// transitivity, and commits — mirroring the teacher's
// veille.Service.processJob posture: apply what's valid, flag what isn't,
// never block future work.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/eidetic/internal/analyst"
	"github.com/hazyhaar/eidetic/internal/store"
)

// Config is the subset of internal/config.Config the Reconciler consults.
type Config struct {
	MergeOverlapThreshold    float64
	PruneConfidenceThreshold float64
	PruneMinInterviews       int
}

// EventKind identifies one of the Event Bus's event types (spec.md §4.7).
type EventKind string

const (
	EventNewEvidence        EventKind = "new_evidence"
	EventNewProposition     EventKind = "new_proposition"
	EventPropositionUpdated EventKind = "proposition_updated"
	EventPropositionMerged  EventKind = "proposition_merged"
	EventPropositionPruned  EventKind = "proposition_pruned"
	EventAnalysisFailed     EventKind = "analysis_failed"
)

// Event is one committed fact to publish, in commit order (spec.md §5:
// "events... emitted in the order the Reconciler applied them").
type Event struct {
	Kind    EventKind
	Payload map[string]any
}

// Input bundles everything Apply needs for one interview's reconciliation.
type Input struct {
	ConversationID    string
	Transcript        string
	Language          string
	ReceivedAt        time.Time
	ScriptVersionUsed *int
	Snapshot          *store.Snapshot // captured before the Analyst ran; safe because Pipeline holds the project lock across the whole flow
	Diff              *analyst.AnalysisDiff
}

// Result is Apply's outcome: the new interview id and the ordered events to
// publish. NewEvidenceCount and EvidenceTriggeringNewPropositions are the raw
// counts behind spec.md §4.4 step 8's novelty_rate formula — the Pipeline
// computes the rate itself rather than trusting the Analyst's self-reported
// figure.
type Result struct {
	InterviewID                       string
	Events                            []Event
	InvalidDiff                       bool
	Details                           string
	NewEvidenceCount                  int
	EvidenceTriggeringNewPropositions int
}

// Reconciler applies validated diffs to one project's Store under the
// project lock Pipeline already holds.
type Reconciler struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a Reconciler using cfg's thresholds.
func New(cfg Config, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MergeOverlapThreshold == 0 {
		cfg.MergeOverlapThreshold = 0.6
	}
	if cfg.PruneConfidenceThreshold == 0 {
		cfg.PruneConfidenceThreshold = 0.15
	}
	if cfg.PruneMinInterviews == 0 {
		cfg.PruneMinInterviews = 3
	}
	return &Reconciler{cfg: cfg, logger: logger}
}

// Apply assigns ids, resolves symbolic references, validates invariants,
// applies merge transitivity, and commits in.Snapshot + in.Diff to st.
//
// If the diff fails invariant validation, Apply downgrades it per spec.md
// §4.5/§7: the extracted evidence items still commit (they are raw
// observations worth preserving) but propositions are left untouched, and
// Result.InvalidDiff is set so the Pipeline emits analysis_failed.
func (rc *Reconciler) Apply(ctx context.Context, st *store.Store, in Input) (*Result, error) {
	interviewID, err := st.NextID(ctx, "interview")
	if err != nil {
		return nil, fmt.Errorf("reconciler: assign interview id: %w", err)
	}

	work := newWorkingSet(in.Snapshot)

	evidenceIDs, err := assignEvidenceIDs(ctx, st, in.Diff.NewEvidence, interviewID, in.Language)
	if err != nil {
		return nil, fmt.Errorf("reconciler: assign evidence ids: %w", err)
	}
	for _, e := range evidenceIDs {
		work.addEvidence(e.evidence)
	}

	refs := newRefResolver(evidenceIDs)

	propIDs, err := assignPropositionIDs(ctx, st, in.Diff.NewPropositions, interviewID, refs, work.evidenceInterviewIndex())
	if err != nil {
		return nil, fmt.Errorf("reconciler: assign proposition ids: %w", err)
	}
	for _, p := range propIDs {
		work.addProposition(p)
	}
	triggering := countTriggeringEvidence(propIDs)

	if reason, ok := validateMappings(in.Diff.Mappings, refs, work); !ok {
		return rc.downgrade(ctx, st, interviewID, in, work, reason)
	}

	touched := applyMappings(work, in.Diff.Mappings, refs)

	interviewOf := work.evidenceInterviewIndex()
	for id := range touched {
		recomputeConfidenceAndStatus(work, id, interviewID, interviewOf)
	}
	bumpStaleCounters(work, touched, interviewID)

	if err := applyMerges(ctx, st, work, in.Diff.MergeProposals, rc.cfg, interviewID, interviewOf); err != nil {
		return nil, fmt.Errorf("reconciler: apply merges: %w", err)
	}

	applyPruneRule(work, rc.cfg)

	if ok, reason := work.checkInvariants(); !ok {
		return rc.downgrade(ctx, st, interviewID, in, work, reason)
	}

	newProps := work.newPropositions()
	diff := store.Diff{
		NewEvidence:         work.newEvidence,
		NewPropositions:     newProps,
		UpdatedPropositions: work.updatedPropositions(),
		NewInterview: &store.Interview{
			ID: interviewID, ConversationID: in.ConversationID, Transcript: in.Transcript,
			ReceivedAt: in.ReceivedAt, ScriptVersionUsed: in.ScriptVersionUsed, Language: in.Language,
		},
	}
	if err := st.Commit(ctx, diff); err != nil {
		return nil, fmt.Errorf("reconciler: commit: %w", err)
	}

	return &Result{
		InterviewID:                       interviewID,
		Events:                            work.events,
		NewEvidenceCount:                  len(work.newEvidence),
		EvidenceTriggeringNewPropositions: triggering,
	}, nil
}

// countTriggeringEvidence returns the number of distinct evidence ids that
// seeded at least one of props' initial support/contradiction links — the
// numerator of spec.md §4.4 step 8's novelty_rate, as opposed to evidence
// that was only ever mapped onto an already-existing proposition.
func countTriggeringEvidence(props []store.Proposition) int {
	seen := map[string]bool{}
	for _, p := range props {
		for _, id := range p.SupportingEvidence {
			seen[id] = true
		}
		for _, id := range p.ContradictingEvidence {
			seen[id] = true
		}
	}
	return len(seen)
}

// downgrade commits only the extracted evidence (spec.md §4.5: "still
// commits the extracted evidence items; they are raw observations and worth
// preserving") and reports the diff as invalid.
func (rc *Reconciler) downgrade(ctx context.Context, st *store.Store, interviewID string, in Input, work *workingSet, reason string) (*Result, error) {
	diff := store.Diff{
		NewEvidence: work.newEvidence,
		NewInterview: &store.Interview{
			ID: interviewID, ConversationID: in.ConversationID, Transcript: in.Transcript,
			ReceivedAt: in.ReceivedAt, ScriptVersionUsed: in.ScriptVersionUsed, Language: in.Language,
		},
	}
	if err := st.Commit(ctx, diff); err != nil {
		return nil, fmt.Errorf("reconciler: commit evidence-only downgrade: %w", err)
	}
	rc.logger.Warn("invalid diff downgraded to evidence-only", "interview_id", interviewID, "reason", reason)
	return &Result{
		InterviewID: interviewID,
		InvalidDiff: true,
		Details:     reason,
		Events: []Event{{Kind: EventAnalysisFailed, Payload: map[string]any{
			"interview_id": interviewID, "details": reason,
		}}},
	}, nil
}
