package reconciler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/eidetic/internal/analyst"
	"github.com/hazyhaar/eidetic/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proj.db")
	s, err := store.Open(path, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	if err := s.CreateProject(ctx, "proj1", "does X cause Y?", "agent-1"); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return s
}

func baseInput(diff *analyst.AnalysisDiff, snap *store.Snapshot) Input {
	return baseInputConv("conv-1", diff, snap)
}

func baseInputConv(conversationID string, diff *analyst.AnalysisDiff, snap *store.Snapshot) Input {
	return Input{
		ConversationID: conversationID,
		Transcript:     "transcript text",
		Language:       "en",
		ReceivedAt:     time.Now().UTC(),
		Snapshot:       snap,
		Diff:           diff,
	}
}

func TestApply_CommitsEvidenceAndPropositions(t *testing.T) {
	s := newTestStore(t)
	rc := New(Config{}, nil)
	ctx := context.Background()

	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	diff := &analyst.AnalysisDiff{
		NewEvidence: []analyst.EvidenceProposal{
			{SymbolicID: "e#1", Quote: "q1", Factor: "f", Mechanism: "m", Outcome: "o", Language: "en"},
		},
		NewPropositions: []analyst.PropositionProposal{
			{SymbolicID: "p#1", Factor: "f", Mechanism: "m", Outcome: "o", SupportingEvidenceRefs: []string{"e#1"}, ProvisionalStatus: "untested"},
		},
	}

	res, err := rc.Apply(ctx, s, baseInput(diff, snap))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.InvalidDiff {
		t.Fatalf("expected valid diff, got details: %s", res.Details)
	}
	if res.InterviewID != "INT_001" {
		t.Fatalf("InterviewID = %q, want INT_001", res.InterviewID)
	}

	var sawEvidence, sawProposition bool
	for _, e := range res.Events {
		if e.Kind == EventNewEvidence {
			sawEvidence = true
		}
		if e.Kind == EventNewProposition {
			sawProposition = true
		}
	}
	if !sawEvidence || !sawProposition {
		t.Fatalf("events missing new_evidence/new_proposition: %+v", res.Events)
	}

	snap2, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load after Apply: %v", err)
	}
	if len(snap2.Evidence) != 1 || len(snap2.Propositions) != 1 {
		t.Fatalf("snapshot after Apply = %+v", snap2)
	}
	if snap2.Propositions[0].SupportingEvidence[0] != "E001" {
		t.Fatalf("supporting evidence ref = %v, want resolved real id E001", snap2.Propositions[0].SupportingEvidence)
	}
}

func TestApply_NoveltyCounts(t *testing.T) {
	s := newTestStore(t)
	rc := New(Config{}, nil)
	ctx := context.Background()

	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Two new evidence items: e#1 seeds a brand-new proposition, e#2 is only
	// mapped against it via Mappings — so only e#1 should count as
	// "triggering" a new proposition.
	diff := &analyst.AnalysisDiff{
		NewEvidence: []analyst.EvidenceProposal{
			{SymbolicID: "e#1", Quote: "q1", Factor: "f", Mechanism: "m", Outcome: "o", Language: "en"},
			{SymbolicID: "e#2", Quote: "q2", Factor: "f", Mechanism: "m", Outcome: "o", Language: "en"},
		},
		NewPropositions: []analyst.PropositionProposal{
			{SymbolicID: "p#1", Factor: "f", Mechanism: "m", Outcome: "o", SupportingEvidenceRefs: []string{"e#1"}, ProvisionalStatus: "untested"},
		},
		Mappings: []analyst.Mapping{
			{EvidenceRef: "e#2", PropositionRef: "p#1", Relation: analyst.RelationSupports},
		},
	}

	res, err := rc.Apply(ctx, s, baseInput(diff, snap))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.NewEvidenceCount != 2 {
		t.Fatalf("NewEvidenceCount = %d, want 2", res.NewEvidenceCount)
	}
	if res.EvidenceTriggeringNewPropositions != 1 {
		t.Fatalf("EvidenceTriggeringNewPropositions = %d, want 1", res.EvidenceTriggeringNewPropositions)
	}
}

func TestApply_InvalidMappingDowngradesToEvidenceOnly(t *testing.T) {
	s := newTestStore(t)
	rc := New(Config{}, nil)
	ctx := context.Background()

	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	diff := &analyst.AnalysisDiff{
		NewEvidence: []analyst.EvidenceProposal{
			{SymbolicID: "e#1", Quote: "q1", Factor: "f", Mechanism: "m", Outcome: "o", Language: "en"},
		},
		Mappings: []analyst.Mapping{
			{EvidenceRef: "e#1", PropositionRef: "P999", Relation: analyst.RelationSupports}, // P999 doesn't exist
		},
	}

	res, err := rc.Apply(ctx, s, baseInput(diff, snap))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !res.InvalidDiff {
		t.Fatal("expected InvalidDiff true for mapping to unknown proposition")
	}

	snap2, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap2.Evidence) != 1 {
		t.Fatalf("evidence should still commit on downgrade, got %d", len(snap2.Evidence))
	}
	if len(snap2.Propositions) != 0 {
		t.Fatalf("no propositions should commit on downgrade, got %d", len(snap2.Propositions))
	}
}

func TestApply_MergeTransitivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rc := New(Config{MergeOverlapThreshold: 0.6}, nil)

	// First interview: seed three live propositions (P001-P003) sharing
	// identical supporting evidence, so any pairwise merge clears the
	// overlap threshold.
	seedSnap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	seedDiff := &analyst.AnalysisDiff{
		NewEvidence: []analyst.EvidenceProposal{
			{SymbolicID: "e#1", Quote: "q1", Factor: "f", Mechanism: "m", Outcome: "o", Language: "en"},
		},
		NewPropositions: []analyst.PropositionProposal{
			{SymbolicID: "p#1", Factor: "f1", Mechanism: "m1", Outcome: "o1", SupportingEvidenceRefs: []string{"e#1"}, ProvisionalStatus: "exploring"},
			{SymbolicID: "p#2", Factor: "f2", Mechanism: "m2", Outcome: "o2", SupportingEvidenceRefs: []string{"e#1"}, ProvisionalStatus: "exploring"},
			{SymbolicID: "p#3", Factor: "f3", Mechanism: "m3", Outcome: "o3", SupportingEvidenceRefs: []string{"e#1"}, ProvisionalStatus: "exploring"},
		},
	}
	if _, err := rc.Apply(ctx, s, baseInputConv("conv-seed", seedDiff, seedSnap)); err != nil {
		t.Fatalf("seed Apply: %v", err)
	}

	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	diff := &analyst.AnalysisDiff{
		MergeProposals: []analyst.MergeProposal{
			{AID: "P001", BID: "P002", NewFactor: "f12"},
			{AID: "P001", BID: "P003", NewFactor: "f123"}, // chains through P001's new merge target
		},
	}

	res, err := rc.Apply(ctx, s, baseInputConv("conv-merge", diff, snap))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.InvalidDiff {
		t.Fatalf("expected valid diff, got: %s", res.Details)
	}

	final, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	byID := map[string]store.Proposition{}
	for _, p := range final.Propositions {
		byID[p.ID] = p
	}

	p1, p2, p3 := byID["P001"], byID["P002"], byID["P003"]
	if p1.Status != store.StatusMerged || p2.Status != store.StatusMerged || p3.Status != store.StatusMerged {
		t.Fatalf("expected P001-P003 all merged, got %+v %+v %+v", p1, p2, p3)
	}
	if p1.MergedInto != p2.MergedInto || p2.MergedInto != p3.MergedInto {
		t.Fatalf("expected all three to collapse to the same final id, got %q %q %q", p1.MergedInto, p2.MergedInto, p3.MergedInto)
	}
	if p1.MergedInto == "" {
		t.Fatal("expected non-empty merged_into")
	}
}

func TestApply_DuplicateConversationIsCallerResponsibility(t *testing.T) {
	// Apply itself does not dedupe conversation ids — Pipeline checks via
	// Store.GetInterviewByConversationID before invoking the Reconciler. This
	// test documents that Apply surfaces the Store's own duplicate guard if
	// called twice for the same conversation anyway.
	s := newTestStore(t)
	rc := New(Config{}, nil)
	ctx := context.Background()

	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	diff := &analyst.AnalysisDiff{}
	if _, err := rc.Apply(ctx, s, baseInput(diff, snap)); err != nil {
		t.Fatalf("first Apply: %v", err)
	}

	snap2, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, err = rc.Apply(ctx, s, baseInput(diff, snap2))
	if !errors.Is(err, store.ErrDuplicateConversation) {
		t.Fatalf("second Apply with same conversation_id = %v, want ErrDuplicateConversation", err)
	}
}
