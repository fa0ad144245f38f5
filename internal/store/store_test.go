package store

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := testMemoryDB(t)
	return &Store{db: db}
}

func TestNextID_MonotonicAndFormatted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.NextID(ctx, "evidence")
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if first != "E001" {
		t.Fatalf("first evidence id = %q, want E001", first)
	}

	second, err := s.NextID(ctx, "evidence")
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if second != "E002" {
		t.Fatalf("second evidence id = %q, want E002", second)
	}

	prop, err := s.NextID(ctx, "proposition")
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if prop != "P001" {
		t.Fatalf("first proposition id = %q, want P001 (counters are per-kind)", prop)
	}

	iv, err := s.NextID(ctx, "interview")
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if iv != "INT_001" {
		t.Fatalf("first interview id = %q, want INT_001", iv)
	}
}

func TestCommit_AtomicAcrossTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateProject(ctx, "proj1", "does X cause Y?", "agent-1"); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	iv := Interview{ID: "INT_001", ConversationID: "conv-1", Transcript: "hello", ReceivedAt: time.Now().UTC(), Language: "en"}
	ev := Evidence{ID: "E001", InterviewID: "INT_001", Quote: "hello", Interpretation: "greeting", Factor: "f", Mechanism: "m", Outcome: "o", Language: "en", Timestamp: time.Now().UTC()}
	prop := Proposition{ID: "P001", Factor: "f", Mechanism: "m", Outcome: "o", Status: StatusUntested, FirstSeenInterview: "INT_001", LastUpdatedInterview: "INT_001"}

	err := s.Commit(ctx, Diff{
		NewEvidence:     []Evidence{ev},
		NewPropositions: []Proposition{prop},
		NewInterview:    &iv,
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Evidence) != 1 || len(snap.Propositions) != 1 || len(snap.Interviews) != 1 {
		t.Fatalf("Load after Commit incomplete: %+v", snap)
	}
}

func TestInsertInterview_DuplicateConversationID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.CreateProject(ctx, "proj1", "q", "agent-1"); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	iv := Interview{ID: "INT_001", ConversationID: "conv-dup", Transcript: "t", ReceivedAt: time.Now().UTC(), Language: "en"}
	if err := s.Commit(ctx, Diff{NewInterview: &iv}); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	iv2 := Interview{ID: "INT_002", ConversationID: "conv-dup", Transcript: "t2", ReceivedAt: time.Now().UTC(), Language: "en"}
	err := s.Commit(ctx, Diff{NewInterview: &iv2})
	if err != ErrDuplicateConversation {
		t.Fatalf("Commit with duplicate conversation_id = %v, want ErrDuplicateConversation", err)
	}
}

func TestJoinSplitSet_RoundTrip(t *testing.T) {
	in := []string{"E003", "E001", "E002"}
	out := splitSet(joinSet(in))
	if len(out) != 3 || out[0] != "E001" || out[1] != "E002" || out[2] != "E003" {
		t.Fatalf("round trip = %v, want sorted E001,E002,E003", out)
	}
	if splitSet(joinSet(nil)) != nil {
		t.Fatalf("empty set should round trip to nil")
	}
}
