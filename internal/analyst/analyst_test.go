package analyst

import (
	"context"
	"testing"

	"github.com/hazyhaar/eidetic/internal/oracle"
	"github.com/hazyhaar/eidetic/internal/store"
)

func TestAnalyze_ValidatesAndDropsMalformedRecords(t *testing.T) {
	fake := &oracle.FakeOracle{Responses: []oracle.FakeResponse{{
		Value: map[string]any{
			"evidence": []any{
				map[string]any{"id": "e#1", "quote": "q", "factor": "f", "mechanism": "m", "outcome": "o", "language": "en"},
				map[string]any{"id": "e#2", "quote": "", "factor": "f"}, // missing quote -> dropped
			},
			"mappings": []any{
				map[string]any{"evidence_ref": "e#1", "proposition_ref": "P001", "relation": "supports"},
				map[string]any{"evidence_ref": "e#2", "proposition_ref": "", "relation": "bogus"}, // invalid -> dropped
			},
			"new_propositions": []any{},
			"merges":           []any{},
			"prunes":           []any{},
			"metrics":          map[string]any{"convergence_score": 0.5, "novelty_rate": 0.1, "mode": "divergent"},
		},
	}}}

	a := New(fake, Config{Model: "m"}, nil)
	snap := &store.Snapshot{Propositions: []store.Proposition{{ID: "P001", Status: store.StatusExploring}}}

	diff, err := a.Analyze(context.Background(), "transcript text", "INT_001", snap)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(diff.NewEvidence) != 1 {
		t.Fatalf("NewEvidence = %d, want 1", len(diff.NewEvidence))
	}
	if len(diff.Mappings) != 1 {
		t.Fatalf("Mappings = %d, want 1", len(diff.Mappings))
	}
	if len(diff.Warnings) != 2 {
		t.Fatalf("Warnings = %d, want 2", len(diff.Warnings))
	}
	if diff.Metrics.Mode != "divergent" {
		t.Fatalf("Metrics.Mode = %q, want divergent", diff.Metrics.Mode)
	}
}

func TestAnalyze_PropagatesOracleError(t *testing.T) {
	fake := &oracle.FakeOracle{Responses: []oracle.FakeResponse{{Err: &oracle.LLMUnavailableError{}}}}
	a := New(fake, Config{Model: "m"}, nil)
	_, err := a.Analyze(context.Background(), "t", "INT_001", &store.Snapshot{})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
}
