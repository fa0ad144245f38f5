package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/eidetic/internal/oracle"
	"github.com/hazyhaar/eidetic/internal/store"
)

// Config is the subset of internal/config.Config the Analyst consults.
type Config struct {
	Model       string
	Temperature float64
}

// Analyst performs the single-pass transcript analysis described in spec.md
// §4.4. It is a pure function of its inputs: it never writes to the Store.
type Analyst struct {
	oracle oracle.Oracle
	cfg    Config
	logger *slog.Logger
}

// New returns an Analyst calling o for its one LLM pass per interview.
func New(o oracle.Oracle, cfg Config, logger *slog.Logger) *Analyst {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyst{oracle: o, cfg: cfg, logger: logger}
}

// rawResponse is the wire shape the Oracle is asked to return. Every record
// is decoded field-by-field below rather than with
// json.Decoder.DisallowUnknownFields — the response is LLM-authored and may
// carry harmless extra keys, so a record is only rejected for missing
// *required* fields, not unexpected ones (spec.md §9's "dynamic JSON shapes
// become tagged variants on ingestion").
type rawResponse struct {
	Evidence        []rawEvidence    `json:"evidence"`
	Mappings        []rawMapping     `json:"mappings"`
	NewPropositions []rawProposition `json:"new_propositions"`
	Merges          []rawMerge       `json:"merges"`
	Prunes          []rawPrune       `json:"prunes"`
	Metrics         rawMetrics       `json:"metrics"`
}

type rawEvidence struct {
	ID             string   `json:"id"`
	Quote          string   `json:"quote"`
	Interpretation string   `json:"interpretation"`
	Factor         string   `json:"factor"`
	Mechanism      string   `json:"mechanism"`
	Outcome        string   `json:"outcome"`
	Tags           []string `json:"tags"`
	Language       string   `json:"language"`
}

type rawMapping struct {
	EvidenceRef    string `json:"evidence_ref"`
	PropositionRef string `json:"proposition_ref"`
	Relation       string `json:"relation"`
}

type rawProposition struct {
	ID                string   `json:"id"`
	Factor            string   `json:"factor"`
	Mechanism         string   `json:"mechanism"`
	Outcome           string   `json:"outcome"`
	SupportingRefs    []string `json:"supporting_refs"`
	ContradictingRefs []string `json:"contradicting_refs"`
	Status            string   `json:"status"`
}

type rawMerge struct {
	A            string `json:"a"`
	B            string `json:"b"`
	NewFactor    string `json:"new_factor"`
	NewMechanism string `json:"new_mechanism"`
	NewOutcome   string `json:"new_outcome"`
}

type rawPrune struct {
	PropositionID string `json:"proposition_id"`
}

type rawMetrics struct {
	ConvergenceScore float64 `json:"convergence_score"`
	NoveltyRate      float64 `json:"novelty_rate"`
	Mode             string  `json:"mode"`
}

// Analyze runs the single Oracle call for one interview and validates its
// response into an AnalysisDiff. Records that fail required-field
// validation are dropped with a warning, not treated as fatal — only a
// transport failure or total format failure from the Oracle itself returns
// an error.
func (a *Analyst) Analyze(ctx context.Context, transcript, interviewID string, snapshot *store.Snapshot) (*AnalysisDiff, error) {
	messages := analyzePromptMessages(transcript, snapshot)

	raw, err := a.oracle.ChatJSON(ctx, messages, oracle.ChatOptions{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   4000,
	})
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("analyst: re-marshal oracle response: %w", err)
	}
	var resp rawResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, fmt.Errorf("analyst: decode oracle response: %w", err)
	}

	diff := &AnalysisDiff{}

	for _, e := range resp.Evidence {
		if e.ID == "" || e.Quote == "" || e.Factor == "" || e.Mechanism == "" || e.Outcome == "" {
			diff.Warnings = append(diff.Warnings, fmt.Sprintf("dropped evidence record with missing required field: %+v", e))
			continue
		}
		lang := e.Language
		if lang == "" {
			lang = "en"
		}
		diff.NewEvidence = append(diff.NewEvidence, EvidenceProposal{
			SymbolicID: e.ID, Quote: e.Quote, Interpretation: e.Interpretation,
			Factor: e.Factor, Mechanism: e.Mechanism, Outcome: e.Outcome,
			Tags: e.Tags, Language: lang,
		})
	}

	for _, m := range resp.Mappings {
		rel := MappingRelation(m.Relation)
		if m.EvidenceRef == "" || m.PropositionRef == "" || (rel != RelationSupports && rel != RelationContradicts && rel != RelationIrrelevant) {
			diff.Warnings = append(diff.Warnings, fmt.Sprintf("dropped mapping with missing/invalid field: %+v", m))
			continue
		}
		diff.Mappings = append(diff.Mappings, Mapping{EvidenceRef: m.EvidenceRef, PropositionRef: m.PropositionRef, Relation: rel})
	}

	for _, p := range resp.NewPropositions {
		if p.ID == "" || p.Factor == "" || p.Mechanism == "" || p.Outcome == "" {
			diff.Warnings = append(diff.Warnings, fmt.Sprintf("dropped proposition proposal with missing required field: %+v", p))
			continue
		}
		status := p.Status
		if status != "untested" && status != "exploring" {
			status = "untested"
		}
		diff.NewPropositions = append(diff.NewPropositions, PropositionProposal{
			SymbolicID: p.ID, Factor: p.Factor, Mechanism: p.Mechanism, Outcome: p.Outcome,
			SupportingEvidenceRefs: p.SupportingRefs, ContradictingEvidenceRefs: p.ContradictingRefs,
			ProvisionalStatus: status,
		})
	}

	for _, m := range resp.Merges {
		if m.A == "" || m.B == "" || m.A == m.B {
			diff.Warnings = append(diff.Warnings, fmt.Sprintf("dropped merge proposal with missing/invalid field: %+v", m))
			continue
		}
		diff.MergeProposals = append(diff.MergeProposals, MergeProposal{
			AID: m.A, BID: m.B, NewFactor: m.NewFactor, NewMechanism: m.NewMechanism, NewOutcome: m.NewOutcome,
		})
	}

	for _, p := range resp.Prunes {
		if p.PropositionID == "" {
			diff.Warnings = append(diff.Warnings, "dropped prune proposal with empty proposition_id")
			continue
		}
		diff.PruneProposals = append(diff.PruneProposals, PruneProposal{PropositionID: p.PropositionID})
	}

	diff.Metrics = Metrics{
		ConvergenceScore: resp.Metrics.ConvergenceScore,
		NoveltyRate:      resp.Metrics.NoveltyRate,
		Mode:             resp.Metrics.Mode,
	}

	if len(diff.Warnings) > 0 {
		a.logger.Warn("analyst dropped malformed records", "interview_id", interviewID, "count", len(diff.Warnings))
	}

	return diff, nil
}
