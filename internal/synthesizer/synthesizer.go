// Package synthesizer produces a Markdown report from a project's
// accumulated evidence and propositions — the third of spec.md §1's
// "three cooperating agents", invoked on demand rather than on the ingest
// critical path. It shares only the Oracle interface with Designer and
// Analyst (spec.md §9's capability-set agent-polymorphism note) and owns no
// persistence of its own.
package synthesizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hazyhaar/eidetic/internal/oracle"
	"github.com/hazyhaar/eidetic/internal/store"
)

// Config is the subset of internal/config.Config the Synthesizer consults.
type Config struct {
	Model       string
	Temperature float64
}

// Synthesizer writes a point-in-time Markdown report from a project
// snapshot, one Oracle call per WriteReport invocation.
type Synthesizer struct {
	oracle oracle.Oracle
	cfg    Config
	logger *slog.Logger
}

// New returns a Synthesizer calling o for its narrative prose.
func New(o oracle.Oracle, cfg Config, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{oracle: o, cfg: cfg, logger: logger}
}

type narrativeRequestJSON struct {
	Overview       string            `json:"overview"`
	FindingsByID   map[string]string `json:"findings_by_proposition_id"`
	ClosingRemarks string            `json:"closing_remarks"`
}

// WriteReport groups snapshot's propositions by status, asks the Oracle for
// a short narrative paragraph per live proposition plus an overview and
// closing remarks, then assembles the final Markdown deterministically —
// the same "one Oracle call for prose, deterministic assembly around it"
// shape Designer uses for interview scripts. Pruned and merged propositions
// never reach the Oracle; they are rendered directly into the appendix from
// their stored fields (spec.md Scenario D: prune demotes, it never
// deletes).
func (s *Synthesizer) WriteReport(ctx context.Context, snapshot *store.Snapshot) (string, error) {
	live := liveNonWeak(snapshot.Propositions)
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].Confidence != live[j].Confidence {
			return live[i].Confidence > live[j].Confidence
		}
		return live[i].ID < live[j].ID
	})

	narrative, err := s.callNarrativeOracle(ctx, snapshot, live)
	if err != nil {
		return "", fmt.Errorf("synthesizer: write report: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Research Report: %s\n\n", snapshot.Project.ResearchQuestion)
	if narrative.Overview != "" {
		b.WriteString(narrative.Overview)
		b.WriteString("\n\n")
	}

	byStatus := groupByStatus(live)
	for _, status := range []store.PropositionStatus{
		store.StatusConfirmed, store.StatusSaturated, store.StatusChallenged,
		store.StatusExploring, store.StatusUntested,
	} {
		props := byStatus[status]
		if len(props) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", statusHeading(status))
		for _, p := range props {
			writeProposition(&b, p, snapshot, narrative.FindingsByID[p.ID])
		}
	}

	appendix := appendixPropositions(snapshot.Propositions)
	if len(appendix) > 0 {
		b.WriteString("## Appendix: Weak and Merged Propositions\n\n")
		for _, p := range appendix {
			fmt.Fprintf(&b, "- **%s** (%s, confidence %.2f): %s → %s\n", p.ID, p.Status, p.Confidence, p.Factor, p.Outcome)
			if p.Status == store.StatusMerged && p.MergedInto != "" {
				fmt.Fprintf(&b, "  merged into %s\n", p.MergedInto)
			}
		}
		b.WriteString("\n")
	}

	if narrative.ClosingRemarks != "" {
		b.WriteString("## Closing Remarks\n\n")
		b.WriteString(narrative.ClosingRemarks)
		b.WriteString("\n")
	}

	return b.String(), nil
}

func liveNonWeak(props []store.Proposition) []store.Proposition {
	out := make([]store.Proposition, 0, len(props))
	for _, p := range props {
		if p.Live() && p.Status != store.StatusWeak {
			out = append(out, p)
		}
	}
	return out
}

func appendixPropositions(props []store.Proposition) []store.Proposition {
	out := make([]store.Proposition, 0)
	for _, p := range props {
		if p.Status == store.StatusWeak || p.Status == store.StatusMerged {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func groupByStatus(props []store.Proposition) map[store.PropositionStatus][]store.Proposition {
	out := make(map[store.PropositionStatus][]store.Proposition)
	for _, p := range props {
		out[p.Status] = append(out[p.Status], p)
	}
	return out
}

func statusHeading(status store.PropositionStatus) string {
	switch status {
	case store.StatusConfirmed:
		return "Confirmed Propositions"
	case store.StatusSaturated:
		return "Saturated Propositions"
	case store.StatusChallenged:
		return "Challenged Propositions"
	case store.StatusExploring:
		return "Propositions Under Exploration"
	case store.StatusUntested:
		return "Untested Propositions"
	default:
		return string(status)
	}
}

func writeProposition(b *strings.Builder, p store.Proposition, snap *store.Snapshot, narrative string) {
	fmt.Fprintf(b, "### %s → %s (%s, confidence %.2f)\n\n", p.Factor, p.Outcome, p.ID, p.Confidence)
	if p.Mechanism != "" {
		fmt.Fprintf(b, "_Mechanism_: %s\n\n", p.Mechanism)
	}
	if narrative != "" {
		b.WriteString(narrative)
		b.WriteString("\n\n")
	}
	evidenceByID := indexEvidence(snap.Evidence)
	if len(p.SupportingEvidence) > 0 {
		b.WriteString("Supporting evidence:\n")
		for _, id := range p.SupportingEvidence {
			if e, ok := evidenceByID[id]; ok {
				fmt.Fprintf(b, "- \"%s\" (%s)\n", e.Quote, e.ID)
			}
		}
		b.WriteString("\n")
	}
	if len(p.ContradictingEvidence) > 0 {
		b.WriteString("Contradicting evidence:\n")
		for _, id := range p.ContradictingEvidence {
			if e, ok := evidenceByID[id]; ok {
				fmt.Fprintf(b, "- \"%s\" (%s)\n", e.Quote, e.ID)
			}
		}
		b.WriteString("\n")
	}
}

func indexEvidence(evidence []store.Evidence) map[string]store.Evidence {
	out := make(map[string]store.Evidence, len(evidence))
	for _, e := range evidence {
		out[e.ID] = e
	}
	return out
}

func (s *Synthesizer) callNarrativeOracle(ctx context.Context, snapshot *store.Snapshot, live []store.Proposition) (narrativeRequestJSON, error) {
	messages := narrativePromptMessages(snapshot, live)
	raw, err := s.oracle.ChatJSON(ctx, messages, oracle.ChatOptions{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   3000,
	})
	if err != nil {
		return narrativeRequestJSON{}, err
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return narrativeRequestJSON{}, fmt.Errorf("re-marshal oracle response: %w", err)
	}
	var resp narrativeRequestJSON
	if err := json.Unmarshal(b, &resp); err != nil {
		return narrativeRequestJSON{}, fmt.Errorf("decode oracle response: %w", err)
	}
	return resp, nil
}
