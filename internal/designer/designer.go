// Package designer authors interview scripts: an initial v1 script from a
// research question and seed angles, and subsequent versions regenerated
// from the live proposition set after every interview.
package designer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hazyhaar/eidetic/internal/oracle"
	"github.com/hazyhaar/eidetic/internal/store"
)

// Config is the subset of internal/config.Config the Designer consults.
type Config struct {
	Model                       string
	Temperature                 float64
	MaxPropositionsInScript     int
	MaxInterviewDurationMinutes int
}

// Designer produces InterviewScripts by combining deterministic selection
// logic (instruction assignment, priority, section cap) with one Oracle call
// per script version for the natural-language question text — the
// capability-set agent pattern of spec.md §9: Designer shares only the
// Oracle with Analyst and Synthesizer.
type Designer struct {
	oracle oracle.Oracle
	cfg    Config
	logger *slog.Logger
}

// New returns a Designer calling o for its LLM work.
func New(o oracle.Oracle, cfg Config, logger *slog.Logger) *Designer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPropositionsInScript == 0 {
		cfg.MaxPropositionsInScript = 8
	}
	return &Designer{oracle: o, cfg: cfg, logger: logger}
}

// PropositionDraft is a Designer-authored causal hypothesis before the
// Reconciler assigns it a Store id.
type PropositionDraft struct {
	Factor    string
	Mechanism string
	Outcome   string
}

// InitialDraft is GenerateInitial's result: enough propositions to cover
// diverse angles, plus the fixed framing text for a v1 script.
type InitialDraft struct {
	Propositions    []PropositionDraft
	OpeningQuestion string
	ClosingQuestion string
	Wildcard        string
	SectionText     map[int]sectionText // keyed by index into Propositions
}

type sectionText struct {
	MainQuestion string
	Probes       []string
	Context      string
}

type initialResponseJSON struct {
	Propositions []struct {
		Factor       string   `json:"factor"`
		Mechanism    string   `json:"mechanism"`
		Outcome      string   `json:"outcome"`
		MainQuestion string   `json:"main_question"`
		Probes       []string `json:"probes"`
		Context      string   `json:"context"`
	} `json:"propositions"`
	OpeningQuestion string `json:"opening_question"`
	ClosingQuestion string `json:"closing_question"`
	Wildcard        string `json:"wildcard"`
}

// GenerateInitial produces 5-8 diverse causal propositions and the framing
// text for a v1 script covering the given seed angles. If the Oracle
// returns an out-of-range proposition count, GenerateInitial retries the
// call once (a single extra attempt, distinct from the Oracle's own
// in-call retry budget) before giving up.
func (d *Designer) GenerateInitial(ctx context.Context, researchQuestion string, seedAngles []string) (*InitialDraft, error) {
	messages := initialPromptMessages(researchQuestion, seedAngles)

	var resp initialResponseJSON
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := d.oracle.ChatJSON(ctx, messages, oracle.ChatOptions{
			Model:       d.cfg.Model,
			Temperature: d.cfg.Temperature,
			MaxTokens:   2000,
		})
		if err != nil {
			return nil, fmt.Errorf("designer: generate initial: %w", err)
		}
		resp, err = decodeInitialResponse(raw)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Propositions) < 5 || len(resp.Propositions) > 8 {
			lastErr = fmt.Errorf("designer: oracle returned %d propositions, want 5-8", len(resp.Propositions))
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, fmt.Errorf("designer: generate initial: %w", lastErr)
	}

	draft := &InitialDraft{
		OpeningQuestion: resp.OpeningQuestion,
		ClosingQuestion: resp.ClosingQuestion,
		Wildcard:        resp.Wildcard,
		SectionText:     make(map[int]sectionText, len(resp.Propositions)),
	}
	for i, p := range resp.Propositions {
		draft.Propositions = append(draft.Propositions, PropositionDraft{Factor: p.Factor, Mechanism: p.Mechanism, Outcome: p.Outcome})
		draft.SectionText[i] = sectionText{MainQuestion: p.MainQuestion, Probes: p.Probes, Context: p.Context}
	}
	return draft, nil
}

func decodeInitialResponse(raw map[string]any) (initialResponseJSON, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return initialResponseJSON{}, err
	}
	var resp initialResponseJSON
	if err := json.Unmarshal(b, &resp); err != nil {
		return initialResponseJSON{}, err
	}
	return resp, nil
}

// BuildInitialScript assembles the v1 InterviewScript once the Reconciler
// has assigned real ids to the propositions GenerateInitial drafted, in the
// same order as draft.Propositions.
func BuildInitialScript(researchQuestion string, draft *InitialDraft, assignedIDs []string) store.InterviewScript {
	sections := make([]store.ScriptSection, 0, len(assignedIDs))
	for i, id := range assignedIDs {
		text := draft.SectionText[i]
		sections = append(sections, store.ScriptSection{
			PropositionID: id,
			Priority:      store.PriorityMedium,
			Instruction:   store.InstructionExplore,
			MainQuestion:  text.MainQuestion,
			Probes:        text.Probes,
			Context:       text.Context,
		})
	}
	return store.InterviewScript{
		Version:          1,
		ResearchQuestion: researchQuestion,
		OpeningQuestion:  draft.OpeningQuestion,
		Sections:         sections,
		ClosingQuestion:  draft.ClosingQuestion,
		Wildcard:         draft.Wildcard,
		Mode:             store.ModeDivergent,
		ConvergenceScore: 0,
		NoveltyRate:      0,
	}
}

// instructionRank orders instructions for sort and cap-truncation purposes:
// CHALLENGE and VERIFY must never be dropped ahead of EXPLORE or SATURATED
// (spec.md §8 boundary behavior).
func instructionRank(i store.SectionInstruction) int {
	switch i {
	case store.InstructionChallenge:
		return 3
	case store.InstructionVerify:
		return 2
	case store.InstructionExplore:
		return 1
	case store.InstructionSaturated:
		return 0
	default:
		return -1
	}
}

// assignInstruction picks a section instruction for one proposition. It is a
// pure function of a single proposition's current state, independent of the
// Oracle. CHALLENGE goes to every proposition above 0.7 confidence that the
// earlier cases do not catch; whether it has contradicting or recent
// evidence is not checked.
func assignInstruction(p store.Proposition) (store.SectionInstruction, bool) {
	switch {
	case p.Status == store.StatusWeak || p.Status == store.StatusMerged:
		return "", false
	case p.Status == store.StatusSaturated:
		return store.InstructionSaturated, true
	case (p.Status == store.StatusUntested || p.Status == store.StatusExploring) && len(p.SupportingEvidence) < 2:
		return store.InstructionExplore, true
	case p.Confidence > 0.7:
		// Falsification bias: a strong claim with any contradiction, or one
		// simply confident enough to be worth probing further, gets
		// challenged rather than left alone.
		return store.InstructionChallenge, true
	case p.Confidence >= 0.4 && p.Confidence <= 0.7:
		return store.InstructionVerify, true
	default:
		return store.InstructionExplore, true
	}
}

func priorityFor(instr store.SectionInstruction) store.SectionPriority {
	switch instr {
	case store.InstructionChallenge, store.InstructionVerify:
		return store.PriorityHigh
	case store.InstructionSaturated:
		return store.PriorityLow
	default:
		return store.PriorityMedium
	}
}

// candidate pairs a live proposition with its assigned instruction, carried
// through sort and cap so the final sections preserve both.
type candidate struct {
	prop        store.Proposition
	instruction store.SectionInstruction
	isNew       bool // true if prop did not appear in the previous script
}

// selectCandidates applies the instruction-assignment rule, drops
// weak/merged propositions, and — in convergent mode — suppresses brand new
// EXPLORE sections for fresh, evidence-thin propositions (spec.md Scenario
// E), folded into selection rather than a separate code path.
func selectCandidates(live []store.Proposition, prevSections map[string]bool, mode store.ScriptMode) []candidate {
	var out []candidate
	for _, p := range live {
		instr, ok := assignInstruction(p)
		if !ok {
			continue
		}
		isNew := !prevSections[p.ID]
		if mode == store.ModeConvergent && instr == store.InstructionExplore && isNew {
			continue
		}
		out = append(out, candidate{prop: p, instruction: instr, isNew: isNew})
	}
	return out
}

// sortCandidates implements Designer's "recent and contested first" order:
// instruction rank descending, confidence descending, last_updated_interview
// descending, then proposition id ascending as the final deterministic
// tie-break (see DESIGN.md Open Question (a)).
func sortCandidates(cands []candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if ra, rb := instructionRank(a.instruction), instructionRank(b.instruction); ra != rb {
			return ra > rb
		}
		if a.prop.Confidence != b.prop.Confidence {
			return a.prop.Confidence > b.prop.Confidence
		}
		if a.prop.LastUpdatedInterview != b.prop.LastUpdatedInterview {
			return a.prop.LastUpdatedInterview > b.prop.LastUpdatedInterview
		}
		return a.prop.ID < b.prop.ID
	})
}

// capCandidates truncates cands to max entries, keeping the highest-ranked
// prefix after sortCandidates has ordered them.
func capCandidates(cands []candidate, max int) []candidate {
	if max <= 0 || len(cands) <= max {
		return cands
	}
	return cands[:max]
}
