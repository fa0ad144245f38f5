package designer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/eidetic/internal/oracle"
	"github.com/hazyhaar/eidetic/internal/store"
)

// ScriptInput is UpdateScript's full set of inputs: the live propositions to
// consider, a short textual summary of recent evidence for prompt grounding
// only, the previous script (for "isNew" bookkeeping and changes_summary),
// and the convergence metrics the Pipeline computed from committed state
// this pass.
type ScriptInput struct {
	ResearchQuestion        string
	LivePropositions        []store.Proposition
	RecentEvidenceSummaries []string
	PreviousScript          *store.InterviewScript
	GeneratedAfterInterview string
	NextVersion             int
	ConvergenceScore        float64
	NoveltyRate             float64
	Mode                    store.ScriptMode
}

type sectionResponseJSON struct {
	PropositionID string   `json:"proposition_id"`
	MainQuestion  string   `json:"main_question"`
	Probes        []string `json:"probes"`
	Context       string   `json:"context"`
}

type updateResponseJSON struct {
	Sections        []sectionResponseJSON `json:"sections"`
	ClosingQuestion string                `json:"closing_question"`
	Wildcard        string                `json:"wildcard"`
	ChangesSummary  string                `json:"changes_summary"`
}

// UpdateScript selects and orders live propositions deterministically, then
// makes one Oracle call to author the natural-language question text for
// the surviving sections.
func (d *Designer) UpdateScript(ctx context.Context, in ScriptInput) (*store.InterviewScript, error) {
	prevIDs := map[string]bool{}
	var openingQuestion string
	if in.PreviousScript != nil {
		openingQuestion = in.PreviousScript.OpeningQuestion
		for _, s := range in.PreviousScript.Sections {
			prevIDs[s.PropositionID] = true
		}
	}

	cands := selectCandidates(in.LivePropositions, prevIDs, in.Mode)
	sortCandidates(cands)
	maxSections := d.cfg.MaxPropositionsInScript
	if maxSections <= 0 {
		maxSections = 8
	}
	cands = capCandidates(cands, maxSections)

	if len(cands) == 0 {
		return &store.InterviewScript{
			Version:                 in.NextVersion,
			GeneratedAfterInterview: in.GeneratedAfterInterview,
			ResearchQuestion:        in.ResearchQuestion,
			OpeningQuestion:         openingQuestion,
			Mode:                    in.Mode,
			ConvergenceScore:        in.ConvergenceScore,
			NoveltyRate:             in.NoveltyRate,
		}, nil
	}

	resp, err := d.callUpdateOracle(ctx, in, cands)
	if err != nil {
		return nil, fmt.Errorf("designer: update script: %w", err)
	}

	text := make(map[string]sectionResponseJSON, len(resp.Sections))
	for _, s := range resp.Sections {
		text[s.PropositionID] = s
	}

	sections := make([]store.ScriptSection, 0, len(cands))
	for _, c := range cands {
		t := text[c.prop.ID]
		sections = append(sections, store.ScriptSection{
			PropositionID: c.prop.ID,
			Priority:      priorityFor(c.instruction),
			Instruction:   c.instruction,
			MainQuestion:  t.MainQuestion,
			Probes:        t.Probes,
			Context:       t.Context,
		})
	}

	return &store.InterviewScript{
		Version:                 in.NextVersion,
		GeneratedAfterInterview: in.GeneratedAfterInterview,
		ResearchQuestion:        in.ResearchQuestion,
		OpeningQuestion:         openingQuestion,
		Sections:                sections,
		ClosingQuestion:         resp.ClosingQuestion,
		Wildcard:                resp.Wildcard,
		Mode:                    in.Mode,
		ConvergenceScore:        in.ConvergenceScore,
		NoveltyRate:             in.NoveltyRate,
		ChangesSummary:          resp.ChangesSummary,
	}, nil
}

func (d *Designer) callUpdateOracle(ctx context.Context, in ScriptInput, cands []candidate) (updateResponseJSON, error) {
	messages := updatePromptMessages(in, cands)
	raw, err := d.oracle.ChatJSON(ctx, messages, oracle.ChatOptions{
		Model:       d.cfg.Model,
		Temperature: d.cfg.Temperature,
		MaxTokens:   2000,
	})
	if err != nil {
		return updateResponseJSON{}, err
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return updateResponseJSON{}, err
	}
	var resp updateResponseJSON
	if err := json.Unmarshal(b, &resp); err != nil {
		return updateResponseJSON{}, err
	}
	return resp, nil
}
