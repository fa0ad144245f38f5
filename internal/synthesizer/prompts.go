package synthesizer

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/eidetic/internal/oracle"
	"github.com/hazyhaar/eidetic/internal/store"
)

func narrativePromptMessages(snapshot *store.Snapshot, live []store.Proposition) []oracle.Message {
	system := "You are a qualitative research analyst writing a final report from " +
		"a set of causal propositions gathered across interviews. Write a short " +
		"overview paragraph summarizing what was learned, a one-paragraph " +
		"finding for each proposition id given (plain prose, no markdown " +
		"headers, referencing its factor/mechanism/outcome), and a short " +
		"closing_remarks paragraph noting open questions or caveats. Return a " +
		"JSON object with keys \"overview\", \"findings_by_proposition_id\" " +
		"(object mapping proposition id to its paragraph), \"closing_remarks\"."

	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n\n", snapshot.Project.ResearchQuestion)
	for _, p := range live {
		fmt.Fprintf(&b, "- id=%s status=%s confidence=%.2f factor=%q mechanism=%q outcome=%q supporting=%d contradicting=%d\n",
			p.ID, p.Status, p.Confidence, p.Factor, p.Mechanism, p.Outcome,
			len(p.SupportingEvidence), len(p.ContradictingEvidence))
	}

	return []oracle.Message{
		{Role: oracle.RoleSystem, Content: system},
		{Role: oracle.RoleUser, Content: b.String()},
	}
}
