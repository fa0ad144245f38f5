package designer

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/eidetic/internal/store"
)

// BuildInterviewerPrompt substitutes a script's fields into the fixed
// interviewer-prompt template. It is pure text transformation, no Oracle
// call — the same "deterministic transform over well-formed inputs" shape
// as the teacher's HTML-to-Markdown conversion step, here with no fallback
// branch needed since a *store.InterviewScript is always well-formed by
// construction.
func BuildInterviewerPrompt(script store.InterviewScript) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research question: %s\n\n", script.ResearchQuestion)
	fmt.Fprintf(&b, "Opening: %s\n\n", script.OpeningQuestion)

	for i, sec := range script.Sections {
		fmt.Fprintf(&b, "Section %d [%s, priority=%s, proposition=%s]\n", i+1, sec.Instruction, sec.Priority, sec.PropositionID)
		if sec.Context != "" {
			fmt.Fprintf(&b, "Context: %s\n", sec.Context)
		}
		fmt.Fprintf(&b, "Q: %s\n", sec.MainQuestion)
		for _, p := range sec.Probes {
			fmt.Fprintf(&b, "  Probe: %s\n", p)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Closing: %s\n\n", script.ClosingQuestion)
	fmt.Fprintf(&b, "Wildcard: %s\n", script.Wildcard)

	return b.String()
}
