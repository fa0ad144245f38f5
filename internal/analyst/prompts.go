package analyst

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/eidetic/internal/oracle"
	"github.com/hazyhaar/eidetic/internal/store"
)

func analyzePromptMessages(transcript string, snapshot *store.Snapshot) []oracle.Message {
	system := "You are a qualitative research analyst. Given an interview transcript " +
		"and the current set of live causal propositions, perform in one pass: " +
		"(1) extract 10-25 Evidence items from respondent turns only, each with a " +
		"verbatim quote in the transcript's language and English factor/mechanism/" +
		"outcome/interpretation/tags; (2) classify every extracted item against " +
		"every live proposition as supports/contradicts/irrelevant; items matching " +
		"none are orphans; (3) propose new propositions from clusters of orphans " +
		"or strong single orphans, with provisional status untested (evidence from " +
		"this interview only) or exploring; (4) retroactively classify all prior " +
		"evidence against any new propositions only; (5) propose merges for " +
		"highly overlapping propositions and prunes for stale low-confidence ones; " +
		"(6) compute convergence_score and novelty_rate. Return a single JSON " +
		"object with keys \"evidence\", \"mappings\", \"new_propositions\", " +
		"\"merges\", \"prunes\", \"metrics\" exactly as specified."

	var b strings.Builder
	b.WriteString("Live propositions:\n")
	for _, p := range snapshot.Propositions {
		if !store.LiveProposition(p) {
			continue
		}
		fmt.Fprintf(&b, "- id=%s factor=%q mechanism=%q outcome=%q status=%s confidence=%.2f\n",
			p.ID, p.Factor, p.Mechanism, p.Outcome, p.Status, p.Confidence)
	}
	fmt.Fprintf(&b, "\nTranscript:\n%s\n", transcript)

	return []oracle.Message{
		{Role: oracle.RoleSystem, Content: system},
		{Role: oracle.RoleUser, Content: b.String()},
	}
}
