package designer

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/eidetic/internal/oracle"
)

func initialPromptMessages(researchQuestion string, seedAngles []string) []oracle.Message {
	system := "You are a qualitative research interview designer. Given a research " +
		"question and seed angles, propose 5 to 8 diverse, falsifiable causal " +
		"hypotheses of the form factor -> mechanism -> outcome. Cover distinct " +
		"angles; do not propose near-duplicates. Return a JSON object with keys " +
		"\"propositions\" (array of {factor, mechanism, outcome, main_question, " +
		"probes (2-3 strings), context}), \"opening_question\", " +
		"\"closing_question\", \"wildcard\"."

	user := fmt.Sprintf("Research question: %s\nSeed angles: %s",
		researchQuestion, strings.Join(seedAngles, ", "))

	return []oracle.Message{
		{Role: oracle.RoleSystem, Content: system},
		{Role: oracle.RoleUser, Content: user},
	}
}

func updatePromptMessages(in ScriptInput, cands []candidate) []oracle.Message {
	system := "You are a qualitative research interview designer revising an " +
		"interview script. For each proposition below, write a main_question, " +
		"2-3 probes, and a short context note matching its assigned " +
		"instruction (EXPLORE: open discovery; VERIFY: test a moderate-" +
		"confidence claim; CHALLENGE: actively seek disconfirmation; " +
		"SATURATED: a do-not-probe guard question only). Also write a single " +
		"closing_question, a wildcard question, and a one-sentence " +
		"changes_summary describing what changed since the previous script. " +
		"Return a JSON object with keys \"sections\" (array of " +
		"{proposition_id, main_question, probes, context}), " +
		"\"closing_question\", \"wildcard\", \"changes_summary\"."

	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\nMode: %s\n", in.ResearchQuestion, in.Mode)
	for _, c := range cands {
		fmt.Fprintf(&b, "- id=%s instruction=%s factor=%q mechanism=%q outcome=%q confidence=%.2f status=%s\n",
			c.prop.ID, c.instruction, c.prop.Factor, c.prop.Mechanism, c.prop.Outcome, c.prop.Confidence, c.prop.Status)
	}
	if len(in.RecentEvidenceSummaries) > 0 {
		b.WriteString("Recent evidence:\n")
		for _, e := range in.RecentEvidenceSummaries {
			b.WriteString("- " + e + "\n")
		}
	}

	return []oracle.Message{
		{Role: oracle.RoleSystem, Content: system},
		{Role: oracle.RoleUser, Content: b.String()},
	}
}
