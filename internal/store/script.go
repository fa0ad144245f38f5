package store

import (
	"context"
	"database/sql"
	"encoding/json"
)

func insertScriptTx(ctx context.Context, tx *sql.Tx, sc InterviewScript) error {
	sectionsJSON, err := json.Marshal(sc.Sections)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO scripts (
			version, generated_after_interview, research_question, opening_question,
			sections_json, closing_question, wildcard, mode,
			convergence_score, novelty_rate, changes_summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.Version, sc.GeneratedAfterInterview, sc.ResearchQuestion, sc.OpeningQuestion,
		string(sectionsJSON), sc.ClosingQuestion, sc.Wildcard, string(sc.Mode),
		sc.ConvergenceScore, sc.NoveltyRate, sc.ChangesSummary,
	)
	return err
}

func loadScriptsTx(ctx context.Context, tx *sql.Tx) ([]InterviewScript, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT version, generated_after_interview, research_question, opening_question,
			sections_json, closing_question, wildcard, mode,
			convergence_score, novelty_rate, changes_summary
		FROM scripts ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InterviewScript
	for rows.Next() {
		var sc InterviewScript
		var mode, sectionsJSON string
		if err := rows.Scan(&sc.Version, &sc.GeneratedAfterInterview, &sc.ResearchQuestion, &sc.OpeningQuestion,
			&sectionsJSON, &sc.ClosingQuestion, &sc.Wildcard, &mode,
			&sc.ConvergenceScore, &sc.NoveltyRate, &sc.ChangesSummary); err != nil {
			return nil, err
		}
		sc.Mode = ScriptMode(mode)
		if err := json.Unmarshal([]byte(sectionsJSON), &sc.Sections); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
