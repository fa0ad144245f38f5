package store

import (
	"context"
	"database/sql"
)

func insertPropositionTx(ctx context.Context, tx *sql.Tx, p Proposition) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO propositions (
			id, factor, mechanism, outcome, confidence, status,
			supporting_evidence, contradicting_evidence,
			first_seen_interview, last_updated_interview,
			interviews_without_new_evidence, merged_into
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Factor, p.Mechanism, p.Outcome, p.Confidence, string(p.Status),
		joinSet(p.SupportingEvidence), joinSet(p.ContradictingEvidence),
		p.FirstSeenInterview, p.LastUpdatedInterview,
		p.InterviewsWithoutNewEvidence, p.MergedInto,
	)
	return err
}

func updatePropositionTx(ctx context.Context, tx *sql.Tx, p Proposition) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE propositions SET
			factor = ?, mechanism = ?, outcome = ?, confidence = ?, status = ?,
			supporting_evidence = ?, contradicting_evidence = ?,
			last_updated_interview = ?, interviews_without_new_evidence = ?,
			merged_into = ?
		WHERE id = ?`,
		p.Factor, p.Mechanism, p.Outcome, p.Confidence, string(p.Status),
		joinSet(p.SupportingEvidence), joinSet(p.ContradictingEvidence),
		p.LastUpdatedInterview, p.InterviewsWithoutNewEvidence,
		p.MergedInto, p.ID,
	)
	return err
}

func loadPropositionsTx(ctx context.Context, tx *sql.Tx) ([]Proposition, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, factor, mechanism, outcome, confidence, status,
			supporting_evidence, contradicting_evidence,
			first_seen_interview, last_updated_interview,
			interviews_without_new_evidence, merged_into
		FROM propositions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Proposition
	for rows.Next() {
		var p Proposition
		var status, supp, contra string
		if err := rows.Scan(&p.ID, &p.Factor, &p.Mechanism, &p.Outcome, &p.Confidence, &status,
			&supp, &contra, &p.FirstSeenInterview, &p.LastUpdatedInterview,
			&p.InterviewsWithoutNewEvidence, &p.MergedInto); err != nil {
			return nil, err
		}
		p.Status = PropositionStatus(status)
		p.SupportingEvidence = splitSet(supp)
		p.ContradictingEvidence = splitSet(contra)
		out = append(out, p)
	}
	return out, rows.Err()
}
