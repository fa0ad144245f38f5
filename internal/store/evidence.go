package store

import (
	"context"
	"database/sql"
	"sort"
	"strings"
)

func insertEvidenceTx(ctx context.Context, tx *sql.Tx, e Evidence) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO evidence (id, interview_id, quote, interpretation, factor, mechanism, outcome, tags, language, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.InterviewID, e.Quote, e.Interpretation, e.Factor, e.Mechanism, e.Outcome,
		joinSet(e.Tags), e.Language, e.Timestamp,
	)
	return err
}

func loadEvidenceTx(ctx context.Context, tx *sql.Tx) ([]Evidence, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, interview_id, quote, interpretation, factor, mechanism, outcome, tags, language, timestamp
		FROM evidence ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Evidence
	for rows.Next() {
		var e Evidence
		var tags string
		if err := rows.Scan(&e.ID, &e.InterviewID, &e.Quote, &e.Interpretation, &e.Factor, &e.Mechanism, &e.Outcome, &tags, &e.Language, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Tags = splitSet(tags)
		out = append(out, e)
	}
	return out, rows.Err()
}

// joinSet canonicalizes a string set as a comma-joined, sorted value for
// storage — small id/tag sets, no join table needed (see schema.go).
func joinSet(items []string) string {
	if len(items) == 0 {
		return ""
	}
	sorted := make([]string, len(items))
	copy(sorted, items)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func splitSet(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
