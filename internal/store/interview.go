package store

import (
	"context"
	"database/sql"

	"github.com/hazyhaar/eidetic/internal/dbopen"
)

func insertInterviewTx(ctx context.Context, tx *sql.Tx, iv Interview) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO interviews (id, conversation_id, transcript, received_at, script_version_used, language)
		VALUES (?, ?, ?, ?, ?, ?)`,
		iv.ID, iv.ConversationID, iv.Transcript, iv.ReceivedAt, iv.ScriptVersionUsed, iv.Language,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateConversation
	}
	return err
}

func loadInterviewsTx(ctx context.Context, tx *sql.Tx) ([]Interview, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, conversation_id, transcript, received_at, script_version_used, language
		FROM interviews ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Interview
	for rows.Next() {
		var iv Interview
		if err := rows.Scan(&iv.ID, &iv.ConversationID, &iv.Transcript, &iv.ReceivedAt, &iv.ScriptVersionUsed, &iv.Language); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

// GetInterviewByConversationID looks up an interview by its external
// conversation id — the idempotency check Pipeline runs before acquiring the
// project lock (spec.md §4.6 step 1).
func (s *Store) GetInterviewByConversationID(ctx context.Context, conversationID string) (*Interview, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, transcript, received_at, script_version_used, language
		FROM interviews WHERE conversation_id = ?`, conversationID)

	var iv Interview
	if err := row.Scan(&iv.ID, &iv.ConversationID, &iv.Transcript, &iv.ReceivedAt, &iv.ScriptVersionUsed, &iv.Language); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &iv, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && dbopen.IsUniqueConstraint(err)
}
