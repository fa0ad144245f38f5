package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/hazyhaar/eidetic/internal/dbopen"
)

// CreateProject writes the single project row for a freshly opened shard.
// Called once, when a project is created.
func (s *Store) CreateProject(ctx context.Context, id, researchQuestion, agentID string) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO project (id, research_question, created_at, agent_id, current_script_version)
			VALUES (?, ?, ?, ?, 0)`,
			id, researchQuestion, time.Now().UTC(), agentID,
		)
		return err
	})
}

func loadProjectTx(ctx context.Context, tx *sql.Tx) (*Project, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, research_question, created_at, agent_id, current_script_version
		FROM project LIMIT 1`)

	var p Project
	if err := row.Scan(&p.ID, &p.ResearchQuestion, &p.CreatedAt, &p.AgentID, &p.CurrentScriptVersion); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

func setCurrentScriptVersionTx(ctx context.Context, tx *sql.Tx, version int) error {
	_, err := tx.ExecContext(ctx, `UPDATE project SET current_script_version = ?`, version)
	return err
}
