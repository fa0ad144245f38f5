package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/eidetic/internal/dbopen"
)

// Store is the durable state of exactly one project, backed by one SQLite
// database file. It is the only component that touches SQL directly;
// everything else interacts through Load and Commit.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if absent) the SQLite file at path as a project
// store, applying Schema and Eidetic's production pragmas.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := dbopen.Open(path,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Diff is the structural commit payload spec.md §4.1 describes: appended
// evidence, new propositions, in-place proposition updates, an appended
// interview, and an appended script. Commit applies all of it in one
// transaction.
type Diff struct {
	NewEvidence         []Evidence
	NewPropositions     []Proposition
	UpdatedPropositions []Proposition
	NewInterview        *Interview
	NewScript           *InterviewScript
}

// Load returns a consistent snapshot of the project: all four sub-stores
// read together inside one read-only transaction, so a concurrent Commit
// cannot be observed half-applied (spec.md §4.1: "no tearing").
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("store: load: begin: %w", err)
	}
	defer tx.Rollback()

	snap := &Snapshot{}

	proj, err := loadProjectTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	snap.Project = *proj

	if snap.Evidence, err = loadEvidenceTx(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Propositions, err = loadPropositionsTx(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Interviews, err = loadInterviewsTx(ctx, tx); err != nil {
		return nil, err
	}
	if snap.Scripts, err = loadScriptsTx(ctx, tx); err != nil {
		return nil, err
	}

	return snap, tx.Commit()
}

// Commit applies diff inside a single busy-retrying transaction
// (internal/dbopen.RunTx), so readers via Load see either the pre- or
// post-commit snapshot, never a partial one.
func (s *Store) Commit(ctx context.Context, diff Diff) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, e := range diff.NewEvidence {
			if err := insertEvidenceTx(ctx, tx, e); err != nil {
				return err
			}
		}
		for _, p := range diff.NewPropositions {
			if err := insertPropositionTx(ctx, tx, p); err != nil {
				return err
			}
		}
		for _, p := range diff.UpdatedPropositions {
			if err := updatePropositionTx(ctx, tx, p); err != nil {
				return err
			}
		}
		if diff.NewInterview != nil {
			if err := insertInterviewTx(ctx, tx, *diff.NewInterview); err != nil {
				return err
			}
		}
		if diff.NewScript != nil {
			if err := insertScriptTx(ctx, tx, *diff.NewScript); err != nil {
				return err
			}
			if err := setCurrentScriptVersionTx(ctx, tx, diff.NewScript.Version); err != nil {
				return err
			}
		}
		return nil
	})
}

// NextID mints the next monotonic formatted identifier for kind
// ("evidence", "proposition", or "interview"), bumping the persistent
// per-kind counter. Ids are never reused, even after the row they named is
// later deleted or superseded (spec invariant 3).
func (s *Store) NextID(ctx context.Context, kind string) (string, error) {
	prefix, ok := idPrefixes[kind]
	if !ok {
		return "", fmt.Errorf("store: unknown id kind %q", kind)
	}

	var id string
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		var next int64
		row := tx.QueryRowContext(ctx, `SELECT next_value FROM id_counters WHERE kind = ?`, kind)
		err := row.Scan(&next)
		switch {
		case err == sql.ErrNoRows:
			next = 1
			if _, err := tx.ExecContext(ctx, `INSERT INTO id_counters (kind, next_value) VALUES (?, ?)`, kind, next+1); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if _, err := tx.ExecContext(ctx, `UPDATE id_counters SET next_value = ? WHERE kind = ?`, next+1, kind); err != nil {
				return err
			}
		}
		id = fmt.Sprintf("%s%03d", prefix, next)
		return nil
	})
	return id, err
}

var idPrefixes = map[string]string{
	"evidence":    "E",
	"proposition": "P",
	"interview":   "INT_",
}
