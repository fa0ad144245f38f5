package store

import (
	"context"
	"time"

	"github.com/hazyhaar/eidetic/internal/dbopen"
)

// LoggedEvent is one row of the durable events_log table — distinct from
// the in-memory reconciler.Event the Event Bus fans out.
type LoggedEvent struct {
	ID          string
	Kind        string
	PayloadJSON string
	CreatedAt   time.Time
}

// AppendEvent records one event outside the commit transaction that
// produced it — event logging is best-effort introspection, not part of the
// atomic state spec.md §4.1 protects.
func (s *Store) AppendEvent(ctx context.Context, id, kind, payloadJSON string) error {
	_, err := dbopen.Exec(ctx, s.db, `
		INSERT INTO events_log (id, kind, payload_json, created_at) VALUES (?, ?, ?, ?)`,
		id, kind, payloadJSON, time.Now().UTC(),
	)
	return err
}

// RecentEvents returns up to limit of the most recently logged events, most
// recent first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]LoggedEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, payload_json, created_at FROM events_log
		ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoggedEvent
	for rows.Next() {
		var e LoggedEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.PayloadJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
