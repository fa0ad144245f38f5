package dbopen

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

const maxRetries = 3

var backoffSchedule = [maxRetries]time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	300 * time.Millisecond,
}

// IsBusy reports whether err indicates SQLite's database is locked, the
// signal RunTx retries on.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// IsUniqueConstraint reports whether err indicates a SQLite UNIQUE
// constraint violation.
func IsUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLITE_CONSTRAINT_UNIQUE") ||
		strings.Contains(msg, "SQLITE_CONSTRAINT")
}

// RunTx runs fn inside a transaction, making up to maxRetries (3) attempts on
// SQLITE_BUSY and sleeping 100ms, then 200ms, between them. fn's transaction is committed on a nil
// return and rolled back otherwise; callers must not commit or roll back tx
// themselves.
func RunTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := runOnce(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !IsBusy(err) {
			return err
		}
		lastErr = err
		if attempt < maxRetries-1 {
			if err := sleepCtx(ctx, backoffSchedule[attempt]); err != nil {
				return err
			}
		}
	}
	return lastErr
}

func runOnce(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Exec runs query via db.ExecContext, retrying on SQLITE_BUSY with the same
// backoff schedule as RunTx.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := db.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}
		if !IsBusy(err) {
			return nil, err
		}
		lastErr = err
		if attempt < maxRetries-1 {
			if err := sleepCtx(ctx, backoffSchedule[attempt]); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
