package journal

import (
	"context"
	"fmt"

	"github.com/greyhollow/killswitch/internal/device"
	"github.com/greyhollow/killswitch/internal/infrastructure/database"
)

const (
	defaultSweepLimit = 50
	maxSweepLimit     = 200
)

// schema is applied at open. Both tables are append-only.
const schema = `
CREATE TABLE IF NOT EXISTS toggle_attempts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	toggle_id  TEXT NOT NULL,
	device     TEXT NOT NULL,
	vm         TEXT NOT NULL,
	op         TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_toggle_attempts_toggle ON toggle_attempts(toggle_id);

CREATE TABLE IF NOT EXISTS toggle_sweeps (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	toggle_id    TEXT NOT NULL,
	op           TEXT NOT NULL,
	succeeded    INTEGER NOT NULL,
	total        INTEGER NOT NULL,
	secure_after INTEGER NOT NULL,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteJournal implements Recorder on a SQLite database.
type SQLiteJournal struct {
	db *database.DB
}

// Open opens (creating if needed) the journal database and ensures the
// schema exists.
//
// Parameters:
//   - cfg: Database configuration (path, WAL mode, busy timeout)
//
// Returns:
//   - *SQLiteJournal: Journal ready for use
//   - error: If the database cannot be opened or the schema applied
func Open(cfg database.Config) (*SQLiteJournal, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}

	if _, err := db.DB.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying journal schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// Close closes the underlying database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// HealthCheck verifies the journal database is reachable.
func (j *SQLiteJournal) HealthCheck(ctx context.Context) error {
	return j.db.HealthCheck(ctx)
}

// RecordAttempt inserts one attempt row.
func (j *SQLiteJournal) RecordAttempt(ctx context.Context, attempt Attempt) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO toggle_attempts (toggle_id, device, vm, op, outcome, detail) VALUES (?, ?, ?, ?, ?, ?)",
		attempt.ToggleID,
		attempt.Device,
		attempt.VM,
		string(attempt.Op),
		string(attempt.Outcome),
		attempt.Detail,
	)
	if err != nil {
		return fmt.Errorf("inserting attempt: %w", err)
	}
	return nil
}

// RecordSweep inserts one sweep summary row.
func (j *SQLiteJournal) RecordSweep(ctx context.Context, sweep Sweep) error {
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO toggle_sweeps (toggle_id, op, succeeded, total, secure_after) VALUES (?, ?, ?, ?, ?)",
		sweep.ToggleID,
		string(sweep.Op),
		sweep.Succeeded,
		sweep.Total,
		sweep.SecureAfter,
	)
	if err != nil {
		return fmt.Errorf("inserting sweep: %w", err)
	}
	return nil
}

// RecentSweeps returns sweep summaries ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum rows to return (default 50, max 200)
func (j *SQLiteJournal) RecentSweeps(ctx context.Context, limit int) ([]SweepRecord, error) {
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	if limit > maxSweepLimit {
		limit = maxSweepLimit
	}

	rows, err := j.db.DB.QueryContext(ctx,
		`SELECT toggle_id, op, succeeded, total, secure_after, created_at
		 FROM toggle_sweeps
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sweeps: %w", err)
	}
	defer rows.Close()

	records := make([]SweepRecord, 0, limit)
	for rows.Next() {
		var rec SweepRecord
		var op string
		if err := rows.Scan(&rec.ToggleID, &op, &rec.Succeeded, &rec.Total, &rec.SecureAfter, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning sweep: %w", err)
		}
		rec.Op = device.Op(op)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sweeps: %w", err)
	}
	return records, nil
}

// AttemptsFor returns all attempt rows of one toggle in insertion order.
func (j *SQLiteJournal) AttemptsFor(ctx context.Context, toggleID string) ([]Attempt, error) {
	rows, err := j.db.DB.QueryContext(ctx,
		`SELECT toggle_id, device, vm, op, outcome, detail
		 FROM toggle_attempts
		 WHERE toggle_id = ?
		 ORDER BY id ASC`,
		toggleID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var op, outcome string
		if err := rows.Scan(&a.ToggleID, &a.Device, &a.VM, &op, &outcome, &a.Detail); err != nil {
			return nil, fmt.Errorf("scanning attempt: %w", err)
		}
		a.Op = device.Op(op)
		a.Outcome = device.Outcome(outcome)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attempts: %w", err)
	}
	return attempts, nil
}
