// Package ledger keeps an SQL audit trail of reconciliation runs and what
// each run wrote for every user.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrRunNotFound is returned when no run matches.
var ErrRunNotFound = errors.New("run not found")

// Ledger stores runs and outcomes.
type Ledger struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open connects to the database and migrates the schema. For sqlite, dsn
// is a file path whose directory is created if needed.
func Open(ctx context.Context, driver, dsn string) (*Ledger, error) {
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("ledger: creating directory: %w", err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("ledger: unknown driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	l := New(db, driver)
	if err := l.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return l, nil
}

// New wraps an open database without migrating it.
func New(db *sql.DB, driver string) *Ledger {
	return &Ledger{db: db, driver: driver, now: time.Now}
}

// Close closes the database connection.
func (l *Ledger) Close() error { return l.db.Close() }

// Migrate creates the tables if they do not exist.
func (l *Ledger) Migrate(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if l.driver == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			started_at  TEXT NOT NULL,
			finished_at TEXT,
			period      TEXT NOT NULL,
			reference   TEXT NOT NULL,
			dry_run     INTEGER NOT NULL DEFAULT 0,
			written     INTEGER NOT NULL DEFAULT 0,
			unchanged   INTEGER NOT NULL DEFAULT 0,
			skipped     INTEGER NOT NULL DEFAULT 0,
			failed      INTEGER NOT NULL DEFAULT 0,
			no_logs     INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS run_outcomes (
			id        ` + serial + `,
			run_id    TEXT NOT NULL REFERENCES runs(id),
			email     TEXT NOT NULL,
			name      TEXT NOT NULL DEFAULT '',
			grp       TEXT NOT NULL DEFAULT '',
			record_id TEXT NOT NULL DEFAULT '',
			result    TEXT NOT NULL,
			fields    TEXT NOT NULL DEFAULT '{}',
			reason    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_run ON run_outcomes(run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind turns ? placeholders into $n for postgres.
func (l *Ledger) rebind(query string) string {
	if l.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// BeginRun stores a new run and returns it with ID and StartedAt set.
func (l *Ledger) BeginRun(ctx context.Context, run model.Run) (model.Run, error) {
	run.ID = uuid.NewString()
	run.StartedAt = l.now().UTC()
	_, err := l.db.ExecContext(ctx, l.rebind(
		`INSERT INTO runs (id, started_at, period, reference, dry_run) VALUES (?, ?, ?, ?, ?)`),
		run.ID, formatTime(run.StartedAt), run.Period, formatTime(run.Reference), boolInt(run.DryRun),
	)
	if err != nil {
		return model.Run{}, fmt.Errorf("ledger: begin run: %w", err)
	}
	return run, nil
}

// RecordOutcome appends one user's outcome to a run.
func (l *Ledger) RecordOutcome(ctx context.Context, runID string, o model.Outcome) error {
	fields := []byte("{}")
	if len(o.Fields) > 0 {
		var err error
		if fields, err = json.Marshal(o.Fields); err != nil {
			return fmt.Errorf("ledger: encoding fields: %w", err)
		}
	}
	_, err := l.db.ExecContext(ctx, l.rebind(
		`INSERT INTO run_outcomes (run_id, email, name, grp, record_id, result, fields, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		runID, o.Email, o.Name, o.Group, o.RecordID, string(o.Result), string(fields), o.Reason,
	)
	if err != nil {
		return fmt.Errorf("ledger: record outcome for %s: %w", o.Email, err)
	}
	return nil
}

// FinishRun stores the run's counters, finish time and fatal error.
func (l *Ledger) FinishRun(ctx context.Context, run model.Run) error {
	finished := l.now().UTC()
	res, err := l.db.ExecContext(ctx, l.rebind(
		`UPDATE runs SET finished_at = ?, period = ?, written = ?, unchanged = ?, skipped = ?,
		 failed = ?, no_logs = ?, error = ? WHERE id = ?`),
		formatTime(finished), run.Period, run.Written, run.Unchanged, run.Skipped,
		run.Failed, run.NoLogs, run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("ledger: finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, period, reference, dry_run,
	written, unchanged, skipped, failed, no_logs, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (model.Run, error) {
	var (
		r                  model.Run
		started, reference string
		finished           sql.NullString
		dryRun             int
	)
	if err := s.Scan(&r.ID, &started, &finished, &r.Period, &reference, &dryRun,
		&r.Written, &r.Unchanged, &r.Skipped, &r.Failed, &r.NoLogs, &r.Error); err != nil {
		return model.Run{}, err
	}
	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return model.Run{}, fmt.Errorf("bad started_at %q: %w", started, err)
	}
	if r.Reference, err = parseTime(reference); err != nil {
		return model.Run{}, fmt.Errorf("bad reference %q: %w", reference, err)
	}
	if finished.Valid && finished.String != "" {
		t, err := parseTime(finished.String)
		if err != nil {
			return model.Run{}, fmt.Errorf("bad finished_at %q: %w", finished.String, err)
		}
		r.FinishedAt = &t
	}
	r.DryRun = dryRun != 0
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, l.rebind(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: list runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with the given id.
func (l *Ledger) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := l.db.QueryRowContext(ctx, l.rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("ledger: get run: %w", err)
	}
	return r, nil
}

// LatestRun returns the most recently started run.
func (l *Ledger) LatestRun(ctx context.Context) (model.Run, error) {
	runs, err := l.ListRuns(ctx, 1)
	if err != nil {
		return model.Run{}, err
	}
	if len(runs) == 0 {
		return model.Run{}, ErrRunNotFound
	}
	return runs[0], nil
}

// ListOutcomes returns a run's outcomes in the order they were recorded.
func (l *Ledger) ListOutcomes(ctx context.Context, runID string) ([]model.Outcome, error) {
	rows, err := l.db.QueryContext(ctx, l.rebind(
		`SELECT email, name, grp, record_id, result, fields, reason
		 FROM run_outcomes WHERE run_id = ? ORDER BY id`), runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list outcomes: %w", err)
	}
	defer rows.Close()

	var out []model.Outcome
	for rows.Next() {
		var (
			o      model.Outcome
			result string
			fields string
		)
		if err := rows.Scan(&o.Email, &o.Name, &o.Group, &o.RecordID, &result, &fields, &o.Reason); err != nil {
			return nil, fmt.Errorf("ledger: list outcomes: %w", err)
		}
		o.Result = model.Result(result)
		if fields != "" && fields != "{}" {
			if err := json.Unmarshal([]byte(fields), &o.Fields); err != nil {
				return nil, fmt.Errorf("ledger: outcome fields for %s: %w", o.Email, err)
			}
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: list outcomes: %w", err)
	}
	return out, nil
}
