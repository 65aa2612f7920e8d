package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m1ggy/time-doctor-monday.com-integration/internal/ledger"
	"github.com/m1ggy/time-doctor-monday.com-integration/internal/model"
)

func setupMockLedger(t *testing.T) (sqlmock.Sqlmock, *ledger.Ledger) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	l := ledger.New(db, ledger.DriverPostgres)
	l.SetClock(func() time.Time { return time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC) })
	return mock, l
}

func TestPostgresMigrateUsesBigserial(t *testing.T) {
	mock, l := setupMockLedger(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS runs")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("idx_runs_started")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("BIGSERIAL PRIMARY KEY")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("idx_outcomes_run")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, l.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBeginRunPlaceholders(t *testing.T) {
	mock, l := setupMockLedger(t)
	ref := time.Date(2026, 3, 5, 17, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO runs (id, started_at, period, reference, dry_run) VALUES ($1, $2, $3, $4, $5)")).
		WithArgs(sqlmock.AnyArg(), "2026-03-05T18:00:00.000000000Z", "March 1 - March 15", "2026-03-05T17:00:00.000000000Z", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	run, err := l.BeginRun(context.Background(), model.Run{Period: "March 1 - March 15", Reference: ref})
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordOutcome(t *testing.T) {
	mock, l := setupMockLedger(t)

	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7, $8)")).
		WithArgs("run-1", "ann@example.com", "", "Ops", "i1", "written", `{"clock_in":"08:05"}`, "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := l.RecordOutcome(context.Background(), "run-1", model.Outcome{
		Email: "ann@example.com", Group: "Ops", RecordID: "i1", Result: model.ResultWritten,
		Fields: map[string]any{"clock_in": "08:05"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRunUnknownID(t *testing.T) {
	mock, l := setupMockLedger(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE runs SET")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := l.FinishRun(context.Background(), model.Run{ID: "missing"})
	assert.ErrorIs(t, err, ledger.ErrRunNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunNoRows(t *testing.T) {
	mock, l := setupMockLedger(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("r").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := l.GetRun(context.Background(), "r")
	assert.ErrorIs(t, err, ledger.ErrRunNotFound)
}

func TestListOutcomesQueryError(t *testing.T) {
	mock, l := setupMockLedger(t)
	boom := errors.New("connection refused")

	mock.ExpectQuery(regexp.QuoteMeta("FROM run_outcomes WHERE run_id = $1")).WillReturnError(boom)

	_, err := l.ListOutcomes(context.Background(), "r")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, sql.ErrNoRows)
}

func TestListRunsScansRows(t *testing.T) {
	mock, l := setupMockLedger(t)

	rows := sqlmock.NewRows([]string{
		"id", "started_at", "finished_at", "period", "reference", "dry_run",
		"written", "unchanged", "skipped", "failed", "no_logs", "error",
	}).AddRow("r1", "2026-03-05T18:00:00.000000000Z", nil, "March 1 - March 15", "2026-03-05T17:00:00.000000000Z", 1, 2, 3, 0, 1, 4, "")

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY started_at DESC LIMIT $1")).WithArgs(5).WillReturnRows(rows)

	runs, err := l.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].DryRun)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Equal(t, 2, runs[0].Written)
	assert.Equal(t, 4, runs[0].NoLogs)
}
