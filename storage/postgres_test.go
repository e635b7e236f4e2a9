package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"newsrelay/internal/domain"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Storage = (*PostgresRunJournal)(nil)
var _ Storage = NopJournal{}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRecord() domain.RunRecord {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return domain.RunRecord{
		RunID:      "5f1c9a1e-0000-4000-8000-000000000001",
		StartedAt:  started,
		FinishedAt: started.Add(4 * time.Second),
		State:      "partial",
		Fetched:    3,
		Published:  2,
		Failed:     1,
		Error:      "1 of 3 articles not published",
	}
}

func TestPostgresRunJournal_SaveRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	rec := sampleRecord()
	mock.ExpectExec("INSERT INTO batch_runs").
		WithArgs(rec.RunID, rec.StartedAt, rec.FinishedAt, rec.State, 3, 2, 1, 0, rec.Error).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPostgresRunJournal(mock, discardLogger()).SaveRun(context.Background(), rec)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunJournal_SaveRunError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectExec("INSERT INTO batch_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("relation \"batch_runs\" does not exist"))

	err = NewPostgresRunJournal(mock, discardLogger()).SaveRun(context.Background(), sampleRecord())

	assert.ErrorContains(t, err, "storage.postgres.SaveRun")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunJournal_ListRuns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	rec := sampleRecord()
	rows := pgxmock.NewRows([]string{"run_id", "started_at", "finished_at", "state", "fetched", "published", "failed", "skipped", "error"}).
		AddRow(rec.RunID, rec.StartedAt, rec.FinishedAt, rec.State, rec.Fetched, rec.Published, rec.Failed, rec.Skipped, rec.Error)
	mock.ExpectQuery("SELECT run_id::text, started_at").
		WithArgs(5).
		WillReturnRows(rows)

	runs, err := NewPostgresRunJournal(mock, discardLogger()).ListRuns(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, []domain.RunRecord{rec}, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunJournal_ListRunsDefaultLimit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectQuery("SELECT run_id::text, started_at").
		WithArgs(defaultRunsLimit).
		WillReturnRows(pgxmock.NewRows([]string{"run_id", "started_at", "finished_at", "state", "fetched", "published", "failed", "skipped", "error"}))

	runs, err := NewPostgresRunJournal(mock, discardLogger()).ListRuns(context.Background(), 0)

	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRunJournal_ListRunsQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectQuery("SELECT run_id::text, started_at").
		WithArgs(10).
		WillReturnError(errors.New("connection reset"))

	runs, err := NewPostgresRunJournal(mock, discardLogger()).ListRuns(context.Background(), 10)

	assert.Nil(t, runs)
	assert.ErrorContains(t, err, "failed to execute query")
}

func TestNopJournal(t *testing.T) {
	var j NopJournal
	assert.NoError(t, j.SaveRun(context.Background(), sampleRecord()))
	runs, err := j.ListRuns(context.Background(), 10)
	assert.NoError(t, err)
	assert.Empty(t, runs)
}
