package storage

import (
	"context"
	"fmt"
	"log/slog"
	"newsrelay/internal/domain"

	"github.com/jackc/pgx/v5"
)

const defaultRunsLimit = 20

type PostgresRunJournal struct {
	db  DBTX
	log *slog.Logger
}

func NewPostgresRunJournal(db DBTX, log *slog.Logger) *PostgresRunJournal {
	log = log.With(slog.String("component", "journal"))
	log.Info("Initializing Postgres run journal")
	return &PostgresRunJournal{
		db:  db,
		log: log,
	}
}

// SaveRun
func (j *PostgresRunJournal) SaveRun(ctx context.Context, rec domain.RunRecord) error {
	const op = "storage.postgres.SaveRun"
	log := j.log.With(slog.String("op", op), slog.String("run_id", rec.RunID))
	query := `
	INSERT INTO batch_runs (run_id, started_at, finished_at, state, fetched, published, failed, skipped, error)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (run_id) DO NOTHING;
	`
	_, err := j.db.Exec(ctx, query,
		rec.RunID,
		rec.StartedAt,
		rec.FinishedAt,
		rec.State,
		rec.Fetched,
		rec.Published,
		rec.Failed,
		rec.Skipped,
		rec.Error,
	)
	if err != nil {
		log.Error("Failed to insert run", slog.Any("error", err))
		return fmt.Errorf("%s: failed to insert run: %w", op, err)
	}
	log.Debug("Run saved", slog.String("state", rec.State))
	return nil
}

func (j *PostgresRunJournal) ListRuns(ctx context.Context, n int) ([]domain.RunRecord, error) {
	limit := n
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	const op = "storage.postgres.ListRuns"
	log := j.log.With(slog.String("op", op), slog.Int("limit", limit))
	query := `
	SELECT run_id::text, started_at, finished_at, state, fetched, published, failed, skipped, error
	FROM batch_runs
	ORDER BY started_at DESC
	LIMIT $1;
	`
	rows, err := j.db.Query(ctx, query, limit)
	if err != nil {
		log.Error("Database query failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()
	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RunRecord, error) {
		var rec domain.RunRecord
		err := row.Scan(
			&rec.RunID,
			&rec.StartedAt,
			&rec.FinishedAt,
			&rec.State,
			&rec.Fetched,
			&rec.Published,
			&rec.Failed,
			&rec.Skipped,
			&rec.Error,
		)
		return rec, err
	})
	if err != nil {
		log.Error("Failed to collect rows", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
	}
	log.Debug("Runs retrieved", slog.Int("count", len(runs)))
	return runs, nil
}
