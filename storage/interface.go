package storage

import (
	"context"
	"newsrelay/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Storage определяет общий интерфейс журнала запусков.
// Хранит только сводки пакетов; отправленные статьи не сохраняются.
type Storage interface {
	SaveRun(ctx context.Context, rec domain.RunRecord) error
	ListRuns(ctx context.Context, n int) ([]domain.RunRecord, error)
}

// DBTX - подмножество методов pgxpool.Pool, используемое журналом.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}
