package storage

import (
	"context"
	"newsrelay/internal/domain"
)

// NopJournal используется, когда база данных не настроена:
// запуски не сохраняются, история пуста.
type NopJournal struct{}

func (NopJournal) SaveRun(context.Context, domain.RunRecord) error { return nil }

func (NopJournal) ListRuns(context.Context, int) ([]domain.RunRecord, error) {
	return []domain.RunRecord{}, nil
}
