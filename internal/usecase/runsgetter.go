package usecase

import (
	"context"
	"newsrelay/internal/domain"
)

// RunsStorage определяет интерфейс чтения журнала запусков.
// Используется для предоставления истории через API.
type RunsStorage interface {
	ListRuns(ctx context.Context, n int) ([]domain.RunRecord, error)
}

// RunsGetterUseCase предоставляет историю запусков для API.
type RunsGetterUseCase struct {
	storage RunsStorage
}

// NewRunsGetterUseCase создает новый экземпляр UseCase для чтения журнала.
func NewRunsGetterUseCase(s RunsStorage) *RunsGetterUseCase {
	return &RunsGetterUseCase{storage: s}
}

// GetRuns возвращает последние запуски, новые первыми.
func (us *RunsGetterUseCase) GetRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	return us.storage.ListRuns(ctx, limit)
}
