package usecase

import (
	"context"
	"newsrelay/internal/domain"

	"github.com/stretchr/testify/mock"
)

type mockSource struct{ mock.Mock }

func (m *mockSource) FetchArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	args := m.Called(ctx, limit)
	articles, _ := args.Get(0).([]domain.Article)
	return articles, args.Error(1)
}

type mockSummarizer struct{ mock.Mock }

func (m *mockSummarizer) Rewrite(ctx context.Context, title, description string) (domain.RewrittenArticle, error) {
	args := m.Called(ctx, title, description)
	return args.Get(0).(domain.RewrittenArticle), args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, target domain.PublishTarget, article domain.Article) (domain.PublishForm, error) {
	args := m.Called(ctx, target, article)
	return args.Get(0).(domain.PublishForm), args.Error(1)
}

type mockJournal struct{ mock.Mock }

func (m *mockJournal) SaveRun(ctx context.Context, rec domain.RunRecord) error {
	return m.Called(ctx, rec).Error(0)
}

type mockRecorder struct{ mock.Mock }

func (m *mockRecorder) ObserveBatch(result *domain.BatchResult) {
	m.Called(result)
}

type mockRunsStorage struct{ mock.Mock }

func (m *mockRunsStorage) ListRuns(ctx context.Context, n int) ([]domain.RunRecord, error) {
	args := m.Called(ctx, n)
	runs, _ := args.Get(0).([]domain.RunRecord)
	return runs, args.Error(1)
}
