package usecase

import (
	"context"
	"newsrelay/internal/domain"
)

// ArticleSource определяет интерфейс получения свежих статей у новостного провайдера.
// Возвращает не более limit статей в порядке провайдера.
type ArticleSource interface {
	FetchArticles(ctx context.Context, limit int) ([]domain.Article, error)
}

// Summarizer определяет интерфейс переписывания заголовка и описания статьи.
type Summarizer interface {
	Rewrite(ctx context.Context, title, description string) (domain.RewrittenArticle, error)
}

// Publisher определяет интерфейс публикации одной статьи в канал.
// Возвращает форму, в которой статья была (или должна была быть) отправлена.
type Publisher interface {
	Publish(ctx context.Context, target domain.PublishTarget, article domain.Article) (domain.PublishForm, error)
}

// RunJournal сохраняет сводку запуска. Статьи не сохраняются.
type RunJournal interface {
	SaveRun(ctx context.Context, rec domain.RunRecord) error
}

// BatchRecorder получает итог каждого пакета для метрик.
type BatchRecorder interface {
	ObserveBatch(result *domain.BatchResult)
}
