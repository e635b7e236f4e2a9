package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"newsrelay/internal/domain"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FailurePolicy определяет поведение пакета при ошибке отдельной статьи.
type FailurePolicy string

const (
	// PolicyAbort останавливает пакет на первой ошибке, оставшиеся статьи пропускаются.
	PolicyAbort FailurePolicy = "abort"
	// PolicyIsolate фиксирует ошибку в исходе статьи и продолжает пакет.
	PolicyIsolate FailurePolicy = "isolate"
)

const journalTimeout = 5 * time.Second

// RelayOptions задает канал назначения и политику обработки пакета.
type RelayOptions struct {
	Target             domain.PublishTarget
	Policy             FailurePolicy
	FallbackToOriginal bool
	Timeout            time.Duration
}

// RelayUseCase реализует конвейер: получение статей, необязательное
// переписывание и публикация каждой статьи по очереди.
// Одновременно выполняется не более одного пакета.
type RelayUseCase struct {
	source     ArticleSource
	summarizer Summarizer
	publisher  Publisher
	journal    RunJournal
	recorder   BatchRecorder
	opts       RelayOptions
	log        *slog.Logger
	mu         sync.Mutex
}

// NewRelayUseCase создает новый экземпляр конвейера.
// summarizer может быть nil, если переписывание не настроено;
// journal и recorder могут быть nil.
func NewRelayUseCase(
	source ArticleSource,
	summarizer Summarizer,
	publisher Publisher,
	journal RunJournal,
	recorder BatchRecorder,
	log *slog.Logger,
	opts RelayOptions,
) *RelayUseCase {
	if opts.Policy == "" {
		opts.Policy = PolicyAbort
	}
	return &RelayUseCase{
		source:     source,
		summarizer: summarizer,
		publisher:  publisher,
		journal:    journal,
		recorder:   recorder,
		opts:       opts,
		log:        log.With(slog.String("component", "relay")),
	}
}

// RunBatch выполняет один пакет: получает до limit статей и публикует их по одной.
// Результат всегда содержит исходы по каждой статье. Ошибка получения статей
// завершает пакет без публикаций. Ошибки статей обрабатываются согласно Policy:
// abort возвращает первую ошибку, isolate - сводную ошибку, оборачивающую первую.
// Если пакет уже выполняется, возвращает domain.ErrBatchInProgress и nil.
func (uc *RelayUseCase) RunBatch(ctx context.Context, limit int, useSummarizer bool) (*domain.BatchResult, error) {
	if !uc.mu.TryLock() {
		uc.log.Warn("Batch rejected, previous batch still running")
		return nil, domain.ErrBatchInProgress
	}
	defer uc.mu.Unlock()

	if uc.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.opts.Timeout)
		defer cancel()
	}

	result := &domain.BatchResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := uc.log.With(slog.String("run_id", result.RunID))
	log.Info("Batch started",
		slog.Int("limit", limit),
		slog.Bool("summarizer", useSummarizer),
		slog.String("policy", string(uc.opts.Policy)),
	)

	err := uc.run(ctx, log, result, limit, useSummarizer)
	result.FinishedAt = time.Now()
	result.Err = err
	uc.record(ctx, log, result)

	if err != nil {
		log.Error("Batch finished with errors",
			slog.String("state", string(result.State)),
			slog.Int("published", result.Published()),
			slog.Int("failed", result.Failed()),
			slog.Int("skipped", result.Skipped()),
			slog.Duration("duration", result.Duration()),
			slog.Any("error", err),
		)
		return result, err
	}
	log.Info("Batch completed successfully",
		slog.Int("fetched", result.Fetched),
		slog.Int("published", result.Published()),
		slog.Duration("duration", result.Duration()),
	)
	return result, nil
}

func (uc *RelayUseCase) run(ctx context.Context, log *slog.Logger, result *domain.BatchResult, limit int, useSummarizer bool) error {
	if useSummarizer && uc.summarizer == nil {
		result.State = domain.BatchFailed
		return errors.New("summarizer requested but not configured")
	}

	articles, err := uc.source.FetchArticles(ctx, limit)
	if err != nil {
		log.Error("Fetch failed", slog.String("stage", "fetch"), slog.Any("error", err))
		result.State = domain.BatchFailed
		return fmt.Errorf("fetch failed: %w", err)
	}
	result.Fetched = len(articles)
	log.Debug("Articles fetched", slog.String("stage", "fetch"), slog.Int("count", len(articles)))

	var failures []error
	var stopErr error
	for _, article := range articles {
		if stopErr == nil {
			if err := ctx.Err(); err != nil {
				stopErr = err
				failures = append(failures, err)
			}
		}
		if stopErr != nil {
			result.Outcomes = append(result.Outcomes, domain.ArticleOutcome{
				URL:    article.URL,
				Title:  article.Title,
				Status: domain.StatusSkipped,
			})
			continue
		}

		outcome := uc.processArticle(ctx, log, article, useSummarizer)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Err != nil {
			failures = append(failures, outcome.Err)
			if uc.opts.Policy == PolicyAbort {
				stopErr = outcome.Err
			}
		}
	}

	switch {
	case len(failures) == 0:
		result.State = domain.BatchCompleted
		return nil
	case result.Published() == 0:
		result.State = domain.BatchFailed
	default:
		result.State = domain.BatchPartial
	}
	if uc.opts.Policy == PolicyAbort && len(failures) == 1 {
		return failures[0]
	}
	return fmt.Errorf("%d of %d articles not published: %w", len(articles)-result.Published(), len(articles), failures[0])
}

// processArticle переписывает (если нужно) и публикует одну статью.
// URL и картинка всегда берутся из исходной статьи.
func (uc *RelayUseCase) processArticle(ctx context.Context, log *slog.Logger, article domain.Article, useSummarizer bool) domain.ArticleOutcome {
	log = log.With(slog.String("url", article.URL))
	outcome := domain.ArticleOutcome{URL: article.URL, Title: article.Title}

	toPublish := article
	if useSummarizer {
		rewritten, err := uc.summarizer.Rewrite(ctx, article.Title, article.Description)
		switch {
		case err == nil:
			toPublish = article.WithRewrite(rewritten)
			outcome.Rewritten = true
			log.Debug("Article rewritten", slog.String("stage", "rewrite"))
		case uc.opts.FallbackToOriginal:
			log.Warn("Rewrite failed, publishing original", slog.String("stage", "rewrite"), slog.Any("error", err))
		default:
			log.Error("Rewrite failed", slog.String("stage", "rewrite"), slog.Any("error", err))
			outcome.Status = domain.StatusFailed
			outcome.Err = err
			return outcome
		}
	}

	form, err := uc.publisher.Publish(ctx, uc.opts.Target, toPublish)
	outcome.Form = form
	if err != nil {
		log.Error("Publish failed", slog.String("stage", "publish"), slog.Any("error", err))
		outcome.Status = domain.StatusFailed
		outcome.Err = err
		return outcome
	}
	outcome.Status = domain.StatusPublished
	log.Debug("Article published", slog.String("stage", "publish"), slog.String("form", string(form)))
	return outcome
}

// record сохраняет итог в журнал и метрики. Ошибка журнала только логируется.
func (uc *RelayUseCase) record(ctx context.Context, log *slog.Logger, result *domain.BatchResult) {
	if uc.recorder != nil {
		uc.recorder.ObserveBatch(result)
	}
	if uc.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := uc.journal.SaveRun(ctx, domain.NewRunRecord(result)); err != nil {
		log.Warn("Failed to save run to journal", slog.Any("error", err))
	}
}
