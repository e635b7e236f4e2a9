package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"newsrelay/internal/domain"
	"time"

	"github.com/robfig/cron/v3"
)

// BatchRunner определяет интерфейс запуска одного пакета.
// Используется для внедрения зависимости в воркер.
type BatchRunner interface {
	RunBatch(ctx context.Context, limit int, useSummarizer bool) (*domain.BatchResult, error)
}

// Worker запускает пакеты по cron-расписанию внутри процесса.
// Пересекающиеся запуски отклоняются самим конвейером.
type Worker struct {
	runner        BatchRunner
	schedule      string
	limit         int
	useSummarizer bool
	timeout       time.Duration
	log           *slog.Logger
	cron          *cron.Cron
	ctx           context.Context
	cancel        context.CancelFunc
}

// New создает воркера для расписания schedule (5 полей cron или дескриптор вида @every 1h).
// Возвращает ошибку, если расписание не разбирается.
func New(runner BatchRunner, schedule string, limit int, useSummarizer bool, timeout time.Duration, log *slog.Logger) (*Worker, error) {
	w := &Worker{
		runner:        runner,
		schedule:      schedule,
		limit:         limit,
		useSummarizer: useSummarizer,
		timeout:       timeout,
		log:           log.With(slog.String("component", "worker")),
	}
	w.cron = cron.New(
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.Recover(cron.DiscardLogger)),
	)
	if _, err := w.cron.AddFunc(schedule, w.runOnce); err != nil {
		return nil, fmt.Errorf("invalid batch schedule %q: %w", schedule, err)
	}
	return w, nil
}

// Start запускает планировщик в отдельной горутине.
func (w *Worker) Start() {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.cron.Start()
	w.log.Info("Batch scheduler started",
		slog.String("schedule", w.schedule),
		slog.Int("batch_size", w.limit),
		slog.Time("next_run", w.Next()),
	)
}

// Stop останавливает планировщик, отменяет текущий пакет и ждет его завершения.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	<-w.cron.Stop().Done()
	w.log.Info("Worker stopped")
}

// Next возвращает время следующего запуска.
func (w *Worker) Next() time.Time {
	entries := w.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// runOnce выполняет один запланированный пакет и логирует его итог.
func (w *Worker) runOnce() {
	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	start := time.Now()
	w.log.Info("Scheduled batch started")
	result, err := w.runner.RunBatch(ctx, w.limit, w.useSummarizer)
	if errors.Is(err, domain.ErrBatchInProgress) {
		w.log.Warn("Scheduled batch skipped, previous batch still running")
		return
	}
	if err != nil {
		w.log.Error("Scheduled batch failed",
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err),
		)
		return
	}
	w.log.Info("Scheduled batch completed",
		slog.String("run_id", result.RunID),
		slog.Int("published", result.Published()),
		slog.Duration("duration", time.Since(start)),
	)
}
