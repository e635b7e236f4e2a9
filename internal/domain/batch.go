package domain

import "time"

// OutcomeStatus - итог обработки одной статьи в пакете.
type OutcomeStatus string

const (
	StatusPublished OutcomeStatus = "published"
	StatusFailed    OutcomeStatus = "failed"
	StatusSkipped   OutcomeStatus = "skipped"
)

// BatchState - итоговое состояние пакета.
type BatchState string

const (
	BatchCompleted BatchState = "completed"
	BatchPartial   BatchState = "partial"
	BatchFailed    BatchState = "failed"
)

// ArticleOutcome фиксирует, что произошло с конкретной статьей.
type ArticleOutcome struct {
	URL       string
	Title     string
	Status    OutcomeStatus
	Form      PublishForm
	Rewritten bool
	Err       error
}

// BatchResult - результат одного запуска конвейера.
// Не хранит статьи между запусками, содержит только исходы текущего пакета.
type BatchResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Fetched    int
	Outcomes   []ArticleOutcome
	State      BatchState
	Err        error
}

// Published возвращает число опубликованных статей.
func (r *BatchResult) Published() int { return r.count(StatusPublished) }

// Failed возвращает число статей, завершившихся ошибкой.
func (r *BatchResult) Failed() int { return r.count(StatusFailed) }

// Skipped возвращает число статей, не обработанных из-за остановки пакета.
func (r *BatchResult) Skipped() int { return r.count(StatusSkipped) }

// Succeeded сообщает, что пакет завершен полностью и без ошибок.
func (r *BatchResult) Succeeded() bool {
	return r.State == BatchCompleted && r.Err == nil
}

// Duration возвращает длительность запуска.
func (r *BatchResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *BatchResult) count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// RunRecord - сводка запуска для журнала. Данные статей не сохраняются.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	State      string    `json:"state"`
	Fetched    int       `json:"fetched"`
	Published  int       `json:"published"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
}

// NewRunRecord собирает сводку из результата пакета.
func NewRunRecord(r *BatchResult) RunRecord {
	rec := RunRecord{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		State:      string(r.State),
		Fetched:    r.Fetched,
		Published:  r.Published(),
		Failed:     r.Failed(),
		Skipped:    r.Skipped(),
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}
