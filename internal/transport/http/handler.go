package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"newsrelay/internal/domain"
	"strconv"
	"strings"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

type batchRunner interface {
	RunBatch(ctx context.Context, limit int, useSummarizer bool) (*domain.BatchResult, error)
}

type runsGetter interface {
	GetRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// TriggerOptions задает параметры пакета, запускаемого через HTTP.
// Пустой Token отключает проверку авторизации.
type TriggerOptions struct {
	BatchSize     int
	UseSummarizer bool
	Token         string
}

type Handler struct {
	log     *slog.Logger
	runner  batchRunner
	runs    runsGetter
	trigger TriggerOptions
}

func NewHandler(log *slog.Logger, runner batchRunner, runs runsGetter, trigger TriggerOptions) *Handler {
	return &Handler{
		log:     log,
		runner:  runner,
		runs:    runs,
		trigger: trigger,
	}
}

type sendNewsResponse struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	RunID     string `json:"run_id,omitempty"`
	State     string `json:"state,omitempty"`
	Fetched   int    `json:"fetched"`
	Published int    `json:"published"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// sendNews - хендлер для эндпоинта GET|POST /api/send-news.
// Запускает один пакет; параметры запроса не используются.
// 200 - все статьи опубликованы, 500 - любая ошибка, 409 - пакет уже выполняется.
func (h *Handler) sendNews(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/sendNews"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
	)
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		log.Warn("method not allowed", slog.String("method", r.Method))
		respondWithError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	if !h.authorized(r) {
		log.Warn("unauthorized trigger attempt")
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.runner.RunBatch(r.Context(), h.trigger.BatchSize, h.trigger.UseSummarizer)
	if errors.Is(err, domain.ErrBatchInProgress) {
		log.Warn("batch already in progress")
		respondWithError(w, http.StatusConflict, "Batch already in progress")
		return
	}
	resp := newSendNewsResponse(result)
	if err != nil {
		log.Error("Failed to send news", slog.Any("error", err))
		resp.Error = "Failed to send message"
		respondWithJSON(w, http.StatusInternalServerError, resp)
		return
	}
	resp.Message = "Message sent"
	respondWithJSON(w, http.StatusOK, resp)
}

func newSendNewsResponse(result *domain.BatchResult) sendNewsResponse {
	if result == nil {
		return sendNewsResponse{}
	}
	return sendNewsResponse{
		RunID:     result.RunID,
		State:     string(result.State),
		Fetched:   result.Fetched,
		Published: result.Published(),
		Failed:    result.Failed(),
		Skipped:   result.Skipped(),
	}
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.trigger.Token == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.trigger.Token)) == 1
}

// getRuns - хендлер для эндпоинта GET /api/runs
func (h *Handler) getRuns(w http.ResponseWriter, r *http.Request) {
	const op = "transport.http/getRuns"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", getRequestID(r.Context())),
	)
	if r.Method != http.MethodGet {
		log.Warn("method not allowed")
		respondWithError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	limitStr := r.URL.Query().Get("limit")
	limit := defaultRunsLimit
	if limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > maxRunsLimit {
			log.Warn("invalid limit parameter", slog.String("limit", limitStr))
			respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
	}

	runs, err := h.runs.GetRuns(r.Context(), limit)
	if err != nil {
		log.Error("Failed to get runs", slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	respondWithJSON(w, http.StatusOK, runs)
}

// healthCheck - хендлер для проверки состояния сервиса
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Вспомогательные функции для ответов
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
