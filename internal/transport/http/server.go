package http

import (
	"log/slog"
	"net/http"
)

// NewServer создает HTTP-роутер с эндпоинтами запуска пакета, истории,
// проверки состояния и метрик. Добавляет middleware идентификатора запроса и логирования.
func NewServer(log *slog.Logger, h *Handler, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/send-news", h.sendNews)
	mux.HandleFunc("/api/runs", h.getRuns)
	mux.HandleFunc("/api/health", h.healthCheck)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	var handler http.Handler = mux
	handler = loggingMiddleware(log)(handler)
	handler = requestIDMiddleware()(handler)
	return handler
}
