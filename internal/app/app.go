package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"newsrelay/internal/adapter/newsapi"
	"newsrelay/internal/adapter/summarizer"
	"newsrelay/internal/adapter/telegram"
	"newsrelay/internal/config"
	"newsrelay/internal/domain"
	"newsrelay/internal/logger"
	"newsrelay/internal/metrics"
	"newsrelay/internal/migrations"
	"newsrelay/internal/retry"
	server "newsrelay/internal/transport/http"
	"newsrelay/internal/usecase"
	"newsrelay/internal/worker"
	"newsrelay/storage"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App представляет приложение newsrelay.
// Создает клиентов внешних API один раз при старте и владеет их жизненным циклом:
// HTTP-сервер, планировщик, пул соединений журнала.
type App struct {
	config *config.Config
	logger *slog.Logger
	relay  *usecase.RelayUseCase
	server *http.Server
	worker *worker.Worker
	dbPool *pgxpool.Pool
	wg     sync.WaitGroup
}

// New создает и инициализирует приложение.
// Выполняет настройку логгера, при включенном журнале подключается к базе
// и применяет миграции, создает адаптеры, конвейер и HTTP-роутер.
// Возвращает ошибку в случае сбоя любой из инициализационных процедур.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	slog.SetDefault(appLogger)
	a := &App{config: cfg, logger: appLogger}

	var journal storage.Storage = storage.NopJournal{}
	if cfg.Database.Enabled {
		pool, err := connectDB(ctx, cfg.Database, appLogger)
		if err != nil {
			return nil, err
		}
		a.dbPool = pool
		journal = storage.NewPostgresRunJournal(pool, appLogger)
	}

	policy := retry.DefaultPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Retry.MaxAttempts
	}
	policy.InitialInterval = config.Duration(cfg.Retry.InitialInterval, policy.InitialInterval)
	policy.MaxInterval = config.Duration(cfg.Retry.MaxInterval, policy.MaxInterval)

	source := newsapi.NewClient(newsapi.Options{
		BaseURL:  cfg.News.BaseURL,
		APIKey:   cfg.News.APIKey,
		Query:    cfg.News.Query,
		Sources:  cfg.News.Sources,
		Language: cfg.News.Language,
		SortBy:   cfg.News.SortBy,
		Timeout:  config.Duration(cfg.News.Timeout, 10*time.Second),
	}, policy, appLogger)

	var rewriter usecase.Summarizer
	if cfg.Summarizer.Enabled {
		client, err := summarizer.NewClient(summarizer.Options{
			APIKey:    cfg.Summarizer.APIKey,
			BaseURL:   cfg.Summarizer.BaseURL,
			Model:     cfg.Summarizer.Model,
			MaxTokens: cfg.Summarizer.MaxTokens,
			Timeout:   config.Duration(cfg.Summarizer.Timeout, 30*time.Second),
		}, policy, appLogger)
		if err != nil {
			a.Close()
			return nil, err
		}
		rewriter = client
	}

	publisher, err := telegram.NewPublisher(telegram.Options{
		BotToken:          cfg.Telegram.BotToken,
		APIEndpoint:       cfg.Telegram.APIEndpoint,
		Footer:            cfg.Telegram.Footer,
		Timeout:           config.Duration(cfg.Telegram.Timeout, 15*time.Second),
		MessagesPerMinute: cfg.Telegram.MessagesPerMinute,
	}, policy, appLogger)
	if err != nil {
		a.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	batchMetrics := metrics.New(registry)

	batchTimeout := config.Duration(cfg.Batch.Timeout, 2*time.Minute)
	a.relay = usecase.NewRelayUseCase(source, rewriter, publisher, journal, batchMetrics, appLogger, usecase.RelayOptions{
		Target:             domain.PublishTarget{ChannelID: cfg.Telegram.ChannelID},
		Policy:             usecase.FailurePolicy(cfg.Batch.Policy),
		FallbackToOriginal: cfg.Summarizer.FallbackToOriginal,
		Timeout:            batchTimeout,
	})

	runsGetter := usecase.NewRunsGetterUseCase(journal)
	handler := server.NewHandler(appLogger, a.relay, runsGetter, server.TriggerOptions{
		BatchSize:     cfg.Batch.Size,
		UseSummarizer: cfg.Summarizer.Enabled,
		Token:         cfg.Server.TriggerToken,
	})
	router := server.NewServer(appLogger, handler, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	a.server = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Batch.Schedule != "" {
		a.worker, err = worker.New(a.relay, cfg.Batch.Schedule, cfg.Batch.Size, cfg.Summarizer.Enabled, batchTimeout, appLogger)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func connectDB(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("Database connection established", slog.String("component", "database"))
	if err := migrations.Apply(ctx, log, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	return pool, nil
}

// RunOnce выполняет один пакет и завершается. Используется командой run.
func (a *App) RunOnce(ctx context.Context) (*domain.BatchResult, error) {
	defer a.Close()
	return a.relay.RunBatch(ctx, a.config.Batch.Size, a.config.Summarizer.Enabled)
}

// Serve запускает планировщик (если задано расписание) и HTTP-сервер.
// Блокируется до отмены ctx, после чего выполняет graceful shutdown.
func (a *App) Serve(ctx context.Context) error {
	a.logger.Info("Starting newsrelay",
		slog.String("component", "app"),
		slog.Int("batch_size", a.config.Batch.Size),
		slog.String("policy", a.config.Batch.Policy),
		slog.Bool("summarizer", a.config.Summarizer.Enabled),
		slog.String("schedule", a.config.Batch.Schedule),
	)
	listener, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.Close()
		return fmt.Errorf("failed to create listener: %w", err)
	}
	a.logger.Info("HTTP server ready",
		slog.String("component", "server"),
		slog.String("address", listener.Addr().String()),
	)
	if a.worker != nil {
		a.worker.Start()
	}
	serveErr := make(chan error, 1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
			serveErr <- err
		}
	}()
	select {
	case <-ctx.Done():
		a.logger.Info("Shutdown signal received", slog.String("component", "app"))
	case err = <-serveErr:
	}
	a.Shutdown()
	return err
}

// Shutdown останавливает планировщик, завершает HTTP-сервер с таймаутом
// 10 секунд и закрывает соединение с БД.
func (a *App) Shutdown() {
	a.logger.Info("Starting graceful shutdown")
	if a.worker != nil {
		a.worker.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", slog.Any("error", err))
	}
	a.wg.Wait()
	a.Close()
	a.logger.Info("Application stopped gracefully")
}

// Close освобождает пул соединений журнала.
func (a *App) Close() {
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}
