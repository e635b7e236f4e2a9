package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Policy values for BatchConfig.Policy.
const (
	PolicyAbort   = "abort"
	PolicyIsolate = "isolate"
)

// Config представляет основную конфигурацию сервиса newsrelay.
// Содержит настройки сервера, логгера, внешних API, пакетной обработки и журнала.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Logger     LoggerConfig     `json:"logger"`
	News       NewsConfig       `json:"news"`
	Summarizer SummarizerConfig `json:"summarizer"`
	Telegram   TelegramConfig   `json:"telegram"`
	Batch      BatchConfig      `json:"batch"`
	Retry      RetryConfig      `json:"retry"`
	Database   DatabaseConfig   `json:"database"`
}

// ServerConfig содержит настройки HTTP-сервера приложения.
// TriggerToken, если задан, требуется в заголовке Authorization для запуска пакета.
type ServerConfig struct {
	Address      string `json:"address"`
	TriggerToken string `json:"trigger_token"`
}

// LoggerConfig содержит настройки системы логирования.
// Level: debug, info, warn, error. Format: readable или json.
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// NewsConfig содержит параметры запроса к новостному провайдеру.
type NewsConfig struct {
	BaseURL  string   `json:"base_url"`
	APIKey   string   `json:"api_key"`
	Query    string   `json:"query"`
	Sources  []string `json:"sources"`
	Language string   `json:"language"`
	SortBy   string   `json:"sort_by"`
	Timeout  string   `json:"timeout"`
}

// SummarizerConfig содержит настройки генеративного API.
// FallbackToOriginal включает публикацию исходной статьи при сбое переписывания.
type SummarizerConfig struct {
	Enabled            bool   `json:"enabled"`
	APIKey             string `json:"api_key"`
	BaseURL            string `json:"base_url"`
	Model              string `json:"model"`
	MaxTokens          int    `json:"max_tokens"`
	Timeout            string `json:"timeout"`
	FallbackToOriginal bool   `json:"fallback_to_original"`
}

// TelegramConfig содержит учетные данные бота и канал назначения.
type TelegramConfig struct {
	BotToken          string `json:"bot_token"`
	ChannelID         string `json:"channel_id"`
	APIEndpoint       string `json:"api_endpoint"`
	Footer            string `json:"footer"`
	Timeout           string `json:"timeout"`
	MessagesPerMinute int    `json:"messages_per_minute"`
}

// BatchConfig определяет размер пакета, политику ошибок и расписание.
// Пустой Schedule означает запуск только по HTTP или из CLI.
type BatchConfig struct {
	Size     int    `json:"size"`
	Policy   string `json:"policy"`
	Timeout  string `json:"timeout"`
	Schedule string `json:"schedule"`
}

// RetryConfig задает ограниченный экспоненциальный повтор внешних вызовов.
type RetryConfig struct {
	MaxAttempts     int    `json:"max_attempts"`
	InitialInterval string `json:"initial_interval"`
	MaxInterval     string `json:"max_interval"`
}

// DatabaseConfig содержит параметры подключения к PostgreSQL для журнала запусков.
// Журнал необязателен: при Enabled=false запуски не сохраняются.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// DSN возвращает строку подключения к PostgreSQL в формате URI.
// Явно заданный URL имеет приоритет над отдельными полями.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
		c.SSLMode)
}

// Load загружает конфигурацию из JSON-файла по указанному пути.
// Пустой путь означает конфигурацию по умолчанию. После чтения файла
// подгружает .env (если есть) и применяет переопределения из окружения.
func Load(configPath string) (*Config, error) {
	cfg := New()
	if configPath != "" {
		fileData, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := json.Unmarshal(fileData, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON from file %s: %w", configPath, err)
		}
	}
	_ = godotenv.Load()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// New создает новый экземпляр Config с значениями по умолчанию.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "readable",
		},
		News: NewsConfig{
			BaseURL:  "https://newsapi.org/v2/everything",
			Query:    "technology OR AI OR software OR gadgets",
			Sources:  []string{"techcrunch", "the-verge", "wired", "ars-technica", "engadget"},
			Language: "en",
			SortBy:   "publishedAt",
			Timeout:  "10s",
		},
		Summarizer: SummarizerConfig{
			Model:     "claude-3-5-haiku-latest",
			MaxTokens: 512,
			Timeout:   "30s",
		},
		Telegram: TelegramConfig{
			ChannelID:         "@tgchannelv1",
			Timeout:           "15s",
			MessagesPerMinute: 20,
		},
		Batch: BatchConfig{
			Size:    3,
			Policy:  PolicyAbort,
			Timeout: "2m",
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: "500ms",
			MaxInterval:     "10s",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
	}
}

// LookupFunc совпадает по сигнатуре с os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv переопределяет секреты и параметры развертывания из окружения.
// Ключи API и токен бота обычно приходят именно отсюда, а не из файла.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("NEWS_API_KEY", &c.News.APIKey)
	str("ANTHROPIC_API_KEY", &c.Summarizer.APIKey)
	str("BOT_TOKEN", &c.Telegram.BotToken)
	str("CHANNEL_ID", &c.Telegram.ChannelID)
	str("TRIGGER_TOKEN", &c.Server.TriggerToken)
	str("BATCH_SCHEDULE", &c.Batch.Schedule)
	str("LOG_LEVEL", &c.Logger.Level)
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Database.URL = v
		c.Database.Enabled = true
	}
	if v, ok := lookup("BATCH_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BATCH_SIZE %q: %w", v, err)
		}
		c.Batch.Size = n
	}
	if v, ok := lookup("USE_SUMMARIZER"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid USE_SUMMARIZER %q: %w", v, err)
		}
		c.Summarizer.Enabled = b
	}
	return nil
}

// Validate проверяет корректность конфигурации.
// Проверяет обязательные секреты, URL провайдеров, длительности и политику пакета.
// Возвращает ошибку с описанием первой найденной проблемы.
func (c *Config) Validate() error {
	if c.News.APIKey == "" {
		return fmt.Errorf("news api key is not set")
	}
	if _, err := url.ParseRequestURI(c.News.BaseURL); err != nil {
		return fmt.Errorf("invalid news.base_url: %s", c.News.BaseURL)
	}
	if strings.TrimSpace(c.News.Query) == "" && len(c.News.Sources) == 0 {
		return fmt.Errorf("news.query or news.sources must be set")
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is not set")
	}
	if c.Telegram.ChannelID == "" {
		return fmt.Errorf("telegram.channel_id is not set")
	}
	if c.Telegram.MessagesPerMinute <= 0 {
		return fmt.Errorf("telegram.messages_per_minute must be a positive number")
	}
	if c.Summarizer.Enabled {
		if c.Summarizer.APIKey == "" {
			return fmt.Errorf("summarizer is enabled but api key is not set")
		}
		if c.Summarizer.Model == "" {
			return fmt.Errorf("summarizer.model is not set")
		}
		if c.Summarizer.MaxTokens <= 0 {
			return fmt.Errorf("summarizer.max_tokens must be a positive number")
		}
	}
	if c.Batch.Size <= 0 || c.Batch.Size > 100 {
		return fmt.Errorf("batch.size must be between 1 and 100")
	}
	if c.Batch.Policy != PolicyAbort && c.Batch.Policy != PolicyIsolate {
		return fmt.Errorf("batch.policy must be %q or %q", PolicyAbort, PolicyIsolate)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be a positive number")
	}
	durations := map[string]string{
		"news.timeout":           c.News.Timeout,
		"summarizer.timeout":     c.Summarizer.Timeout,
		"telegram.timeout":       c.Telegram.Timeout,
		"batch.timeout":          c.Batch.Timeout,
		"retry.initial_interval": c.Retry.InitialInterval,
		"retry.max_interval":     c.Retry.MaxInterval,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if c.Database.Enabled && c.Database.URL == "" {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is not set")
		}
		if c.Database.Username == "" {
			return fmt.Errorf("database username is not set")
		}
	}
	return nil
}

// Duration разбирает строковую длительность, уже проверенную в Validate.
// Для невалидного значения возвращает fallback.
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
