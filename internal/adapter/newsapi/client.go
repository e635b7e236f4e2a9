package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"newsrelay/internal/domain"
	"newsrelay/internal/retry"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

const (
	userAgent    = "newsrelay/1.0"
	maxBodyBytes = 4 << 20
	removedTitle = "[Removed]"
)

// Options содержит параметры запроса к newsapi.org.
type Options struct {
	BaseURL  string
	APIKey   string
	Query    string
	Sources  []string
	Language string
	SortBy   string
	Timeout  time.Duration
}

type responseJSON struct {
	Status       string         `json:"status"`
	Code         string         `json:"code"`
	Message      string         `json:"message"`
	TotalResults int            `json:"totalResults"`
	Articles     *[]articleJSON `json:"articles"`
}

type articleJSON struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
}

// Client реализует источник статей поверх newsapi.org.
// Выполняет один GET на пакет, повторяя только временные сбои.
type Client struct {
	client    *http.Client
	opts      Options
	policy    retry.Policy
	sanitizer *bluemonday.Policy
	log       *slog.Logger
}

// NewClient создает клиента новостного API.
// Таймаут из Options применяется к каждой попытке запроса отдельно.
func NewClient(opts Options, policy retry.Policy, log *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Client{
		client:    &http.Client{},
		opts:      opts,
		policy:    policy,
		sanitizer: bluemonday.StrictPolicy(),
		log:       log.With(slog.String("component", "news-source")),
	}
}

// FetchArticles запрашивает у провайдера свежие статьи и приводит их к domain.Article.
// Порядок провайдера сохраняется, результат обрезается до limit.
// Возвращает *domain.FetchError при сетевой ошибке или неуспешном статусе
// и *domain.ParseError, если тело ответа не содержит списка статей.
func (c *Client) FetchArticles(ctx context.Context, limit int) ([]domain.Article, error) {
	const op = "newsapi.FetchArticles"
	log := c.log.With(slog.String("op", op), slog.Int("limit", limit))
	if limit <= 0 {
		return nil, &domain.FetchError{Err: fmt.Errorf("limit must be positive, got %d", limit)}
	}
	endpoint, err := c.buildURL(limit)
	if err != nil {
		return nil, &domain.FetchError{Err: err}
	}
	log.Info("Fetching articles", slog.String("url", c.opts.BaseURL))

	var records []articleJSON
	err = retry.Do(ctx, c.policy, log, op, func(ctx context.Context) error {
		var attemptErr error
		records, attemptErr = c.fetchOnce(ctx, endpoint)
		return attemptErr
	})
	if err != nil {
		log.Error("Failed to fetch articles", slog.Any("error", err))
		return nil, asSourceError(err)
	}

	articles := make([]domain.Article, 0, min(limit, len(records)))
	for _, raw := range records {
		if len(articles) == limit {
			break
		}
		article, ok := c.toArticle(raw)
		if !ok {
			log.Warn("Skipping article with missing fields",
				slog.String("title", raw.Title),
				slog.String("url", raw.URL),
			)
			continue
		}
		articles = append(articles, article)
	}
	log.Info("Articles fetched",
		slog.Int("received", len(records)),
		slog.Int("count", len(articles)),
	)
	return articles, nil
}

func (c *Client) buildURL(limit int) (string, error) {
	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", c.opts.BaseURL, err)
	}
	q := u.Query()
	if c.opts.Query != "" {
		q.Set("q", c.opts.Query)
	}
	if len(c.opts.Sources) > 0 {
		q.Set("sources", strings.Join(c.opts.Sources, ","))
	}
	if c.opts.Language != "" {
		q.Set("language", c.opts.Language)
	}
	if c.opts.SortBy != "" {
		q.Set("sortBy", c.opts.SortBy)
	}
	q.Set("pageSize", strconv.Itoa(limit))
	q.Set("apiKey", c.opts.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// fetchOnce выполняет одну попытку запроса. 5xx, 429 и сетевые ошибки считаются
// временными, остальные неуспешные статусы и ошибки разбора - постоянными.
func (c *Client) fetchOnce(ctx context.Context, endpoint string) ([]articleJSON, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(&domain.FetchError{Err: fmt.Errorf("failed to create request: %w", err)})
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Err: fmt.Errorf("failed to fetch news: %w", redactKey(err, c.opts.APIKey))}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.FetchError{Status: resp.Status, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		fetchErr := &domain.FetchError{Status: resp.Status, Err: providerError(body, resp.StatusCode)}
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fetchErr
		}
		return nil, retry.Permanent(fetchErr)
	}
	var payload responseJSON
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, retry.Permanent(&domain.ParseError{Err: fmt.Errorf("failed to decode JSON: %w", err)})
	}
	if payload.Status == "error" {
		return nil, retry.Permanent(&domain.FetchError{
			Status: payload.Code,
			Err:    errors.New(payload.Message),
		})
	}
	if payload.Articles == nil {
		return nil, retry.Permanent(&domain.ParseError{Err: errors.New("response has no articles list")})
	}
	return *payload.Articles, nil
}

// toArticle нормализует запись провайдера. Запись без заголовка, описания
// или ссылки отбрасывается; некорректная ссылка на картинку считается отсутствующей.
func (c *Client) toArticle(raw articleJSON) (domain.Article, bool) {
	article := domain.Article{
		Title:       c.cleanText(raw.Title),
		Description: c.cleanText(raw.Description),
		URL:         strings.TrimSpace(raw.URL),
		ImageURL:    strings.TrimSpace(raw.URLToImage),
	}
	if article.Title == "" || article.Title == removedTitle || article.Description == "" || !isHTTPURL(article.URL) {
		return domain.Article{}, false
	}
	if article.ImageURL != "" && !isHTTPURL(article.ImageURL) {
		c.log.Debug("Ignoring invalid image url", slog.String("image_url", article.ImageURL))
		article.ImageURL = ""
	}
	return article, true
}

// cleanText убирает разметку из текста провайдера и схлопывает пробелы.
func (c *Client) cleanText(text string) string {
	stripped := html.UnescapeString(c.sanitizer.Sanitize(text))
	return strings.Join(strings.Fields(stripped), " ")
}

func isHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func providerError(body []byte, statusCode int) error {
	var payload responseJSON
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return fmt.Errorf("%s: %s", payload.Code, payload.Message)
	}
	return fmt.Errorf("unexpected status code: %d", statusCode)
}

func asSourceError(err error) error {
	var fetchErr *domain.FetchError
	var parseErr *domain.ParseError
	if errors.As(err, &fetchErr) || errors.As(err, &parseErr) {
		return err
	}
	return &domain.FetchError{Err: err}
}

// redactKey убирает ключ API из текста ошибки: url.Error содержит полный адрес запроса.
func redactKey(err error, key string) error {
	var urlErr *url.Error
	if key != "" && errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, key, "REDACTED")
	}
	return err
}
