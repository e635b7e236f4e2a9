package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"newsrelay/internal/domain"
	"newsrelay/internal/retry"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

const toolName = "rewrite_article"

const systemPrompt = `You rewrite technology news headlines for a Telegram channel.
Use a casual, friendly tone that a non-technical reader understands.
Keep it short: a title of at most 12 words and a description of one or two sentences.
Never mention the publisher, news outlet, website or author the article came from.
Do not add facts that are not in the original text.
Always answer by calling the rewrite_article tool.`

// Options содержит параметры доступа к Messages API.
type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client переписывает заголовок и описание статьи через генеративную модель.
// Формат ответа задается принудительным вызовом инструмента с двумя полями
// и проверяется перед использованием.
type Client struct {
	client   anthropic.Client
	opts     Options
	policy   retry.Policy
	validate *validator.Validate
	log      *slog.Logger
}

// NewClient создает клиента генеративного API.
// Встроенные повторы SDK отключены: повтором управляет retry.Policy.
func NewClient(opts Options, policy retry.Policy, log *slog.Logger) (*Client, error) {
	const op = "summarizer.NewClient"
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return nil, fmt.Errorf("%s: register notblank validation: %w", op, err)
	}
	return &Client{
		client:   anthropic.NewClient(reqOpts...),
		opts:     opts,
		policy:   policy,
		validate: v,
		log:      log.With(slog.String("component", "summarizer")),
	}, nil
}

// Rewrite возвращает переписанные заголовок и описание.
// Любой сбой API или несоответствие ответа схеме возвращается как
// *domain.SummarizationError. Кэширования нет.
func (c *Client) Rewrite(ctx context.Context, title, description string) (domain.RewrittenArticle, error) {
	const op = "summarizer.Rewrite"
	log := c.log.With(slog.String("op", op), slog.String("model", c.opts.Model))
	var rewritten domain.RewrittenArticle
	err := retry.Do(ctx, c.policy, log, op, func(ctx context.Context) error {
		var attemptErr error
		rewritten, attemptErr = c.rewriteOnce(ctx, title, description)
		return attemptErr
	})
	if err != nil {
		log.Error("Rewrite failed", slog.Any("error", err))
		var sumErr *domain.SummarizationError
		if errors.As(err, &sumErr) {
			return domain.RewrittenArticle{}, err
		}
		return domain.RewrittenArticle{}, &domain.SummarizationError{Err: err}
	}
	log.Debug("Article rewritten", slog.String("title", rewritten.Title))
	return rewritten, nil
}

func (c *Client) rewriteOnce(ctx context.Context, title, description string) (domain.RewrittenArticle, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	msg, err := c.client.Messages.New(ctx, c.buildParams(title, description))
	if err != nil {
		sumErr := &domain.SummarizationError{Err: fmt.Errorf("messages request failed: %w", err)}
		if isTransient(err) {
			return domain.RewrittenArticle{}, sumErr
		}
		return domain.RewrittenArticle{}, retry.Permanent(sumErr)
	}
	rewritten, err := c.decode(msg)
	if err != nil {
		return domain.RewrittenArticle{}, retry.Permanent(&domain.SummarizationError{Err: err})
	}
	return rewritten, nil
}

func (c *Client) buildParams(title, description string) anthropic.MessageNewParams {
	tool := anthropic.ToolParam{
		Name:        toolName,
		Description: anthropic.String("Return the rewritten title and description of the news article."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short, casual rewritten title.",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "One or two sentence rewritten description.",
				},
			},
			Required:    []string{"title", "description"},
			ExtraFields: map[string]any{"additionalProperties": false},
		},
	}
	return anthropic.MessageNewParams{
		Model:     anthropic.Model(c.opts.Model),
		MaxTokens: int64(c.opts.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(title, description))),
		},
		Tools:      []anthropic.ToolUnionParam{{OfTool: &tool}},
		ToolChoice: anthropic.ToolChoiceParamOfTool(toolName),
	}
}

func userPrompt(title, description string) string {
	return fmt.Sprintf("Rewrite this news article.\n\nTitle: %s\n\nDescription: %s", title, description)
}

// decode извлекает вызов инструмента и строго проверяет его аргументы:
// ровно два строковых поля, оба непустые.
func (c *Client) decode(msg *anthropic.Message) (domain.RewrittenArticle, error) {
	for _, block := range msg.Content {
		if block.Type != "tool_use" || block.Name != toolName {
			continue
		}
		var out domain.RewrittenArticle
		dec := json.NewDecoder(bytes.NewReader(block.Input))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&out); err != nil {
			return domain.RewrittenArticle{}, fmt.Errorf("tool input does not match schema: %w", err)
		}
		if err := c.validate.Struct(out); err != nil {
			return domain.RewrittenArticle{}, fmt.Errorf("tool input failed validation: %w", err)
		}
		out.Title = strings.TrimSpace(out.Title)
		out.Description = strings.TrimSpace(out.Description)
		return out, nil
	}
	return domain.RewrittenArticle{}, fmt.Errorf("response has no %s tool call (stop_reason=%s)", toolName, msg.StopReason)
}

// isTransient: 429, 5xx (включая 529 overloaded) и сетевые ошибки повторяются.
func isTransient(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
