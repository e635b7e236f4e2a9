package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"newsrelay/internal/domain"
	"newsrelay/internal/retry"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

const maxFloodWait = 30 * time.Second

// Options содержит параметры бота и темп отправки.
type Options struct {
	BotToken          string
	APIEndpoint       string
	Footer            string
	Timeout           time.Duration
	MessagesPerMinute int
}

// Publisher публикует статьи в канал через Bot API.
// Статья с картинкой уходит как фото с подписью, без картинки - как текст.
// Каждая отправка проходит через ограничитель темпа.
type Publisher struct {
	bot     *tgbotapi.BotAPI
	token   string
	footer  string
	limiter *rate.Limiter
	policy  retry.Policy
	log     *slog.Logger
}

// NewPublisher создает бота и проверяет токен вызовом getMe.
// Bot API не принимает context, поэтому таймаут задается на уровне http.Client.
func NewPublisher(opts Options, policy retry.Policy, log *slog.Logger) (*Publisher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MessagesPerMinute <= 0 {
		opts.MessagesPerMinute = 20
	}
	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(opts.BotToken, endpoint, &http.Client{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", redactToken(err, opts.BotToken))
	}
	interval := time.Minute / time.Duration(opts.MessagesPerMinute)
	p := &Publisher{
		bot:     bot,
		token:   opts.BotToken,
		footer:  opts.Footer,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		policy:  policy,
		log:     log.With(slog.String("component", "publisher")),
	}
	p.log.Info("Telegram bot authorized", slog.String("bot", bot.Self.UserName))
	return p, nil
}

// Publish отправляет ровно одно сообщение в канал target.
// Возвращает форму публикации или *domain.PublishError. Ключа идемпотентности
// нет: повторный вызов публикует статью еще раз.
func (p *Publisher) Publish(ctx context.Context, target domain.PublishTarget, article domain.Article) (domain.PublishForm, error) {
	const op = "telegram.Publish"
	log := p.log.With(slog.String("op", op), slog.String("url", article.URL))

	form := domain.FormText
	if article.HasImage() {
		form = domain.FormPhoto
	}
	msg, err := p.buildMessage(target, article)
	if err != nil {
		return form, &domain.PublishError{Target: target.ChannelID, URL: article.URL, Err: err}
	}
	err = retry.Do(ctx, p.policy, log, op, func(ctx context.Context) error {
		return p.sendOnce(ctx, msg)
	})
	if err != nil {
		log.Error("Failed to publish article", slog.String("form", string(form)), slog.Any("error", err))
		return form, &domain.PublishError{Target: target.ChannelID, URL: article.URL, Err: err}
	}
	log.Info("Article published", slog.String("form", string(form)))
	return form, nil
}

func (p *Publisher) buildMessage(target domain.PublishTarget, article domain.Article) (tgbotapi.Chattable, error) {
	channel := strings.TrimSpace(target.ChannelID)
	isUsername := strings.HasPrefix(channel, "@") && len(channel) > 1
	var chatID int64
	if !isUsername {
		id, err := strconv.ParseInt(channel, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid channel id %q: must be @username or non-zero numeric chat id", target.ChannelID)
		}
		chatID = id
	}

	if article.HasImage() {
		caption := BuildCaption(article, p.footer, PhotoCaptionLimit)
		var photo tgbotapi.PhotoConfig
		if isUsername {
			photo = tgbotapi.NewPhotoToChannel(channel, tgbotapi.FileURL(article.ImageURL))
		} else {
			photo = tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(article.ImageURL))
		}
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
		return photo, nil
	}

	text := BuildCaption(article, p.footer, MessageTextLimit)
	var message tgbotapi.MessageConfig
	if isUsername {
		message = tgbotapi.NewMessageToChannel(channel, text)
	} else {
		message = tgbotapi.NewMessage(chatID, text)
	}
	message.ParseMode = tgbotapi.ModeHTML
	return message, nil
}

// sendOnce выполняет одну отправку. Flood control (429) и 5xx повторяются,
// при 429 перед повтором выдерживается retry_after. Остальные отказы API постоянные.
func (p *Publisher) sendOnce(ctx context.Context, msg tgbotapi.Chattable) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return retry.Permanent(err)
	}
	if err := ctx.Err(); err != nil {
		return retry.Permanent(err)
	}
	_, err := p.bot.Send(msg)
	if err == nil {
		return nil
	}
	err = redactToken(err, p.token)

	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("bot api request failed: %w", err)
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if wait := time.Duration(apiErr.RetryAfter) * time.Second; wait > 0 {
			p.log.Warn("Flood control, waiting", slog.Duration("retry_after", wait))
			if err := sleepCtx(ctx, min(wait, maxFloodWait)); err != nil {
				return retry.Permanent(err)
			}
		}
		return fmt.Errorf("flood control: %w", apiErr)
	case apiErr.Code >= http.StatusInternalServerError:
		return fmt.Errorf("bot api server error: %w", apiErr)
	default:
		return retry.Permanent(fmt.Errorf("bot api rejected message: %w", apiErr))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// redactToken убирает токен бота из url.Error: адрес Bot API содержит токен.
func redactToken(err error, token string) error {
	var urlErr *url.Error
	if token != "" && errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, token, "REDACTED")
	}
	return err
}
