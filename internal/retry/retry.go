// Package retry оборачивает внешние вызовы в ограниченный экспоненциальный повтор.
// Временные сбои (таймауты, 5xx, flood control) повторяются, постоянные
// помечаются через Permanent и возвращаются сразу.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy задает число попыток и интервалы между ними.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy возвращает политику по умолчанию: 3 попытки, 500ms..10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Permanent помечает ошибку как неповторяемую.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do выполняет fn, повторяя временные ошибки согласно политике.
// Возвращает последнюю ошибку fn; постоянная ошибка возвращается без обертки Permanent.
// При отмене контекста возвращается ошибка контекста, обернутая вместе с последней ошибкой fn.
func Do(ctx context.Context, p Policy, log *slog.Logger, op string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0
	var bo backoff.BackOff = b
	if p.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1))
	}
	bo = backoff.WithContext(bo, ctx)

	attempt := 0
	var lastErr error
	operation := func() error {
		attempt++
		lastErr = fn(ctx)
		return lastErr
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("Transient failure, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
	}
	err := backoff.RetryNotify(operation, bo, notify)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && lastErr != nil && errors.Is(err, ctxErr) && !errors.Is(lastErr, ctxErr) {
		return fmt.Errorf("%w: last attempt: %w", ctxErr, unwrapPermanent(lastErr))
	}
	return unwrapPermanent(err)
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
