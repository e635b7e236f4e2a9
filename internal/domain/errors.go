package domain

import (
	"errors"
	"fmt"
)

// ErrBatchInProgress возвращается, если предыдущий пакет еще выполняется.
var ErrBatchInProgress = errors.New("batch already in progress")

// FetchError - новостной провайдер недоступен или вернул неуспешный статус.
type FetchError struct {
	Status string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("news fetch failed: %s: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("news fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError - ответ провайдера не соответствует ожидаемой структуре.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("news response parse failed: %v", e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// SummarizationError - сбой генеративного API или невалидный формат ответа.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string { return fmt.Sprintf("summarization failed: %v", e.Err) }

func (e *SummarizationError) Unwrap() error { return e.Err }

// PublishError - сбой отправки статьи в канал.
type PublishError struct {
	Target string
	URL    string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s failed for %s: %v", e.Target, e.URL, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
