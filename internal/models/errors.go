package models

import (
	"errors"
	"fmt"
)

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound            = errors.New("resource not found") // General not found
	ErrStoryNotFound       = errors.New("story not found")
	ErrTranslationNotFound = errors.New("translation not found")
	ErrChapterNotFound     = errors.New("chapter not found")
	ErrContentNotFound     = errors.New("content blob not found")
	ErrAssetMissing        = errors.New("asset not found for story and language")

	// Optimistic concurrency
	ErrConflict = errors.New("record was modified concurrently, re-read and retry")

	// Token Errors (inter-service auth)
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input data")
)

// InvalidTransitionError возвращается при попытке нелегального перехода статуса.
// Содержит текущий и запрошенный статусы для диагностики на стороне вызывающего.
type InvalidTransitionError struct {
	From TranslationStatus
	To   TranslationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid translation status transition: %s -> %s", e.From, e.To)
}

// ValidationError возвращается, когда финальная загрузка перевода не проходит
// проверку полноты/объема/обязательных полей. Перевод при этом переходит в failed.
type ValidationError struct {
	Reason  string
	Details string
}

func (e *ValidationError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("translation validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("translation validation failed: %s (%s)", e.Reason, e.Details)
}

// Причины ValidationError. Используются в логах и ответах API.
const (
	ValidationReasonIncomplete     = "incomplete_chapters"
	ValidationReasonWordVariance   = "word_count_variance"
	ValidationReasonMissingFields  = "missing_required_fields"
	ValidationReasonEmptyChapter   = "empty_chapter_content"
	ValidationReasonUnknownChapter = "unknown_chapter_id"
)
