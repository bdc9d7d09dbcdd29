package service

import "errors"

var (
	// ErrOriginTranslationMissing — нарушение целостности данных: у истории нет
	// completed-перевода на языке оригинала. Это всегда hard error, не fallback.
	ErrOriginTranslationMissing = errors.New("story has no origin-language translation")

	// ErrTooManyConflicts — CAS-конфликты не разрешились за отведенное число
	// перечитываний. Вызывающий должен повторить запрос целиком.
	ErrTooManyConflicts = errors.New("too many concurrent modifications, retry the request")

	// ErrNoChaptersSubmitted — финальная отправка без единой главы.
	ErrNoChaptersSubmitted = errors.New("progress submission contains no chapters")
)
