package models

import "encoding/json"

// ChapterSubmission — одна глава в инкрементальной отправке воркера перевода.
// Содержимое blocks непрозрачно для сервиса; word count — self-report воркера,
// как и quality score (NLP-шаг — черный ящик).
type ChapterSubmission struct {
	ID           int               `json:"id"`
	Number       int               `json:"number"`
	Title        string            `json:"title"`
	WordCount    int               `json:"wordCount"`
	Blocks       []json.RawMessage `json:"blocks"`
	AudioPayload json.RawMessage   `json:"audioPayload,omitempty"`
}

// ProgressSubmission — инкрементальная порция прогресса от воркера перевода.
// Повторная отправка уже присланной главы (по логическому ID) перезаписывает ее.
// IsFinal объявляет набор окончательным и запускает валидацию completed-перехода.
type ProgressSubmission struct {
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	QualityScore *float64            `json:"qualityScore,omitempty"`
	Chapters     []ChapterSubmission `json:"chapters"`
	IsFinal      bool                `json:"isFinal"`
}
