package messaging

import "encoding/json"

// Типы событий перевода, публикуемых в очередь client_updates.
const (
	TranslationEventCompleted = "translation_completed"
	TranslationEventFailed    = "translation_failed"
	TranslationEventStale     = "translation_stale"
)

// TranslationEvent — событие для клиентского слоя (websocket/push, вне этого сервиса).
type TranslationEvent struct {
	StoryID     string `json:"story_id"`
	Language    string `json:"language"`
	EventType   string `json:"event_type"`
	NeedsResync bool   `json:"needs_resync"`
}

// ProgressPayload — сообщение воркера перевода в очереди translation_progress.
// Структурно повторяет HTTP-запрос SubmitTranslationProgress: воркеры могут
// слать прогресс обоими путями.
type ProgressPayload struct {
	TaskID       string                 `json:"task_id"`
	StoryID      string                 `json:"story_id"`
	Language     string                 `json:"language"`
	Title        string                 `json:"title,omitempty"`
	Description  string                 `json:"description,omitempty"`
	QualityScore *float64               `json:"quality_score,omitempty"`
	Chapters     []ProgressChapter      `json:"chapters"`
	IsFinal      bool                   `json:"is_final"`
	Meta         map[string]interface{} `json:"meta,omitempty"`
}

// ProgressChapter — глава в сообщении воркера.
type ProgressChapter struct {
	ID           int               `json:"id"`
	Number       int               `json:"number"`
	Title        string            `json:"title"`
	WordCount    int               `json:"word_count"`
	Blocks       []json.RawMessage `json:"blocks"`
	AudioPayload json.RawMessage   `json:"audio_payload,omitempty"`
}

// MasterUpdatePayload — сообщение пайплайна инжеста в очереди master_content_updates:
// контент оригинала отредактирован, master_content_hash изменился.
type MasterUpdatePayload struct {
	StoryID           string `json:"story_id"`
	MasterContentHash string `json:"master_content_hash"`
}
