package models

import (
	"time"

	"github.com/google/uuid"
)

// TranslationStatus определяет возможные статусы перевода.
// Совпадает с типом ENUM 'translation_status' в БД.
type TranslationStatus string

const (
	TranslationStatusPlanned    TranslationStatus = "planned"     // Перевод запланирован, работа не началась
	TranslationStatusInProgress TranslationStatus = "in_progress" // Воркер присылает главы инкрементально
	TranslationStatusCompleted  TranslationStatus = "completed"   // Прошел валидацию, пригоден к отдаче
	TranslationStatusFailed     TranslationStatus = "failed"      // Валидация не прошла или таймаут; можно ретраить
	TranslationStatusStale      TranslationStatus = "stale"       // Контент оригинала уехал вперед; отдается с флагом
)

// AudioStatus определяет статус озвучки перевода.
type AudioStatus string

const (
	AudioStatusNone       AudioStatus = "none"
	AudioStatusGenerating AudioStatus = "generating"
	AudioStatusReady      AudioStatus = "ready"
	AudioStatusFailed     AudioStatus = "failed"
)

// Translation представляет запись перевода per (story, language) в базе данных.
// Мутации идут ИСКЛЮЧИТЕЛЬНО через функцию перехода state machine и CAS по SyncVersion;
// прямые записи полей мимо репозитория запрещены.
type Translation struct {
	StoryID  uuid.UUID         `json:"story_id" db:"story_id"`
	Language string            `json:"language" db:"language"`
	Status   TranslationStatus `json:"status" db:"status"`

	// ContentHash — хэш манифеста последнего УСПЕШНО закоммиченного контента перевода.
	// SourceHashBaseline — master_content_hash, против которого перевод был сделан.
	ContentHash        *string `json:"content_hash,omitempty" db:"content_hash"`
	SourceHashBaseline *string `json:"source_hash_baseline,omitempty" db:"source_hash_baseline"`

	QualityScore *float64 `json:"quality_score,omitempty" db:"quality_score"` // self-report джобы перевода
	WordCount    int      `json:"word_count" db:"word_count"`
	ChapterCount int      `json:"chapter_count" db:"chapter_count"`
	// ChaptersCompleted — логические ID глав, уже присланных воркером.
	// Для progressive serving в статусе in_progress.
	ChaptersCompleted []int `json:"chapters_completed" db:"chapters_completed"`

	// SyncVersion — токен оптимистической конкуренции, инкрементируется на каждой успешной записи.
	SyncVersion int64 `json:"sync_version" db:"sync_version"`
	// NeedsResync выставляется синхронизатором при дрейфе baseline от master.
	// Снимается только переходом в completed с совпадающим baseline.
	NeedsResync bool `json:"needs_resync" db:"needs_resync"`

	HasAudio    bool        `json:"has_audio" db:"has_audio"`
	AudioStatus AudioStatus `json:"audio_status" db:"audio_status"`

	ErrorDetails *string `json:"error_details,omitempty" db:"error_details"` // Детали последней ошибки валидации/таймаута

	// LastProgressAt обновляется на каждом merge прогресса; по нему работает TTL-реапер.
	LastProgressAt time.Time `json:"last_progress_at" db:"last_progress_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// HasChapter проверяет, прислана ли глава с данным логическим ID.
func (t *Translation) HasChapter(chapterID int) bool {
	for _, id := range t.ChaptersCompleted {
		if id == chapterID {
			return true
		}
	}
	return false
}

// IsServable сообщает, можно ли отдавать контент этого перевода целиком.
// stale отдается осознанно (graceful degradation), см. FallbackResolver.
func (t *Translation) IsServable() bool {
	return t.Status == TranslationStatusCompleted || t.Status == TranslationStatusStale
}
