package models

import (
	"time"

	"github.com/google/uuid"
)

// Story представляет логическое произведение в базе данных.
// master_content_hash меняется ТОЛЬКО при редактировании контента на языке оригинала;
// пайплайн генерации/инжеста (вне этого сервиса) является его единственным источником.
type Story struct {
	ID                uuid.UUID `json:"id" db:"id"`
	LanguageGroupID   uuid.UUID `json:"language_group_id" db:"language_group_id"`
	OriginLanguage    string    `json:"origin_language" db:"origin_language"`
	IsOrigin          bool      `json:"is_origin" db:"is_origin"`
	MasterContentHash string    `json:"master_content_hash" db:"master_content_hash"`
	Title             *string   `json:"title,omitempty" db:"title"`             // Указатель, так как может быть NULL
	Description       *string   `json:"description,omitempty" db:"description"` // Указатель, так как может быть NULL
	// Кэшированные агрегаты рейтинга. Принадлежат сервису отзывов,
	// translation-server их не читает и не пишет.
	RatingAvg   float64   `json:"rating_avg" db:"rating_avg"`
	RatingCount int64     `json:"rating_count" db:"rating_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
