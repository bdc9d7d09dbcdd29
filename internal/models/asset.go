package models

import (
	"time"

	"github.com/google/uuid"
)

// SharedAssetLanguage — сентинел для "общей" (не привязанной к языку) записи ассета.
// Используется вместо NULL, чтобы уникальный индекс (story_id, asset_id, language) работал честно.
const SharedAssetLanguage = "*"

// Asset представляет запись логического ассета истории (обложка, иллюстрация, аудио).
// Language == SharedAssetLanguage — общий блоб для всех языков,
// иначе — языковой override, имеющий приоритет при резолве.
type Asset struct {
	StoryID     uuid.UUID `json:"story_id" db:"story_id"`
	AssetID     string    `json:"asset_id" db:"asset_id"` // логический ID, например "cover"
	Language    string    `json:"language" db:"language"`
	BlobHash    string    `json:"blob_hash" db:"blob_hash"`
	ContentType string    `json:"content_type" db:"content_type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// BlobRef — ссылка на контент, возвращаемая резолверами.
// Резолвер никогда не материализует копию — только ссылку.
type BlobRef struct {
	Hash        string `json:"hash"`
	ContentType string `json:"contentType,omitempty"`
}
