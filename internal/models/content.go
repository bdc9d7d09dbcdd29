package models

import (
	"encoding/json"
	"time"
)

// ContentBlob — запись в content-addressed хранилище.
// Ключ — sha256 хэш payload; блобы иммутабельны, Put идемпотентен.
type ContentBlob struct {
	Hash      string          `json:"hash" db:"hash"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
	SizeBytes int64           `json:"size_bytes" db:"size_bytes"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// ChapterRef — ссылка на главу внутри манифеста перевода.
// Логический ID главы общий для всех языков; BlobHash — свой на язык.
type ChapterRef struct {
	ID        int     `json:"id"`
	Number    int     `json:"number"`
	Title     string  `json:"title"`
	BlobHash  string  `json:"blobHash"`
	AudioHash *string `json:"audioHash,omitempty"`
}

// ContentManifest — блоб, на который указывает Translation.ContentHash.
// Перечисляет ссылки на главы конкретной языковой версии.
type ContentManifest struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Chapters    []ChapterRef `json:"chapters"`
}

// FindChapter возвращает ссылку на главу по логическому ID или nil.
func (m *ContentManifest) FindChapter(chapterID int) *ChapterRef {
	for i := range m.Chapters {
		if m.Chapters[i].ID == chapterID {
			return &m.Chapters[i]
		}
	}
	return nil
}

// ChapterContent — структура payload блоба одной главы.
// blocks — формат рендеринга мобильного клиента, сервис его не интерпретирует.
type ChapterContent struct {
	ID        int               `json:"id"`
	Number    int               `json:"number"`
	Title     string            `json:"title"`
	WordCount int               `json:"wordCount"`
	Blocks    []json.RawMessage `json:"blocks"`
}
